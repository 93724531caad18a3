package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"taskmanager/internal/auth"
	"taskmanager/internal/config"
	"taskmanager/internal/errors"
	"taskmanager/internal/handler"
	"taskmanager/internal/service"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth      *handler.AuthHandler
	User      *handler.UserHandler
	Task      *handler.TaskHandler
	Dashboard *handler.DashboardHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	users service.UserService,
	h Handlers,
) {
	e.Use(requestID())
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.ClientURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	// Secured routes (require JWT authentication)
	secured := api.Group("",
		echojwt.WithConfig(echojwt.Config{
			SigningKey: jwtService.SigningKey(),
			ContextKey: handler.ContextKeyToken,
			NewClaimsFunc: func(c echo.Context) jwt.Claims {
				return new(auth.Claims)
			},
			ErrorHandler: func(c echo.Context, err error) error {
				return unauthorized("invalid or missing token", "INVALID_TOKEN")
			},
		}),
		resolvePrincipal(tokenStore, users),
	)

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/auth/profile", h.Auth.GetProfile)
	secured.PUT("/auth/profile", h.Auth.UpdateProfile)

	// User routes
	secured.GET("/users", h.User.ListUsers)
	secured.GET("/users/:id", h.User.GetUser)

	// Task routes
	tasks := secured.Group("/tasks")
	tasks.GET("/dashboard-data", h.Dashboard.GetDashboardData)
	tasks.GET("/user-dashboard-data", h.Dashboard.GetUserDashboardData)
	tasks.GET("", h.Task.ListTasks)
	tasks.POST("", h.Task.CreateTask)
	tasks.GET("/:id", h.Task.GetTask)
	tasks.PUT("/:id", h.Task.UpdateTask)
	tasks.DELETE("/:id", h.Task.DeleteTask)
	tasks.PUT("/:id/status", h.Task.UpdateTaskStatus)
	tasks.PUT("/:id/todo", h.Task.UpdateTaskChecklist)
}

func unauthorized(message, code string) error {
	return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
