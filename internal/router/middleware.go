package router

import (
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"taskmanager/internal/auth"
	"taskmanager/internal/errors"
	"taskmanager/internal/handler"
	"taskmanager/internal/logger"
	"taskmanager/internal/service"
)

// requestID assigns X-Request-ID and carries it in the request context for logging.
func requestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithRequestID(req.Context(), id)))
		},
	})
}

// requestLogger writes one slog line per request, leveled by status.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			switch {
			case v.Status >= http.StatusInternalServerError:
				level = slog.LevelError
			case v.Status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}

			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.Get().LogAttrs(c.Request().Context(), level, "request completed", attrs...)
			return nil
		},
	})
}

// resolvePrincipal turns the verified access token into the stored user's principal.
// Revoked tokens and deleted users are rejected.
func resolvePrincipal(tokenStore auth.TokenStoreInterface, users service.UserService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := c.Get(handler.ContextKeyToken).(*jwt.Token)
			if !ok {
				return unauthorized("invalid token", "INVALID_TOKEN")
			}
			claims, ok := token.Claims.(*auth.Claims)
			if !ok || claims.TokenType != auth.TokenTypeAccess {
				return unauthorized("invalid token", "INVALID_TOKEN")
			}

			ctx := c.Request().Context()
			if revoked, _ := tokenStore.IsAccessTokenBlacklisted(ctx, claims.ID); revoked {
				return unauthorized("token has been revoked", "TOKEN_REVOKED")
			}

			user, err := users.GetUser(ctx, claims.UserID)
			if err != nil {
				if stderrors.Is(err, errors.ErrUserNotFound) {
					return unauthorized("user no longer exists", "INVALID_TOKEN")
				}
				logger.ErrorContext(ctx, "failed to resolve principal", "user_id", claims.UserID, "error", err)
				return echo.NewHTTPError(http.StatusInternalServerError, errors.ErrorResponse{
					Error: "internal server error",
					Code:  "INTERNAL_ERROR",
				})
			}

			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(ctx, auth.NewPrincipal(user))))
			return next(c)
		}
	}
}
