package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/labstack/echo/v4"

	"taskmanager/docs"
	"taskmanager/internal/auth"
	"taskmanager/internal/cache"
	"taskmanager/internal/config"
	"taskmanager/internal/db"
	"taskmanager/internal/events"
	"taskmanager/internal/handler"
	"taskmanager/internal/logger"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
	"taskmanager/internal/router"
	"taskmanager/internal/service"
)

// @title Task Manager API
// @version 1.0
// @description Task manager API with role-based access, checklist-driven progress, and JWT authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()

	if err := logger.Init(cfg.Log); err != nil {
		slog.Error("logger init", "error", err)
		os.Exit(1)
	}
	log := logger.Get()

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error("database init", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}

	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping all tables")
		for _, table := range []interface{}{&model.TaskAssignee{}, &model.Task{}, &model.User{}} {
			if err := gormDB.Migrator().DropTable(table); err != nil {
				log.Warn("failed to drop table (may not exist)", "error", err)
			}
		}
	}

	if err := gormDB.AutoMigrate(&model.User{}, &model.Task{}, &model.TaskAssignee{}); err != nil {
		log.Error("auto-migrate", "error", err)
		os.Exit(1)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cacheClient.Ping(context.Background()); err != nil {
		log.Warn("redis unavailable, continuing without cache", "addr", cfg.RedisAddr, "error", err)
	}

	publisher, drainNATS := newPublisher(cfg.NATSURL, log)

	// Repositories
	userRepo := repository.NewUserRepository(gormDB)
	taskRepo := repository.NewTaskRepository(gormDB)

	// Auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	// Services
	authService := service.NewAuthService(userRepo, jwtService, tokenStore, cacheClient, cfg.AdminInviteToken)
	userService := service.NewUserService(userRepo, taskRepo, cacheClient)
	taskService := service.NewTaskService(taskRepo, userRepo, publisher)
	dashboardService := service.NewDashboardService(taskRepo)

	e := echo.New()
	e.HideBanner = true

	router.Register(e, cfg, jwtService, tokenStore, userService, router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		User:      handler.NewUserHandler(userService),
		Task:      handler.NewTaskHandler(taskService),
		Dashboard: handler.NewDashboardHandler(dashboardService),
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}
	log.Info("swagger documentation available", "url", swaggerURL(cfg))

	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server starting", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("server start", "error", err)
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"echo": func(ctx context.Context) error {
				return e.Shutdown(ctx)
			},
			"nats": func(ctx context.Context) error {
				return drainNATS()
			},
			"redis": func(ctx context.Context) error {
				return cacheClient.Close()
			},
			"database": func(ctx context.Context) error {
				return db.Close(gormDB)
			},
		},
	)

	exitCode := <-wait
	log.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}

// newPublisher connects to NATS when configured. Events are dropped when it is not.
func newPublisher(url string, log *slog.Logger) (events.Publisher, func() error) {
	noop := func() error { return nil }
	if url == "" {
		log.Info("NATS_URL not set, task events disabled")
		return events.NewNoopPublisher(), noop
	}

	nc, err := events.Connect(url)
	if err != nil {
		log.Warn("nats unavailable, task events disabled", "url", url, "error", err)
		return events.NewNoopPublisher(), noop
	}
	log.Info("connected to NATS", "url", url)
	return events.NewNATSPublisher(nc), nc.Drain
}

func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	switch {
	case host == "":
		host = "http://localhost:" + cfg.ServerPort
	case !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://"):
		host = "http://" + host
	}
	return host + "/swagger/index.html"
}
