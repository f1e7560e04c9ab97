package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/codetrack/backend/internal/data"
	"github.com/codetrack/backend/internal/handler"
	"github.com/codetrack/backend/internal/infrastructure"
	"github.com/codetrack/backend/internal/middleware"
	"github.com/codetrack/backend/internal/repository"
	"github.com/codetrack/backend/internal/service"
)

func main() {
	config := infrastructure.LoadConfig()

	logger, err := infrastructure.NewLogger(config.Server.Environment)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.SyncLogger(logger)

	logger.Info("Starting CodeTrack API",
		zap.String("environment", config.Server.Environment),
		zap.Int("port", config.Server.Port),
		zap.Bool("auth_enabled", config.Auth.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetry, err := infrastructure.NewTelemetry(ctx, &config.Telemetry, logger)
	if err != nil {
		logger.Error("Failed to initialize telemetry", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		telemetry.Shutdown(shutdownCtx)
	}()

	metrics, err := telemetry.CreateMetrics()
	if err != nil {
		logger.Error("Failed to create metrics", zap.Error(err))
		os.Exit(1)
	}

	database, err := infrastructure.NewDatabase(&config.Database, logger)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		os.Exit(1)
	}
	defer database.Close()

	if config.Telemetry.Enabled {
		if err := database.RegisterMetrics(metrics); err != nil {
			logger.Error("Failed to register database metrics", zap.Error(err))
			os.Exit(1)
		}
	}

	if err := database.AutoMigrate(); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		os.Exit(1)
	}

	// Sample data for a fresh development environment only
	if config.Server.Environment != "production" {
		seeder := data.NewSeeder(database.DB, logger)
		if err := seeder.SeedSampleProblems(); err != nil {
			logger.Error("Failed to seed sample problems", zap.Error(err))
			os.Exit(1)
		}
	}

	userRepo := repository.NewUserRepository(database.DB)
	problemRepo := repository.NewProblemRepository(database.DB)

	userService := service.NewUserService(userRepo, &config.JWT, telemetry.Tracer, logger)
	problemService := service.NewProblemService(problemRepo, metrics, telemetry.Tracer, logger)

	authHandler := handler.NewAuthHandler(userService)
	problemHandler := handler.NewProblemHandler(problemService)

	if config.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig()))
	router.Use(middleware.TracingMiddleware(telemetry.Tracer))
	router.Use(middleware.MetricsMiddleware(metrics))

	router.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": config.Telemetry.ServiceVersion,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.GET("/me", middleware.AuthMiddleware(userService), authHandler.Me)
		}

		problems := api.Group("/problems")
		if config.Auth.Enabled {
			problems.Use(middleware.AuthMiddleware(userService))
		}
		{
			problems.GET("", problemHandler.GetProblems)
			problems.GET("/stats", problemHandler.GetProblemStats)
			problems.GET("/due", problemHandler.GetDueProblems)
			problems.GET("/:id", problemHandler.GetProblem)
			problems.POST("", problemHandler.CreateProblem)
			problems.PUT("/:id", problemHandler.UpdateProblem)
			problems.DELETE("/:id", problemHandler.DeleteProblem)
			problems.POST("/:id/revision", problemHandler.MarkRevision)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server starting",
			zap.String("address", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
