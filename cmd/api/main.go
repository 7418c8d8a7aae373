package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"settleup/internal/config"
	"settleup/internal/database"
	"settleup/internal/events"
	"settleup/internal/logger"
	"settleup/internal/metrics"
	"settleup/internal/server"
	"settleup/internal/services"
	"settleup/internal/validator"
)

// @title           SettleUp API
// @version         1.0
// @description     SettleUp splits shared expenses between participants, tracks who has paid and hosts a comment thread per settlement.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(appConfig.Env, appConfig.LogLevel)
	defer logger.Sync()

	if err := run(appConfig); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run(appConfig *config.Config) error {
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create database manager
	dbManager, err := database.NewManager(appConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Errorw("Failed to close database", "error", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	publisher := events.NewRedisPublisher(ctx, appConfig.RedisURL)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Errorw("Failed to close event publisher", "error", err)
		}
	}()
	appMetrics := metrics.New()

	// Initialize services
	db := dbManager.DB()
	settlementService := services.NewSettlementService(db,
		services.WithPublisher(publisher),
		services.WithMetrics(appMetrics),
		services.WithAutosaveDelay(appConfig.AutosaveDelay),
	)
	commentService := services.NewCommentService(db,
		services.WithCommentPublisher(publisher),
		services.WithCommentMetrics(appMetrics),
	)

	router := server.NewRouter(server.Deps{
		Config:      appConfig,
		Metrics:     appMetrics,
		Users:       services.NewUserService(db),
		Settlements: settlementService,
		Comments:    commentService,
		Audit:       services.NewAuditService(db),
	})

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Starting SettleUp backend server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server shutdown failed", "error", err)
	}
	// Pending sheet drafts are written before the database closes.
	if err := settlementService.FlushDrafts(shutdownCtx); err != nil {
		log.Errorw("Failed to flush pending drafts", "error", err)
	}
	return nil
}
