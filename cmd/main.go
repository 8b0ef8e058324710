package main

import (
	"context"
	"customer-service/internal/api"
	"customer-service/internal/batch"
	"customer-service/internal/config"
	"customer-service/internal/domain/customer"
	"customer-service/internal/event"
	"customer-service/internal/infrastructure/database/postgres"
	"customer-service/internal/infrastructure/logging"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	defaultStatsSchedule = "*/15 * * * *"
	defaultStatsTimeout  = 2 * time.Minute
	cronStopTimeout      = 15 * time.Second
	serverStopTimeout    = 20 * time.Second
	publishDrainTimeout  = 10 * time.Second
)

// @title Customer Service API
// @version 1.0
// @description Customer registry: onboarding, lookup, update, VIP/PYM flagging and soft deletion.
// @host localhost:8080
// @BasePath /
func main() {
	cfg, logger := initializeApp()

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	dbPool := initializeDatabase(appCtx, cfg, logger)
	defer closeDatabase(dbPool, logger)

	publisher := initializePublisher(appCtx, cfg, logger)
	defer closePublisher(publisher, logger)

	customerRepo := postgres.NewCustomerRepository(dbPool, logger)
	customerService := customer.NewCustomerService(customerRepo, publisher, logger,
		customer.WithPublishTimeout(cfg.Events.PublishTimeout))

	statsJob := batch.NewCustomerStatsJob(customerRepo, logger)
	cronScheduler := startBatchJobs(cfg, logger, statsJob)

	router := api.SetupRouter(appCtx, customerService, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	handleShutdown(srv, cronScheduler, customerService, shutdownChan, serverErrors, logger)
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed())

	return cfg, logger
}

func initializeDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) *pgxpool.Pool {
	logger.Info("Initializing database connection pool...")
	dbPool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	return dbPool
}

func closeDatabase(dbPool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("Closing database connection pool...")
	dbPool.Close()
}

func initializePublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) event.EventPublisher {
	publisher, err := event.NewPublisher(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize event publisher", "driver", cfg.Events.Driver, "error", err)
		os.Exit(1)
	}
	return publisher
}

func closePublisher(publisher event.EventPublisher, logger *slog.Logger) {
	logger.Info("Closing event publisher...")
	if err := publisher.Close(); err != nil {
		logger.Warn("Event publisher close failed", "error", err)
	}
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
			return
		}
		logger.Info("Server closed gracefully.")
		serverErrors <- nil
	}()
	return srv, serverErrors, shutdownChan
}

// handleShutdown blocks until a signal arrives or the server dies, then stops
// components in reverse dependency order. The publisher and pool are closed by
// the deferred calls in main once this returns.
func handleShutdown(srv *http.Server, cronScheduler *cron.Cron, service customer.CustomerService, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
	case err := <-serverErrors:
		if err != nil {
			logger.Error("Server exited unexpectedly before signal", "error", err)
		}
		triggerReason = "server exited"
		serverErrors = nil
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	logger.Info("Stopping cron scheduler...")
	select {
	case <-cronScheduler.Stop().Done():
		logger.Info("Cron scheduler stopped gracefully.")
	case <-time.After(cronStopTimeout):
		logger.Warn("Cron scheduler shutdown timed out.")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverStopTimeout)
	defer cancel()

	logger.Info("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	if serverErrors != nil {
		select {
		case err := <-serverErrors:
			if err != nil {
				logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
			}
		case <-time.After(5 * time.Second):
			logger.Warn("Timed out waiting for server goroutine confirmation.")
		}
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), publishDrainTimeout)
	defer cancelDrain()
	logger.Info("Waiting for in-flight event publishes...")
	if err := service.Shutdown(drainCtx); err != nil {
		logger.Warn("Event publishes still in flight at shutdown", "error", err)
	}

	logger.Info("Application shutdown process complete.")
}

func startBatchJobs(cfg *config.Config, logger *slog.Logger, statsJob *batch.CustomerStatsJob) *cron.Cron {
	logger.Info("Initializing batch job scheduler...")
	c := cron.New()

	scheduleSpec := cfg.Batch.CustomerStatsSchedule
	if scheduleSpec == "" {
		scheduleSpec = defaultStatsSchedule
		logger.Warn("Customer stats schedule not configured, using default", "schedule", scheduleSpec)
	}
	jobTimeout := cfg.Batch.CustomerStatsTimeout
	if jobTimeout <= 0 {
		jobTimeout = defaultStatsTimeout
	}

	jobID, err := c.AddJob(scheduleSpec, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		if runErr := statsJob.Run(ctx); runErr != nil {
			logger.Error("Customer stats job finished with error", "job_name", "CustomerStats", slog.Any("error", runErr))
		}
	}))
	if err != nil {
		logger.Error("Failed to schedule customer stats job", "schedule", scheduleSpec, slog.Any("error", err))
	} else {
		logger.Info("Scheduled customer stats job", "schedule", scheduleSpec, "job_id", jobID)
	}

	c.Start()
	logger.Info("Cron scheduler started.")
	return c
}
