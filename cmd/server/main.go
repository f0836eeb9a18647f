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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solar-power-predictor/internal/config"
	"solar-power-predictor/internal/handlers"
	"solar-power-predictor/internal/regressor"
	"solar-power-predictor/internal/repository"
	"solar-power-predictor/internal/services"
	"solar-power-predictor/pkg/database"
	"solar-power-predictor/pkg/logging"
	"solar-power-predictor/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("solar-power-api", version, logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting solar power predictor API server", logging.Fields{
		"version":         version,
		"server_host":     cfg.Server.Host,
		"server_port":     cfg.Server.Port,
		"model_path":      cfg.Model.Path,
		"history_enabled": cfg.Database.Enabled,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("solar_power", prometheus.DefaultRegisterer)

	// Load the model; nothing can be served without it
	timer := metricsCollector.NewTimer(metricsCollector.ModelLoadDuration)
	model, err := regressor.Load(cfg.Model.Path)
	loadDuration := timer.ObserveDuration()
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to load model artifact", logging.Fields{
			"model_path": cfg.Model.Path,
		}, err)
	}

	logger.Info(ctx, "[MODEL_LOADED] Model artifact loaded", logging.Fields{
		"model_version": model.Version(),
		"trees":         model.NumTrees(),
		"features":      len(model.FeatureNames()),
		"duration_ms":   loadDuration.Milliseconds(),
	})

	// Optional prediction history
	var history repository.PredictionRepository
	if cfg.Database.Enabled {
		dbConfig := &database.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Name,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		}

		db, err := database.NewPostgresDB(ctx, dbConfig, logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{
				"db_host": cfg.Database.Host,
				"db_name": cfg.Database.Name,
			}, err)
		}
		defer db.Close()

		history = repository.NewPredictionRepository(db, logger, metricsCollector)
	}

	// Initialize services
	predictionService, err := services.NewPredictionService(model, history, cfg.Model.PowerUnit, logger, metricsCollector)
	if err != nil {
		var schemaErr *regressor.SchemaMismatchError
		fields := logging.Fields{"model_path": cfg.Model.Path}
		if errors.As(err, &schemaErr) {
			fields["trained_features"] = schemaErr.Expected
		}
		logger.Fatal(ctx, "[STARTUP_ERROR] Model does not accept this service's features", fields, err)
	}

	// Setup router
	router := handlers.NewRouter(predictionService, logger, metricsCollector, promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
