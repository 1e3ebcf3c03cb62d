package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/config"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/handler"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/importer"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/kafka"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/parser"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/postgres"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/redis"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/service"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/websocket"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	// The ingest token guards every write path; refuse to start without it
	if cfg.Ingest.Token == "" {
		logger.Error("no ingest token configured", "env", config.TokenEnvVar)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize Redis daily board. The tracker stays functional without
	// it; today's board then falls back to the record store.
	opts := []service.Option{service.WithNotifier(wsHub)}
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	dailyBoard, err := redis.NewDailyBoard(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("failed to connect to Redis, continuing without daily board cache", "error", err)
	} else {
		defer dailyBoard.Close()
		opts = append(opts, service.WithDailyBoard(dailyBoard))
		logger.Info("connected to Redis")
	}

	// Initialize services
	scoreParser := parser.New(cfg.Ingest.GameTag)
	scoreService := service.NewScoreService(repo, scoreParser, logger, opts...)

	// Initialize importer for history backfill
	imp := importer.New(scoreService, logger, importer.Options{
		PageSize:      cfg.Import.PageSize,
		MaxMessages:   cfg.Import.MaxMessages,
		ProgressEvery: cfg.Import.ProgressEvery,
		PageDelay:     cfg.Import.PageDelay,
	})

	// Initialize Kafka consumer for the live chat feed
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, scoreService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize HTTP handler with WebSocket hub
	httpHandler := handler.NewHandler(scoreService, imp, wsHub, repo, cfg.Ingest.Token, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
