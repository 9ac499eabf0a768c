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

	"github.com/trophy-arena/internal/arena"
	"github.com/trophy-arena/internal/config"
	"github.com/trophy-arena/internal/handler"
	"github.com/trophy-arena/internal/kafka"
	"github.com/trophy-arena/internal/postgres"
	"github.com/trophy-arena/internal/redis"
	"github.com/trophy-arena/internal/service"
	"github.com/trophy-arena/internal/websocket"
	"github.com/trophy-arena/internal/worker"
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

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis
	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	trophyBoard, err := redis.NewTrophyBoard(&cfg.Redis, logger)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer trophyBoard.Close()
	logger.Info("connected to Redis")

	// Initialize PostgreSQL
	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer postgresRepo.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := postgresRepo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka match-event publisher
	var eventPublisher arena.EventPublisher
	var kafkaPublisher *kafka.Publisher
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka publisher",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaPublisher, err = kafka.NewPublisher(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka publisher, continuing without Kafka", "error", err)
		} else {
			eventPublisher = kafkaPublisher
			logger.Info("Kafka publisher started")
		}
	}

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(logger)

	// Initialize the matchmaking coordinator
	outcomePolicy := arena.NewTrophyPolicy(&cfg.Matchmaking)
	coordinator := arena.NewCoordinator(wsHub, postgresRepo, outcomePolicy, eventPublisher, logger)

	// Disconnects flow from the hub into the coordinator
	wsHub.SetDisconnectHandler(coordinator.HandleDisconnect)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize the leaderboard read service
	leaderboardService := service.NewLeaderboardService(
		trophyBoard,
		postgresRepo,
		&cfg.Leaderboard,
		logger,
	)

	// Initialize the trophy board refresh worker
	refreshWorker := worker.NewRefreshWorker(
		trophyBoard,
		postgresRepo,
		&cfg.Refresh,
		logger,
	)

	// Rebuild the trophy board from the database on startup (recovery)
	logger.Info("refreshing trophy board from database")
	if err := refreshWorker.RefreshBoard(ctx); err != nil {
		logger.Warn("failed to refresh trophy board on startup", "error", err)
	}

	// Start refresh worker
	if cfg.Refresh.Enabled {
		if err := refreshWorker.Start(ctx); err != nil {
			logger.Error("failed to start refresh worker", "error", err)
			os.Exit(1)
		}
	}

	// Initialize HTTP handler
	httpHandler := handler.NewHandler(coordinator, leaderboardService, wsHub, logger)

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

	// Stop refresh worker
	if err := refreshWorker.Stop(); err != nil {
		logger.Error("failed to stop refresh worker", "error", err)
	}

	// Flush and close the Kafka publisher
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("failed to close Kafka publisher", "error", err)
		}
	}

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
}
