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

	"github.com/pokewar-server/internal/config"
	"github.com/pokewar-server/internal/handler"
	"github.com/pokewar-server/internal/kafka"
	"github.com/pokewar-server/internal/postgres"
	"github.com/pokewar-server/internal/redis"
	"github.com/pokewar-server/internal/roster"
	"github.com/pokewar-server/internal/service"
	"github.com/pokewar-server/internal/store"
	"github.com/pokewar-server/internal/worker"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var handlerOpts []handler.Option

	// Initialize PostgreSQL
	var postgresRepo *postgres.Repository
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		postgresRepo, err = postgres.NewRepository(&cfg.Postgres, logger)
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

		handlerOpts = append(handlerOpts,
			handler.WithReadinessCheck("postgres", postgresRepo),
			handler.WithMatchArchive(postgresRepo),
		)
	}

	// Select the key-value backend
	var backend store.Backend
	switch cfg.Store.Backend {
	case config.BackendRedis:
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		redisStore, err := redis.NewStore(&cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		logger.Info("connected to Redis")

		backend = redisStore
		handlerOpts = append(handlerOpts, handler.WithReadinessCheck("redis", redisStore))
	case config.BackendPostgres:
		backend = postgresRepo
	default:
		logger.Warn("using in-memory store, data will not survive a restart")
		backend = store.NewMemoryBackend()
	}
	kv := store.New(backend, cfg.Store.Retries(), logger)

	// Snapshot Redis into PostgreSQL, restoring anything Redis lost first
	var snapshotWorker *worker.SnapshotWorker
	if cfg.Snapshot.Enabled {
		snapshotWorker = worker.NewSnapshotWorker(backend, postgresRepo, service.CollectionKeys, &cfg.Snapshot, logger)

		if _, err := snapshotWorker.RestoreAll(ctx); err != nil {
			logger.Warn("failed to restore from snapshot on startup", "error", err)
		}
		if err := snapshotWorker.Start(ctx); err != nil {
			logger.Error("failed to start snapshot worker", "error", err)
			os.Exit(1)
		}
	}

	serviceOpts := []service.Option{service.WithSessionTTL(cfg.Session.TTL)}

	// Initialize Kafka match stream
	var kafkaProducer *kafka.Producer
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)

		kafkaProducer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, matches will not be streamed", "error", err)
		} else {
			defer kafkaProducer.Close()
			serviceOpts = append(serviceOpts, service.WithMatchPublisher(kafkaProducer))
		}

		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, postgresRepo, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without match archive", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without match archive", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize services
	game := service.New(kv, logger, serviceOpts...)
	rosterClient := roster.NewClient(cfg.Roster, logger)

	httpHandler := handler.NewHandler(game, rosterClient, logger, handlerOpts...)

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
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "store", cfg.Store.Backend)
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

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop snapshot worker
	if snapshotWorker != nil {
		if err := snapshotWorker.Stop(); err != nil {
			logger.Error("failed to stop snapshot worker", "error", err)
		}
	}

	logger.Info("server stopped")
}
