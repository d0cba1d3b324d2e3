package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/app"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/push"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: log.ComponentRuntime,
	})
	log.SetDefault(logger)

	logger.Info("Starting fintrack agent")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.CacheDBPath)
	if err != nil {
		logger.Error("Failed to initialize local cache", log.FieldError, err, "path", cfg.CacheDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var transport push.Transport
	if cfg.PushEnabled {
		switch cfg.PushTransport {
		case config.TransportAMQP:
			transport = push.NewAMQPTransport(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue,
				cfg.ReconnectAttempts, cfg.ReconnectDelay, logger)
		default:
			transport = push.NewWebSocketTransport(cfg.PushURL,
				cfg.ReconnectAttempts, cfg.ReconnectDelay, logger)
		}
		logger.Info("Push transport configured", log.FieldTransport, cfg.PushTransport)
	}

	runtime := app.NewRuntime(cfg, logger, app.Options{
		Snapshots: repo,
		Outbox:    repo,
		Transport: transport,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runtime.Hydrate(ctx); err != nil {
		logger.Warn("Failed to hydrate persisted state", log.FieldError, err)
	}

	processorConfig := services.DefaultOutboxProcessorConfig()
	processorConfig.PollInterval = cfg.OutboxInterval
	processorConfig.BatchSize = cfg.OutboxBatchSize
	processorConfig.MaxRetries = cfg.OutboxMaxRetries
	processor := services.NewOutboxProcessor(repo, runtime.Client(), processorConfig, logger)
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start outbox processor", log.FieldError, err)
		os.Exit(1)
	}

	// Credentials provided via environment open a fresh session; otherwise the
	// agent resumes from the hydrated one.
	email := os.Getenv("FINTRACK_EMAIL")
	password := os.Getenv("FINTRACK_PASSWORD")
	switch {
	case email != "" && password != "":
		if err := runtime.Login(ctx, email, password); err != nil {
			logger.Error("Login failed", log.FieldError, err)
			os.Exit(1)
		}
	case runtime.Sessions().Authenticated():
		session := runtime.Sessions().Session()
		if session.User != nil {
			runtime.Synchronizer().LoadUnread(ctx, session.User.ID)
		}
		runtime.StartPush(ctx)
	default:
		logger.Info("No session available; waiting for credentials")
	}

	// Periodic snapshot keeps the local cache close to the in-memory state.
	snapshotTicker := time.NewTicker(30 * time.Second)
	defer snapshotTicker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-snapshotTicker.C:
			if err := runtime.Snapshot(ctx); err != nil {
				logger.Warn("Snapshot failed", log.FieldError, err)
			}
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer shutdownCancel()

			runtime.StopPush()
			if err := processor.Stop(shutdownCtx); err != nil {
				logger.Error("Outbox processor shutdown error", log.FieldError, err)
			}
			if err := runtime.Snapshot(shutdownCtx); err != nil {
				logger.Warn("Final snapshot failed", log.FieldError, err)
			}
			cancel()
			logger.Info("Agent stopped gracefully")
			return
		}
	}
}
