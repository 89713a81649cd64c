package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"gastos/internal/amqp"
	"gastos/internal/cache"
	"gastos/internal/config"
	"gastos/internal/core"
	"gastos/internal/services"
	"gastos/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting alerts-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	statements := cache.NewStatementCache(cfg.CacheSize, cfg.CacheTTL)
	balances := services.NewBalanceService(repo, statements)
	alerts := services.NewAlertService(repo, balances)

	// AMQP is optional locally; without a broker alerts are only logged.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPAlertQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, alerts will only be logged", "error", err)
		} else {
			defer client.Close()
			amqpClient = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPAlertQueue)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scan := func() {
		asOf := core.DateOf(time.Now())
		found, err := alerts.Scan(ctx, asOf)
		if err != nil {
			logger.Error("Alert scan failed", "error", err, "as_of", asOf.String())
			return
		}
		if len(found) == 0 {
			logger.Info("Alert scan completed, nothing to report", "as_of", asOf.String())
			return
		}
		for _, alert := range found {
			logger.Warn("Alert",
				"kind", alert.Kind,
				"account", alert.AccountID,
				"date", alert.Date.String(),
				"days_left", alert.DaysLeft,
				"outstanding", alert.Outstanding.String(),
				"minimum_payment", alert.MinimumPayment.String(),
				"message", alert.Message)
			if amqpClient == nil {
				continue
			}
			event := &amqp.AlertEvent{
				Kind:             alert.Kind,
				AccountID:        alert.AccountID,
				Date:             alert.Date.String(),
				DaysLeft:         alert.DaysLeft,
				OutstandingCents: alert.Outstanding.Cents,
				MinimumCents:     alert.MinimumPayment.Cents,
				Utilization:      alert.Utilization,
				Message:          alert.Message,
				Timestamp:        time.Now(),
			}
			if err := amqpClient.PublishAlert(ctx, event); err != nil {
				logger.Error("Failed to publish alert", "error", err, "kind", alert.Kind, "account", alert.AccountID)
			}
		}
		logger.Info("Alert scan completed", "as_of", asOf.String(), "alerts", len(found))
	}

	// Run once at startup, then on the configured schedule.
	scan()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.AlertSchedule, scan); err != nil {
		logger.Error("Failed to schedule alert scan", "error", err, "schedule", cfg.AlertSchedule)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Alert scan scheduled", "schedule", cfg.AlertSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(10 * time.Second):
		logger.Warn("Scheduler stop timeout reached")
	}
	logger.Info("Worker shutdown complete")
}
