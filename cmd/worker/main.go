package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phellister/patient-record-access-system/internal/config"
	"github.com/phellister/patient-record-access-system/internal/repository/sqlite"
	"github.com/phellister/patient-record-access-system/pkg/logger"
	"github.com/phellister/patient-record-access-system/pkg/messaging/redis"
	"github.com/phellister/patient-record-access-system/pkg/metrics"
	"github.com/phellister/patient-record-access-system/pkg/worker"
)

// Standalone outbox drainer. Runs against the same store as the API so
// event publishing can be scaled or restarted independently.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	db, err := sqlite.NewDB(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open record store")
	}
	defer db.Close()

	appMetrics := metrics.NewMetrics("record_worker", "")

	base := sqlite.NewBaseRepository(db, cfg.Storage.MaxRecordBytes).WithMetrics(appMetrics)
	outboxRepo := sqlite.NewOutboxRepository(base)

	zl := log.Logger
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &zl, appMetrics)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		Channel:       cfg.Outbox.Channel,
	}, appLogger, appMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	go processor.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down worker")
	cancel()
}
