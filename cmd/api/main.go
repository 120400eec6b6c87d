package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/phellister/patient-record-access-system/internal/config"
	doctorHandler "github.com/phellister/patient-record-access-system/internal/handler/doctor"
	hospitalHandler "github.com/phellister/patient-record-access-system/internal/handler/hospital"
	patientHandler "github.com/phellister/patient-record-access-system/internal/handler/patient"
	"github.com/phellister/patient-record-access-system/internal/repository/sqlite"
	"github.com/phellister/patient-record-access-system/internal/router"
	"github.com/phellister/patient-record-access-system/internal/service/authz"
	doctorService "github.com/phellister/patient-record-access-system/internal/service/doctor"
	hospitalService "github.com/phellister/patient-record-access-system/internal/service/hospital"
	patientService "github.com/phellister/patient-record-access-system/internal/service/patient"
	"github.com/phellister/patient-record-access-system/pkg/logger"
	"github.com/phellister/patient-record-access-system/pkg/messaging/redis"
	"github.com/phellister/patient-record-access-system/pkg/metrics"
	"github.com/phellister/patient-record-access-system/pkg/worker"
)

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

	appMetrics := metrics.NewMetrics("record_api", "")

	base := sqlite.NewBaseRepository(db, cfg.Storage.MaxRecordBytes).WithMetrics(appMetrics)
	hospitalRepo := sqlite.NewHospitalRepository(base)
	doctorRepo := sqlite.NewDoctorRepository(base)
	patientRepo := sqlite.NewPatientRepository(base)
	relationRepo := sqlite.NewRelationRepository(base)
	allocator := sqlite.NewIDAllocator(base)
	outboxRepo := sqlite.NewOutboxRepository(base)

	authzSvc := authz.NewService(hospitalRepo, doctorRepo, patientRepo)
	hospitalSvc := hospitalService.NewService(hospitalRepo, doctorRepo, allocator)
	doctorSvc := doctorService.NewService(doctorRepo, patientRepo, relationRepo, allocator, authzSvc, hospitalSvc)
	patientSvc := patientService.NewService(patientRepo, hospitalRepo, relationRepo, allocator, authzSvc, hospitalSvc)

	r := router.NewRouter(
		router.Config{
			RateLimit:        rate.Limit(cfg.RateLimit.RPS),
			RateBurst:        cfg.RateLimit.Burst,
			MetricsNamespace: "record_api",
		},
		hospitalHandler.NewHandler(hospitalSvc, outboxRepo),
		doctorHandler.NewHandler(doctorSvc, outboxRepo),
		patientHandler.NewHandler(patientSvc, outboxRepo),
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

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

	processorCtx, stopProcessor := context.WithCancel(context.Background())
	defer stopProcessor()
	go processor.Start(processorCtx)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLogger.Info("server started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	stopProcessor()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}
