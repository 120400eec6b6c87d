package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	"github.com/phellister/patient-record-access-system/pkg/logger"
	"github.com/phellister/patient-record-access-system/pkg/messaging"
	"github.com/phellister/patient-record-access-system/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Channel is the broker channel record events are published to.
	Channel string
}

// OutboxProcessor drains pending outbox events to the message broker.
// Events that keep failing past RetryAttempts are parked as FAILED.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.Channel == "" {
		panic("Channel must be set")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("shutting down outbox processor")
			return
		case <-ticker.C:
			if err := p.ProcessEvents(ctx); err != nil {
				p.logger.Error(err, "failed to process outbox events")
			}
		}
	}
}

// ProcessEvents publishes one batch of pending events.
func (p *OutboxProcessor) ProcessEvents(ctx context.Context) error {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.GetPendingEvents(ctx, p.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get pending events: %w", err)
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.metrics.OutboxEventsFailed.Inc()
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
			p.fail(ctx, event, err)
			continue
		}

		if err := p.repo.MarkProcessed(ctx, event.ID); err != nil {
			p.logger.Error(err, "failed to mark event processed", "event_id", event.ID)
			continue
		}
		p.metrics.OutboxEventsProcessed.Inc()
	}

	return nil
}

func (p *OutboxProcessor) publish(ctx context.Context, event *model.OutboxEvent) error {
	return p.broker.Publish(ctx, p.config.Channel, messaging.Message{
		Type:    event.EventType,
		Payload: event.Payload,
	})
}

func (p *OutboxProcessor) fail(ctx context.Context, event *model.OutboxEvent, cause error) {
	retryAt := time.Time{}
	if event.RetryCount+1 < p.config.RetryAttempts {
		retryAt = time.Now().Add(p.config.RetryDelay)
	}

	if err := p.repo.MarkFailed(ctx, event.ID, cause.Error(), retryAt); err != nil {
		p.logger.Error(err, "failed to record event failure", "event_id", event.ID)
	}
}
