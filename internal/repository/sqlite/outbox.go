package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

// outboxRow mirrors the table layout; timestamps are stored as unix seconds.
type outboxRow struct {
	ID           string         `db:"id"`
	EventType    string         `db:"event_type"`
	Payload      []byte         `db:"payload"`
	Status       string         `db:"status"`
	ErrorMessage sql.NullString `db:"error_message"`
	RetryCount   int            `db:"retry_count"`
	RetryAt      sql.NullInt64  `db:"retry_at"`
	CreatedAt    int64          `db:"created_at"`
	ProcessedAt  sql.NullInt64  `db:"processed_at"`
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		event.ID.String(),
		event.EventType,
		[]byte(event.Payload),
		string(event.Status),
		event.RetryCount,
		event.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, event_type, payload, status, error_message, retry_count, retry_at, created_at, processed_at
		FROM outbox_events
		WHERE status = ? AND (retry_at IS NULL OR retry_at <= ?)
		ORDER BY created_at, id
		LIMIT ?
	`
	var rows []outboxRow
	if err := r.db.SelectContext(ctx, &rows, query, string(model.OutboxStatusPending), time.Now().Unix(), limit); err != nil {
		return nil, fmt.Errorf("failed to list pending outbox events: %w", err)
	}

	events := make([]*model.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		event, err := row.toModel()
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `UPDATE outbox_events SET status = ?, processed_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusProcessed), time.Now().Unix(), id.String())
	if err != nil {
		return fmt.Errorf("failed to mark outbox event processed: %w", err)
	}
	return nil
}

// MarkFailed records a failed publish attempt. With a zero retryAt the event
// is parked as FAILED; otherwise it stays pending and becomes eligible again
// at retryAt.
func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if retryAt.IsZero() {
		query := `UPDATE outbox_events SET status = ?, error_message = ?, retry_count = retry_count + 1 WHERE id = ?`
		if _, err := r.db.ExecContext(ctx, query, string(model.OutboxStatusFailed), errMsg, id.String()); err != nil {
			return fmt.Errorf("failed to mark outbox event failed: %w", err)
		}
		return nil
	}

	query := `UPDATE outbox_events SET error_message = ?, retry_count = retry_count + 1, retry_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, errMsg, retryAt.Unix(), id.String()); err != nil {
		return fmt.Errorf("failed to schedule outbox event retry: %w", err)
	}
	return nil
}

func (row outboxRow) toModel() (*model.OutboxEvent, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid outbox event id %q: %w", row.ID, err)
	}
	event := &model.OutboxEvent{
		ID:         id,
		EventType:  row.EventType,
		Payload:    row.Payload,
		Status:     model.OutboxStatus(row.Status),
		RetryCount: row.RetryCount,
		CreatedAt:  time.Unix(row.CreatedAt, 0).UTC(),
	}
	if row.ErrorMessage.Valid {
		msg := row.ErrorMessage.String
		event.ErrorMessage = &msg
	}
	if row.RetryAt.Valid {
		t := time.Unix(row.RetryAt.Int64, 0).UTC()
		event.RetryAt = &t
	}
	if row.ProcessedAt.Valid {
		t := time.Unix(row.ProcessedAt.Int64, 0).UTC()
		event.ProcessedAt = &t
	}
	return event, nil
}
