package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
	"github.com/phellister/patient-record-access-system/pkg/metrics"
)

// Table names of the three entity mappings.
const (
	hospitalTable = "hospitals"
	doctorTable   = "doctors"
	patientTable  = "patients"
)

// DefaultMaxRecordSize bounds the encoded size of a single record. Field
// lengths are bounded by request validation, so a record growing past this is
// a construction error, not a runtime one.
const DefaultMaxRecordSize = 1024

// BaseRepository provides common functionality for all repositories. The
// mutex is shared by every repository built from the same base: all mutating
// operations serialize on it so that an authorize-then-mutate sequence can
// never interleave with another writer.
type BaseRepository struct {
	db            *sqlx.DB
	mu            *sync.Mutex
	maxRecordSize int
	metrics       *metrics.Metrics
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB, maxRecordSize int) BaseRepository {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}
	return BaseRepository{
		db:            db,
		mu:            &sync.Mutex{},
		maxRecordSize: maxRecordSize,
	}
}

// WithMetrics returns a copy of the base that records store operation
// counters and latencies.
func (r BaseRepository) WithMetrics(m *metrics.Metrics) BaseRepository {
	r.metrics = m
	return r
}

// observe records one store operation. The start time is captured at the
// deferred call site since defer arguments evaluate immediately.
func (r *BaseRepository) observe(op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.StoreOperations.WithLabelValues(op, status).Inc()
	r.metrics.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// GetDB returns the database instance
func (r *BaseRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// getRecord reads one encoded record. The bool reports whether it exists.
func (r *BaseRepository) getRecord(ctx context.Context, q sqlx.QueryerContext, table string, id uint64) (record []byte, ok bool, err error) {
	defer func(start time.Time) { r.observe("get", start, err) }(time.Now())

	query := fmt.Sprintf(`SELECT record FROM %s WHERE id = ?`, table)
	err = sqlx.GetContext(ctx, q, &record, query, id)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s record %d: %w", table, id, err)
	}
	return record, true, nil
}

// putRecord inserts or overwrites one encoded record and reports whether a
// previous record existed.
func (r *BaseRepository) putRecord(ctx context.Context, e sqlx.ExtContext, table string, id uint64, record []byte) (existed bool, err error) {
	defer func(start time.Time) { r.observe("put", start, err) }(time.Now())

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = ?)`, table)
	if err = sqlx.GetContext(ctx, e, &existed, query, id); err != nil {
		return false, fmt.Errorf("failed to probe %s record %d: %w", table, id, err)
	}

	upsert := fmt.Sprintf(`INSERT INTO %s (id, record) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET record = excluded.record`, table)
	if _, err = e.ExecContext(ctx, upsert, id, record); err != nil {
		return false, fmt.Errorf("failed to write %s record %d: %w", table, id, err)
	}
	return existed, nil
}

// insertFresh writes a record that must not exist yet. An occupied ID means
// the allocator handed out a duplicate, which is an internal invariant
// violation rather than a caller error.
func (r *BaseRepository) insertFresh(ctx context.Context, e sqlx.ExtContext, table, kind string, id uint64, record []byte) (err error) {
	defer func(start time.Time) { r.observe("insert", start, err) }(time.Now())

	var existed bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = ?)`, table)
	if err = sqlx.GetContext(ctx, e, &existed, query, id); err != nil {
		return fmt.Errorf("failed to probe %s record %d: %w", table, id, err)
	}
	if existed {
		return apperrors.Conflict(fmt.Sprintf("%s id %d is already occupied", kind, id))
	}

	insert := fmt.Sprintf(`INSERT INTO %s (id, record) VALUES (?, ?)`, table)
	if _, err = e.ExecContext(ctx, insert, id, record); err != nil {
		return fmt.Errorf("failed to insert %s record %d: %w", table, id, err)
	}
	return nil
}

// scanRecords returns every encoded record in the table, ordered by id.
func (r *BaseRepository) scanRecords(ctx context.Context, q sqlx.QueryerContext, table string) (records [][]byte, err error) {
	defer func(start time.Time) { r.observe("scan", start, err) }(time.Now())

	query := fmt.Sprintf(`SELECT record FROM %s ORDER BY id`, table)
	if err = sqlx.SelectContext(ctx, q, &records, query); err != nil {
		return nil, fmt.Errorf("failed to scan %s records: %w", table, err)
	}
	return records, nil
}
