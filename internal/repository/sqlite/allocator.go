package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/phellister/patient-record-access-system/internal/repository"
)

type idAllocator struct {
	BaseRepository
}

// NewIDAllocator returns the allocator backed by the shared counter cell.
// IDs are unique across hospitals, doctors and patients, and survive
// restarts because the cell lives in the same store as the records.
func NewIDAllocator(base BaseRepository) repository.IDAllocator {
	return &idAllocator{base}
}

func (a *idAllocator) NextID(ctx context.Context) (id uint64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	defer func(start time.Time) { a.observe("next_id", start, err) }(time.Now())

	err = a.db.GetContext(ctx, &id, `UPDATE id_counter SET value = value + 1 WHERE id = 0 RETURNING value`)
	if err != nil {
		return 0, fmt.Errorf("failed to advance id counter: %w", err)
	}
	return id, nil
}
