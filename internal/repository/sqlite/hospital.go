package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
)

type hospitalRepository struct {
	BaseRepository
}

func NewHospitalRepository(base BaseRepository) repository.HospitalRepository {
	return &hospitalRepository{base}
}

func (r *hospitalRepository) Get(ctx context.Context, id uint64) (*model.Hospital, error) {
	raw, ok, err := r.getRecord(ctx, r.db, hospitalTable, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotFound("hospital", id)
	}
	var hospital model.Hospital
	decodeRecord(raw, &hospital)
	return &hospital, nil
}

func (r *hospitalRepository) Put(ctx context.Context, hospital *model.Hospital) (bool, error) {
	raw, err := r.encode(hospital)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putRecord(ctx, r.db, hospitalTable, hospital.ID, raw)
}

func (r *hospitalRepository) Insert(ctx context.Context, hospital *model.Hospital) error {
	raw, err := r.encode(hospital)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.insertFresh(ctx, tx, hospitalTable, "hospital", hospital.ID, raw)
	})
}

func (r *hospitalRepository) Update(ctx context.Context, id uint64, fn func(*model.Hospital) error) (*model.Hospital, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated *model.Hospital
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		raw, ok, err := r.getRecord(ctx, tx, hospitalTable, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound("hospital", id)
		}
		var hospital model.Hospital
		decodeRecord(raw, &hospital)

		if err := fn(&hospital); err != nil {
			return err
		}

		encoded, err := r.encode(&hospital)
		if err != nil {
			return err
		}
		if _, err := r.putRecord(ctx, tx, hospitalTable, id, encoded); err != nil {
			return err
		}
		updated = &hospital
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *hospitalRepository) Scan(ctx context.Context) ([]*model.Hospital, error) {
	raws, err := r.scanRecords(ctx, r.db, hospitalTable)
	if err != nil {
		return nil, err
	}
	hospitals := make([]*model.Hospital, 0, len(raws))
	for _, raw := range raws {
		var hospital model.Hospital
		decodeRecord(raw, &hospital)
		hospitals = append(hospitals, &hospital)
	}
	return hospitals, nil
}
