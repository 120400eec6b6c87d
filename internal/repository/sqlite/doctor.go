package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
)

type doctorRepository struct {
	BaseRepository
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

func (r *doctorRepository) Get(ctx context.Context, id uint64) (*model.Doctor, error) {
	raw, ok, err := r.getRecord(ctx, r.db, doctorTable, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotFound("doctor", id)
	}
	var doctor model.Doctor
	decodeRecord(raw, &doctor)
	return &doctor, nil
}

func (r *doctorRepository) Put(ctx context.Context, doctor *model.Doctor) (bool, error) {
	raw, err := r.encode(doctor)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putRecord(ctx, r.db, doctorTable, doctor.ID, raw)
}

func (r *doctorRepository) Insert(ctx context.Context, doctor *model.Doctor) error {
	raw, err := r.encode(doctor)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.insertFresh(ctx, tx, doctorTable, "doctor", doctor.ID, raw)
	})
}

func (r *doctorRepository) Update(ctx context.Context, id uint64, fn func(*model.Doctor) error) (*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated *model.Doctor
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		raw, ok, err := r.getRecord(ctx, tx, doctorTable, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound("doctor", id)
		}
		var doctor model.Doctor
		decodeRecord(raw, &doctor)

		if err := fn(&doctor); err != nil {
			return err
		}

		encoded, err := r.encode(&doctor)
		if err != nil {
			return err
		}
		if _, err := r.putRecord(ctx, tx, doctorTable, id, encoded); err != nil {
			return err
		}
		updated = &doctor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *doctorRepository) Scan(ctx context.Context) ([]*model.Doctor, error) {
	raws, err := r.scanRecords(ctx, r.db, doctorTable)
	if err != nil {
		return nil, err
	}
	doctors := make([]*model.Doctor, 0, len(raws))
	for _, raw := range raws {
		var doctor model.Doctor
		decodeRecord(raw, &doctor)
		doctors = append(doctors, &doctor)
	}
	return doctors, nil
}
