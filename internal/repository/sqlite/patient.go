package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Get(ctx context.Context, id uint64) (*model.Patient, error) {
	raw, ok, err := r.getRecord(ctx, r.db, patientTable, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NotFound("patient", id)
	}
	var patient model.Patient
	decodeRecord(raw, &patient)
	return &patient, nil
}

func (r *patientRepository) Put(ctx context.Context, patient *model.Patient) (bool, error) {
	raw, err := r.encode(patient)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putRecord(ctx, r.db, patientTable, patient.ID, raw)
}

func (r *patientRepository) Insert(ctx context.Context, patient *model.Patient) error {
	raw, err := r.encode(patient)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.insertFresh(ctx, tx, patientTable, "patient", patient.ID, raw)
	})
}

func (r *patientRepository) Update(ctx context.Context, id uint64, fn func(*model.Patient) error) (*model.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated *model.Patient
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		raw, ok, err := r.getRecord(ctx, tx, patientTable, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NotFound("patient", id)
		}
		var patient model.Patient
		decodeRecord(raw, &patient)

		if err := fn(&patient); err != nil {
			return err
		}

		encoded, err := r.encode(&patient)
		if err != nil {
			return err
		}
		if _, err := r.putRecord(ctx, tx, patientTable, id, encoded); err != nil {
			return err
		}
		updated = &patient
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *patientRepository) Scan(ctx context.Context) ([]*model.Patient, error) {
	raws, err := r.scanRecords(ctx, r.db, patientTable)
	if err != nil {
		return nil, err
	}
	patients := make([]*model.Patient, 0, len(raws))
	for _, raw := range raws {
		var patient model.Patient
		decodeRecord(raw, &patient)
		patients = append(patients, &patient)
	}
	return patients, nil
}
