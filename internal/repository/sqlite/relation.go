package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
)

// relationRepository implements the paired-update protocol. Every operation
// runs inside one transaction so a relationship is never persisted one-sided,
// and every list append goes through AppendUniqueID so re-linking an already
// linked pair is a no-op.
type relationRepository struct {
	BaseRepository
}

func NewRelationRepository(base BaseRepository) repository.RelationRepository {
	return &relationRepository{base}
}

func (r *relationRepository) EnrollDoctor(ctx context.Context, doctor *model.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		hospital, err := r.loadHospital(ctx, tx, doctor.HospitalID)
		if err != nil {
			return err
		}

		raw, err := r.encode(doctor)
		if err != nil {
			return err
		}
		if err := r.insertFresh(ctx, tx, doctorTable, "doctor", doctor.ID, raw); err != nil {
			return err
		}

		hospital.DoctorIDs, _ = model.AppendUniqueID(hospital.DoctorIDs, doctor.ID)
		return r.storeHospital(ctx, tx, hospital)
	})
}

func (r *relationRepository) EnrollPatient(ctx context.Context, patient *model.Patient, hospitalID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		var hospital *model.Hospital
		if hospitalID != 0 {
			var err error
			hospital, err = r.loadHospital(ctx, tx, hospitalID)
			if err != nil {
				return err
			}
			patient.HospitalIDs, _ = model.AppendUniqueID(patient.HospitalIDs, hospitalID)
		}

		raw, err := r.encode(patient)
		if err != nil {
			return err
		}
		if err := r.insertFresh(ctx, tx, patientTable, "patient", patient.ID, raw); err != nil {
			return err
		}

		if hospital != nil {
			hospital.PatientIDs, _ = model.AppendUniqueID(hospital.PatientIDs, patient.ID)
			return r.storeHospital(ctx, tx, hospital)
		}
		return nil
	})
}

func (r *relationRepository) AssignDoctorToPatient(ctx context.Context, doctorID, patientID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		doctor, err := r.loadDoctor(ctx, tx, doctorID)
		if err != nil {
			return err
		}
		patient, err := r.loadPatient(ctx, tx, patientID)
		if err != nil {
			return err
		}
		// A doctor's patients are implicitly the doctor's hospital's
		// patients, so the hospital is cross-linked in the same transaction.
		hospital, err := r.loadHospital(ctx, tx, doctor.HospitalID)
		if err != nil {
			return err
		}

		doctor.PatientIDs, _ = model.AppendUniqueID(doctor.PatientIDs, patient.ID)
		patient.DoctorIDs, _ = model.AppendUniqueID(patient.DoctorIDs, doctor.ID)
		hospital.PatientIDs, _ = model.AppendUniqueID(hospital.PatientIDs, patient.ID)
		patient.HospitalIDs, _ = model.AppendUniqueID(patient.HospitalIDs, hospital.ID)

		if err := r.storeDoctor(ctx, tx, doctor); err != nil {
			return err
		}
		if err := r.storePatient(ctx, tx, patient); err != nil {
			return err
		}
		return r.storeHospital(ctx, tx, hospital)
	})
}

func (r *relationRepository) AttachDoctorToHospital(ctx context.Context, doctorID uint64, name string, hospitalID uint64) (*model.Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated *model.Doctor
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		// The doctor is re-read here rather than taken from the caller: the
		// caller's copy predates the lock and would clobber patient links
		// appended by a concurrent assignment.
		doctor, err := r.loadDoctor(ctx, tx, doctorID)
		if err != nil {
			return err
		}
		hospital, err := r.loadHospital(ctx, tx, hospitalID)
		if err != nil {
			return err
		}

		// Last write wins; the previous hospital keeps its back-reference
		// since records are never rewritten retroactively.
		doctor.Name = name
		doctor.HospitalID = hospitalID
		if err := r.storeDoctor(ctx, tx, doctor); err != nil {
			return err
		}

		hospital.DoctorIDs, _ = model.AppendUniqueID(hospital.DoctorIDs, doctor.ID)
		if err := r.storeHospital(ctx, tx, hospital); err != nil {
			return err
		}
		updated = doctor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *relationRepository) loadHospital(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Hospital, error) {
	raw, ok, err := r.getRecord(ctx, tx, hospitalTable, id)
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

func (r *relationRepository) loadDoctor(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Doctor, error) {
	raw, ok, err := r.getRecord(ctx, tx, doctorTable, id)
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

func (r *relationRepository) loadPatient(ctx context.Context, tx *sqlx.Tx, id uint64) (*model.Patient, error) {
	raw, ok, err := r.getRecord(ctx, tx, patientTable, id)
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

func (r *relationRepository) storeHospital(ctx context.Context, tx *sqlx.Tx, hospital *model.Hospital) error {
	raw, err := r.encode(hospital)
	if err != nil {
		return err
	}
	_, err = r.putRecord(ctx, tx, hospitalTable, hospital.ID, raw)
	return err
}

func (r *relationRepository) storeDoctor(ctx context.Context, tx *sqlx.Tx, doctor *model.Doctor) error {
	raw, err := r.encode(doctor)
	if err != nil {
		return err
	}
	_, err = r.putRecord(ctx, tx, doctorTable, doctor.ID, raw)
	return err
}

func (r *relationRepository) storePatient(ctx context.Context, tx *sqlx.Tx, patient *model.Patient) error {
	raw, err := r.encode(patient)
	if err != nil {
		return err
	}
	_, err = r.putRecord(ctx, tx, patientTable, patient.ID, raw)
	return err
}
