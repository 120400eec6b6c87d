package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phellister/patient-record-access-system/internal/model"
)

// All repository interfaces in one file
type (
	// IDAllocator issues strictly increasing IDs shared across all record
	// types, durable in the same store as the records themselves.
	IDAllocator interface {
		NextID(ctx context.Context) (uint64, error)
	}

	// HospitalRepository is the persistent hospital-id -> record mapping.
	HospitalRepository interface {
		Get(ctx context.Context, id uint64) (*model.Hospital, error)
		// Put inserts or overwrites; the bool reports whether a previous
		// record existed.
		Put(ctx context.Context, hospital *model.Hospital) (bool, error)
		// Insert fails with a conflict if the ID is already occupied.
		Insert(ctx context.Context, hospital *model.Hospital) error
		// Update applies fn to the stored record under the store lock and
		// persists the result. If fn returns an error nothing is written.
		Update(ctx context.Context, id uint64, fn func(*model.Hospital) error) (*model.Hospital, error)
		Scan(ctx context.Context) ([]*model.Hospital, error)
	}

	DoctorRepository interface {
		Get(ctx context.Context, id uint64) (*model.Doctor, error)
		Put(ctx context.Context, doctor *model.Doctor) (bool, error)
		Insert(ctx context.Context, doctor *model.Doctor) error
		Update(ctx context.Context, id uint64, fn func(*model.Doctor) error) (*model.Doctor, error)
		Scan(ctx context.Context) ([]*model.Doctor, error)
	}

	PatientRepository interface {
		Get(ctx context.Context, id uint64) (*model.Patient, error)
		Put(ctx context.Context, patient *model.Patient) (bool, error)
		Insert(ctx context.Context, patient *model.Patient) error
		Update(ctx context.Context, id uint64, fn func(*model.Patient) error) (*model.Patient, error)
		Scan(ctx context.Context) ([]*model.Patient, error)
	}

	// RelationRepository runs the paired-update protocol: both sides of a
	// relationship are written inside a single transaction, and re-linking
	// an already-linked pair is a no-op.
	RelationRepository interface {
		// EnrollDoctor inserts the doctor and adds it to its hospital's
		// doctor list.
		EnrollDoctor(ctx context.Context, doctor *model.Doctor) error
		// EnrollPatient inserts the patient; when hospitalID is non-zero the
		// patient and hospital are cross-linked as well.
		EnrollPatient(ctx context.Context, patient *model.Patient, hospitalID uint64) error
		// AssignDoctorToPatient cross-links doctor and patient, and links
		// the patient into the doctor's hospital.
		AssignDoctorToPatient(ctx context.Context, doctorID, patientID uint64) error
		// AttachDoctorToHospital renames the doctor and reassigns it to the
		// hospital. The doctor record is re-read inside the transaction so a
		// concurrent assignment is never overwritten by a stale snapshot.
		AttachDoctorToHospital(ctx context.Context, doctorID uint64, name string, hospitalID uint64) (*model.Doctor, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt time.Time) error
	}
)
