package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	"github.com/phellister/patient-record-access-system/internal/service/authz"
	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
)

type PatientServicer interface {
	CreatePatient(ctx context.Context, params CreatePatientParams) (*model.Patient, error)
	EditPatient(ctx context.Context, id uint64, password, name string) (*model.Patient, error)
	GetPatient(ctx context.Context, id uint64) (*model.Patient, error)
	GetPatientInfo(ctx context.Context, patientID, doctorID uint64, doctorPassword string) (*model.Patient, error)
	AssignDoctor(ctx context.Context, params AssignDoctorParams) error
	UpdateHistory(ctx context.Context, params UpdateHistoryParams) error
	ListHospitals(ctx context.Context, patientID uint64) ([]*model.Hospital, error)
}

// CreatePatientParams creates a patient, optionally enrolling it under a
// hospital when HospitalID is non-zero (gated by the hospital password).
type CreatePatientParams struct {
	Name             string
	History          string
	Password         string
	HospitalID       uint64
	HospitalPassword string
}

// AssignDoctorParams requires both sides' passwords.
type AssignDoctorParams struct {
	DoctorID        uint64
	PatientID       uint64
	DoctorPassword  string
	PatientPassword string
}

type UpdateHistoryParams struct {
	DoctorID       uint64
	PatientID      uint64
	DoctorPassword string
	Entry          string
}

// DirectoryFlusher invalidates cached hospital directory listings after a
// mutation that rewrites hospital relationship lists.
type DirectoryFlusher interface {
	FlushDirectory()
}

type Service struct {
	repo         repository.PatientRepository
	hospitalRepo repository.HospitalRepository
	relationRepo repository.RelationRepository
	allocator    repository.IDAllocator
	authorizer   authz.Authorizer
	directory    DirectoryFlusher
}

func NewService(
	repo repository.PatientRepository,
	hospitalRepo repository.HospitalRepository,
	relationRepo repository.RelationRepository,
	allocator repository.IDAllocator,
	authorizer authz.Authorizer,
	directory DirectoryFlusher,
) *Service {
	return &Service{
		repo:         repo,
		hospitalRepo: hospitalRepo,
		relationRepo: relationRepo,
		allocator:    allocator,
		authorizer:   authorizer,
		directory:    directory,
	}
}

func (s *Service) CreatePatient(ctx context.Context, params CreatePatientParams) (*model.Patient, error) {
	if params.HospitalID != 0 {
		if _, err := s.authorizer.AuthorizeHospital(ctx, params.HospitalID, params.HospitalPassword); err != nil {
			return nil, err
		}
	}

	id, err := s.allocator.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate patient id: %w", err)
	}

	patient := &model.Patient{
		ID:          id,
		Name:        params.Name,
		History:     params.History,
		Password:    params.Password,
		DoctorIDs:   []uint64{},
		HospitalIDs: []uint64{},
	}

	if err := s.relationRepo.EnrollPatient(ctx, patient, params.HospitalID); err != nil {
		return nil, fmt.Errorf("failed to enroll patient: %w", err)
	}

	if params.HospitalID != 0 {
		s.directory.FlushDirectory()
	}
	return patient, nil
}

func (s *Service) EditPatient(ctx context.Context, id uint64, password, name string) (*model.Patient, error) {
	return s.repo.Update(ctx, id, func(patient *model.Patient) error {
		if !authz.CheckPassword(patient.Password, password) {
			return apperrors.Unauthorized("patient access unauthorized, password does not match")
		}
		patient.Name = name
		return nil
	})
}

// GetPatient is a public read: password and history are both masked.
func (s *Service) GetPatient(ctx context.Context, id uint64) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return patient.Masked(), nil
}

// GetPatientInfo is the access-gated read: the acting doctor must present its
// password and already be assigned to the patient. The history is returned,
// the password stays masked.
func (s *Service) GetPatientInfo(ctx context.Context, patientID, doctorID uint64, doctorPassword string) (*model.Patient, error) {
	if _, err := s.authorizer.AuthorizeDoctor(ctx, doctorID, doctorPassword); err != nil {
		return nil, err
	}
	patient, err := s.authorizer.AuthorizeRelationship(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	return patient.MaskedForDoctor(), nil
}

// AssignDoctor establishes the doctor<->patient relationship and, through the
// relation repository, links the patient into the doctor's hospital. Both
// passwords are checked before anything is written.
func (s *Service) AssignDoctor(ctx context.Context, params AssignDoctorParams) error {
	if _, err := s.authorizer.AuthorizeDoctor(ctx, params.DoctorID, params.DoctorPassword); err != nil {
		return err
	}
	if _, err := s.authorizer.AuthorizePatient(ctx, params.PatientID, params.PatientPassword); err != nil {
		return err
	}

	if err := s.relationRepo.AssignDoctorToPatient(ctx, params.DoctorID, params.PatientID); err != nil {
		return fmt.Errorf("failed to assign doctor to patient: %w", err)
	}

	// The assignment links the patient into the doctor's hospital.
	s.directory.FlushDirectory()
	return nil
}

// UpdateHistory appends a timestamped entry signed with the acting doctor's
// identity. Prior history is never rewritten; the relationship check runs
// again inside the update so the append is atomic with it.
func (s *Service) UpdateHistory(ctx context.Context, params UpdateHistoryParams) error {
	doctor, err := s.authorizer.AuthorizeDoctor(ctx, params.DoctorID, params.DoctorPassword)
	if err != nil {
		return err
	}

	_, err = s.repo.Update(ctx, params.PatientID, func(patient *model.Patient) error {
		if !model.ContainsID(patient.DoctorIDs, doctor.ID) {
			return apperrors.Unauthorized("patient access unauthorized, doctor is not assigned to patient")
		}
		patient.History = fmt.Sprintf("%s\nDoctor %d : %s at %s\n%s",
			patient.History,
			doctor.ID,
			doctor.Name,
			time.Now().UTC().Format(time.RFC3339),
			params.Entry,
		)
		return nil
	})
	return err
}

// ListHospitals resolves the hospitals a patient is affiliated with, masked.
func (s *Service) ListHospitals(ctx context.Context, patientID uint64) ([]*model.Hospital, error) {
	patient, err := s.repo.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}

	hospitals := make([]*model.Hospital, 0, len(patient.HospitalIDs))
	for _, hospitalID := range patient.HospitalIDs {
		hospital, err := s.hospitalRepo.Get(ctx, hospitalID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve hospital %d: %w", hospitalID, err)
		}
		hospitals = append(hospitals, hospital.Masked())
	}
	return hospitals, nil
}
