package authz

import (
	"context"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
)

// Authorizer validates passwords and established relationships before an
// operation is allowed to touch records.
type Authorizer interface {
	AuthorizeHospital(ctx context.Context, id uint64, password string) (*model.Hospital, error)
	AuthorizeDoctor(ctx context.Context, id uint64, password string) (*model.Doctor, error)
	AuthorizePatient(ctx context.Context, id uint64, password string) (*model.Patient, error)
	AuthorizeRelationship(ctx context.Context, doctorID, patientID uint64) (*model.Patient, error)
	AuthorizeHospitalDoctor(ctx context.Context, hospitalID, doctorID uint64, password string) error
}

// Service is the authorization gate. It only reads; the first failing check
// determines the returned error and nothing is mutated.
type Service struct {
	hospitalRepo repository.HospitalRepository
	doctorRepo   repository.DoctorRepository
	patientRepo  repository.PatientRepository
}

func NewService(
	hospitalRepo repository.HospitalRepository,
	doctorRepo repository.DoctorRepository,
	patientRepo repository.PatientRepository,
) *Service {
	return &Service{
		hospitalRepo: hospitalRepo,
		doctorRepo:   doctorRepo,
		patientRepo:  patientRepo,
	}
}

// CheckPassword compares stored and supplied secrets as exact opaque strings.
// No normalization, no hashing; the scheme is inherited from the records
// being self-managed.
func CheckPassword(stored, supplied string) bool {
	return stored == supplied
}

func (s *Service) AuthorizeHospital(ctx context.Context, id uint64, password string) (*model.Hospital, error) {
	hospital, err := s.hospitalRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CheckPassword(hospital.Password, password) {
		return nil, apperrors.Unauthorized("hospital access unauthorized, password does not match")
	}
	return hospital, nil
}

func (s *Service) AuthorizeDoctor(ctx context.Context, id uint64, password string) (*model.Doctor, error) {
	doctor, err := s.doctorRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CheckPassword(doctor.Password, password) {
		return nil, apperrors.Unauthorized("doctor access unauthorized, password does not match")
	}
	return doctor, nil
}

func (s *Service) AuthorizePatient(ctx context.Context, id uint64, password string) (*model.Patient, error) {
	patient, err := s.patientRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CheckPassword(patient.Password, password) {
		return nil, apperrors.Unauthorized("patient access unauthorized, password does not match")
	}
	return patient, nil
}

// AuthorizeRelationship succeeds only if the doctor is already assigned to
// the patient. It returns the patient record so callers avoid a second read.
func (s *Service) AuthorizeRelationship(ctx context.Context, doctorID, patientID uint64) (*model.Patient, error) {
	patient, err := s.patientRepo.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if !model.ContainsID(patient.DoctorIDs, doctorID) {
		return nil, apperrors.Unauthorized("patient access unauthorized, doctor is not assigned to patient")
	}
	return patient, nil
}

// AuthorizeHospitalDoctor validates the hospital password and that the doctor
// belongs to that hospital.
func (s *Service) AuthorizeHospitalDoctor(ctx context.Context, hospitalID, doctorID uint64, password string) error {
	hospital, err := s.AuthorizeHospital(ctx, hospitalID, password)
	if err != nil {
		return err
	}
	if !model.ContainsID(hospital.DoctorIDs, doctorID) {
		return apperrors.Unauthorized("hospital access unauthorized, doctor does not belong to hospital")
	}
	return nil
}
