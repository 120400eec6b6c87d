package doctor

import (
	"context"
	"fmt"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	"github.com/phellister/patient-record-access-system/internal/service/authz"
)

type DoctorServicer interface {
	CreateDoctor(ctx context.Context, params CreateDoctorParams) (*model.Doctor, error)
	EditDoctor(ctx context.Context, params EditDoctorParams) (*model.Doctor, error)
	GetDoctor(ctx context.Context, id uint64) (*model.Doctor, error)
	ListPatients(ctx context.Context, doctorID uint64, doctorPassword string) ([]*model.Patient, error)
}

// CreateDoctorParams creates a doctor under a hospital; the hospital password
// gates the enrollment.
type CreateDoctorParams struct {
	Name             string
	Password         string
	HospitalID       uint64
	HospitalPassword string
}

// EditDoctorParams renames a doctor and reattaches it to a hospital. Both the
// doctor's and the target hospital's passwords are required.
type EditDoctorParams struct {
	DoctorID         uint64
	Name             string
	DoctorPassword   string
	HospitalID       uint64
	HospitalPassword string
}

// DirectoryFlusher invalidates cached hospital directory listings. Doctor
// enrollment and reattachment rewrite hospital records, so the directory must
// not keep serving the pre-mutation lists.
type DirectoryFlusher interface {
	FlushDirectory()
}

type Service struct {
	repo         repository.DoctorRepository
	patientRepo  repository.PatientRepository
	relationRepo repository.RelationRepository
	allocator    repository.IDAllocator
	authorizer   authz.Authorizer
	directory    DirectoryFlusher
}

func NewService(
	repo repository.DoctorRepository,
	patientRepo repository.PatientRepository,
	relationRepo repository.RelationRepository,
	allocator repository.IDAllocator,
	authorizer authz.Authorizer,
	directory DirectoryFlusher,
) *Service {
	return &Service{
		repo:         repo,
		patientRepo:  patientRepo,
		relationRepo: relationRepo,
		allocator:    allocator,
		authorizer:   authorizer,
		directory:    directory,
	}
}

func (s *Service) CreateDoctor(ctx context.Context, params CreateDoctorParams) (*model.Doctor, error) {
	if _, err := s.authorizer.AuthorizeHospital(ctx, params.HospitalID, params.HospitalPassword); err != nil {
		return nil, err
	}

	id, err := s.allocator.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate doctor id: %w", err)
	}

	doctor := &model.Doctor{
		ID:         id,
		Name:       params.Name,
		Password:   params.Password,
		HospitalID: params.HospitalID,
		PatientIDs: []uint64{},
	}

	if err := s.relationRepo.EnrollDoctor(ctx, doctor); err != nil {
		return nil, fmt.Errorf("failed to enroll doctor: %w", err)
	}

	s.directory.FlushDirectory()
	return doctor, nil
}

func (s *Service) EditDoctor(ctx context.Context, params EditDoctorParams) (*model.Doctor, error) {
	if _, err := s.authorizer.AuthorizeDoctor(ctx, params.DoctorID, params.DoctorPassword); err != nil {
		return nil, err
	}
	if _, err := s.authorizer.AuthorizeHospital(ctx, params.HospitalID, params.HospitalPassword); err != nil {
		return nil, err
	}

	// The relation repository re-reads the doctor under the store lock; the
	// record authorized above is only used for the password check.
	doctor, err := s.relationRepo.AttachDoctorToHospital(ctx, params.DoctorID, params.Name, params.HospitalID)
	if err != nil {
		return nil, fmt.Errorf("failed to reattach doctor: %w", err)
	}

	s.directory.FlushDirectory()
	return doctor, nil
}

// GetDoctor is a public read; the password is masked.
func (s *Service) GetDoctor(ctx context.Context, id uint64) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return doctor.Masked(), nil
}

// ListPatients returns the doctor's patients with histories visible: the
// doctor is assigned to each of them by construction of the list. Requires
// the doctor's password.
func (s *Service) ListPatients(ctx context.Context, doctorID uint64, doctorPassword string) ([]*model.Patient, error) {
	doctor, err := s.authorizer.AuthorizeDoctor(ctx, doctorID, doctorPassword)
	if err != nil {
		return nil, err
	}

	patients := make([]*model.Patient, 0, len(doctor.PatientIDs))
	for _, patientID := range doctor.PatientIDs {
		patient, err := s.patientRepo.Get(ctx, patientID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve patient %d: %w", patientID, err)
		}
		patients = append(patients, patient.MaskedForDoctor())
	}
	return patients, nil
}
