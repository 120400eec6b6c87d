package hospital

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	"github.com/phellister/patient-record-access-system/internal/service/authz"
	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
)

const (
	directoryCacheKey = "directory"
	searchCachePrefix = "search:"
)

type HospitalServicer interface {
	CreateHospital(ctx context.Context, name, address, password string) (*model.Hospital, error)
	EditHospital(ctx context.Context, id uint64, password, name string) (*model.Hospital, error)
	GetHospital(ctx context.Context, id uint64) (*model.Hospital, error)
	ListHospitals(ctx context.Context) ([]*model.Hospital, error)
	SearchHospitalsByName(ctx context.Context, query string) ([]*model.Hospital, error)
	ListDoctors(ctx context.Context, hospitalID uint64) ([]*model.Doctor, error)
}

type Service struct {
	repo       repository.HospitalRepository
	doctorRepo repository.DoctorRepository
	allocator  repository.IDAllocator
	// directory holds masked list/search results; flushed on any hospital
	// mutation.
	directory *cache.Cache
}

func NewService(
	repo repository.HospitalRepository,
	doctorRepo repository.DoctorRepository,
	allocator repository.IDAllocator,
) *Service {
	return &Service{
		repo:       repo,
		doctorRepo: doctorRepo,
		allocator:  allocator,
		directory:  cache.New(30*time.Second, time.Minute),
	}
}

func (s *Service) CreateHospital(ctx context.Context, name, address, password string) (*model.Hospital, error) {
	id, err := s.allocator.NextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate hospital id: %w", err)
	}

	hospital := &model.Hospital{
		ID:         id,
		Name:       name,
		Address:    address,
		Password:   password,
		PatientIDs: []uint64{},
		DoctorIDs:  []uint64{},
	}

	if err := s.repo.Insert(ctx, hospital); err != nil {
		return nil, fmt.Errorf("failed to create hospital: %w", err)
	}

	s.FlushDirectory()
	return hospital, nil
}

// FlushDirectory drops cached directory and search results. Besides the edits
// here, doctor enrollment, patient enrollment and assignment all rewrite
// hospital relationship lists and must call this through their services.
func (s *Service) FlushDirectory() {
	s.directory.Flush()
}

func (s *Service) EditHospital(ctx context.Context, id uint64, password, name string) (*model.Hospital, error) {
	updated, err := s.repo.Update(ctx, id, func(hospital *model.Hospital) error {
		if !authz.CheckPassword(hospital.Password, password) {
			return apperrors.Unauthorized("hospital access unauthorized, password does not match")
		}
		hospital.Name = name
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.FlushDirectory()
	return updated, nil
}

// GetHospital is a public read; the password is masked.
func (s *Service) GetHospital(ctx context.Context, id uint64) (*model.Hospital, error) {
	hospital, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return hospital.Masked(), nil
}

// ListHospitals returns every hospital with passwords masked. Zero hospitals
// is an empty list, not an error.
func (s *Service) ListHospitals(ctx context.Context) ([]*model.Hospital, error) {
	if cached, ok := s.directory.Get(directoryCacheKey); ok {
		return cached.([]*model.Hospital), nil
	}

	hospitals, err := s.repo.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list hospitals: %w", err)
	}

	masked := make([]*model.Hospital, 0, len(hospitals))
	for _, hospital := range hospitals {
		masked = append(masked, hospital.Masked())
	}

	s.directory.SetDefault(directoryCacheKey, masked)
	return masked, nil
}

// SearchHospitalsByName does a case-insensitive substring match over the full
// scan. Zero matches yields an empty list.
func (s *Service) SearchHospitalsByName(ctx context.Context, query string) ([]*model.Hospital, error) {
	needle := strings.ToLower(query)
	cacheKey := searchCachePrefix + needle
	if cached, ok := s.directory.Get(cacheKey); ok {
		return cached.([]*model.Hospital), nil
	}

	hospitals, err := s.repo.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search hospitals: %w", err)
	}

	matches := make([]*model.Hospital, 0)
	for _, hospital := range hospitals {
		if strings.Contains(strings.ToLower(hospital.Name), needle) {
			matches = append(matches, hospital.Masked())
		}
	}

	s.directory.SetDefault(cacheKey, matches)
	return matches, nil
}

// ListDoctors resolves a hospital's doctor list to masked records.
func (s *Service) ListDoctors(ctx context.Context, hospitalID uint64) ([]*model.Doctor, error) {
	hospital, err := s.repo.Get(ctx, hospitalID)
	if err != nil {
		return nil, err
	}

	doctors := make([]*model.Doctor, 0, len(hospital.DoctorIDs))
	for _, doctorID := range hospital.DoctorIDs {
		doctor, err := s.doctorRepo.Get(ctx, doctorID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve doctor %d: %w", doctorID, err)
		}
		doctors = append(doctors, doctor.Masked())
	}
	return doctors, nil
}
