package patient_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phellister/patient-record-access-system/internal/config"
	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	"github.com/phellister/patient-record-access-system/internal/repository/sqlite"
	"github.com/phellister/patient-record-access-system/internal/service/authz"
	hospitalService "github.com/phellister/patient-record-access-system/internal/service/hospital"
	"github.com/phellister/patient-record-access-system/internal/service/patient"
	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
)

type fixture struct {
	svc         *patient.Service
	hospitalSvc *hospitalService.Service
	hospitals   repository.HospitalRepository
	doctors     repository.DoctorRepository
	patients    repository.PatientRepository
	relations   repository.RelationRepository
	allocator   repository.IDAllocator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.db")
	db, err := sqlite.NewDB(config.StorageConfig{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	base := sqlite.NewBaseRepository(db, 0)
	f := &fixture{
		hospitals: sqlite.NewHospitalRepository(base),
		doctors:   sqlite.NewDoctorRepository(base),
		patients:  sqlite.NewPatientRepository(base),
		relations: sqlite.NewRelationRepository(base),
		allocator: sqlite.NewIDAllocator(base),
	}
	f.hospitalSvc = hospitalService.NewService(f.hospitals, f.doctors, f.allocator)
	authorizer := authz.NewService(f.hospitals, f.doctors, f.patients)
	f.svc = patient.NewService(f.patients, f.hospitals, f.relations, f.allocator, authorizer, f.hospitalSvc)
	return f
}

func (f *fixture) createHospital(t *testing.T, name, password string) *model.Hospital {
	t.Helper()
	ctx := context.Background()
	id, err := f.allocator.NextID(ctx)
	require.NoError(t, err)
	h := &model.Hospital{ID: id, Name: name, Password: password, PatientIDs: []uint64{}, DoctorIDs: []uint64{}}
	require.NoError(t, f.hospitals.Insert(ctx, h))
	return h
}

func (f *fixture) createDoctor(t *testing.T, name, password string, hospitalID uint64) *model.Doctor {
	t.Helper()
	ctx := context.Background()
	id, err := f.allocator.NextID(ctx)
	require.NoError(t, err)
	d := &model.Doctor{ID: id, Name: name, Password: password, HospitalID: hospitalID, PatientIDs: []uint64{}}
	require.NoError(t, f.relations.EnrollDoctor(ctx, d))
	return d
}

func TestCreatePatientStandalone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Pat", History: "initial note", Password: "ppw",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.ID)
	assert.Empty(t, created.HospitalIDs)

	got, err := f.svc.GetPatient(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pat", got.Name)
	assert.Equal(t, model.MaskedPassword, got.Password, "public read masks the password")
	assert.Equal(t, model.MaskedPassword, got.History, "public read masks the history")
}

func TestCreatePatientUnderHospital(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.createHospital(t, "General", "hpw")

	created, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Pat", Password: "ppw", HospitalID: h.ID, HospitalPassword: "hpw",
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{h.ID}, created.HospitalIDs)

	stored, err := f.hospitals.Get(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{created.ID}, stored.PatientIDs)

	_, err = f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Other", Password: "opw", HospitalID: h.ID, HospitalPassword: "wrong",
	})
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
}

func TestEditPatientRequiresPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Pat", Password: "ppw",
	})
	require.NoError(t, err)

	_, err = f.svc.EditPatient(ctx, created.ID, "wrong", "Renamed")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	updated, err := f.svc.EditPatient(ctx, created.ID, "ppw", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
}

func TestAssignDoctorFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.createHospital(t, "General", "hpw")
	d := f.createDoctor(t, "Dr. A", "dpw", h.ID)

	created, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Pat", Password: "ppw",
	})
	require.NoError(t, err)

	// Both passwords are required before anything is linked.
	err = f.svc.AssignDoctor(ctx, patient.AssignDoctorParams{
		DoctorID: d.ID, PatientID: created.ID, DoctorPassword: "wrong", PatientPassword: "ppw",
	})
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	err = f.svc.AssignDoctor(ctx, patient.AssignDoctorParams{
		DoctorID: d.ID, PatientID: created.ID, DoctorPassword: "dpw", PatientPassword: "wrong",
	})
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	stored, err := f.patients.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.DoctorIDs)

	require.NoError(t, f.svc.AssignDoctor(ctx, patient.AssignDoctorParams{
		DoctorID: d.ID, PatientID: created.ID, DoctorPassword: "dpw", PatientPassword: "ppw",
	}))

	stored, err = f.patients.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{d.ID}, stored.DoctorIDs)
	assert.Equal(t, []uint64{h.ID}, stored.HospitalIDs, "assignment affiliates the patient with the doctor's hospital")

	storedDoctor, err := f.doctors.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{created.ID}, storedDoctor.PatientIDs)

	// Assigning again is a no-op.
	require.NoError(t, f.svc.AssignDoctor(ctx, patient.AssignDoctorParams{
		DoctorID: d.ID, PatientID: created.ID, DoctorPassword: "dpw", PatientPassword: "ppw",
	}))
	stored, err = f.patients.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint64{d.ID}, stored.DoctorIDs)
}

func TestGetPatientInfoGatedByRelationship(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.createHospital(t, "General", "hpw")
	assigned := f.createDoctor(t, "Dr. A", "apw", h.ID)
	stranger := f.createDoctor(t, "Dr. B", "bpw", h.ID)

	created, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Pat", History: "allergy to penicillin", Password: "ppw",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.AssignDoctor(ctx, patient.AssignDoctorParams{
		DoctorID: assigned.ID, PatientID: created.ID, DoctorPassword: "apw", PatientPassword: "ppw",
	}))

	info, err := f.svc.GetPatientInfo(ctx, created.ID, assigned.ID, "apw")
	require.NoError(t, err)
	assert.Equal(t, "allergy to penicillin", info.History)
	assert.Equal(t, model.MaskedPassword, info.Password)

	_, err = f.svc.GetPatientInfo(ctx, created.ID, stranger.ID, "bpw")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err), "unassigned doctors are denied")

	_, err = f.svc.GetPatientInfo(ctx, created.ID, assigned.ID, "wrong")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
}

func TestUpdateHistoryAppends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.createHospital(t, "General", "hpw")
	d := f.createDoctor(t, "Dr. A", "dpw", h.ID)

	created, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Pat", History: "initial note", Password: "ppw",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.AssignDoctor(ctx, patient.AssignDoctorParams{
		DoctorID: d.ID, PatientID: created.ID, DoctorPassword: "dpw", PatientPassword: "ppw",
	}))

	require.NoError(t, f.svc.UpdateHistory(ctx, patient.UpdateHistoryParams{
		DoctorID: d.ID, PatientID: created.ID, DoctorPassword: "dpw", Entry: "prescribed rest",
	}))
	require.NoError(t, f.svc.UpdateHistory(ctx, patient.UpdateHistoryParams{
		DoctorID: d.ID, PatientID: created.ID, DoctorPassword: "dpw", Entry: "follow-up scheduled",
	}))

	stored, err := f.patients.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.History, "initial note"), "prior history is never rewritten")
	assert.Contains(t, stored.History, "Dr. A")
	first := strings.Index(stored.History, "prescribed rest")
	second := strings.Index(stored.History, "follow-up scheduled")
	require.GreaterOrEqual(t, first, 0)
	require.GreaterOrEqual(t, second, 0)
	assert.Less(t, first, second, "entries append in order")
}

func TestUpdateHistoryDeniedForUnassignedDoctor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.createHospital(t, "General", "hpw")
	d := f.createDoctor(t, "Dr. A", "dpw", h.ID)

	created, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Pat", History: "initial note", Password: "ppw",
	})
	require.NoError(t, err)

	err = f.svc.UpdateHistory(ctx, patient.UpdateHistoryParams{
		DoctorID: d.ID, PatientID: created.ID, DoctorPassword: "dpw", Entry: "unauthorized note",
	})
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	stored, err := f.patients.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "initial note", stored.History)
}

func TestListHospitalsForPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.createHospital(t, "General", "hpw")

	created, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Pat", Password: "ppw", HospitalID: h.ID, HospitalPassword: "hpw",
	})
	require.NoError(t, err)

	hospitals, err := f.svc.ListHospitals(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, hospitals, 1)
	assert.Equal(t, "General", hospitals[0].Name)
	assert.Equal(t, model.MaskedPassword, hospitals[0].Password)
}

func TestEnrollAndAssignRefreshHospitalDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.createHospital(t, "General", "hpw")
	d := f.createDoctor(t, "Dr. A", "dpw", h.ID)

	// Prime the directory cache before any patient touches the hospital.
	listed, err := f.hospitalSvc.ListHospitals(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Empty(t, listed[0].PatientIDs)

	enrolled, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Pat", Password: "ppw", HospitalID: h.ID, HospitalPassword: "hpw",
	})
	require.NoError(t, err)

	listed, err = f.hospitalSvc.ListHospitals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{enrolled.ID}, listed[0].PatientIDs, "directory must see the enrollment")

	standalone, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{
		Name: "Other", Password: "opw",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.AssignDoctor(ctx, patient.AssignDoctorParams{
		DoctorID: d.ID, PatientID: standalone.ID, DoctorPassword: "dpw", PatientPassword: "opw",
	}))

	listed, err = f.hospitalSvc.ListHospitals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{enrolled.ID, standalone.ID}, listed[0].PatientIDs, "directory must see the assignment link")
}

func TestIDsUniqueAcrossRecordTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h := f.createHospital(t, "General", "hpw")
	d := f.createDoctor(t, "Dr. A", "dpw", h.ID)
	p, err := f.svc.CreatePatient(ctx, patient.CreatePatientParams{Name: "Pat", Password: "ppw"})
	require.NoError(t, err)

	ids := []uint64{h.ID, d.ID, p.ID}
	seen := make(map[uint64]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "id %d issued twice", id)
		seen[id] = true
	}
	assert.Equal(t, []uint64{1, 2, 3}, ids)
}
