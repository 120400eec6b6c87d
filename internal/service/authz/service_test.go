package authz_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phellister/patient-record-access-system/internal/config"
	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository/sqlite"
	"github.com/phellister/patient-record-access-system/internal/service/authz"
	apperrors "github.com/phellister/patient-record-access-system/pkg/errors"
)

func newAuthorizer(t *testing.T) (*authz.Service, sqlite.BaseRepository) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.db")
	db, err := sqlite.NewDB(config.StorageConfig{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	base := sqlite.NewBaseRepository(db, 0)
	svc := authz.NewService(
		sqlite.NewHospitalRepository(base),
		sqlite.NewDoctorRepository(base),
		sqlite.NewPatientRepository(base),
	)
	return svc, base
}

func TestCheckPasswordExactMatch(t *testing.T) {
	assert.True(t, authz.CheckPassword("secret", "secret"))
	assert.False(t, authz.CheckPassword("secret", "Secret"))
	assert.False(t, authz.CheckPassword("secret", "secret "))
	assert.False(t, authz.CheckPassword("", "secret"))
}

func TestAuthorizeHospital(t *testing.T) {
	svc, base := newAuthorizer(t)
	ctx := context.Background()

	hospitals := sqlite.NewHospitalRepository(base)
	require.NoError(t, hospitals.Insert(ctx, &model.Hospital{ID: 1, Name: "General", Password: "hpw"}))

	h, err := svc.AuthorizeHospital(ctx, 1, "hpw")
	require.NoError(t, err)
	assert.Equal(t, "General", h.Name)

	_, err = svc.AuthorizeHospital(ctx, 1, "wrong")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	// A missing record is not found, never unauthorized.
	_, err = svc.AuthorizeHospital(ctx, 99, "hpw")
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestAuthorizeRelationship(t *testing.T) {
	svc, base := newAuthorizer(t)
	ctx := context.Background()

	patients := sqlite.NewPatientRepository(base)
	require.NoError(t, patients.Insert(ctx, &model.Patient{
		ID: 3, Name: "Pat", Password: "ppw", DoctorIDs: []uint64{2},
	}))

	p, err := svc.AuthorizeRelationship(ctx, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, "Pat", p.Name)

	_, err = svc.AuthorizeRelationship(ctx, 8, 3)
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	_, err = svc.AuthorizeRelationship(ctx, 2, 99)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}

func TestAuthorizeHospitalDoctor(t *testing.T) {
	svc, base := newAuthorizer(t)
	ctx := context.Background()

	hospitals := sqlite.NewHospitalRepository(base)
	require.NoError(t, hospitals.Insert(ctx, &model.Hospital{
		ID: 1, Name: "General", Password: "hpw", DoctorIDs: []uint64{2},
	}))

	assert.NoError(t, svc.AuthorizeHospitalDoctor(ctx, 1, 2, "hpw"))

	err := svc.AuthorizeHospitalDoctor(ctx, 1, 5, "hpw")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))

	err = svc.AuthorizeHospitalDoctor(ctx, 1, 2, "wrong")
	assert.Equal(t, apperrors.ErrUnauthorized, apperrors.CodeOf(err))
}
