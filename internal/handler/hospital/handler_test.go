package hospital_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phellister/patient-record-access-system/internal/config"
	hospitalHandler "github.com/phellister/patient-record-access-system/internal/handler/hospital"
	"github.com/phellister/patient-record-access-system/internal/repository"
	"github.com/phellister/patient-record-access-system/internal/repository/sqlite"
	hospitalService "github.com/phellister/patient-record-access-system/internal/service/hospital"
	"github.com/phellister/patient-record-access-system/pkg/httputil"
)

func newTestRouter(t *testing.T) (*gin.Engine, repository.OutboxRepository) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.db")
	db, err := sqlite.NewDB(config.StorageConfig{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	base := sqlite.NewBaseRepository(db, 0)
	svc := hospitalService.NewService(
		sqlite.NewHospitalRepository(base),
		sqlite.NewDoctorRepository(base),
		sqlite.NewIDAllocator(base),
	)
	outboxRepo := sqlite.NewOutboxRepository(base)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	api := engine.Group("/api/v1")
	hospitalHandler.NewHandler(svc, outboxRepo).RegisterRoutes(api)
	return engine, outboxRepo
}

func doJSON(t *testing.T, engine *gin.Engine, method, url string, body interface{}) (*httptest.ResponseRecorder, httputil.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHospitalEndpoints(t *testing.T) {
	engine, outboxRepo := newTestRouter(t)

	// Create
	rec, resp := doJSON(t, engine, http.MethodPost, "/api/v1/hospitals", gin.H{
		"name": "City General", "address": "1 Main St", "password": "secret",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "-", data["password"], "responses never carry the real password")
	id := uint64(data["id"].(float64))
	require.NotZero(t, id)

	// Get
	rec, resp = doJSON(t, engine, http.MethodGet, fmt.Sprintf("/api/v1/hospitals/%d", id), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, "City General", data["name"])
	assert.Equal(t, "-", data["password"])

	// Edit with wrong password
	rec, resp = doJSON(t, engine, http.MethodPut, fmt.Sprintf("/api/v1/hospitals/%d", id), gin.H{
		"name": "Renamed", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "password does not match")

	// Edit with the right password
	rec, resp = doJSON(t, engine, http.MethodPut, fmt.Sprintf("/api/v1/hospitals/%d", id), gin.H{
		"name": "Renamed", "password": "secret",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, "Renamed", data["name"])

	// Search by substring
	rec, resp = doJSON(t, engine, http.MethodGet, "/api/v1/hospitals?name=renam", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)

	// Zero matches is an empty list
	rec, resp = doJSON(t, engine, http.MethodGet, "/api/v1/hospitals?name=zzz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, resp.Data)

	// Missing hospital
	rec, resp = doJSON(t, engine, http.MethodGet, "/api/v1/hospitals/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.Success)

	// Malformed payload
	rec, _ = doJSON(t, engine, http.MethodPost, "/api/v1/hospitals", gin.H{
		"name": "X", "address": "1 Main St", "password": "secret",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Mutations leave events behind for the outbox processor.
	events, err := outboxRepo.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
