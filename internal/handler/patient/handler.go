package patient

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	patientService "github.com/phellister/patient-record-access-system/internal/service/patient"
	"github.com/phellister/patient-record-access-system/pkg/httputil"
)

type Handler struct {
	service    patientService.PatientServicer
	outboxRepo repository.OutboxRepository
}

func NewHandler(service patientService.PatientServicer, outboxRepo repository.OutboxRepository) *Handler {
	return &Handler{service: service, outboxRepo: outboxRepo}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	patients := r.Group("/patients")
	{
		patients.POST("", h.CreatePatient)
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.EditPatient)
		patients.POST("/:id/doctors", h.AssignDoctor)
		patients.POST("/:id/history", h.UpdateHistory)
		patients.POST("/:id/info", h.GetPatientInfo)
		patients.GET("/:id/hospitals", h.ListHospitals)
	}
}

type createPatientRequest struct {
	Name     string `json:"name" binding:"required,min=3"`
	History  string `json:"history" binding:"required,min=6"`
	Password string `json:"password" binding:"required,min=4"`
	// Optional: enroll the patient under a hospital at creation time.
	HospitalID       uint64 `json:"hospital_id"`
	HospitalPassword string `json:"hospital_password"`
}

type editPatientRequest struct {
	Name     string `json:"name" binding:"required,min=3"`
	Password string `json:"password" binding:"required"`
}

type assignDoctorRequest struct {
	DoctorID        uint64 `json:"doctor_id" binding:"required"`
	DoctorPassword  string `json:"doctor_password" binding:"required"`
	PatientPassword string `json:"patient_password" binding:"required"`
}

type updateHistoryRequest struct {
	DoctorID       uint64 `json:"doctor_id" binding:"required"`
	DoctorPassword string `json:"doctor_password" binding:"required"`
	Entry          string `json:"entry" binding:"required,min=6"`
}

type patientInfoRequest struct {
	DoctorID       uint64 `json:"doctor_id" binding:"required"`
	DoctorPassword string `json:"doctor_password" binding:"required"`
}

func (h *Handler) CreatePatient(c *gin.Context) {
	var req createPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	patient, err := h.service.CreatePatient(c.Request.Context(), patientService.CreatePatientParams{
		Name:             req.Name,
		History:          req.History,
		Password:         req.Password,
		HospitalID:       req.HospitalID,
		HospitalPassword: req.HospitalPassword,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.recordEvent(c, model.EventPatientCreate, patient.Masked())
	httputil.RespondWithCreated(c, patient.Masked())
}

func (h *Handler) GetPatient(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	patient, err := h.service.GetPatient(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patient)
}

func (h *Handler) EditPatient(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	var req editPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	patient, err := h.service.EditPatient(c.Request.Context(), id, req.Password, req.Name)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.recordEvent(c, model.EventPatientUpdate, patient.Masked())
	httputil.RespondWithSuccess(c, patient.Masked())
}

func (h *Handler) AssignDoctor(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	var req assignDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	params := patientService.AssignDoctorParams{
		DoctorID:        req.DoctorID,
		PatientID:       id,
		DoctorPassword:  req.DoctorPassword,
		PatientPassword: req.PatientPassword,
	}
	if err := h.service.AssignDoctor(c.Request.Context(), params); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.recordEvent(c, model.EventPatientAssign, gin.H{"patient_id": id, "doctor_id": req.DoctorID})
	httputil.RespondWithSuccess(c, gin.H{"patient_id": id, "doctor_id": req.DoctorID})
}

func (h *Handler) UpdateHistory(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	var req updateHistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	err = h.service.UpdateHistory(c.Request.Context(), patientService.UpdateHistoryParams{
		DoctorID:       req.DoctorID,
		PatientID:      id,
		DoctorPassword: req.DoctorPassword,
		Entry:          req.Entry,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.recordEvent(c, model.EventHistoryAppend, gin.H{"patient_id": id, "doctor_id": req.DoctorID})
	httputil.RespondWithSuccess(c, gin.H{"patient_id": id})
}

// GetPatientInfo is a POST because the read is credentialed: the acting
// doctor's identity and password travel in the body.
func (h *Handler) GetPatientInfo(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	var req patientInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	patient, err := h.service.GetPatientInfo(c.Request.Context(), id, req.DoctorID, req.DoctorPassword)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patient)
}

func (h *Handler) ListHospitals(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	hospitals, err := h.service.ListHospitals(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, hospitals)
}

func (h *Handler) recordEvent(c *gin.Context, eventType string, payload interface{}) {
	event, err := model.NewOutboxEvent(eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal outbox event")
		return
	}
	if err := h.outboxRepo.Create(c.Request.Context(), event); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to create outbox event")
	}
}

func parseID(c *gin.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}
