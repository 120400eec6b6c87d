package doctor

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	doctorService "github.com/phellister/patient-record-access-system/internal/service/doctor"
	"github.com/phellister/patient-record-access-system/pkg/httputil"
)

type Handler struct {
	service    doctorService.DoctorServicer
	outboxRepo repository.OutboxRepository
}

func NewHandler(service doctorService.DoctorServicer, outboxRepo repository.OutboxRepository) *Handler {
	return &Handler{service: service, outboxRepo: outboxRepo}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.POST("", h.CreateDoctor)
		doctors.GET("/:id", h.GetDoctor)
		doctors.PUT("/:id", h.EditDoctor)
		doctors.GET("/:id/patients", h.ListPatients)
	}
}

type createDoctorRequest struct {
	Name             string `json:"name" binding:"required,min=3"`
	Password         string `json:"password" binding:"required,min=4"`
	HospitalID       uint64 `json:"hospital_id" binding:"required"`
	HospitalPassword string `json:"hospital_password" binding:"required"`
}

type editDoctorRequest struct {
	Name             string `json:"name" binding:"required,min=3"`
	DoctorPassword   string `json:"doctor_password" binding:"required"`
	HospitalID       uint64 `json:"hospital_id" binding:"required"`
	HospitalPassword string `json:"hospital_password" binding:"required"`
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req createDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	doctor, err := h.service.CreateDoctor(c.Request.Context(), doctorService.CreateDoctorParams{
		Name:             req.Name,
		Password:         req.Password,
		HospitalID:       req.HospitalID,
		HospitalPassword: req.HospitalPassword,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.recordEvent(c, model.EventDoctorCreate, doctor.Masked())
	httputil.RespondWithCreated(c, doctor.Masked())
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	doctor, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctor)
}

func (h *Handler) EditDoctor(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	var req editDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	doctor, err := h.service.EditDoctor(c.Request.Context(), doctorService.EditDoctorParams{
		DoctorID:         id,
		Name:             req.Name,
		DoctorPassword:   req.DoctorPassword,
		HospitalID:       req.HospitalID,
		HospitalPassword: req.HospitalPassword,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.recordEvent(c, model.EventDoctorUpdate, doctor.Masked())
	httputil.RespondWithSuccess(c, doctor.Masked())
}

// ListPatients is password-gated: the doctor's own password travels in a
// header since the read carries no body, keeping it out of URLs and request
// logs.
func (h *Handler) ListPatients(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	patients, err := h.service.ListPatients(c.Request.Context(), id, c.GetHeader("X-Doctor-Password"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patients)
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
