package hospital

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/phellister/patient-record-access-system/internal/model"
	"github.com/phellister/patient-record-access-system/internal/repository"
	hospitalService "github.com/phellister/patient-record-access-system/internal/service/hospital"
	"github.com/phellister/patient-record-access-system/pkg/httputil"
)

type Handler struct {
	service    hospitalService.HospitalServicer
	outboxRepo repository.OutboxRepository
}

func NewHandler(service hospitalService.HospitalServicer, outboxRepo repository.OutboxRepository) *Handler {
	return &Handler{service: service, outboxRepo: outboxRepo}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	hospitals := r.Group("/hospitals")
	{
		hospitals.POST("", h.CreateHospital)
		hospitals.GET("", h.ListHospitals)
		hospitals.GET("/:id", h.GetHospital)
		hospitals.PUT("/:id", h.EditHospital)
		hospitals.GET("/:id/doctors", h.ListDoctors)
	}
}

type createHospitalRequest struct {
	Name     string `json:"name" binding:"required,min=3"`
	Address  string `json:"address" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=4"`
}

type editHospitalRequest struct {
	Name     string `json:"name" binding:"required,min=3"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) CreateHospital(c *gin.Context) {
	var req createHospitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	hospital, err := h.service.CreateHospital(c.Request.Context(), req.Name, req.Address, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.recordEvent(c, model.EventHospitalCreate, hospital.Masked())
	httputil.RespondWithCreated(c, hospital.Masked())
}

func (h *Handler) GetHospital(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	hospital, err := h.service.GetHospital(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, hospital)
}

// ListHospitals serves the public directory. With a "name" query it becomes a
// case-insensitive substring search; zero matches is an empty list.
func (h *Handler) ListHospitals(c *gin.Context) {
	var (
		hospitals []*model.Hospital
		err       error
	)
	if name := c.Query("name"); name != "" {
		hospitals, err = h.service.SearchHospitalsByName(c.Request.Context(), name)
	} else {
		hospitals, err = h.service.ListHospitals(c.Request.Context())
	}
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, hospitals)
}

func (h *Handler) EditHospital(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	var req editHospitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	hospital, err := h.service.EditHospital(c.Request.Context(), id, req.Password, req.Name)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	h.recordEvent(c, model.EventHospitalUpdate, hospital.Masked())
	httputil.RespondWithSuccess(c, hospital.Masked())
}

func (h *Handler) ListDoctors(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	doctors, err := h.service.ListDoctors(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

// recordEvent writes an outbox event for a completed mutation. The mutation
// already succeeded, so failures here are logged and the response proceeds.
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
