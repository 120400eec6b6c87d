package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Event types recorded by the mutating handlers.
const (
	EventHospitalCreate = "HOSPITAL_CREATE"
	EventHospitalUpdate = "HOSPITAL_UPDATE"
	EventDoctorCreate   = "DOCTOR_CREATE"
	EventDoctorUpdate   = "DOCTOR_UPDATE"
	EventPatientCreate  = "PATIENT_CREATE"
	EventPatientUpdate  = "PATIENT_UPDATE"
	EventPatientAssign  = "PATIENT_ASSIGN"
	EventHistoryAppend  = "PATIENT_HISTORY_APPEND"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// NewOutboxEvent builds a pending event with a marshalled payload. Marshal
// failures are returned so the caller can log and continue; the original
// mutation has already succeeded at that point.
func NewOutboxEvent(eventType string, payload interface{}) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   data,
		Status:    OutboxStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}
