package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Lifecycle event types written to the outbox.
const (
	EventAppointmentCreated    = "appointment.created"
	EventTriageStarted         = "appointment.triage_started"
	EventTriageCompleted       = "appointment.triage_completed"
	EventTriageAborted         = "appointment.triage_aborted"
	EventConsultationStarted   = "appointment.consultation_started"
	EventConsultationCompleted = "appointment.consultation_completed"
	EventConsultationAborted   = "appointment.consultation_aborted"
	EventShiftRolledOver       = "shift.rolled_over"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// AppointmentEvent is the payload of every appointment.* event.
type AppointmentEvent struct {
	AppointmentID uuid.UUID         `json:"appointment_id"`
	PatientName   string            `json:"patient_name"`
	Priority      Priority          `json:"priority"`
	ServiceType   ServiceCategory   `json:"service_type"`
	From          AppointmentStatus `json:"from,omitempty"`
	To            AppointmentStatus `json:"to"`
	StaffID       *uuid.UUID        `json:"staff_id,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}
