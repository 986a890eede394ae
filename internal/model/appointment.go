package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// ServiceCategory is the reason for the visit picked at the kiosk.
type ServiceCategory string

const (
	CategoryHeadache    ServiceCategory = "headache"
	CategoryFever       ServiceCategory = "fever"
	CategoryDental      ServiceCategory = "dental"
	CategoryRespiratory ServiceCategory = "respiratory"
	CategoryInjury      ServiceCategory = "injury"
	CategoryCheckup     ServiceCategory = "checkup"
	CategoryVaccination ServiceCategory = "vaccination"
	CategoryOther       ServiceCategory = "other"
)

var categoryLabels = map[ServiceCategory]string{
	CategoryHeadache:    "Dor de Cabeça",
	CategoryFever:       "Febre",
	CategoryDental:      "Dentista",
	CategoryRespiratory: "Problemas Respiratórios",
	CategoryInjury:      "Lesão/Ferimento",
	CategoryCheckup:     "Consulta de Rotina",
	CategoryVaccination: "Vacinação",
	CategoryOther:       "Outros",
}

func (c ServiceCategory) Label() string {
	return categoryLabels[c]
}

type AppointmentStatus string

const (
	StatusWaitingTriage  AppointmentStatus = "waiting_triage"
	StatusInTriage       AppointmentStatus = "in_triage"
	StatusWaitingDoctor  AppointmentStatus = "waiting_doctor"
	StatusInConsultation AppointmentStatus = "in_consultation"
	StatusCompleted      AppointmentStatus = "completed"
)

// transitions holds every permitted status edge. completed has none.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusWaitingTriage:  {StatusInTriage},
	StatusInTriage:       {StatusWaitingDoctor, StatusWaitingTriage},
	StatusWaitingDoctor:  {StatusInConsultation},
	StatusInConsultation: {StatusCompleted, StatusWaitingDoctor},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusWaitingTriage, StatusInTriage, StatusWaitingDoctor, StatusInConsultation, StatusCompleted:
		return true
	}
	return false
}

func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted
}

// InProgress is true while a staff member holds the appointment.
func (s AppointmentStatus) InProgress() bool {
	return s == StatusInTriage || s == StatusInConsultation
}

// Answers maps question ids to bool or integer scale values.
type Answers map[string]interface{}

func (a Answers) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return valueJSON(a)
}

func (a *Answers) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// TriageData is the nursing assessment, set once when triage completes.
type TriageData struct {
	BloodPressure    string    `json:"blood_pressure"`
	Temperature      string    `json:"temperature"`
	HeartRate        string    `json:"heart_rate"`
	RespiratoryRate  string    `json:"respiratory_rate,omitempty"`
	OxygenSaturation string    `json:"oxygen_saturation,omitempty"`
	Weight           string    `json:"weight,omitempty"`
	Height           string    `json:"height,omitempty"`
	Observations     string    `json:"observations,omitempty"`
	NurseID          uuid.UUID `json:"nurse_id"`
	NurseName        string    `json:"nurse_name"`
	CompletedAt      time.Time `json:"completed_at"`
}

func (t TriageData) Value() (driver.Value, error) {
	return valueJSON(t)
}

func (t *TriageData) Scan(src interface{}) error {
	return scanJSON(src, t)
}

// ConsultationData is the physician outcome, set once on completion.
type ConsultationData struct {
	Diagnosis    string    `json:"diagnosis"`
	Prescription string    `json:"prescription,omitempty"`
	Observations string    `json:"observations,omitempty"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	DoctorName   string    `json:"doctor_name"`
	CompletedAt  time.Time `json:"completed_at"`
}

func (c ConsultationData) Value() (driver.Value, error) {
	return valueJSON(c)
}

func (c *ConsultationData) Scan(src interface{}) error {
	return scanJSON(src, c)
}

// Appointment is one patient visit moving through triage and consultation.
// ServiceType and Priority are fixed at creation. QueuePosition is a
// snapshot taken at intake and is never used for ordering.
type Appointment struct {
	Base
	PatientID        uuid.UUID         `db:"patient_id" json:"patient_id"`
	PatientName      string            `db:"patient_name" json:"patient_name"`
	SusCard          string            `db:"sus_card" json:"sus_card"`
	ServiceType      ServiceCategory   `db:"service_type" json:"service_type"`
	Priority         Priority          `db:"priority" json:"priority"`
	Answers          Answers           `db:"answers" json:"answers,omitempty"`
	Shift            Shift             `db:"shift" json:"shift"`
	Date             string            `db:"shift_date" json:"date"`
	QueuePosition    int               `db:"queue_position" json:"queue_position"`
	Status           AppointmentStatus `db:"status" json:"status"`
	TriageData       *TriageData       `db:"triage_data" json:"triage_data,omitempty"`
	ConsultationRoom *string           `db:"consultation_room" json:"consultation_room,omitempty"`
	ConsultationData *ConsultationData `db:"consultation_data" json:"consultation_data,omitempty"`
	CalledBy         *uuid.UUID        `db:"called_by" json:"called_by,omitempty"`
	Version          int               `db:"version" json:"version"`
}

// Clone returns a copy that shares no mutable state with a.
func (a *Appointment) Clone() *Appointment {
	c := *a
	if a.Answers != nil {
		c.Answers = make(Answers, len(a.Answers))
		for k, v := range a.Answers {
			c.Answers[k] = v
		}
	}
	if a.TriageData != nil {
		td := *a.TriageData
		c.TriageData = &td
	}
	if a.ConsultationData != nil {
		cd := *a.ConsultationData
		c.ConsultationData = &cd
	}
	if a.ConsultationRoom != nil {
		room := *a.ConsultationRoom
		c.ConsultationRoom = &room
	}
	if a.CalledBy != nil {
		id := *a.CalledBy
		c.CalledBy = &id
	}
	return &c
}

// AppointmentFilters narrows a listing. From and To are inclusive
// YYYY-MM-DD bounds and are ignored when Date is set.
type AppointmentFilters struct {
	Date     string
	From     string
	To       string
	Shift    Shift
	Statuses []AppointmentStatus
}

// Matches applies the filter to a single record.
func (f AppointmentFilters) Matches(a *Appointment) bool {
	if f.Date != "" {
		if a.Date != f.Date {
			return false
		}
	} else {
		if f.From != "" && a.Date < f.From {
			return false
		}
		if f.To != "" && a.Date > f.To {
			return false
		}
	}
	if f.Shift != "" && a.Shift != f.Shift {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if a.Status == s {
			return true
		}
	}
	return false
}

// IntakeRequest is submitted by the kiosk after the questionnaire.
type IntakeRequest struct {
	SusCard     string          `json:"sus_card" validate:"required,min=6,max=20,numeric"`
	PatientName string          `json:"patient_name" validate:"required,max=120"`
	ServiceType ServiceCategory `json:"service_type" validate:"required"`
	Answers     Answers         `json:"answers" validate:"required"`
}

type TriageInput struct {
	BloodPressure    string `json:"blood_pressure" validate:"required"`
	Temperature      string `json:"temperature" validate:"required"`
	HeartRate        string `json:"heart_rate" validate:"required"`
	RespiratoryRate  string `json:"respiratory_rate"`
	OxygenSaturation string `json:"oxygen_saturation"`
	Weight           string `json:"weight"`
	Height           string `json:"height"`
	Observations     string `json:"observations" validate:"max=2000"`
	ConsultationRoom string `json:"consultation_room" validate:"required"`
}

type ConsultationInput struct {
	Diagnosis    string `json:"diagnosis" validate:"required"`
	Prescription string `json:"prescription" validate:"max=4000"`
	Observations string `json:"observations" validate:"max=4000"`
}
