// Package appointment drives an appointment through intake, nursing triage
// and physician consultation. Every status change goes through this package.
package appointment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	"github.com/jwalitptl/triage-api/internal/service/announcement"
	"github.com/jwalitptl/triage-api/internal/service/capacity"
	"github.com/jwalitptl/triage-api/internal/service/event"
	"github.com/jwalitptl/triage-api/internal/service/queue"
	"github.com/jwalitptl/triage-api/internal/triage"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
	"github.com/jwalitptl/triage-api/pkg/metrics"
	"github.com/jwalitptl/triage-api/pkg/validator"
)

const defaultTriageRoom = "Sala de Triagem"

type Dependencies struct {
	Appointments repository.AppointmentRepository
	Patients     repository.PatientRepository
	Capacity     *capacity.Tracker
	Queue        *queue.Engine
	Events       event.Emitter
	Announcer    announcement.Announcer
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
	// TriageRoom is the room spoken when a patient is called to triage.
	TriageRoom string
}

type Service struct {
	repo       repository.AppointmentRepository
	patients   repository.PatientRepository
	capacity   *capacity.Tracker
	queue      *queue.Engine
	events     event.Emitter
	announcer  announcement.Announcer
	validator  validator.Validator
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	triageRoom string
	now        func() time.Time
}

func NewService(deps Dependencies) *Service {
	s := &Service{
		repo:       deps.Appointments,
		patients:   deps.Patients,
		capacity:   deps.Capacity,
		queue:      deps.Queue,
		events:     deps.Events,
		announcer:  deps.Announcer,
		validator:  validator.New(),
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		triageRoom: deps.TriageRoom,
		now:        deps.Capacity.Now,
	}
	if s.events == nil {
		s.events = event.Nop{}
	}
	if s.announcer == nil {
		s.announcer = announcement.Nop{}
	}
	if s.triageRoom == "" {
		s.triageRoom = defaultTriageRoom
	}
	return s
}

// Create admits a patient from the kiosk. Input is checked before capacity
// so a malformed intake never consumes a slot.
func (s *Service) Create(ctx context.Context, req *model.IntakeRequest) (*model.Appointment, error) {
	req.SusCard = strings.TrimSpace(req.SusCard)
	req.PatientName = strings.TrimSpace(req.PatientName)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	priority, err := triage.Classify(req.ServiceType, req.Answers)
	if err != nil {
		return nil, err
	}

	status, err := s.capacity.Status(ctx)
	if err != nil {
		return nil, err
	}
	if !status.CanAdmit {
		s.metrics.CapacityRejections.Inc()
		s.logger.Info().
			Str("shift", string(status.Config.CurrentShift)).
			Int("used", status.Used).
			Msg("intake rejected: shift full")
		return nil, apperrors.NewCapacityExceeded(status.Config.MaxAppointmentsPerShift)
	}
	cfg := status.Config

	patient, err := s.findOrCreatePatient(ctx, req.SusCard, req.PatientName)
	if err != nil {
		return nil, err
	}

	now := s.now()
	apt := &model.Appointment{
		Base:        model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		PatientID:   patient.ID,
		PatientName: req.PatientName,
		SusCard:     req.SusCard,
		ServiceType: req.ServiceType,
		Priority:    priority,
		Answers:     req.Answers,
		Shift:       cfg.CurrentShift,
		Date:        cfg.ShiftDate,
		Status:      model.StatusWaitingTriage,
	}
	// Status above is a fast path; the ceiling is enforced again atomically
	// with the insert.
	if err := s.repo.CreateWithinCeiling(ctx, apt, cfg.MaxAppointmentsPerShift); err != nil {
		if apperrors.Is(err, apperrors.ErrCapacityExceeded) {
			s.metrics.CapacityRejections.Inc()
			s.logger.Info().
				Str("shift", string(cfg.CurrentShift)).
				Msg("intake rejected: shift filled concurrently")
			return nil, err
		}
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.queue.Invalidate()
	s.metrics.AppointmentsCreated.WithLabelValues(string(apt.ServiceType), string(apt.Priority)).Inc()
	s.emit(ctx, model.EventAppointmentCreated, apt, "", nil)
	s.logger.Info().
		Str("appointment_id", apt.ID.String()).
		Str("service_type", string(apt.ServiceType)).
		Str("priority", string(apt.Priority)).
		Int("queue_position", apt.QueuePosition).
		Msg("appointment created")
	return apt, nil
}

// findOrCreatePatient reuses the record for a known SUS card. A concurrent
// intake with the same card loses the insert and reads the winner's row.
func (s *Service) findOrCreatePatient(ctx context.Context, susCard, name string) (*model.Patient, error) {
	p, err := s.patients.FindBySusCard(ctx, susCard)
	if err != nil {
		return nil, fmt.Errorf("failed to look up patient: %w", err)
	}
	if p != nil {
		return p, nil
	}

	p = &model.Patient{SusCard: susCard, Name: name}
	err = s.patients.Create(ctx, p)
	if apperrors.Is(err, apperrors.ErrConflict) {
		p, err = s.patients.FindBySusCard(ctx, susCard)
		if err == nil && p == nil {
			err = fmt.Errorf("patient %s vanished after conflict", susCard)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

// List returns appointments matching filters in arrival order.
func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	if filters == nil {
		filters = &model.AppointmentFilters{}
	}
	var invalid []string
	for name, date := range map[string]string{"date": filters.Date, "from": filters.From, "to": filters.To} {
		if date == "" {
			continue
		}
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			invalid = append(invalid, name)
		}
	}
	if filters.Shift != "" && !filters.Shift.Valid() {
		invalid = append(invalid, "shift")
	}
	for _, st := range filters.Statuses {
		if !st.Valid() {
			invalid = append(invalid, "status")
			break
		}
	}
	if len(invalid) > 0 {
		sort.Strings(invalid)
		return nil, apperrors.NewValidation("invalid filters: "+strings.Join(invalid, ", "), invalid...)
	}
	return s.repo.List(ctx, filters)
}

// CurrentFor returns the appointment occupying the staff member's slot, or
// nil when the slot is free.
func (s *Service) CurrentFor(ctx context.Context, actor model.Actor) (*model.Appointment, error) {
	status, ok := slotStatus(actor.Role)
	if !ok {
		return nil, nil
	}
	return s.repo.FindInProgress(ctx, actor.ID, status)
}

func slotStatus(role model.StaffRole) (model.AppointmentStatus, bool) {
	switch role {
	case model.RoleNurse:
		return model.StatusInTriage, true
	case model.RoleDoctor:
		return model.StatusInConsultation, true
	}
	return "", false
}
