package appointment

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/model"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
)

// mutation edits a fetched copy before it is written. Returning an error
// aborts the transition with the stored record untouched.
type mutation func(apt *model.Appointment) error

func (s *Service) transition(
	ctx context.Context,
	id uuid.UUID,
	actor model.Actor,
	to model.AppointmentStatus,
	eventType string,
	mutate mutation,
) (*model.Appointment, error) {
	apt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := apt.Status
	if !model.CanTransition(from, to) {
		return nil, apperrors.NewPrecondition(fmt.Sprintf("appointment is %s and cannot move to %s", from, to))
	}
	if mutate != nil {
		if err := mutate(apt); err != nil {
			return nil, err
		}
	}
	apt.Status = to
	apt.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, apt); err != nil {
		if apperrors.Is(err, apperrors.ErrConflict) {
			s.metrics.TransitionConflicts.Inc()
		}
		return nil, err
	}

	s.queue.Invalidate()
	s.metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	s.emit(ctx, eventType, apt, from, &actor.ID)
	s.logger.Info().
		Str("appointment_id", apt.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("staff_id", actor.ID.String()).
		Msg("appointment transitioned")
	return apt, nil
}

// claimSlot fails when the staff member already holds a patient in status.
// It gives a readable error early; the repository Update enforces the slot
// atomically for callers that race past it.
func (s *Service) claimSlot(ctx context.Context, actor model.Actor, status model.AppointmentStatus) error {
	held, err := s.repo.FindInProgress(ctx, actor.ID, status)
	if err != nil {
		return fmt.Errorf("failed to check current patient: %w", err)
	}
	if held != nil {
		return apperrors.NewPrecondition(fmt.Sprintf("staff member already has appointment %s in progress", held.ID))
	}
	return nil
}

// holder returns a mutation that only the staff member who called the
// patient may apply. Managers may release any slot when allowRelease is set.
func holder(actor model.Actor, allowRelease bool) mutation {
	return func(apt *model.Appointment) error {
		if apt.CalledBy == nil || *apt.CalledBy == actor.ID {
			return nil
		}
		if allowRelease && actor.Role == model.RoleManager {
			return nil
		}
		return apperrors.NewPrecondition("appointment is held by another staff member")
	}
}

func chain(ms ...mutation) mutation {
	return func(apt *model.Appointment) error {
		for _, m := range ms {
			if err := m(apt); err != nil {
				return err
			}
		}
		return nil
	}
}

func (s *Service) StartTriage(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Appointment, error) {
	if err := s.claimSlot(ctx, actor, model.StatusInTriage); err != nil {
		return nil, err
	}
	apt, err := s.transition(ctx, id, actor, model.StatusInTriage, model.EventTriageStarted, func(apt *model.Appointment) error {
		staffID := actor.ID
		apt.CalledBy = &staffID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announcer.Announce(ctx, apt.PatientName, s.triageRoom)
	return apt, nil
}

// CallNextTriage starts triage for the head of the live triage queue.
func (s *Service) CallNextTriage(ctx context.Context, actor model.Actor) (*model.Appointment, error) {
	if err := s.claimSlot(ctx, actor, model.StatusInTriage); err != nil {
		return nil, err
	}
	head, err := s.queue.Head(ctx, model.StatusWaitingTriage)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, apperrors.NewNotFound("triage queue entry", nil)
	}
	return s.StartTriage(ctx, head.ID, actor)
}

func (s *Service) CompleteTriage(ctx context.Context, id uuid.UUID, actor model.Actor, in *model.TriageInput) (*model.Appointment, error) {
	in.BloodPressure = strings.TrimSpace(in.BloodPressure)
	in.Temperature = strings.TrimSpace(in.Temperature)
	in.HeartRate = strings.TrimSpace(in.HeartRate)
	in.ConsultationRoom = strings.TrimSpace(in.ConsultationRoom)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	return s.transition(ctx, id, actor, model.StatusWaitingDoctor, model.EventTriageCompleted, chain(
		holder(actor, false),
		func(apt *model.Appointment) error {
			room := in.ConsultationRoom
			apt.TriageData = &model.TriageData{
				BloodPressure:    in.BloodPressure,
				Temperature:      in.Temperature,
				HeartRate:        in.HeartRate,
				RespiratoryRate:  in.RespiratoryRate,
				OxygenSaturation: in.OxygenSaturation,
				Weight:           in.Weight,
				Height:           in.Height,
				Observations:     in.Observations,
				NurseID:          actor.ID,
				NurseName:        actor.Name,
				CompletedAt:      s.now(),
			}
			apt.ConsultationRoom = &room
			apt.CalledBy = nil
			return nil
		},
	))
}

// AbortTriage returns the patient to the triage queue with no data kept.
func (s *Service) AbortTriage(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Appointment, error) {
	return s.transition(ctx, id, actor, model.StatusWaitingTriage, model.EventTriageAborted, chain(
		holder(actor, true),
		func(apt *model.Appointment) error {
			apt.TriageData = nil
			apt.ConsultationRoom = nil
			apt.CalledBy = nil
			return nil
		},
	))
}

func (s *Service) StartConsultation(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Appointment, error) {
	if err := s.claimSlot(ctx, actor, model.StatusInConsultation); err != nil {
		return nil, err
	}
	apt, err := s.transition(ctx, id, actor, model.StatusInConsultation, model.EventConsultationStarted, func(apt *model.Appointment) error {
		staffID := actor.ID
		apt.CalledBy = &staffID
		return nil
	})
	if err != nil {
		return nil, err
	}
	room := ""
	if apt.ConsultationRoom != nil {
		room = *apt.ConsultationRoom
	}
	s.announcer.Announce(ctx, apt.PatientName, room)
	return apt, nil
}

func (s *Service) CallNextConsultation(ctx context.Context, actor model.Actor) (*model.Appointment, error) {
	if err := s.claimSlot(ctx, actor, model.StatusInConsultation); err != nil {
		return nil, err
	}
	head, err := s.queue.Head(ctx, model.StatusWaitingDoctor)
	if err != nil {
		return nil, err
	}
	if head == nil {
		return nil, apperrors.NewNotFound("doctor queue entry", nil)
	}
	return s.StartConsultation(ctx, head.ID, actor)
}

func (s *Service) CompleteConsultation(ctx context.Context, id uuid.UUID, actor model.Actor, in *model.ConsultationInput) (*model.Appointment, error) {
	in.Diagnosis = strings.TrimSpace(in.Diagnosis)
	if err := s.validator.Validate(in); err != nil {
		return nil, err
	}

	return s.transition(ctx, id, actor, model.StatusCompleted, model.EventConsultationCompleted, chain(
		holder(actor, false),
		func(apt *model.Appointment) error {
			apt.ConsultationData = &model.ConsultationData{
				Diagnosis:    in.Diagnosis,
				Prescription: in.Prescription,
				Observations: in.Observations,
				DoctorID:     actor.ID,
				DoctorName:   actor.Name,
				CompletedAt:  s.now(),
			}
			apt.CalledBy = nil
			return nil
		},
	))
}

// AbortConsultation puts the patient back in the doctor queue. Triage data
// and the room assignment are kept.
func (s *Service) AbortConsultation(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Appointment, error) {
	return s.transition(ctx, id, actor, model.StatusWaitingDoctor, model.EventConsultationAborted, chain(
		holder(actor, true),
		func(apt *model.Appointment) error {
			apt.ConsultationData = nil
			apt.CalledBy = nil
			return nil
		},
	))
}

// emit writes the outbox event. The transition is already stored, so a
// failed write is logged and not returned.
func (s *Service) emit(ctx context.Context, eventType string, apt *model.Appointment, from model.AppointmentStatus, staffID *uuid.UUID) {
	payload := model.AppointmentEvent{
		AppointmentID: apt.ID,
		PatientName:   apt.PatientName,
		Priority:      apt.Priority,
		ServiceType:   apt.ServiceType,
		From:          from,
		To:            apt.Status,
		StaffID:       staffID,
		OccurredAt:    apt.UpdatedAt,
	}
	if err := s.events.Emit(ctx, eventType, payload); err != nil {
		s.logger.Error().Err(err).
			Str("appointment_id", apt.ID.String()).
			Str("event_type", eventType).
			Msg("failed to queue event")
	}
}
