package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/model"
)

// All repository interfaces in one file.
//
// Lookups that can legitimately miss (FindBySusCard, GetByUsername,
// ShiftConfigRepository.Get, FindInProgress) return nil, nil. Get by id
// returns a NotFound AppError.
type (
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		// CreateWithinCeiling counts the appointment's shift and inserts it
		// as one step. It returns a CapacityExceeded AppError when the shift
		// already holds ceiling records, and otherwise sets QueuePosition to
		// one past the shift's waiting_triage count.
		CreateWithinCeiling(ctx context.Context, appointment *model.Appointment, ceiling int) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// Update writes the record only if its stored version still equals
		// appointment.Version, then increments it. A lost race returns a
		// Conflict AppError. Moving a record into an in-progress status held
		// by the same staff member on another record returns Precondition.
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		CountByShift(ctx context.Context, date string, shift model.Shift, statuses ...model.AppointmentStatus) (int, error)
		FindInProgress(ctx context.Context, staffID uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		FindBySusCard(ctx context.Context, susCard string) (*model.Patient, error)
	}

	ShiftConfigRepository interface {
		Get(ctx context.Context) (*model.ShiftConfig, error)
		Save(ctx context.Context, cfg *model.ShiftConfig) error
	}

	StaffRepository interface {
		Create(ctx context.Context, staff *model.Staff) error
		Get(ctx context.Context, id uuid.UUID) (*model.Staff, error)
		GetByUsername(ctx context.Context, username string) (*model.Staff, error)
		Count(ctx context.Context) (int, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
