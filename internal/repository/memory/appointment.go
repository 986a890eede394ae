package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
)

type appointmentRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*model.Appointment
	order []uuid.UUID
}

func NewAppointmentRepository() repository.AppointmentRepository {
	return &appointmentRepository{items: make(map[uuid.UUID]*model.Appointment)}
}

func (r *appointmentRepository) Create(_ context.Context, appointment *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.insert(appointment)
}

func (r *appointmentRepository) CreateWithinCeiling(_ context.Context, appointment *model.Appointment, ceiling int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	used, waiting := 0, 0
	for _, a := range r.items {
		if a.Date != appointment.Date || a.Shift != appointment.Shift {
			continue
		}
		used++
		if a.Status == model.StatusWaitingTriage {
			waiting++
		}
	}
	if used >= ceiling {
		return apperrors.NewCapacityExceeded(ceiling)
	}
	appointment.QueuePosition = waiting + 1
	return r.insert(appointment)
}

// insert expects r.mu to be held.
func (r *appointmentRepository) insert(appointment *model.Appointment) error {
	stamp(&appointment.Base)
	if _, exists := r.items[appointment.ID]; exists {
		return apperrors.NewConflict("appointment")
	}
	if appointment.Version == 0 {
		appointment.Version = 1
	}
	r.items[appointment.ID] = appointment.Clone()
	r.order = append(r.order, appointment.ID)
	return nil
}

func (r *appointmentRepository) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return nil, apperrors.NewNotFound("appointment", nil)
	}
	return a.Clone(), nil
}

func (r *appointmentRepository) Update(_ context.Context, appointment *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[appointment.ID]
	if !ok {
		return apperrors.NewNotFound("appointment", nil)
	}
	if stored.Version != appointment.Version {
		return apperrors.NewConflict("appointment")
	}
	if appointment.Status.InProgress() && appointment.CalledBy != nil {
		for id, a := range r.items {
			if id != appointment.ID && a.Status == appointment.Status &&
				a.CalledBy != nil && *a.CalledBy == *appointment.CalledBy {
				return apperrors.NewPrecondition(fmt.Sprintf("staff member already has appointment %s in progress", id))
			}
		}
	}
	appointment.Version++
	r.items[appointment.ID] = appointment.Clone()
	return nil
}

func (r *appointmentRepository) List(_ context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var f model.AppointmentFilters
	if filters != nil {
		f = *filters
	}

	result := make([]*model.Appointment, 0)
	for _, id := range r.order {
		a := r.items[id]
		if f.Matches(a) {
			result = append(result, a.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.QueuePosition != b.QueuePosition {
			return a.QueuePosition < b.QueuePosition
		}
		return a.ID.String() < b.ID.String()
	})
	return result, nil
}

func (r *appointmentRepository) CountByShift(_ context.Context, date string, shift model.Shift, statuses ...model.AppointmentStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f := model.AppointmentFilters{Date: date, Shift: shift, Statuses: statuses}
	count := 0
	for _, a := range r.items {
		if f.Matches(a) {
			count++
		}
	}
	return count, nil
}

func (r *appointmentRepository) FindInProgress(_ context.Context, staffID uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		a := r.items[id]
		if a.Status == status && a.CalledBy != nil && *a.CalledBy == staffID {
			return a.Clone(), nil
		}
	}
	return nil, nil
}
