package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/triage-api/internal/model"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
)

func newAppointment(date string, shift model.Shift, status model.AppointmentStatus) *model.Appointment {
	return &model.Appointment{
		PatientName: "Maria",
		ServiceType: model.CategoryFever,
		Priority:    model.PriorityGreen,
		Shift:       shift,
		Date:        date,
		Status:      status,
	}
}

func TestAppointmentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentRepository()

	a := newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingTriage)
	require.NoError(t, repo.Create(ctx, a))
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, 1, a.Version)
	assert.False(t, a.CreatedAt.IsZero())

	got, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.PatientName, got.PatientName)

	// Mutating the returned copy must not leak into the store.
	got.Status = model.StatusCompleted
	again, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingTriage, again.Status)

	_, err = repo.Get(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestAppointmentRepository_UpdateOptimistic(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentRepository()

	a := newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingTriage)
	require.NoError(t, repo.Create(ctx, a))

	first, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	second, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)

	first.Status = model.StatusInTriage
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, 2, first.Version)

	second.Status = model.StatusInTriage
	err = repo.Update(ctx, second)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	stored, err := repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)

	missing := newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingTriage)
	missing.ID = uuid.New()
	assert.True(t, apperrors.Is(repo.Update(ctx, missing), apperrors.ErrNotFound))
}

func TestAppointmentRepository_ListAndCount(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentRepository()
	base := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	fixtures := []*model.Appointment{
		newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingTriage),
		newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingDoctor),
		newAppointment("2024-03-10", model.ShiftAfternoon, model.StatusWaitingTriage),
		newAppointment("2024-03-09", model.ShiftMorning, model.StatusCompleted),
	}
	for i, a := range fixtures {
		a.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, a))
	}

	all, err := repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	waiting, err := repo.List(ctx, &model.AppointmentFilters{Statuses: []model.AppointmentStatus{model.StatusWaitingTriage}})
	require.NoError(t, err)
	assert.Len(t, waiting, 2)

	ranged, err := repo.List(ctx, &model.AppointmentFilters{From: "2024-03-09", To: "2024-03-09"})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, model.StatusCompleted, ranged[0].Status)

	n, err := repo.CountByShift(ctx, "2024-03-10", model.ShiftMorning)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CountByShift(ctx, "2024-03-10", model.ShiftMorning, model.StatusWaitingTriage)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAppointmentRepository_FindInProgress(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentRepository()
	nurse := uuid.New()

	a := newAppointment("2024-03-10", model.ShiftMorning, model.StatusInTriage)
	a.CalledBy = &nurse
	require.NoError(t, repo.Create(ctx, a))

	got, err := repo.FindInProgress(ctx, nurse, model.StatusInTriage)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	got, err = repo.FindInProgress(ctx, nurse, model.StatusInConsultation)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.FindInProgress(ctx, uuid.New(), model.StatusInTriage)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAppointmentRepository_CreateWithinCeiling(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentRepository()

	// A different shift never counts against the ceiling.
	require.NoError(t, repo.Create(ctx, newAppointment("2024-03-10", model.ShiftAfternoon, model.StatusWaitingTriage)))
	require.NoError(t, repo.Create(ctx, newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingDoctor)))

	a := newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingTriage)
	require.NoError(t, repo.CreateWithinCeiling(ctx, a, 3))
	assert.Equal(t, 1, a.QueuePosition)

	b := newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingTriage)
	require.NoError(t, repo.CreateWithinCeiling(ctx, b, 3))
	assert.Equal(t, 2, b.QueuePosition)

	full := newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingTriage)
	err := repo.CreateWithinCeiling(ctx, full, 3)
	assert.True(t, apperrors.Is(err, apperrors.ErrCapacityExceeded))

	n, err := repo.CountByShift(ctx, "2024-03-10", model.ShiftMorning)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestAppointmentRepository_CreateWithinCeilingConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentRepository()

	const ceiling, callers = 3, 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.CreateWithinCeiling(ctx, newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingTriage), ceiling)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				admitted++
			} else if apperrors.Is(err, apperrors.ErrCapacityExceeded) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, ceiling, admitted)
	assert.Equal(t, callers-ceiling, rejected)

	all, err := repo.List(ctx, nil)
	require.NoError(t, err)
	positions := make(map[int]bool)
	for _, a := range all {
		positions[a.QueuePosition] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, positions)
}

func TestAppointmentRepository_UpdateRejectsSecondSlot(t *testing.T) {
	ctx := context.Background()
	repo := NewAppointmentRepository()
	nurse := uuid.New()

	held := newAppointment("2024-03-10", model.ShiftMorning, model.StatusInTriage)
	held.CalledBy = &nurse
	require.NoError(t, repo.Create(ctx, held))

	next := newAppointment("2024-03-10", model.ShiftMorning, model.StatusWaitingTriage)
	require.NoError(t, repo.Create(ctx, next))

	next.Status = model.StatusInTriage
	next.CalledBy = &nurse
	err := repo.Update(ctx, next)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrecondition))

	stored, err := repo.Get(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingTriage, stored.Status)
	assert.Equal(t, 1, stored.Version)

	// The same nurse may hold one triage and one consultation slot.
	stored.Status = model.StatusInConsultation
	stored.CalledBy = &nurse
	require.NoError(t, repo.Update(ctx, stored))

	// Re-saving the held record itself is not a second slot.
	current, err := repo.Get(ctx, held.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Update(ctx, current))
}

func TestPatientRepository_SusCardIsUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewPatientRepository()

	p := &model.Patient{SusCard: "898001", Name: "João"}
	require.NoError(t, repo.Create(ctx, p))

	found, err := repo.FindBySusCard(ctx, "898001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, p.ID, found.ID)

	missing, err := repo.FindBySusCard(ctx, "000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Create(ctx, &model.Patient{SusCard: "898001", Name: "Outro"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}
