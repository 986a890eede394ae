package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository/memory"
	"github.com/jwalitptl/triage-api/pkg/metrics"
)

func appt(name string, p model.Priority, status model.AppointmentStatus, at time.Time) *model.Appointment {
	a := &model.Appointment{PatientName: name, Priority: p, Status: status, ServiceType: model.CategoryOther}
	a.CreatedAt = at
	a.UpdatedAt = at
	return a
}

func names(records []*model.Appointment) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.PatientName
	}
	return out
}

func TestOrder_PriorityThenArrival(t *testing.T) {
	t0 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	records := []*model.Appointment{
		appt("yellow", model.PriorityYellow, model.StatusWaitingTriage, t0),
		appt("red-1", model.PriorityRed, model.StatusWaitingTriage, t0.Add(time.Minute)),
		appt("red-2", model.PriorityRed, model.StatusWaitingTriage, t0.Add(2*time.Minute)),
		appt("blue", model.PriorityBlue, model.StatusWaitingTriage, t0.Add(3*time.Minute)),
	}

	got := Order(records, model.StatusWaitingTriage)
	assert.Equal(t, []string{"red-1", "red-2", "yellow", "blue"}, names(got))
	// Input untouched.
	assert.Equal(t, "yellow", records[0].PatientName)
}

func TestOrder_FiltersByStatus(t *testing.T) {
	t0 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	records := []*model.Appointment{
		appt("a", model.PriorityRed, model.StatusInTriage, t0),
		appt("b", model.PriorityGreen, model.StatusWaitingDoctor, t0),
		appt("c", model.PriorityOrange, model.StatusWaitingDoctor, t0.Add(time.Second)),
	}
	assert.Equal(t, []string{"c", "b"}, names(Order(records, model.StatusWaitingDoctor)))
	assert.Empty(t, Order(records, model.StatusCompleted))
}

func TestOrder_SameTimestampKeepsInputOrder(t *testing.T) {
	t0 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	records := []*model.Appointment{
		appt("first", model.PriorityGreen, model.StatusWaitingTriage, t0),
		appt("second", model.PriorityGreen, model.StatusWaitingTriage, t0),
	}
	assert.Equal(t, []string{"first", "second"}, names(Order(records, model.StatusWaitingTriage)))
}

func TestEngine_QueuesReflectRepository(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAppointmentRepository()
	engine := NewEngine(repo, metrics.NewTest(), 0)
	t0 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	for _, a := range []*model.Appointment{
		appt("yellow", model.PriorityYellow, model.StatusWaitingTriage, t0),
		appt("red", model.PriorityRed, model.StatusWaitingTriage, t0.Add(time.Minute)),
		appt("doc", model.PriorityBlue, model.StatusWaitingDoctor, t0),
	} {
		require.NoError(t, repo.Create(ctx, a))
	}

	q, err := engine.TriageQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"red", "yellow"}, names(q))

	head, err := engine.Head(ctx, model.StatusWaitingDoctor)
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, "doc", head.PatientName)

	// Moving the head out of the queue is seen on the next read.
	head.Status = model.StatusInConsultation
	require.NoError(t, repo.Update(ctx, head))
	head, err = engine.Head(ctx, model.StatusWaitingDoctor)
	require.NoError(t, err)
	assert.Nil(t, head)
}

func TestEngine_DisplayCache(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewAppointmentRepository()
	engine := NewEngine(repo, metrics.NewTest(), time.Minute)
	t0 := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, appt("Ana", model.PriorityRed, model.StatusWaitingTriage, t0)))

	snap, err := engine.Display(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Triage, 1)
	assert.Equal(t, "Emergência", snap.Triage[0].PriorityLabel)
	assert.Equal(t, 1, snap.Triage[0].Position)

	require.NoError(t, repo.Create(ctx, appt("Bia", model.PriorityBlue, model.StatusWaitingTriage, t0.Add(time.Minute))))

	cached, err := engine.Display(ctx)
	require.NoError(t, err)
	assert.Len(t, cached.Triage, 1)

	engine.Invalidate()
	fresh, err := engine.Display(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh.Triage, 2)
}
