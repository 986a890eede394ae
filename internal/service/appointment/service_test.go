package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	"github.com/jwalitptl/triage-api/internal/repository/memory"
	"github.com/jwalitptl/triage-api/internal/service/announcement"
	"github.com/jwalitptl/triage-api/internal/service/capacity"
	"github.com/jwalitptl/triage-api/internal/service/event"
	"github.com/jwalitptl/triage-api/internal/service/queue"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
	"github.com/jwalitptl/triage-api/pkg/messaging"
	"github.com/jwalitptl/triage-api/pkg/metrics"
)

// tickingClock advances one second per reading so created_at is strictly
// increasing within a test.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	svc       *Service
	repo      repository.AppointmentRepository
	configs   repository.ShiftConfigRepository
	outbox    repository.OutboxRepository
	broker    *messaging.RecordingBroker
	announcer *announcement.Service
	clock     *tickingClock
}

func newFixture(t *testing.T, cfg *model.ShiftConfig) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, cfg, memory.NewAppointmentRepository())
}

func newFixtureWithRepo(t *testing.T, cfg *model.ShiftConfig, repo repository.AppointmentRepository) *fixture {
	t.Helper()
	clock := &tickingClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	m := metrics.NewTest()

	configs := memory.NewShiftConfigRepository(cfg)
	outbox := memory.NewOutboxRepository()
	broker := &messaging.RecordingBroker{}
	ann := announcement.NewService(broker, announcement.Config{Channel: "calls"}, zerolog.Nop(), m)

	tracker := capacity.NewTracker(configs, repo, time.UTC, m, capacity.WithClock(clock.Now))
	svc := NewService(Dependencies{
		Appointments: repo,
		Patients:     memory.NewPatientRepository(),
		Capacity:     tracker,
		Queue:        queue.NewEngine(repo, m, time.Minute),
		Events:       event.NewEventService(outbox, zerolog.Nop()),
		Announcer:    ann,
		Metrics:      m,
		Logger:       zerolog.Nop(),
	})
	return &fixture{svc: svc, repo: repo, configs: configs, outbox: outbox, broker: broker, announcer: ann, clock: clock}
}

func morningConfig(ceiling int) *model.ShiftConfig {
	return &model.ShiftConfig{
		CurrentShift:            model.ShiftMorning,
		ShiftDate:               "2024-03-10",
		MaxAppointmentsPerShift: ceiling,
	}
}

func checkupIntake(card string, urgent bool) *model.IntakeRequest {
	return &model.IntakeRequest{
		SusCard:     card,
		PatientName: "Paciente " + card,
		ServiceType: model.CategoryCheckup,
		Answers: model.Answers{
			"urgent_symptoms":   urgent,
			"chronic_condition": false,
			"medication_issue":  false,
		},
	}
}

func respiratoryIntake(card string) *model.IntakeRequest {
	return &model.IntakeRequest{
		SusCard:     card,
		PatientName: "Paciente " + card,
		ServiceType: model.CategoryRespiratory,
		Answers: model.Answers{
			"severe_difficulty":    true,
			"chest_pain":           true,
			"blue_lips":            true,
			"breathing_difficulty": float64(9),
		},
	}
}

var (
	nurse  = model.Actor{ID: uuid.New(), Name: "Enfermeiro(a) Silva", Role: model.RoleNurse}
	nurse2 = model.Actor{ID: uuid.New(), Name: "Enfermeiro(a) Costa", Role: model.RoleNurse}
	doctor = model.Actor{ID: uuid.New(), Name: "Dr(a). Santos", Role: model.RoleDoctor}
)

func validTriage() *model.TriageInput {
	return &model.TriageInput{
		BloodPressure:    "120/80",
		Temperature:      "36.8",
		HeartRate:        "78",
		ConsultationRoom: "Consultório 2",
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))

	first, err := f.svc.Create(ctx, checkupIntake("123456789", false))
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingTriage, first.Status)
	assert.Equal(t, model.PriorityBlue, first.Priority)
	assert.Equal(t, model.ShiftMorning, first.Shift)
	assert.Equal(t, "2024-03-10", first.Date)
	assert.Equal(t, 1, first.QueuePosition)
	assert.Equal(t, 1, first.Version)

	second, err := f.svc.Create(ctx, respiratoryIntake("987654321"))
	require.NoError(t, err)
	assert.Equal(t, model.PriorityRed, second.Priority)
	assert.Equal(t, 2, second.QueuePosition)

	again, err := f.svc.Create(ctx, checkupIntake("123456789", true))
	require.NoError(t, err)
	assert.Equal(t, first.PatientID, again.PatientID, "same SUS card reuses the patient")

	events, err := f.outbox.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, model.EventAppointmentCreated, events[0].EventType)
}

func TestCreate_InvalidIntakeStoresNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))

	req := checkupIntake("123456789", false)
	delete(req.Answers, "medication_issue")
	_, err := f.svc.Create(ctx, req)
	require.True(t, apperrors.Is(err, apperrors.ErrValidation))
	appErr, _ := apperrors.As(err)
	assert.Equal(t, []string{"medication_issue"}, appErr.Fields)

	req = checkupIntake("12ab", false)
	_, err = f.svc.Create(ctx, req)
	require.True(t, apperrors.Is(err, apperrors.ErrValidation))

	all, err := f.repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_CapacityExceeded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))

	for i := 0; i < 16; i++ {
		_, err := f.svc.Create(ctx, checkupIntake(susCard(i), false))
		require.NoError(t, err)
	}

	slots, err := f.svc.capacity.AvailableSlots(ctx)
	require.NoError(t, err)
	assert.Zero(t, slots)

	_, err = f.svc.Create(ctx, checkupIntake("999999999", false))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCapacityExceeded))

	all, err := f.repo.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 16)
}

func TestCreate_RollsOverStaleShift(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &model.ShiftConfig{
		CurrentShift:            model.ShiftAfternoon,
		ShiftDate:               "2024-03-09",
		MaxAppointmentsPerShift: 1,
	})
	require.NoError(t, f.repo.Create(ctx, &model.Appointment{
		PatientName: "Ontem",
		ServiceType: model.CategoryCheckup,
		Priority:    model.PriorityBlue,
		Shift:       model.ShiftAfternoon,
		Date:        "2024-03-09",
		Status:      model.StatusCompleted,
	}))

	apt, err := f.svc.Create(ctx, checkupIntake("123456789", false))
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", apt.Date)
	assert.Equal(t, model.ShiftMorning, apt.Shift)

	stored, err := f.configs.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", stored.ShiftDate)
}

func TestCreate_NoShiftConfigFailsClosed(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Create(context.Background(), checkupIntake("123456789", false))
	assert.True(t, apperrors.Is(err, apperrors.ErrCapacityExceeded))
}

func TestCallNextTriage_MostUrgentFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))

	_, err := f.svc.Create(ctx, checkupIntake("111111111", false))
	require.NoError(t, err)
	red, err := f.svc.Create(ctx, respiratoryIntake("222222222"))
	require.NoError(t, err)

	called, err := f.svc.CallNextTriage(ctx, nurse)
	require.NoError(t, err)
	assert.Equal(t, red.ID, called.ID)
	assert.Equal(t, model.StatusInTriage, called.Status)
	require.NotNil(t, called.CalledBy)
	assert.Equal(t, nurse.ID, *called.CalledBy)

	f.announcer.Wait()
	msgs := f.broker.Messages()
	require.Len(t, msgs, 1)
	var ann announcement.Announcement
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &ann))
	assert.Equal(t, "Chamando paciente Paciente 222222222, para a sala Sala de Triagem.", ann.Text)

	current, err := f.svc.CurrentFor(ctx, nurse)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, red.ID, current.ID)
}

func TestCallNextTriage_EmptyQueue(t *testing.T) {
	f := newFixture(t, morningConfig(16))
	_, err := f.svc.CallNextTriage(context.Background(), nurse)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestStartTriage_OneSlotPerNurse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))

	a, err := f.svc.Create(ctx, checkupIntake("111111111", false))
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, checkupIntake("222222222", false))
	require.NoError(t, err)

	_, err = f.svc.StartTriage(ctx, a.ID, nurse)
	require.NoError(t, err)

	_, err = f.svc.StartTriage(ctx, b.ID, nurse)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrecondition))

	_, err = f.svc.StartTriage(ctx, b.ID, nurse2)
	assert.NoError(t, err, "another nurse has a free slot")

	_, err = f.svc.StartTriage(ctx, a.ID, nurse2)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrecondition))
}

func TestCompleteTriage_MissingRoomLeavesRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))

	apt, err := f.svc.Create(ctx, checkupIntake("111111111", false))
	require.NoError(t, err)
	_, err = f.svc.StartTriage(ctx, apt.ID, nurse)
	require.NoError(t, err)

	in := validTriage()
	in.ConsultationRoom = ""
	in.HeartRate = "  "
	_, err = f.svc.CompleteTriage(ctx, apt.ID, nurse, in)
	require.True(t, apperrors.Is(err, apperrors.ErrValidation))
	appErr, _ := apperrors.As(err)
	assert.ElementsMatch(t, []string{"heart_rate", "consultation_room"}, appErr.Fields)

	stored, err := f.repo.Get(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInTriage, stored.Status)
	assert.Nil(t, stored.TriageData)
}

func TestCompleteTriage_OnlyHolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))

	apt, err := f.svc.Create(ctx, checkupIntake("111111111", false))
	require.NoError(t, err)
	_, err = f.svc.StartTriage(ctx, apt.ID, nurse)
	require.NoError(t, err)

	_, err = f.svc.CompleteTriage(ctx, apt.ID, nurse2, validTriage())
	assert.True(t, apperrors.Is(err, apperrors.ErrPrecondition))
}

func TestAbortTriage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))

	apt, err := f.svc.Create(ctx, checkupIntake("111111111", false))
	require.NoError(t, err)
	_, err = f.svc.StartTriage(ctx, apt.ID, nurse)
	require.NoError(t, err)

	aborted, err := f.svc.AbortTriage(ctx, apt.ID, nurse)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingTriage, aborted.Status)
	assert.Nil(t, aborted.TriageData)
	assert.Nil(t, aborted.CalledBy)

	current, err := f.svc.CurrentFor(ctx, nurse)
	require.NoError(t, err)
	assert.Nil(t, current, "slot is free again")
}

func TestAbortTriage_ManagerReleasesSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))
	manager := model.Actor{ID: uuid.New(), Name: "Gestor(a) Oliveira", Role: model.RoleManager}

	apt, err := f.svc.Create(ctx, checkupIntake("111111111", false))
	require.NoError(t, err)
	_, err = f.svc.StartTriage(ctx, apt.ID, nurse)
	require.NoError(t, err)

	_, err = f.svc.AbortTriage(ctx, apt.ID, nurse2)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrecondition))

	released, err := f.svc.AbortTriage(ctx, apt.ID, manager)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingTriage, released.Status)
}

func TestFullLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))

	created, err := f.svc.Create(ctx, respiratoryIntake("111111111"))
	require.NoError(t, err)

	_, err = f.svc.CallNextTriage(ctx, nurse)
	require.NoError(t, err)
	triaged, err := f.svc.CompleteTriage(ctx, created.ID, nurse, validTriage())
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingDoctor, triaged.Status)
	require.NotNil(t, triaged.TriageData)
	assert.Equal(t, nurse.ID, triaged.TriageData.NurseID)
	assert.Equal(t, "Consultório 2", *triaged.ConsultationRoom)
	assert.Nil(t, triaged.CalledBy)

	_, err = f.svc.CallNextConsultation(ctx, doctor)
	require.NoError(t, err)

	_, err = f.svc.CompleteConsultation(ctx, created.ID, doctor, &model.ConsultationInput{})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	aborted, err := f.svc.AbortConsultation(ctx, created.ID, doctor)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingDoctor, aborted.Status)
	assert.NotNil(t, aborted.TriageData, "triage data survives an aborted consultation")

	_, err = f.svc.StartConsultation(ctx, created.ID, doctor)
	require.NoError(t, err)
	done, err := f.svc.CompleteConsultation(ctx, created.ID, doctor, &model.ConsultationInput{
		Diagnosis:    "Crise asmática",
		Prescription: "Salbutamol",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, "Dr(a). Santos", done.ConsultationData.DoctorName)
	assert.Equal(t, created.Priority, done.Priority)
	assert.Equal(t, created.ServiceType, done.ServiceType)
	assert.Equal(t, created.CreatedAt, done.CreatedAt)
	assert.True(t, done.UpdatedAt.After(created.UpdatedAt))

	_, err = f.svc.AbortConsultation(ctx, created.ID, doctor)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrecondition), "completed is terminal")
	_, err = f.svc.StartTriage(ctx, created.ID, nurse)
	assert.True(t, apperrors.Is(err, apperrors.ErrPrecondition))

	f.announcer.Wait()
	rooms := map[string]int{}
	for _, msg := range f.broker.Messages() {
		var ann announcement.Announcement
		require.NoError(t, json.Unmarshal(msg.Payload, &ann))
		rooms[ann.Room]++
	}
	assert.Equal(t, map[string]int{"Sala de Triagem": 1, "Consultório 2": 2}, rooms)
}

func TestTransition_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, morningConfig(16))

	apt, err := f.svc.Create(ctx, checkupIntake("111111111", false))
	require.NoError(t, err)

	stale, err := f.repo.Get(ctx, apt.ID)
	require.NoError(t, err)

	_, err = f.svc.StartTriage(ctx, apt.ID, nurse)
	require.NoError(t, err)

	stale.Status = model.StatusInTriage
	err = f.repo.Update(ctx, stale)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestList_InvalidFilters(t *testing.T) {
	f := newFixture(t, morningConfig(16))
	_, err := f.svc.List(context.Background(), &model.AppointmentFilters{
		Date:     "10/03/2024",
		Shift:    "night",
		Statuses: []model.AppointmentStatus{"lost"},
	})
	require.True(t, apperrors.Is(err, apperrors.ErrValidation))
	appErr, _ := apperrors.As(err)
	assert.Equal(t, []string{"date", "shift", "status"}, appErr.Fields)
}

func susCard(i int) string {
	return fmt.Sprintf("%09d", 100000000+i)
}
