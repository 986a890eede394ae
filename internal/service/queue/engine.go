// Package queue projects the appointment set into the triage and doctor
// queues. Order is recomputed on every read.
package queue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	"github.com/jwalitptl/triage-api/pkg/metrics"
)

const displayCacheKey = "display"

// Order keeps the records in the given status, most urgent first and by
// arrival within a priority. The input slice is not modified.
func Order(records []*model.Appointment, status model.AppointmentStatus) []*model.Appointment {
	out := make([]*model.Appointment, 0, len(records))
	for _, r := range records {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Entry is one line on the public display.
type Entry struct {
	ID               uuid.UUID             `json:"id"`
	Position         int                   `json:"position"`
	PatientName      string                `json:"patient_name"`
	Priority         model.Priority        `json:"priority"`
	PriorityLabel    string                `json:"priority_label"`
	PriorityColor    string                `json:"priority_color"`
	ServiceType      model.ServiceCategory `json:"service_type"`
	ServiceLabel     string                `json:"service_label"`
	ConsultationRoom string                `json:"consultation_room,omitempty"`
	WaitingSince     time.Time             `json:"waiting_since"`
}

// Snapshot is what the waiting-room screen renders.
type Snapshot struct {
	Triage         []Entry   `json:"triage"`
	Doctor         []Entry   `json:"doctor"`
	InTriage       []Entry   `json:"in_triage"`
	InConsultation []Entry   `json:"in_consultation"`
	GeneratedAt    time.Time `json:"generated_at"`
}

type Engine struct {
	repo    repository.AppointmentRepository
	metrics *metrics.Metrics
	cache   *gocache.Cache
}

// NewEngine builds an engine. displayTTL bounds how stale the public
// snapshot may be; staff queues are never cached.
func NewEngine(repo repository.AppointmentRepository, m *metrics.Metrics, displayTTL time.Duration) *Engine {
	var c *gocache.Cache
	if displayTTL > 0 {
		c = gocache.New(displayTTL, 2*displayTTL)
	}
	return &Engine{repo: repo, metrics: m, cache: c}
}

func (e *Engine) load(ctx context.Context, statuses ...model.AppointmentStatus) ([]*model.Appointment, error) {
	records, err := e.repo.List(ctx, &model.AppointmentFilters{Statuses: statuses})
	if err != nil {
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}
	return records, nil
}

func (e *Engine) queue(ctx context.Context, status model.AppointmentStatus, name string) ([]*model.Appointment, error) {
	records, err := e.load(ctx, status)
	if err != nil {
		return nil, err
	}
	ordered := Order(records, status)
	e.metrics.QueueLength.WithLabelValues(name).Set(float64(len(ordered)))
	return ordered, nil
}

func (e *Engine) TriageQueue(ctx context.Context) ([]*model.Appointment, error) {
	return e.queue(ctx, model.StatusWaitingTriage, "triage")
}

func (e *Engine) DoctorQueue(ctx context.Context) ([]*model.Appointment, error) {
	return e.queue(ctx, model.StatusWaitingDoctor, "doctor")
}

// Head returns the next appointment in the queue for status, or nil.
func (e *Engine) Head(ctx context.Context, status model.AppointmentStatus) (*model.Appointment, error) {
	var (
		q   []*model.Appointment
		err error
	)
	switch status {
	case model.StatusWaitingTriage:
		q, err = e.TriageQueue(ctx)
	case model.StatusWaitingDoctor:
		q, err = e.DoctorQueue(ctx)
	default:
		return nil, fmt.Errorf("no queue for status %q", status)
	}
	if err != nil || len(q) == 0 {
		return nil, err
	}
	return q[0], nil
}

// Display returns the public snapshot, served from a short-lived cache.
func (e *Engine) Display(ctx context.Context) (*Snapshot, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(displayCacheKey); ok {
			e.metrics.DisplayCache.WithLabelValues("hit").Inc()
			return v.(*Snapshot), nil
		}
		e.metrics.DisplayCache.WithLabelValues("miss").Inc()
	}

	records, err := e.load(ctx,
		model.StatusWaitingTriage,
		model.StatusInTriage,
		model.StatusWaitingDoctor,
		model.StatusInConsultation,
	)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Triage:         entries(Order(records, model.StatusWaitingTriage)),
		Doctor:         entries(Order(records, model.StatusWaitingDoctor)),
		InTriage:       entries(Order(records, model.StatusInTriage)),
		InConsultation: entries(Order(records, model.StatusInConsultation)),
		GeneratedAt:    time.Now(),
	}
	e.metrics.QueueLength.WithLabelValues("triage").Set(float64(len(snap.Triage)))
	e.metrics.QueueLength.WithLabelValues("doctor").Set(float64(len(snap.Doctor)))

	if e.cache != nil {
		e.cache.SetDefault(displayCacheKey, snap)
	}
	return snap, nil
}

// Invalidate drops the cached display snapshot after a transition.
func (e *Engine) Invalidate() {
	if e.cache != nil {
		e.cache.Delete(displayCacheKey)
	}
}

func entries(records []*model.Appointment) []Entry {
	out := make([]Entry, 0, len(records))
	for i, r := range records {
		entry := Entry{
			ID:            r.ID,
			Position:      i + 1,
			PatientName:   r.PatientName,
			Priority:      r.Priority,
			PriorityLabel: r.Priority.Label(),
			PriorityColor: r.Priority.Color(),
			ServiceType:   r.ServiceType,
			ServiceLabel:  r.ServiceType.Label(),
			WaitingSince:  r.UpdatedAt,
		}
		if r.ConsultationRoom != nil {
			entry.ConsultationRoom = *r.ConsultationRoom
		}
		out = append(out, entry)
	}
	return out
}
