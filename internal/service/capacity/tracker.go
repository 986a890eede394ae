// Package capacity admits or refuses intakes against the per-shift ceiling.
package capacity

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
	"github.com/jwalitptl/triage-api/pkg/metrics"
)

// DeriveShift returns morning before noon and afternoon from noon on, in
// now's own location.
func DeriveShift(now time.Time) model.Shift {
	if now.Hour() < 12 {
		return model.ShiftMorning
	}
	return model.ShiftAfternoon
}

// ReconcileShift returns cfg corrected to the shift that contains now and
// whether anything changed. The ceiling is carried over untouched.
func ReconcileShift(cfg model.ShiftConfig, now time.Time) (model.ShiftConfig, bool) {
	today := now.Format(model.DateLayout)
	shift := DeriveShift(now)
	if cfg.ShiftDate == today && cfg.CurrentShift == shift {
		return cfg, false
	}
	cfg.ShiftDate = today
	cfg.CurrentShift = shift
	return cfg, true
}

// RolloverFunc is told about every persisted rollover.
type RolloverFunc func(ctx context.Context, previous, current model.ShiftConfig)

type Tracker struct {
	configs      repository.ShiftConfigRepository
	appointments repository.AppointmentRepository
	loc          *time.Location
	now          func() time.Time
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	onRollover   []RolloverFunc
}

type Option func(*Tracker)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func OnRollover(fn RolloverFunc) Option {
	return func(t *Tracker) { t.onRollover = append(t.onRollover, fn) }
}

func NewTracker(
	configs repository.ShiftConfigRepository,
	appointments repository.AppointmentRepository,
	loc *time.Location,
	m *metrics.Metrics,
	opts ...Option,
) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	t := &Tracker{
		configs:      configs,
		appointments: appointments,
		loc:          loc,
		now:          time.Now,
		logger:       zerolog.Nop(),
		metrics:      m,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now is the tracker clock in the clinic timezone.
func (t *Tracker) Now() time.Time {
	return t.now().In(t.loc)
}

// Init writes the initial config when none is stored and applies a changed
// ceiling from configuration.
func (t *Tracker) Init(ctx context.Context, ceiling int) error {
	if ceiling <= 0 {
		return fmt.Errorf("shift ceiling must be positive, got %d", ceiling)
	}
	cfg, err := t.configs.Get(ctx)
	if err != nil {
		return err
	}
	if cfg != nil && cfg.MaxAppointmentsPerShift == ceiling {
		return nil
	}
	next := model.ShiftConfig{MaxAppointmentsPerShift: ceiling}
	if cfg != nil {
		next = *cfg
		next.MaxAppointmentsPerShift = ceiling
	}
	next, _ = ReconcileShift(next, t.Now())
	if err := t.configs.Save(ctx, &next); err != nil {
		return err
	}
	t.logger.Info().
		Str("shift", string(next.CurrentShift)).
		Str("date", next.ShiftDate).
		Int("ceiling", ceiling).
		Msg("shift config initialised")
	return nil
}

// Current loads the stored config, rolls it over if the shift has changed
// and returns it. Rollover is the only write.
func (t *Tracker) Current(ctx context.Context) (*model.ShiftConfig, error) {
	stored, err := t.configs.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shift config: %w", err)
	}
	if stored == nil {
		return nil, apperrors.NewNotFound("shift config", nil)
	}

	next, changed := ReconcileShift(*stored, t.Now())
	if !changed {
		return stored, nil
	}
	if err := t.configs.Save(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to persist shift rollover: %w", err)
	}

	t.metrics.ShiftRollovers.Inc()
	t.logger.Info().
		Str("from_shift", string(stored.CurrentShift)).
		Str("from_date", stored.ShiftDate).
		Str("to_shift", string(next.CurrentShift)).
		Str("to_date", next.ShiftDate).
		Msg("shift rolled over")
	for _, fn := range t.onRollover {
		fn(ctx, *stored, next)
	}
	return &next, nil
}

func (t *Tracker) used(ctx context.Context, cfg *model.ShiftConfig) (int, error) {
	n, err := t.appointments.CountByShift(ctx, cfg.ShiftDate, cfg.CurrentShift)
	if err != nil {
		return 0, fmt.Errorf("failed to count shift appointments: %w", err)
	}
	return n, nil
}

// Status reports the current shift usage. A missing config reports a
// closed shift rather than an error.
func (t *Tracker) Status(ctx context.Context) (*model.ShiftStatus, error) {
	cfg, err := t.Current(ctx)
	if apperrors.Is(err, apperrors.ErrNotFound) {
		t.logger.Warn().Msg("no shift config stored; admissions closed")
		return &model.ShiftStatus{}, nil
	}
	if err != nil {
		return nil, err
	}

	used, err := t.used(ctx, cfg)
	if err != nil {
		return nil, err
	}
	available := cfg.MaxAppointmentsPerShift - used
	if available < 0 {
		available = 0
	}
	return &model.ShiftStatus{
		Config:         *cfg,
		ShiftLabel:     cfg.CurrentShift.Label(),
		Used:           used,
		AvailableSlots: available,
		CanAdmit:       available > 0,
	}, nil
}

// CanAdmit is true while the current shift is below its ceiling.
func (t *Tracker) CanAdmit(ctx context.Context) (bool, error) {
	st, err := t.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.CanAdmit, nil
}

func (t *Tracker) AvailableSlots(ctx context.Context) (int, error) {
	st, err := t.Status(ctx)
	if err != nil {
		return 0, err
	}
	return st.AvailableSlots, nil
}
