package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/triage-api/internal/email"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/service/capacity"
	"github.com/jwalitptl/triage-api/internal/service/dashboard"
	"github.com/jwalitptl/triage-api/internal/service/event"
	"github.com/jwalitptl/triage-api/pkg/logger"
	"github.com/jwalitptl/triage-api/pkg/metrics"
)

// ShiftRolledOver is the payload of shift.rolled_over events.
type ShiftRolledOver struct {
	Closed  model.ShiftConfig `json:"closed"`
	Opened  model.ShiftConfig `json:"opened"`
	Summary dashboard.Summary `json:"summary"`
}

// ShiftReportWorker polls the shift config and, when the shift changes,
// mails the closed shift's summary to managers. The last seen shift lives
// in memory, so a shift that closes while the worker is down is not
// reported.
type ShiftReportWorker struct {
	tracker    *capacity.Tracker
	dashboard  *dashboard.Service
	sender     email.Sender
	events     event.Emitter
	recipients []string
	interval   time.Duration
	logger     *logger.Logger
	metrics    *metrics.Metrics

	last *model.ShiftConfig
}

func NewShiftReportWorker(
	tracker *capacity.Tracker,
	dash *dashboard.Service,
	sender email.Sender,
	events event.Emitter,
	recipients []string,
	interval time.Duration,
	log *logger.Logger,
	m *metrics.Metrics,
) *ShiftReportWorker {
	if events == nil {
		events = event.Nop{}
	}
	return &ShiftReportWorker{
		tracker:    tracker,
		dashboard:  dash,
		sender:     sender,
		events:     events,
		recipients: recipients,
		interval:   interval,
		logger:     log.With("shift_report"),
		metrics:    m,
	}
}

func (w *ShiftReportWorker) Start(ctx context.Context) {
	if err := w.Check(ctx); err != nil {
		w.logger.Error(err, "shift check failed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Check(ctx); err != nil {
				w.logger.Error(err, "shift check failed")
			}
		}
	}
}

// Check reads the current shift, rolling it over if due, and reports the
// previous one when it has changed since the last check.
func (w *ShiftReportWorker) Check(ctx context.Context) error {
	current, err := w.tracker.Current(ctx)
	if err != nil {
		return err
	}

	prev := w.last
	cur := *current
	w.last = &cur
	if prev == nil || (prev.ShiftDate == cur.ShiftDate && prev.CurrentShift == cur.CurrentShift) {
		return nil
	}
	return w.report(ctx, *prev, cur)
}

func (w *ShiftReportWorker) report(ctx context.Context, closed, opened model.ShiftConfig) error {
	summary, err := w.dashboard.ShiftSummary(ctx, closed.ShiftDate, closed.CurrentShift)
	if err != nil {
		return err
	}

	if err := w.events.Emit(ctx, model.EventShiftRolledOver, ShiftRolledOver{
		Closed: closed, Opened: opened, Summary: summary,
	}); err != nil {
		w.logger.Error(err, "failed to queue rollover event")
	}

	if w.sender == nil || len(w.recipients) == 0 {
		w.metrics.ShiftReports.WithLabelValues("skipped").Inc()
		return nil
	}

	report := email.ShiftReport{
		Date:    closed.ShiftDate,
		Shift:   closed.CurrentShift,
		Ceiling: closed.MaxAppointmentsPerShift,
		Summary: summary,
	}
	subject, body, err := report.Render()
	if err != nil {
		return err
	}
	if err := w.sender.Send(ctx, w.recipients, subject, body); err != nil {
		w.metrics.ShiftReports.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to mail shift report: %w", err)
	}

	w.metrics.ShiftReports.WithLabelValues("sent").Inc()
	w.logger.Info("shift report sent",
		"date", closed.ShiftDate,
		"shift", string(closed.CurrentShift),
		"total", summary.Total)
	return nil
}
