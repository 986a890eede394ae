// Package dashboard aggregates appointments for the manager views and the
// end-of-shift report.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	"github.com/jwalitptl/triage-api/internal/service/capacity"
	"github.com/jwalitptl/triage-api/internal/triage"
)

const trendDays = 7

type CategoryCount struct {
	ServiceType model.ServiceCategory `json:"service_type"`
	Label       string                `json:"label"`
	Count       int                   `json:"count"`
}

type PriorityCount struct {
	Priority model.Priority `json:"priority"`
	Label    string         `json:"label"`
	Color    string         `json:"color"`
	Count    int            `json:"count"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Summary counts a set of appointments. Category and priority breakdowns
// leave out zero rows.
type Summary struct {
	Total          int             `json:"total"`
	Completed      int             `json:"completed"`
	InProgress     int             `json:"in_progress"`
	Waiting        int             `json:"waiting"`
	AverageMinutes int             `json:"average_minutes"`
	ByServiceType  []CategoryCount `json:"by_service_type"`
	ByPriority     []PriorityCount `json:"by_priority"`
}

type Stats struct {
	Summary
	LastSevenDays []DayCount         `json:"last_seven_days"`
	Shift         *model.ShiftStatus `json:"shift"`
}

// StaleEntry is an appointment held in progress for too long.
type StaleEntry struct {
	*model.Appointment
	HeldMinutes int `json:"held_minutes"`
}

// Summarize is the pure aggregation behind Stats and the shift report.
// The average runs from arrival to consultation completion over completed
// appointments, rounded to whole minutes.
func Summarize(records []*model.Appointment) Summary {
	var (
		sum        Summary
		total      time.Duration
		byCategory = make(map[model.ServiceCategory]int)
		byPriority = make(map[model.Priority]int)
	)
	for _, a := range records {
		sum.Total++
		byCategory[a.ServiceType]++
		byPriority[a.Priority]++

		switch {
		case a.Status == model.StatusCompleted:
			sum.Completed++
			end := a.UpdatedAt
			if a.ConsultationData != nil && !a.ConsultationData.CompletedAt.IsZero() {
				end = a.ConsultationData.CompletedAt
			}
			total += end.Sub(a.CreatedAt)
		case a.Status.InProgress():
			sum.InProgress++
		default:
			sum.Waiting++
		}
	}
	if sum.Completed > 0 {
		sum.AverageMinutes = int((total / time.Duration(sum.Completed)).Round(time.Minute) / time.Minute)
	}

	sum.ByServiceType = make([]CategoryCount, 0, len(byCategory))
	for _, c := range triage.Categories() {
		if n := byCategory[c.ID]; n > 0 {
			sum.ByServiceType = append(sum.ByServiceType, CategoryCount{ServiceType: c.ID, Label: c.Label, Count: n})
		}
	}
	sum.ByPriority = make([]PriorityCount, 0, len(byPriority))
	for _, p := range model.Priorities {
		if n := byPriority[p]; n > 0 {
			sum.ByPriority = append(sum.ByPriority, PriorityCount{Priority: p, Label: p.Label(), Color: p.Color(), Count: n})
		}
	}
	return sum
}

// Trend counts appointments per day for the days ending at today, oldest
// first, including empty days.
func Trend(records []*model.Appointment, today time.Time, days int) []DayCount {
	counts := make(map[string]int, len(records))
	for _, a := range records {
		counts[a.Date]++
	}
	out := make([]DayCount, days)
	for i := 0; i < days; i++ {
		d := today.AddDate(0, 0, i-days+1).Format(model.DateLayout)
		out[i] = DayCount{Date: d, Count: counts[d]}
	}
	return out
}

type Service struct {
	repo       repository.AppointmentRepository
	capacity   *capacity.Tracker
	staleAfter time.Duration
}

func NewService(repo repository.AppointmentRepository, tracker *capacity.Tracker, staleAfter time.Duration) *Service {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &Service{repo: repo, capacity: tracker, staleAfter: staleAfter}
}

// Stats summarizes the appointments matching filters. The seven-day trend
// and the shift usage ignore the filters.
func (s *Service) Stats(ctx context.Context, filters *model.AppointmentFilters) (*Stats, error) {
	records, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}

	today := s.capacity.Now()
	recent, err := s.repo.List(ctx, &model.AppointmentFilters{
		From: today.AddDate(0, 0, 1-trendDays).Format(model.DateLayout),
		To:   today.Format(model.DateLayout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list recent appointments: %w", err)
	}

	shift, err := s.capacity.Status(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Summary:       Summarize(records),
		LastSevenDays: Trend(recent, today, trendDays),
		Shift:         shift,
	}, nil
}

// ShiftSummary summarizes one closed or running shift.
func (s *Service) ShiftSummary(ctx context.Context, date string, shift model.Shift) (Summary, error) {
	records, err := s.repo.List(ctx, &model.AppointmentFilters{Date: date, Shift: shift})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list shift appointments: %w", err)
	}
	return Summarize(records), nil
}

// Stale lists in-progress appointments untouched for longer than the
// configured threshold, longest held first. Nothing is moved; a manager
// decides whether to abort them.
func (s *Service) Stale(ctx context.Context) ([]StaleEntry, error) {
	records, err := s.repo.List(ctx, &model.AppointmentFilters{
		Statuses: []model.AppointmentStatus{model.StatusInTriage, model.StatusInConsultation},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list in-progress appointments: %w", err)
	}

	now := s.capacity.Now()
	out := make([]StaleEntry, 0)
	for _, a := range records {
		held := now.Sub(a.UpdatedAt)
		if held < s.staleAfter {
			continue
		}
		out = append(out, StaleEntry{Appointment: a, HeldMinutes: int(held / time.Minute)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}
