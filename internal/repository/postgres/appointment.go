package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/triage-api/internal/model"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
)

const appointmentColumns = `id, patient_id, patient_name, sus_card, service_type, priority,
	answers, shift, shift_date, queue_position, status, triage_data,
	consultation_room, consultation_data, called_by, version,
	created_at, updated_at`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	return insertAppointment(ctx, r.db, appointment)
}

// CreateWithinCeiling serialises intakes for one shift on a transaction
// scoped advisory lock, so the count it reads is still true at insert time.
func (r *appointmentRepository) CreateWithinCeiling(ctx context.Context, appointment *model.Appointment, ceiling int) error {
	lockKey := appointment.Date + ":" + string(appointment.Shift)

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return fmt.Errorf("failed to lock shift: %w", err)
		}

		var counts struct {
			Used    int `db:"used"`
			Waiting int `db:"waiting"`
		}
		query := `
			SELECT COUNT(*) AS used,
				COUNT(*) FILTER (WHERE status = $3) AS waiting
			FROM appointments
			WHERE shift_date = $1 AND shift = $2
		`
		if err := tx.GetContext(ctx, &counts, query, appointment.Date, appointment.Shift, model.StatusWaitingTriage); err != nil {
			return fmt.Errorf("failed to count appointments: %w", err)
		}
		if counts.Used >= ceiling {
			return apperrors.NewCapacityExceeded(ceiling)
		}

		appointment.QueuePosition = counts.Waiting + 1
		return insertAppointment(ctx, tx, appointment)
	})
}

func insertAppointment(ctx context.Context, db sqlx.ExecerContext, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = time.Now()
	}
	if appointment.UpdatedAt.IsZero() {
		appointment.UpdatedAt = appointment.CreatedAt
	}
	appointment.Version = 1

	_, err := db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		appointment.PatientName,
		appointment.SusCard,
		appointment.ServiceType,
		appointment.Priority,
		appointment.Answers,
		appointment.Shift,
		appointment.Date,
		appointment.QueuePosition,
		appointment.Status,
		appointment.TriageData,
		appointment.ConsultationRoom,
		appointment.ConsultationData,
		appointment.CalledBy,
		appointment.Version,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// Update is a compare-and-swap on the version column. When nothing matched,
// a follow-up lookup inside the same transaction tells a missing row apart
// from a stale version. idx_appointments_staff_slot rejects a second
// in-progress record for the same staff member.
func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET status = $1, triage_data = $2, consultation_room = $3,
			consultation_data = $4, called_by = $5, updated_at = $6,
			version = version + 1
		WHERE id = $7 AND version = $8
	`
	if appointment.UpdatedAt.IsZero() {
		appointment.UpdatedAt = time.Now()
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			appointment.Status,
			appointment.TriageData,
			appointment.ConsultationRoom,
			appointment.ConsultationData,
			appointment.CalledBy,
			appointment.UpdatedAt,
			appointment.ID,
			appointment.Version,
		)
		if isUniqueViolation(err) {
			return apperrors.NewPrecondition("staff member already has an appointment in progress")
		}
		if err != nil {
			return fmt.Errorf("failed to update appointment: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 1 {
			appointment.Version++
			return nil
		}

		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, appointment.ID); err != nil {
			return fmt.Errorf("failed to check appointment: %w", err)
		}
		if !exists {
			return apperrors.NewNotFound("appointment", nil)
		}
		return apperrors.NewConflict("appointment")
	})
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE 1=1`
	var args []interface{}
	argCount := 1

	if filters != nil {
		if filters.Date != "" {
			query += fmt.Sprintf(" AND shift_date = $%d", argCount)
			args = append(args, filters.Date)
			argCount++
		} else {
			if filters.From != "" {
				query += fmt.Sprintf(" AND shift_date >= $%d", argCount)
				args = append(args, filters.From)
				argCount++
			}
			if filters.To != "" {
				query += fmt.Sprintf(" AND shift_date <= $%d", argCount)
				args = append(args, filters.To)
				argCount++
			}
		}

		if filters.Shift != "" {
			query += fmt.Sprintf(" AND shift = $%d", argCount)
			args = append(args, filters.Shift)
			argCount++
		}

		if len(filters.Statuses) > 0 {
			query += fmt.Sprintf(" AND status = ANY($%d)", argCount)
			args = append(args, pq.StringArray(statusStrings(filters.Statuses)))
		}
	}

	query += " ORDER BY created_at, queue_position, id"

	appointments := []*model.Appointment{}
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) CountByShift(ctx context.Context, date string, shift model.Shift, statuses ...model.AppointmentStatus) (int, error) {
	query := `SELECT COUNT(*) FROM appointments WHERE shift_date = $1 AND shift = $2`
	args := []interface{}{date, shift}
	if len(statuses) > 0 {
		query += " AND status = ANY($3)"
		args = append(args, pq.StringArray(statusStrings(statuses)))
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}

func (r *appointmentRepository) FindInProgress(ctx context.Context, staffID uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE called_by = $1 AND status = $2
		ORDER BY updated_at DESC
		LIMIT 1`

	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, staffID, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find in-progress appointment: %w", err)
	}
	return &appointment, nil
}

func statusStrings(statuses []model.AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

