package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jwalitptl/triage-api/internal/model"
)

// shift_config holds a single row keyed by id = 1.

func (r *shiftConfigRepository) Get(ctx context.Context) (*model.ShiftConfig, error) {
	query := `
		SELECT current_shift, shift_date, max_appointments_per_shift
		FROM shift_config
		WHERE id = 1
	`
	var cfg model.ShiftConfig
	err := r.db.GetContext(ctx, &cfg, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift config: %w", err)
	}
	return &cfg, nil
}

func (r *shiftConfigRepository) Save(ctx context.Context, cfg *model.ShiftConfig) error {
	query := `
		INSERT INTO shift_config (id, current_shift, shift_date, max_appointments_per_shift, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET current_shift = EXCLUDED.current_shift,
			shift_date = EXCLUDED.shift_date,
			max_appointments_per_shift = EXCLUDED.max_appointments_per_shift,
			updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, cfg.CurrentShift, cfg.ShiftDate, cfg.MaxAppointmentsPerShift); err != nil {
		return fmt.Errorf("failed to save shift config: %w", err)
	}
	return nil
}
