package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/triage-api/internal/model"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

var appointmentCols = []string{
	"id", "patient_id", "patient_name", "sus_card", "service_type", "priority",
	"answers", "shift", "shift_date", "queue_position", "status", "triage_data",
	"consultation_room", "consultation_data", "called_by", "version",
	"created_at", "updated_at",
}

func TestAppointmentRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectExec("INSERT INTO appointments").
		WillReturnResult(sqlmock.NewResult(1, 1))

	a := &model.Appointment{
		PatientID:   uuid.New(),
		PatientName: "Ana",
		SusCard:     "700000000000001",
		ServiceType: model.CategoryHeadache,
		Priority:    model.PriorityYellow,
		Answers:     model.Answers{"sudden_onset": true},
		Shift:       model.ShiftMorning,
		Date:        "2024-03-10",
		Status:      model.StatusWaitingTriage,
	}
	require.NoError(t, repo.Create(context.Background(), a))
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, 1, a.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_CreateWithinCeiling(t *testing.T) {
	newIntake := func() *model.Appointment {
		return &model.Appointment{
			PatientID:   uuid.New(),
			PatientName: "Ana",
			SusCard:     "700000000000001",
			ServiceType: model.CategoryFever,
			Priority:    model.PriorityGreen,
			Shift:       model.ShiftMorning,
			Date:        "2024-03-10",
			Status:      model.StatusWaitingTriage,
		}
	}

	t.Run("below ceiling", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAppointmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs("2024-03-10:morning").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("(?s)SELECT COUNT.+FILTER").
			WithArgs("2024-03-10", "morning", "waiting_triage").
			WillReturnRows(sqlmock.NewRows([]string{"used", "waiting"}).AddRow(4, 2))
		mock.ExpectExec("INSERT INTO appointments").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		a := newIntake()
		require.NoError(t, repo.CreateWithinCeiling(context.Background(), a, 5))
		assert.Equal(t, 3, a.QueuePosition)
		assert.Equal(t, 1, a.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("at ceiling", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAppointmentRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("(?s)SELECT COUNT.+FILTER").
			WillReturnRows(sqlmock.NewRows([]string{"used", "waiting"}).AddRow(5, 5))
		mock.ExpectRollback()

		err := repo.CreateWithinCeiling(context.Background(), newIntake(), 5)
		assert.True(t, apperrors.Is(err, apperrors.ErrCapacityExceeded), "got %v", err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAppointmentRepository_ListOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery("(?s)FROM appointments WHERE 1=1 AND shift_date = \\$1 ORDER BY created_at, queue_position, id$").
		WithArgs("2024-03-10").
		WillReturnRows(sqlmock.NewRows(appointmentCols))

	list, err := repo.List(context.Background(), &model.AppointmentFilters{Date: "2024-03-10"})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)
	id := uuid.New()
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery("(?s)SELECT .+FROM appointments WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(appointmentCols).AddRow(
			id.String(), uuid.New().String(), "Ana", "700000000000001", "fever", "orange",
			[]byte(`{"high_fever":true}`), "morning", "2024-03-10", 3, "waiting_triage", nil,
			nil, nil, nil, 1,
			now, now,
		))

	a, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)
	assert.Equal(t, model.PriorityOrange, a.Priority)
	assert.Equal(t, model.ShiftMorning, a.Shift)
	assert.Equal(t, true, a.Answers["high_fever"])
	assert.Nil(t, a.TriageData)
	assert.Nil(t, a.CalledBy)
	assert.Equal(t, 3, a.QueuePosition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery("(?s)SELECT .+FROM appointments WHERE id").
		WillReturnRows(sqlmock.NewRows(appointmentCols))

	_, err := repo.Get(context.Background(), uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_Update(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		code    apperrors.ErrorCode
		version int
	}{
		{
			name: "version matches",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			version: 3,
		},
		{
			name: "stale version",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT EXISTS").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
				mock.ExpectRollback()
			},
			code:    apperrors.ErrConflict,
			version: 2,
		},
		{
			name: "missing row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE appointments").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT EXISTS").
					WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
				mock.ExpectRollback()
			},
			code:    apperrors.ErrNotFound,
			version: 2,
		},
		{
			name: "staff slot taken",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE appointments").
					WillReturnError(&pq.Error{Code: uniqueViolation, Constraint: "idx_appointments_staff_slot"})
				mock.ExpectRollback()
			},
			code:    apperrors.ErrPrecondition,
			version: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewAppointmentRepository(db)
			tt.setup(mock)

			a := &model.Appointment{Status: model.StatusInTriage, Version: 2}
			a.ID = uuid.New()
			err := repo.Update(context.Background(), a)
			if tt.code != 0 {
				assert.True(t, apperrors.Is(err, tt.code), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.version, a.Version)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAppointmentRepository_CountByShift(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("2024-03-10", "afternoon").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(16))

	n, err := repo.CountByShift(context.Background(), "2024-03-10", model.ShiftAfternoon)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_FindInProgressEmpty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery("(?s)SELECT .+FROM appointments\\s+WHERE called_by").
		WillReturnRows(sqlmock.NewRows(appointmentCols))

	a, err := repo.FindInProgress(context.Background(), uuid.New(), model.StatusInTriage)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestShiftConfigRepository_GetMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewShiftConfigRepository(db)

	mock.ExpectQuery("FROM shift_config").
		WillReturnRows(sqlmock.NewRows([]string{"current_shift", "shift_date", "max_appointments_per_shift"}))

	cfg, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.NoError(t, mock.ExpectationsWereMet())
}
