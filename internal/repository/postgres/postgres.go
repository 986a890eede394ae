package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/triage-api/internal/repository"
)

type appointmentRepository struct {
	BaseRepository
}

type patientRepository struct {
	db *sqlx.DB
}

type shiftConfigRepository struct {
	db *sqlx.DB
}

type staffRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{NewBaseRepository(db)}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func NewShiftConfigRepository(db *sqlx.DB) repository.ShiftConfigRepository {
	return &shiftConfigRepository{db: db}
}

func NewStaffRepository(db *sqlx.DB) repository.StaffRepository {
	return &staffRepository{db: db}
}
