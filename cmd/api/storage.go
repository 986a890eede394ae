package main

import (
	"github.com/jwalitptl/triage-api/internal/config"
	"github.com/jwalitptl/triage-api/internal/handler/health"
	"github.com/jwalitptl/triage-api/internal/repository"
	"github.com/jwalitptl/triage-api/internal/repository/memory"
	"github.com/jwalitptl/triage-api/internal/repository/postgres"
)

type stores struct {
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	configs      repository.ShiftConfigRepository
	staff        repository.StaffRepository
	outbox       repository.OutboxRepository
	checks       map[string]health.Checker
	close        func() error
}

// openStores builds the repositories for the configured driver. The memory
// driver keeps everything in process and loses it on restart.
func openStores(cfg *config.Config) (*stores, error) {
	if cfg.Storage.Driver == "memory" {
		return &stores{
			appointments: memory.NewAppointmentRepository(),
			patients:     memory.NewPatientRepository(),
			configs:      memory.NewShiftConfigRepository(nil),
			staff:        memory.NewStaffRepository(),
			outbox:       memory.NewOutboxRepository(),
			checks:       map[string]health.Checker{},
			close:        func() error { return nil },
		}, nil
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	return &stores{
		appointments: postgres.NewAppointmentRepository(db),
		patients:     postgres.NewPatientRepository(db),
		configs:      postgres.NewShiftConfigRepository(db),
		staff:        postgres.NewStaffRepository(db),
		outbox:       postgres.NewOutboxRepository(db),
		checks:       map[string]health.Checker{"postgres": health.CheckFunc(db.PingContext)},
		close:        db.Close,
	}, nil
}
