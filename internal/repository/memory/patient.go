package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
)

type patientRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*model.Patient
	byCard map[string]uuid.UUID
}

func NewPatientRepository() repository.PatientRepository {
	return &patientRepository{
		byID:   make(map[uuid.UUID]*model.Patient),
		byCard: make(map[string]uuid.UUID),
	}
}

func (r *patientRepository) Create(_ context.Context, patient *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byCard[patient.SusCard]; exists {
		return apperrors.NewConflict("patient")
	}
	stamp(&patient.Base)
	p := *patient
	r.byID[p.ID] = &p
	r.byCard[p.SusCard] = p.ID
	return nil
}

func (r *patientRepository) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NewNotFound("patient", nil)
	}
	out := *p
	return &out, nil
}

func (r *patientRepository) FindBySusCard(_ context.Context, susCard string) (*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCard[susCard]
	if !ok {
		return nil, nil
	}
	out := *r.byID[id]
	return &out, nil
}
