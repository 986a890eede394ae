package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
	apperrors "github.com/jwalitptl/triage-api/pkg/errors"
)

type staffRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*model.Staff
}

func NewStaffRepository() repository.StaffRepository {
	return &staffRepository{items: make(map[uuid.UUID]*model.Staff)}
}

func (r *staffRepository) Create(_ context.Context, staff *model.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.items {
		if s.Username == staff.Username {
			return apperrors.NewConflict("staff")
		}
	}
	stamp(&staff.Base)
	s := *staff
	r.items[s.ID] = &s
	return nil
}

func (r *staffRepository) Get(_ context.Context, id uuid.UUID) (*model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.items[id]
	if !ok {
		return nil, apperrors.NewNotFound("staff", nil)
	}
	out := *s
	return &out, nil
}

func (r *staffRepository) GetByUsername(_ context.Context, username string) (*model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.items {
		if s.Username == username {
			out := *s
			return &out, nil
		}
	}
	return nil, nil
}

func (r *staffRepository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items), nil
}
