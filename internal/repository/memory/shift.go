package memory

import (
	"context"
	"sync"

	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/repository"
)

type shiftConfigRepository struct {
	mu  sync.RWMutex
	cfg *model.ShiftConfig
}

// NewShiftConfigRepository starts with initial, which may be nil.
func NewShiftConfigRepository(initial *model.ShiftConfig) repository.ShiftConfigRepository {
	r := &shiftConfigRepository{}
	if initial != nil {
		c := *initial
		r.cfg = &c
	}
	return r
}

func (r *shiftConfigRepository) Get(_ context.Context) (*model.ShiftConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.cfg == nil {
		return nil, nil
	}
	c := *r.cfg
	return &c, nil
}

func (r *shiftConfigRepository) Save(_ context.Context, cfg *model.ShiftConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *cfg
	r.cfg = &c
	return nil
}
