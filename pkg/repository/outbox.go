package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/triage-api/internal/model"
)

// OutboxReader is the part of the outbox store pkg/worker needs.
type OutboxReader interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
}
