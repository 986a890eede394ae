package event

import (
	"context"
)

// Emitter records domain events for later publication by the worker.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, string, interface{}) error { return nil }
