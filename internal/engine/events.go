package engine

import (
	"context"

	"order-dispatch/internal/models"
)

// EventHandler receives every transition the engine makes. Handle is called
// while the engine lock is held, so implementations must not block and must
// not call back into the engine.
type EventHandler interface {
	Handle(ctx context.Context, ev models.Event)
}

// EventHandlerFunc adapts a plain function to EventHandler
type EventHandlerFunc func(ctx context.Context, ev models.Event)

func (f EventHandlerFunc) Handle(ctx context.Context, ev models.Event) {
	f(ctx, ev)
}

type emptyEventHandler struct{}

// NewEmptyEventHandler returns a handler that discards every event
func NewEmptyEventHandler() EventHandler {
	return &emptyEventHandler{}
}

func (h *emptyEventHandler) Handle(ctx context.Context, ev models.Event) {
}

type multiEventHandler struct {
	handlers []EventHandler
}

// NewMultiEventHandler forwards each event to every non-nil handler in order
func NewMultiEventHandler(handlers ...EventHandler) EventHandler {
	hs := make([]EventHandler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return &multiEventHandler{handlers: hs}
}

func (h *multiEventHandler) Handle(ctx context.Context, ev models.Event) {
	for _, handler := range h.handlers {
		handler.Handle(ctx, ev)
	}
}
