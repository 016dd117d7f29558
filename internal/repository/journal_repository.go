package repository

import (
	"context"
	"order-dispatch/internal/models"
)

// JournalRepository defines the interface for the order event journal.
// The journal is an audit trail only; the engine never reads it back.
type JournalRepository interface {
	AppendEvent(ctx context.Context, ev *models.Event) error
	ListEvents(ctx context.Context, runID string, limit int) ([]*models.Event, error)
	ListOrderEvents(ctx context.Context, runID string, orderID models.OrderID) ([]*models.Event, error)
	CountEventsByType(ctx context.Context, runID string) (map[models.EventType]int, error)
}
