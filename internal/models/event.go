package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a state transition emitted by the engine
type EventType string

const (
	EventOrderSubmitted EventType = "order.submitted"
	EventOrderAssigned  EventType = "order.assigned"
	EventOrderCompleted EventType = "order.completed"
	EventBotAdded       EventType = "bot.added"
	EventBotRemoved     EventType = "bot.removed"
)

// Event records one engine transition.
//
// For EventOrderCompleted, Orphaned is set when the bot that held the order
// was removed before the completion timer fired. For EventBotRemoved,
// OrderID is the order the bot was holding, if any.
type Event struct {
	ID       string     `json:"id"`
	RunID    string     `json:"run_id"`
	Type     EventType  `json:"type"`
	OrderID  OrderID    `json:"order_id,omitempty"`
	Class    OrderClass `json:"class,omitempty"`
	BotID    BotID      `json:"bot_id,omitempty"`
	Orphaned bool       `json:"orphaned,omitempty"`
	At       time.Time  `json:"at"`
}

// NewEvent creates an event with a fresh id
func NewEvent(runID string, typ EventType, at time.Time) Event {
	return Event{
		ID:    uuid.New().String(),
		RunID: runID,
		Type:  typ,
		At:    at,
	}
}
