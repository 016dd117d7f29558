package models

// BotID is the stable identity of a bot. IDs are never reused.
type BotID int64

// BotStatus represents the state of a bot
type BotStatus string

const (
	BotIdle BotStatus = "IDLE"
	BotBusy BotStatus = "BUSY"
)

// Bot represents a worker that processes one order at a time
type Bot struct {
	ID      BotID     `json:"id"`
	Status  BotStatus `json:"status"`
	OrderID *OrderID  `json:"order_id,omitempty"`
}

// Snapshot is a read-only view of the engine state
type Snapshot struct {
	RunID    string  `json:"run_id"`
	Pending  []Order `json:"pending"`
	Assigned []Order `json:"assigned"`
	Done     []Order `json:"done"`
	Bots     []Bot   `json:"bots"`
}

// IdleBots counts bots in the IDLE state
func (s Snapshot) IdleBots() int {
	n := 0
	for _, b := range s.Bots {
		if b.Status == BotIdle {
			n++
		}
	}
	return n
}

// BusyBots counts bots in the BUSY state
func (s Snapshot) BusyBots() int {
	return len(s.Bots) - s.IdleBots()
}
