package pool

import (
	"errors"
	"fmt"

	"order-dispatch/internal/models"
)

var (
	ErrBotNotFound   = errors.New("bot not found")
	ErrBotBusy       = errors.New("bot is busy")
	ErrBotNotHolding = errors.New("bot does not hold order")
)

// BotPool holds bots in creation order. Bot ids come from a counter that
// only moves forward, so an id never refers to two different bots.
//
// BotPool is not safe for concurrent use; the engine serializes access.
type BotPool struct {
	nextID models.BotID
	bots   []*models.Bot
}

// NewBotPool creates an empty pool whose first bot id is 1
func NewBotPool() *BotPool {
	return &BotPool{nextID: 1}
}

// Add creates one IDLE bot
func (p *BotPool) Add() models.BotID {
	bot := &models.Bot{ID: p.nextID, Status: models.BotIdle}
	p.nextID++
	p.bots = append(p.bots, bot)
	return bot.ID
}

// Remove drops the most recently added bot whatever its status. It returns
// the removed bot, or false if the pool is empty.
func (p *BotPool) Remove() (models.Bot, bool) {
	if len(p.bots) == 0 {
		return models.Bot{}, false
	}
	last := p.bots[len(p.bots)-1]
	p.bots[len(p.bots)-1] = nil
	p.bots = p.bots[:len(p.bots)-1]
	return copyBot(last), true
}

// Idle returns IDLE bots in creation order
func (p *BotPool) Idle() []models.Bot {
	result := make([]models.Bot, 0, len(p.bots))
	for _, b := range p.bots {
		if b.Status == models.BotIdle {
			result = append(result, copyBot(b))
		}
	}
	return result
}

// All returns every bot in creation order
func (p *BotPool) All() []models.Bot {
	result := make([]models.Bot, 0, len(p.bots))
	for _, b := range p.bots {
		result = append(result, copyBot(b))
	}
	return result
}

// Get returns a copy of the bot with the given id
func (p *BotPool) Get(id models.BotID) (models.Bot, bool) {
	bot := p.find(id)
	if bot == nil {
		return models.Bot{}, false
	}
	return copyBot(bot), true
}

// Assign hands an order to an IDLE bot
func (p *BotPool) Assign(botID models.BotID, orderID models.OrderID) error {
	bot := p.find(botID)
	if bot == nil {
		return fmt.Errorf("bot %d: %w", botID, ErrBotNotFound)
	}
	if bot.Status != models.BotIdle {
		return fmt.Errorf("bot %d, order %d: %w", botID, orderID, ErrBotBusy)
	}
	id := orderID
	bot.Status = models.BotBusy
	bot.OrderID = &id
	return nil
}

// Release frees a bot, but only if it is still live and still holds the given
// order.
func (p *BotPool) Release(botID models.BotID, orderID models.OrderID) error {
	bot := p.find(botID)
	if bot == nil {
		return fmt.Errorf("bot %d: %w", botID, ErrBotNotFound)
	}
	if bot.Status != models.BotBusy || bot.OrderID == nil || *bot.OrderID != orderID {
		return fmt.Errorf("bot %d, order %d: %w", botID, orderID, ErrBotNotHolding)
	}
	bot.Status = models.BotIdle
	bot.OrderID = nil
	return nil
}

func (p *BotPool) find(id models.BotID) *models.Bot {
	// bots are appended with increasing ids, so search from the newest end
	for i := len(p.bots) - 1; i >= 0; i-- {
		if p.bots[i].ID == id {
			return p.bots[i]
		}
	}
	return nil
}

func copyBot(b *models.Bot) models.Bot {
	c := *b
	if b.OrderID != nil {
		id := *b.OrderID
		c.OrderID = &id
	}
	return c
}
