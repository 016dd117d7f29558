package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"order-dispatch/internal/models"
	"order-dispatch/internal/repository"
)

var (
	ErrInvalidClass    = errors.New("invalid order class")
	ErrHistoryDisabled = errors.New("order journal is disabled")
	ErrOrderNotFound   = errors.New("order not found")
	ErrEngineClosed    = errors.New("engine is closed")
)

// DefaultHistoryLimit is used when History is called without a limit
const DefaultHistoryLimit = 100

// OrderEngine is the dispatch engine as seen by the service layer
type OrderEngine interface {
	RunID() string
	Submit(ctx context.Context, class models.OrderClass) models.OrderID
	AddBot(ctx context.Context) models.BotID
	RemoveBot(ctx context.Context) bool
	Snapshot(ctx context.Context) models.Snapshot
	Order(ctx context.Context, id models.OrderID) (models.Order, bool)
	Bot(ctx context.Context, id models.BotID) (models.Bot, bool)
}

// StatsSource reports counters keyed by name
type StatsSource interface {
	GetSnapshot() map[string]int64
}

// DispatchService handles order and bot business logic
type DispatchService struct {
	engine  OrderEngine
	journal repository.JournalRepository
	stats   StatsSource
	logger  *slog.Logger
}

// NewDispatchService creates a new dispatch service. journal may be nil when
// the order journal is disabled.
func NewDispatchService(engine OrderEngine, journal repository.JournalRepository, stats StatsSource, logger *slog.Logger) *DispatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchService{
		engine:  engine,
		journal: journal,
		stats:   stats,
		logger:  logger,
	}
}

// SubmitOrder validates the class name and submits a new order
func (s *DispatchService) SubmitOrder(ctx context.Context, className string) (*models.Order, error) {
	class, ok := models.ParseOrderClass(className)
	if !ok {
		s.logger.WarnContext(ctx, "order rejected", slog.String("class", className))
		return nil, fmt.Errorf("%q: %w", className, ErrInvalidClass)
	}

	id := s.engine.Submit(ctx, class)
	if id == 0 {
		return nil, ErrEngineClosed
	}

	// the order may already have been assigned by the dispatch pass
	order, ok := s.engine.Order(ctx, id)
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	return &order, nil
}

// AddBot adds a bot to the pool
func (s *DispatchService) AddBot(ctx context.Context) (*models.Bot, error) {
	id := s.engine.AddBot(ctx)
	if id == 0 {
		return nil, ErrEngineClosed
	}

	bot, ok := s.engine.Bot(ctx, id)
	if !ok {
		// removed by a concurrent RemoveBot
		return &models.Bot{ID: id, Status: models.BotIdle}, nil
	}
	return &bot, nil
}

// RemoveBot removes the newest bot; false when the pool was empty
func (s *DispatchService) RemoveBot(ctx context.Context) bool {
	return s.engine.RemoveBot(ctx)
}

// Snapshot returns the current engine state
func (s *DispatchService) Snapshot(ctx context.Context) models.Snapshot {
	return s.engine.Snapshot(ctx)
}

// History returns the most recent journal events of the current run
func (s *DispatchService) History(ctx context.Context, limit int) ([]*models.Event, error) {
	if s.journal == nil {
		return nil, ErrHistoryDisabled
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	events, err := s.journal.ListEvents(ctx, s.engine.RunID(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// OrderHistory returns the journal events of one order of the current run
func (s *DispatchService) OrderHistory(ctx context.Context, id models.OrderID) ([]*models.Event, error) {
	if s.journal == nil {
		return nil, ErrHistoryDisabled
	}

	events, err := s.journal.ListOrderEvents(ctx, s.engine.RunID(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to list order events: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrOrderNotFound
	}
	return events, nil
}

// Stats returns metric counters merged with journal event counts
func (s *DispatchService) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)
	if s.stats != nil {
		for k, v := range s.stats.GetSnapshot() {
			stats[k] = v
		}
	}

	if s.journal != nil {
		counts, err := s.journal.CountEventsByType(ctx, s.engine.RunID())
		if err != nil {
			return nil, fmt.Errorf("failed to count events: %w", err)
		}
		for typ, n := range counts {
			stats["journal."+string(typ)] = int64(n)
		}
	}

	return stats, nil
}
