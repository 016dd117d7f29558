package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"order-dispatch/internal/models"
)

// Scenario is a scripted simulation: bots are added first, then standard
// and priority orders are submitted alternately, one per SubmitInterval.
type Scenario struct {
	Bots           int
	Standard       int
	Priority       int
	SubmitInterval time.Duration
	PollInterval   time.Duration
}

// Orders returns the submission order of the scenario's classes
func (sc Scenario) Orders() []models.OrderClass {
	classes := make([]models.OrderClass, 0, sc.Standard+sc.Priority)
	std, pri := sc.Standard, sc.Priority
	for std > 0 || pri > 0 {
		if std > 0 {
			classes = append(classes, models.ClassStandard)
			std--
		}
		if pri > 0 {
			classes = append(classes, models.ClassPriority)
			pri--
		}
	}
	return classes
}

// SimulationService drives an engine through a scenario
type SimulationService struct {
	engine OrderEngine
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewSimulationService creates a new simulation service
func NewSimulationService(engine OrderEngine, clock clockwork.Clock, logger *slog.Logger) *SimulationService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SimulationService{
		engine: engine,
		clock:  clock,
		logger: logger,
	}
}

// Run executes the scenario and waits until every submitted order is DONE.
// It returns the final snapshot, or the last one seen and the context error
// if ctx ends first.
func (s *SimulationService) Run(ctx context.Context, sc Scenario) (models.Snapshot, error) {
	if sc.PollInterval <= 0 {
		sc.PollInterval = time.Second
	}

	for i := 0; i < sc.Bots; i++ {
		s.engine.AddBot(ctx)
	}
	s.logger.InfoContext(ctx, "simulation started",
		slog.Int("bots", sc.Bots),
		slog.Int("standard", sc.Standard),
		slog.Int("priority", sc.Priority))

	orders := sc.Orders()
	for i, class := range orders {
		if i > 0 && sc.SubmitInterval > 0 {
			if err := s.sleep(ctx, sc.SubmitInterval); err != nil {
				return s.engine.Snapshot(ctx), err
			}
		}
		s.engine.Submit(ctx, class)
	}

	lastDone := -1
	for {
		snap := s.engine.Snapshot(ctx)
		if len(snap.Done) != lastDone {
			lastDone = len(snap.Done)
			s.logger.InfoContext(ctx, "simulation progress",
				slog.Int("pending", len(snap.Pending)),
				slog.Int("assigned", len(snap.Assigned)),
				slog.Int("done", len(snap.Done)))
		}

		if len(snap.Pending) == 0 && len(snap.Assigned) == 0 {
			s.logger.InfoContext(ctx, "simulation finished", slog.Int("done", len(snap.Done)))
			return snap, nil
		}

		if err := s.sleep(ctx, sc.PollInterval); err != nil {
			return snap, err
		}
	}
}

func (s *SimulationService) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}
