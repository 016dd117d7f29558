package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"order-dispatch/internal/models"
	"order-dispatch/internal/pool"
	"order-dispatch/internal/queue"
)

// ProcessingTime is how long a bot works on one order
const ProcessingTime = 10 * time.Second

var tracer = otel.Tracer("order-dispatch/internal/engine")

// Options configures an Engine. Zero values fall back to a real clock, the
// default slog logger, no event handler and a random run id.
type Options struct {
	Clock        clockwork.Clock
	Logger       *slog.Logger
	EventHandler EventHandler
	// StrictInvariants panics on internal invariant violations instead of
	// logging them. Meant for development and tests.
	StrictInvariants bool
	RunID            string
}

// Engine owns the order queue and the bot pool. Every mutation runs to
// completion under one lock and is followed by a dispatch pass.
type Engine struct {
	mu      sync.Mutex
	runID   string
	clock   clockwork.Clock
	logger  *slog.Logger
	handler EventHandler
	strict  bool

	queue  *queue.OrderQueue
	pool   *pool.BotPool
	timers map[completionKey]clockwork.Timer
	closed bool
}

// New creates an engine with an empty queue and pool
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.EventHandler == nil {
		opts.EventHandler = NewEmptyEventHandler()
	}
	if opts.RunID == "" {
		opts.RunID = uuid.New().String()
	}

	return &Engine{
		runID:   opts.RunID,
		clock:   opts.Clock,
		logger:  opts.Logger.With(slog.String("run_id", opts.RunID)),
		handler: opts.EventHandler,
		strict:  opts.StrictInvariants,
		queue:   queue.NewOrderQueue(),
		pool:    pool.NewBotPool(),
		timers:  make(map[completionKey]clockwork.Timer),
	}
}

// RunID identifies this engine instance
func (e *Engine) RunID() string {
	return e.runID
}

func (e *Engine) SubmitStandardOrder(ctx context.Context) models.OrderID {
	return e.Submit(ctx, models.ClassStandard)
}

func (e *Engine) SubmitPriorityOrder(ctx context.Context) models.OrderID {
	return e.Submit(ctx, models.ClassPriority)
}

// Submit queues a new order and dispatches. It returns 0 once the engine is
// closed.
func (e *Engine) Submit(ctx context.Context, class models.OrderClass) models.OrderID {
	ctx, span := tracer.Start(ctx, "Submit", trace.WithAttributes(attribute.String("class", string(class))))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0
	}

	id := e.queue.Submit(class)
	span.SetAttributes(attribute.Int64("order_id", int64(id)))
	e.logger.DebugContext(ctx, "order submitted", slog.Int64("order_id", int64(id)), slog.String("class", string(class)))

	ev := e.newEvent(models.EventOrderSubmitted)
	ev.OrderID = id
	ev.Class = class
	e.handler.Handle(ctx, ev)

	e.dispatch(ctx)
	return id
}

// AddBot creates an idle bot and dispatches. It returns 0 once the engine is
// closed.
func (e *Engine) AddBot(ctx context.Context) models.BotID {
	ctx, span := tracer.Start(ctx, "AddBot")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0
	}

	id := e.pool.Add()
	span.SetAttributes(attribute.Int64("bot_id", int64(id)))
	e.logger.DebugContext(ctx, "bot added", slog.Int64("bot_id", int64(id)))

	ev := e.newEvent(models.EventBotAdded)
	ev.BotID = id
	e.handler.Handle(ctx, ev)

	e.dispatch(ctx)
	return id
}

// RemoveBot removes the most recently added bot, even mid-order. The order it
// held stays ASSIGNED and is completed by its timer without a bot. RemoveBot
// reports false when there is nothing to remove.
func (e *Engine) RemoveBot(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "RemoveBot")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}

	bot, ok := e.pool.Remove()
	if !ok {
		e.logger.DebugContext(ctx, "remove bot on empty pool")
		return false
	}
	span.SetAttributes(attribute.Int64("bot_id", int64(bot.ID)))

	ev := e.newEvent(models.EventBotRemoved)
	ev.BotID = bot.ID
	if bot.OrderID != nil {
		ev.OrderID = *bot.OrderID
		ev.Orphaned = true
		e.logger.InfoContext(ctx, "busy bot removed, order keeps running without it",
			slog.Int64("bot_id", int64(bot.ID)), slog.Int64("order_id", int64(*bot.OrderID)))
	} else {
		e.logger.DebugContext(ctx, "bot removed", slog.Int64("bot_id", int64(bot.ID)))
	}
	e.handler.Handle(ctx, ev)

	e.dispatch(ctx)
	return true
}

// Snapshot returns the current state for rendering
func (e *Engine) Snapshot(ctx context.Context) models.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return models.Snapshot{
		RunID:    e.runID,
		Pending:  e.queue.Pending(),
		Assigned: e.queue.ByStatus(models.StatusAssigned),
		Done:     e.queue.ByStatus(models.StatusDone),
		Bots:     e.pool.All(),
	}
}

// Order returns the current state of one order
func (e *Engine) Order(ctx context.Context, id models.OrderID) (models.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.queue.Get(id)
}

// Bot returns the current state of one live bot
func (e *Engine) Bot(ctx context.Context, id models.BotID) (models.Bot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.pool.Get(id)
}

// Close stops every outstanding completion timer. Orders in flight stay
// ASSIGNED and later calls are no-ops.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	for key, timer := range e.timers {
		timer.Stop()
		delete(e.timers, key)
	}
	e.logger.Info("engine closed")
}

func (e *Engine) newEvent(typ models.EventType) models.Event {
	return models.NewEvent(e.runID, typ, e.clock.Now())
}

// violation handles a broken internal invariant. Caller must hold e.mu.
func (e *Engine) violation(ctx context.Context, op string, err error) {
	if e.strict {
		panic(fmt.Sprintf("engine invariant violated in %s: %v", op, err))
	}
	e.logger.ErrorContext(ctx, "engine invariant violated", slog.String("op", op), slog.Any("err", err))
}
