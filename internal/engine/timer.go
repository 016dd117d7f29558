package engine

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"order-dispatch/internal/models"
	"order-dispatch/internal/pool"
)

// completionKey binds a timer to the stable identities of its bot and order
type completionKey struct {
	bot   models.BotID
	order models.OrderID
}

// startCompletionTimer schedules the DONE transition for an assignment.
// Caller must hold e.mu.
func (e *Engine) startCompletionTimer(botID models.BotID, order models.Order) {
	key := completionKey{bot: botID, order: order.ID}
	e.timers[key] = e.clock.AfterFunc(ProcessingTime, func() {
		e.complete(key, order.Class)
	})
}

// complete marks the order DONE and frees its bot if the bot still exists
// and still holds the order. A removed bot is not an error.
func (e *Engine) complete(key completionKey, class models.OrderClass) {
	ctx, span := tracer.Start(context.Background(), "complete", trace.WithAttributes(
		attribute.Int64("order_id", int64(key.order)),
		attribute.Int64("bot_id", int64(key.bot)),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	// stopped by Close while this callback waited for the lock
	if _, ok := e.timers[key]; !ok {
		return
	}
	delete(e.timers, key)

	if err := e.queue.MarkDone(key.order); err != nil {
		e.violation(ctx, "complete", err)
		return
	}

	orphaned := false
	if err := e.pool.Release(key.bot, key.order); err != nil {
		if !errors.Is(err, pool.ErrBotNotFound) {
			e.violation(ctx, "complete", err)
		}
		orphaned = true
	}
	span.SetAttributes(attribute.Bool("orphaned", orphaned))

	e.logger.DebugContext(ctx, "order completed",
		slog.Int64("order_id", int64(key.order)),
		slog.String("class", string(class)),
		slog.Int64("bot_id", int64(key.bot)),
		slog.Bool("orphaned", orphaned))

	ev := e.newEvent(models.EventOrderCompleted)
	ev.OrderID = key.order
	ev.Class = class
	ev.BotID = key.bot
	ev.Orphaned = orphaned
	e.handler.Handle(ctx, ev)

	e.dispatch(ctx)
}

// inFlight returns the number of outstanding completion timers
func (e *Engine) inFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}
