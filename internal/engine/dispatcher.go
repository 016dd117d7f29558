package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"order-dispatch/internal/models"
)

// dispatch pairs the first k pending orders with the first k idle bots,
// k = min(pending, idle). It derives everything from the current queue and
// pool, so calling it again right away is a no-op. Caller must hold e.mu.
func (e *Engine) dispatch(ctx context.Context) int {
	pending := e.queue.Pending()
	idle := e.pool.Idle()

	k := min(len(pending), len(idle))
	if k == 0 {
		return 0
	}

	ctx, span := tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.Int("pending", len(pending)),
		attribute.Int("idle", len(idle)),
	))
	defer span.End()

	assigned := 0
	for i := 0; i < k; i++ {
		if e.assign(ctx, pending[i], idle[i].ID) {
			assigned++
		}
	}

	span.SetAttributes(attribute.Int("assigned", assigned))
	return assigned
}

// assign pairs one order with one bot. The bot is claimed first and handed
// back if the order cannot move to ASSIGNED, so a failure leaves both
// untouched. Caller must hold e.mu.
func (e *Engine) assign(ctx context.Context, order models.Order, botID models.BotID) bool {
	if err := e.pool.Assign(botID, order.ID); err != nil {
		e.violation(ctx, "dispatch", err)
		return false
	}
	if err := e.queue.MarkAssigned(order.ID); err != nil {
		e.violation(ctx, "dispatch", err)
		if err := e.pool.Release(botID, order.ID); err != nil {
			e.violation(ctx, "dispatch rollback", err)
		}
		return false
	}
	e.startCompletionTimer(botID, order)

	e.logger.DebugContext(ctx, "order assigned",
		slog.Int64("order_id", int64(order.ID)),
		slog.String("class", string(order.Class)),
		slog.Int64("bot_id", int64(botID)))

	ev := e.newEvent(models.EventOrderAssigned)
	ev.OrderID = order.ID
	ev.Class = order.Class
	ev.BotID = botID
	e.handler.Handle(ctx, ev)
	return true
}
