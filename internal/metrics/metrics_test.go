package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"order-dispatch/internal/models"
)

func event(typ models.EventType, mutate ...func(*models.Event)) models.Event {
	ev := models.NewEvent("run", typ, time.Now())
	for _, f := range mutate {
		f(&ev)
	}
	return ev
}

func withClass(c models.OrderClass) func(*models.Event) {
	return func(ev *models.Event) { ev.Class = c }
}

func orphaned(ev *models.Event) { ev.Orphaned = true }

func TestMetrics_OrderLifecycle(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	m.Handle(ctx, event(models.EventBotAdded))
	m.Handle(ctx, event(models.EventOrderSubmitted, withClass(models.ClassPriority)))
	m.Handle(ctx, event(models.EventOrderSubmitted, withClass(models.ClassStandard)))
	m.Handle(ctx, event(models.EventOrderAssigned, withClass(models.ClassPriority)))

	snapshot := m.GetSnapshot()
	assert.Equal(t, int64(2), snapshot["submitted_orders"])
	assert.Equal(t, int64(1), snapshot["pending_orders"])
	assert.Equal(t, int64(1), snapshot["assigned_orders"])
	assert.Equal(t, int64(0), snapshot["idle_bots"])
	assert.Equal(t, int64(1), snapshot["busy_bots"])

	m.Handle(ctx, event(models.EventOrderCompleted, withClass(models.ClassPriority)))

	snapshot = m.GetSnapshot()
	assert.Equal(t, int64(1), snapshot["completed_orders"])
	assert.Equal(t, int64(0), snapshot["assigned_orders"])
	assert.Equal(t, int64(1), snapshot["idle_bots"])
	assert.Equal(t, int64(0), snapshot["busy_bots"])

	assert.Equal(t, float64(1), testutil.ToFloat64(m.submittedCounter.WithLabelValues("PRIORITY")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.submittedCounter.WithLabelValues("STANDARD")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.completedCounter.WithLabelValues("PRIORITY")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ordersGauge.WithLabelValues("PENDING")))
}

func TestMetrics_OrphanedCompletion(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	m.Handle(ctx, event(models.EventBotAdded))
	m.Handle(ctx, event(models.EventOrderSubmitted, withClass(models.ClassStandard)))
	m.Handle(ctx, event(models.EventOrderAssigned, withClass(models.ClassStandard)))
	m.Handle(ctx, event(models.EventBotRemoved, orphaned))
	m.Handle(ctx, event(models.EventOrderCompleted, withClass(models.ClassStandard), orphaned))

	snapshot := m.GetSnapshot()
	assert.Equal(t, int64(1), snapshot["orphaned_orders"])
	assert.Equal(t, int64(1), snapshot["bots_removed"])
	assert.Equal(t, int64(0), snapshot["idle_bots"])
	assert.Equal(t, int64(0), snapshot["busy_bots"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.orphanedCounter))
}

func TestMetrics_RegistryGathers(t *testing.T) {
	m := NewMetrics()
	m.Handle(context.Background(), event(models.EventBotAdded))

	count, err := testutil.GatherAndCount(m.Registry(), "dispatch_bots_added_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Handle(context.Background(), event(models.EventOrderSubmitted, withClass(models.ClassStandard)))
			m.Handle(context.Background(), event(models.EventBotAdded))
		}()
	}

	wg.Wait()

	snapshot := m.GetSnapshot()
	assert.Equal(t, int64(100), snapshot["submitted_orders"])
	assert.Equal(t, int64(100), snapshot["bots_added"])
	assert.Equal(t, int64(100), snapshot["idle_bots"])
}
