package metrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"order-dispatch/internal/models"
)

// Metrics tracks dispatch metrics. It is fed by engine events and mirrors
// every value into a prometheus registry.
type Metrics struct {
	mu sync.RWMutex

	submittedOrders int64
	completedOrders int64
	orphanedOrders  int64
	botsAdded       int64
	botsRemoved     int64

	pendingOrders  int64
	assignedOrders int64
	idleBots       int64
	busyBots       int64

	registry         *prometheus.Registry
	submittedCounter *prometheus.CounterVec
	completedCounter *prometheus.CounterVec
	orphanedCounter  prometheus.Counter
	botsAddedCounter prometheus.Counter
	botsRemovedCount prometheus.Counter
	ordersGauge      *prometheus.GaugeVec
	botsGauge        *prometheus.GaugeVec
}

// NewMetrics creates a metrics instance with its own registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submittedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_orders_submitted_total",
			Help: "Orders submitted, by class.",
		}, []string{"class"}),
		completedCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_orders_completed_total",
			Help: "Orders completed, by class.",
		}, []string{"class"}),
		orphanedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_orders_orphaned_total",
			Help: "Orders completed after their bot was removed.",
		}),
		botsAddedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_bots_added_total",
		}),
		botsRemovedCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_bots_removed_total",
		}),
		ordersGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatch_orders",
			Help: "Orders currently pending or assigned.",
		}, []string{"status"}),
		botsGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatch_bots",
			Help: "Live bots by status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.submittedCounter,
		m.completedCounter,
		m.orphanedCounter,
		m.botsAddedCounter,
		m.botsRemovedCount,
		m.ordersGauge,
		m.botsGauge,
	)

	return m
}

// Registry returns the prometheus registry holding the dispatch collectors
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handle updates counters and gauges from one engine event
func (m *Metrics) Handle(ctx context.Context, ev models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Type {
	case models.EventOrderSubmitted:
		m.submittedOrders++
		m.pendingOrders++
		m.submittedCounter.WithLabelValues(string(ev.Class)).Inc()
	case models.EventOrderAssigned:
		m.pendingOrders--
		m.assignedOrders++
		m.idleBots--
		m.busyBots++
	case models.EventOrderCompleted:
		m.completedOrders++
		m.assignedOrders--
		m.completedCounter.WithLabelValues(string(ev.Class)).Inc()
		if ev.Orphaned {
			// the bot was already taken out of the gauges on removal
			m.orphanedOrders++
			m.orphanedCounter.Inc()
		} else {
			m.busyBots--
			m.idleBots++
		}
	case models.EventBotAdded:
		m.botsAdded++
		m.idleBots++
		m.botsAddedCounter.Inc()
	case models.EventBotRemoved:
		m.botsRemoved++
		if ev.Orphaned {
			m.busyBots--
		} else {
			m.idleBots--
		}
		m.botsRemovedCount.Inc()
	}

	m.ordersGauge.WithLabelValues(string(models.StatusPending)).Set(float64(m.pendingOrders))
	m.ordersGauge.WithLabelValues(string(models.StatusAssigned)).Set(float64(m.assignedOrders))
	m.botsGauge.WithLabelValues(string(models.BotIdle)).Set(float64(m.idleBots))
	m.botsGauge.WithLabelValues(string(models.BotBusy)).Set(float64(m.busyBots))
}

// GetSnapshot returns a snapshot of all metrics
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"submitted_orders": m.submittedOrders,
		"completed_orders": m.completedOrders,
		"orphaned_orders":  m.orphanedOrders,
		"bots_added":       m.botsAdded,
		"bots_removed":     m.botsRemoved,
		"pending_orders":   m.pendingOrders,
		"assigned_orders":  m.assignedOrders,
		"idle_bots":        m.idleBots,
		"busy_bots":        m.busyBots,
	}
}
