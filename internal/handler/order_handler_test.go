package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-dispatch/internal/engine"
	"order-dispatch/internal/metrics"
	"order-dispatch/internal/models"
	"order-dispatch/internal/service"
)

// memoryJournal keeps events in memory for history endpoints
type memoryJournal struct {
	events []*models.Event
}

func (j *memoryJournal) AppendEvent(ctx context.Context, ev *models.Event) error {
	j.events = append(j.events, ev)
	return nil
}

func (j *memoryJournal) ListEvents(ctx context.Context, runID string, limit int) ([]*models.Event, error) {
	if len(j.events) > limit {
		return j.events[len(j.events)-limit:], nil
	}
	return j.events, nil
}

func (j *memoryJournal) ListOrderEvents(ctx context.Context, runID string, orderID models.OrderID) ([]*models.Event, error) {
	var result []*models.Event
	for _, ev := range j.events {
		if ev.OrderID == orderID {
			result = append(result, ev)
		}
	}
	return result, nil
}

func (j *memoryJournal) CountEventsByType(ctx context.Context, runID string) (map[models.EventType]int, error) {
	counts := make(map[models.EventType]int)
	for _, ev := range j.events {
		counts[ev.Type]++
	}
	return counts, nil
}

func newTestRouter(t *testing.T, withJournal bool) *gin.Engine {
	t.Helper()
	router, _ := newTestRouterWithEngine(t, withJournal)
	return router
}

func newTestRouterWithEngine(t *testing.T, withJournal bool) (*gin.Engine, *engine.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewMetrics()
	handlers := []engine.EventHandler{m}

	var journal *memoryJournal
	if withJournal {
		journal = &memoryJournal{}
		handlers = append(handlers, engine.EventHandlerFunc(func(ctx context.Context, ev models.Event) {
			copied := ev
			_ = journal.AppendEvent(ctx, &copied)
		}))
	}

	e := engine.New(engine.Options{
		Clock:            clockwork.NewFakeClock(),
		Logger:           logger,
		EventHandler:     engine.NewMultiEventHandler(handlers...),
		StrictInvariants: true,
		RunID:            "http-run",
	})
	t.Cleanup(e.Close)

	var svc *service.DispatchService
	if withJournal {
		svc = service.NewDispatchService(e, journal, m, logger)
	} else {
		svc = service.NewDispatchService(e, nil, m, logger)
	}

	return NewRouter(NewOrderHandler(svc, m.Registry(), logger), "*"), e
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestOrderHandler_CreateOrder(t *testing.T) {
	router := newTestRouter(t, false)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantClass  models.OrderClass
	}{
		{name: "standard", body: `{"class":"STANDARD"}`, wantStatus: http.StatusCreated, wantClass: models.ClassStandard},
		{name: "vip label", body: `{"class":"VIP"}`, wantStatus: http.StatusCreated, wantClass: models.ClassPriority},
		{name: "unknown class", body: `{"class":"EXPRESS"}`, wantStatus: http.StatusBadRequest},
		{name: "missing class", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "invalid json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/orders", tt.body)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantStatus == http.StatusCreated {
				var order models.Order
				decode(t, w, &order)
				assert.Equal(t, tt.wantClass, order.Class)
				assert.NotZero(t, order.ID)
			}
		})
	}
}

func TestOrderHandler_ShortcutRoutesAndSnapshot(t *testing.T) {
	router := newTestRouter(t, false)

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/orders/standard", "").Code)
	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/orders/priority", "").Code)

	w := doRequest(router, http.MethodPost, "/bots", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var bot models.Bot
	decode(t, w, &bot)
	assert.Equal(t, models.BotID(1), bot.ID)
	assert.Equal(t, models.BotBusy, bot.Status)
	require.NotNil(t, bot.OrderID)
	assert.Equal(t, models.OrderID(2), *bot.OrderID)

	w = doRequest(router, http.MethodGet, "/snapshot", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snap SnapshotResponse
	decode(t, w, &snap)
	assert.Equal(t, "http-run", snap.RunID)
	assert.Equal(t, 1, snap.PendingCount)
	assert.Equal(t, 1, snap.AssignedCount)
	assert.Equal(t, 1, snap.BusyBots)
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, models.ClassStandard, snap.Pending[0].Class)
}

func TestOrderHandler_RemoveBot(t *testing.T) {
	router := newTestRouter(t, false)

	w := doRequest(router, http.MethodDelete, "/bots", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]bool
	decode(t, w, &resp)
	assert.False(t, resp["removed"])

	doRequest(router, http.MethodPost, "/bots", "")
	w = doRequest(router, http.MethodDelete, "/bots", "")
	decode(t, w, &resp)
	assert.True(t, resp["removed"])
}

func TestOrderHandler_History(t *testing.T) {
	router := newTestRouter(t, true)

	doRequest(router, http.MethodPost, "/orders/priority", "")
	doRequest(router, http.MethodPost, "/bots", "")

	w := doRequest(router, http.MethodGet, "/history?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Count  int            `json:"count"`
		Events []models.Event `json:"events"`
	}
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, models.EventBotAdded, resp.Events[0].Type)
	assert.Equal(t, models.EventOrderAssigned, resp.Events[1].Type)

	w = doRequest(router, http.MethodGet, "/orders/1/history", "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/orders/42/history", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/orders/abc/history", "").Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(router, http.MethodGet, "/history?limit=-1", "").Code)
}

func TestOrderHandler_History_Disabled(t *testing.T) {
	router := newTestRouter(t, false)

	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/history", "").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(router, http.MethodGet, "/orders/1/history", "").Code)
}

func TestOrderHandler_StatsAndMetrics(t *testing.T) {
	router := newTestRouter(t, true)
	doRequest(router, http.MethodPost, "/orders/standard", "")

	w := doRequest(router, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats map[string]int64
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats["submitted_orders"])
	assert.Equal(t, int64(1), stats["journal.order.submitted"])

	w = doRequest(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dispatch_orders_submitted_total")
}

func TestOrderHandler_HealthcheckAndMiddleware(t *testing.T) {
	router := newTestRouter(t, false)

	w := doRequest(router, http.MethodGet, "/healthcheck", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = doRequest(router, http.MethodOptions, "/orders", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "DELETE")
}

func TestOrderHandler_EngineClosed(t *testing.T) {
	router, e := newTestRouterWithEngine(t, false)
	e.Close()

	w := doRequest(router, http.MethodPost, "/orders/standard", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	w = doRequest(router, http.MethodPost, "/orders", `{"class":"PRIORITY"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	w = doRequest(router, http.MethodPost, "/bots", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())

	// reads still work after close
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/snapshot", "").Code)
}
