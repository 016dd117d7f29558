package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"order-dispatch/internal/logging"
	"order-dispatch/internal/models"
	"order-dispatch/internal/service"
)

// OrderHandler handles HTTP requests for orders and bots
type OrderHandler struct {
	dispatchService *service.DispatchService
	gatherer        prometheus.Gatherer
	logger          *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(dispatchService *service.DispatchService, gatherer prometheus.Gatherer, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{
		dispatchService: dispatchService,
		gatherer:        gatherer,
		logger:          logger,
	}
}

// CreateOrderRequest is the body of POST /orders
type CreateOrderRequest struct {
	Class string `json:"class" binding:"required"`
}

// SnapshotResponse is a snapshot plus its summary counts
type SnapshotResponse struct {
	models.Snapshot
	PendingCount  int `json:"pending_count"`
	AssignedCount int `json:"assigned_count"`
	DoneCount     int `json:"done_count"`
	IdleBots      int `json:"idle_bots"`
	BusyBots      int `json:"busy_bots"`
}

// NewRouter builds the gin engine with recovery, request ids and CORS
func NewRouter(h *OrderHandler, allowOrigin string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), CORSMiddleware(allowOrigin))
	h.SetupRoutes(router)
	return router
}

// SetupRoutes configures all API routes
func (h *OrderHandler) SetupRoutes(router *gin.Engine) {
	router.POST("/orders", h.CreateOrder)
	router.POST("/orders/standard", h.createOrderOfClass(models.ClassStandard))
	router.POST("/orders/priority", h.createOrderOfClass(models.ClassPriority))
	router.GET("/orders/:id/history", h.GetOrderHistory)

	router.POST("/bots", h.AddBot)
	router.DELETE("/bots", h.RemoveBot)

	router.GET("/snapshot", h.GetSnapshot)
	router.GET("/history", h.GetHistory)
	router.GET("/stats", h.GetStats)

	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
	router.GET("/healthcheck", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
}

// CreateOrder handles POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.submit(c, req.Class)
}

func (h *OrderHandler) createOrderOfClass(class models.OrderClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.submit(c, string(class))
	}
}

func (h *OrderHandler) submit(c *gin.Context, class string) {
	order, err := h.dispatchService.SubmitOrder(c.Request.Context(), class)
	if err != nil {
		h.writeError(c, "failed to submit order", err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// AddBot handles POST /bots
func (h *OrderHandler) AddBot(c *gin.Context) {
	bot, err := h.dispatchService.AddBot(c.Request.Context())
	if err != nil {
		h.writeError(c, "failed to add bot", err)
		return
	}

	c.JSON(http.StatusCreated, bot)
}

// RemoveBot handles DELETE /bots
func (h *OrderHandler) RemoveBot(c *gin.Context) {
	removed := h.dispatchService.RemoveBot(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// GetSnapshot handles GET /snapshot
func (h *OrderHandler) GetSnapshot(c *gin.Context) {
	snap := h.dispatchService.Snapshot(c.Request.Context())
	c.JSON(http.StatusOK, SnapshotResponse{
		Snapshot:      snap,
		PendingCount:  len(snap.Pending),
		AssignedCount: len(snap.Assigned),
		DoneCount:     len(snap.Done),
		IdleBots:      snap.IdleBots(),
		BusyBots:      snap.BusyBots(),
	})
}

// GetHistory handles GET /history?limit=
func (h *OrderHandler) GetHistory(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	events, err := h.dispatchService.History(c.Request.Context(), limit)
	if err != nil {
		h.writeError(c, "failed to list history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}

// GetOrderHistory handles GET /orders/:id/history
func (h *OrderHandler) GetOrderHistory(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	events, err := h.dispatchService.OrderHistory(c.Request.Context(), models.OrderID(id))
	if err != nil {
		h.writeError(c, "failed to list order history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": id,
		"events":   events,
	})
}

// GetStats handles GET /stats
func (h *OrderHandler) GetStats(c *gin.Context) {
	stats, err := h.dispatchService.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, "failed to get stats", err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *OrderHandler) writeError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidClass):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrHistoryDisabled), errors.Is(err, service.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEngineClosed):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), msg, slog.Any("err", err))
	}
	c.JSON(status, gin.H{"error": msg + ": " + err.Error()})
}

// RequestIDMiddleware stores a request id in the request context so log
// records written while serving it carry the id.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLoggerName(ctx, "http")
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// CORSMiddleware sets CORS headers for all responses
func CORSMiddleware(allowOrigin string) gin.HandlerFunc {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		// preflight
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
