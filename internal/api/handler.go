package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"shortage-service/config"
	"shortage-service/internal/models"
	"shortage-service/internal/store"
	"shortage-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderStore reads persisted exception records.
type OrderStore interface {
	QueryActive(ctx context.Context, source models.Source) ([]json.RawMessage, error)
	QueryByIdentity(ctx context.Context, source models.Source, identity string) (json.RawMessage, error)
	LatestActivity(ctx context.Context) (time.Time, error)
}

// OrderFetcher looks a single order up on the live platform API.
type OrderFetcher interface {
	GetOrderByID(ctx context.Context, id string) (json.RawMessage, error)
}

// AnalyticsProvider computes analytics over a time window.
type AnalyticsProvider interface {
	ComputeSnapshot(ctx context.Context, start, end time.Time) (*models.AnalyticsSnapshot, error)
}

// InventoryProvider resolves live inventory for a list of SKUs.
type InventoryProvider interface {
	BulkLookup(ctx context.Context, skus []string) (map[string]models.SkuInventory, error)
}

// RefreshRequester publishes refresh-requested events.
type RefreshRequester interface {
	PublishRefreshRequested(ctx context.Context, scope, requestedBy string) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders    OrderStore
	analytics AnalyticsProvider
	inventory InventoryProvider
	publisher RefreshRequester
	fetchers  map[models.Source]OrderFetcher
	auth      *Authenticator
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders OrderStore,
	analytics AnalyticsProvider,
	inventory InventoryProvider,
	publisher RefreshRequester,
	stordFetcher OrderFetcher,
	shipbobFetcher OrderFetcher,
	authCfg config.AuthConfig,
) *Handler {
	return &Handler{
		orders:    orders,
		analytics: analytics,
		inventory: inventory,
		publisher: publisher,
		fetchers: map[models.Source]OrderFetcher{
			models.SourceStord:   stordFetcher,
			models.SourceShipbob: shipbobFetcher,
		},
		auth: NewAuthenticator(authCfg),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/token", h.auth.IssueToken)

	v1 := router.Group("/api/v1")
	v1.Use(h.auth.Middleware())
	{
		v1.GET("/:source/oos-orders", h.listOOSOrders)
		v1.GET("/:source/order-details/:id", h.getOrderDetails)
		v1.GET("/analytics", h.getAnalytics)
		v1.POST("/trigger-refresh", h.triggerRefresh)
		v1.GET("/last-refresh-time", h.lastRefreshTime)
		v1.POST("/inventory/bulk", h.bulkInventory)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listOOSOrders returns the active exception records for one source,
// converted to the summarized order shape.
func (h *Handler) listOOSOrders(c *gin.Context) {
	source, ok := h.sourceParam(c)
	if !ok {
		return
	}

	payloads, err := h.orders.QueryActive(c.Request.Context(), source)
	if err != nil {
		h.storeError(c, err)
		return
	}

	includeRaw := c.Query("include_raw") == "true"

	details := make([]models.OrderDetails, 0, len(payloads))
	for _, raw := range payloads {
		d, err := models.ConvertOrder(source, raw, includeRaw)
		if err != nil {
			// a corrupt stored payload should not take the listing down
			continue
		}
		details = append(details, *d)
	}

	c.JSON(http.StatusOK, gin.H{
		"source": source,
		"count":  len(details),
		"orders": details,
	})
}

// getOrderDetails returns one record by identity, falling back to a
// live platform lookup when the store has never seen it.
func (h *Handler) getOrderDetails(c *gin.Context) {
	source, ok := h.sourceParam(c)
	if !ok {
		return
	}
	id := c.Param("id")

	raw, err := h.orders.QueryByIdentity(c.Request.Context(), source, id)
	if errors.Is(err, store.ErrNotFound) {
		raw, err = h.liveLookup(c.Request.Context(), source, id)
	}
	if err != nil {
		h.storeError(c, err)
		return
	}
	if raw == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
		return
	}

	details, err := models.ConvertOrder(source, raw, c.Query("include_raw") == "true")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to convert order",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) liveLookup(ctx context.Context, source models.Source, id string) (json.RawMessage, error) {
	fetcher := h.fetchers[source]
	if fetcher == nil {
		return nil, store.ErrNotFound
	}
	raw, err := fetcher.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, store.ErrNotFound
	}
	return raw, nil
}

// getAnalytics computes the snapshot for the requested window. Both
// bounds are required, RFC3339.
func (h *Handler) getAnalytics(c *gin.Context) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid or missing start parameter, expected RFC3339",
		})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid or missing end parameter, expected RFC3339",
		})
		return
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "end must not be before start",
		})
		return
	}

	snapshot, err := h.analytics.ComputeSnapshot(c.Request.Context(), start, end)
	if err != nil {
		h.storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// triggerRefresh publishes a refresh request and returns immediately.
func (h *Handler) triggerRefresh(c *gin.Context) {
	scope := c.DefaultQuery("source", models.RefreshScopeAll)
	if scope != models.RefreshScopeAll {
		if _, err := models.ParseSource(scope); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid source",
			})
			return
		}
	}

	if err := h.publisher.PublishRefreshRequested(c.Request.Context(), scope, "api"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to request refresh",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "refresh requested",
		"scope":  scope,
	})
}

// lastRefreshTime reports the most recent store activity across both
// sources.
func (h *Handler) lastRefreshTime(c *gin.Context) {
	ts, err := h.orders.LatestActivity(c.Request.Context())
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{
			"last_refresh_time": nil,
		})
		return
	}
	if err != nil {
		h.storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"last_refresh_time": ts.UTC().Format(time.RFC3339),
	})
}

type bulkInventoryRequest struct {
	SKUs []string `json:"skus" binding:"required"`
}

// bulkInventory resolves live inventory for a list of SKUs.
func (h *Handler) bulkInventory(c *gin.Context) {
	var req bulkInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	inventory, err := h.inventory.BulkLookup(c.Request.Context(), req.SKUs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to look up inventory",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"inventory": inventory,
	})
}

// sourceParam parses the :source path segment, writing a 400 itself
// when the value is not a known platform.
func (h *Handler) sourceParam(c *gin.Context) (models.Source, bool) {
	source, err := models.ParseSource(c.Param("source"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid source",
		})
		return "", false
	}
	return source, true
}

// storeError maps storage and lookup errors onto status codes.
func (h *Handler) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Order not found",
		})
	case errors.Is(err, store.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Store unavailable",
			"details": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
