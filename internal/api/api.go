// Package api is the HTTP surface of the monitoring service: product CRUD,
// monitor control, settings, state export/import and observable summaries.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/singleflight"

	"github.com/shelfwatch/shelfwatch/internal/database"
	"github.com/shelfwatch/shelfwatch/internal/engine"
	"github.com/shelfwatch/shelfwatch/internal/middleware"
	"github.com/shelfwatch/shelfwatch/internal/models"
	"github.com/shelfwatch/shelfwatch/internal/store"
)

// Handler carries the collaborators the HTTP endpoints act on.
type Handler struct {
	store     store.Store
	scheduler *engine.Scheduler
	machine   *engine.StateMachine
	profiles  []models.Profile

	summaryGroup singleflight.Group
}

// NewHandler creates the API handler.
func NewHandler(st store.Store, scheduler *engine.Scheduler, machine *engine.StateMachine, profiles []models.Profile) *Handler {
	return &Handler{
		store:     st,
		scheduler: scheduler,
		machine:   machine,
		profiles:  profiles,
	}
}

// Router builds the gin engine with all routes registered. Extra middleware
// (request logging) runs on every route.
func (h *Handler) Router(apiKey string, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(extra...)

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(apiKey))
	v1.Use(middleware.RateLimit())
	{
		products := v1.Group("/products")
		{
			products.GET("", h.ListProducts)
			products.POST("", h.AddProduct)
			products.GET("/:id", h.GetProduct)
			products.PATCH("/:id", h.UpdateProduct)
			products.DELETE("/:id", h.DeleteProduct)
			products.POST("/:id/pause", h.PauseProduct)
			products.POST("/:id/resume", h.ResumeProduct)
			products.POST("/:id/check", h.CheckProductNow)
		}

		v1.GET("/settings", h.GetSettings)
		v1.PATCH("/settings", h.UpdateSettings)

		monitor := v1.Group("/monitor")
		{
			monitor.GET("/summary", h.GetSummary)
			monitor.POST("/start", h.StartMonitoring)
			monitor.POST("/stop", h.StopMonitoring)
			monitor.POST("/tick", h.TriggerTick)
		}

		v1.GET("/logs", h.ListLogs)
		v1.GET("/export", h.ExportBundle)
		v1.POST("/import", h.ImportBundle)
	}

	return router
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthCheck handles the health check endpoint
func (h *Handler) HealthCheck(c *gin.Context) {
	response := HealthResponse{Status: "ok"}

	if database.Pool() != nil {
		if err := database.Status(c.Request.Context()); err != nil {
			response.Database = "disconnected"
			c.JSON(http.StatusServiceUnavailable, response)
			return
		}
		response.Database = "connected"
	} else {
		response.Database = "not configured"
	}

	c.JSON(http.StatusOK, response)
}

// GetSummary returns the monitor summary. Between ticks the last computed
// summary is served; before the first tick it is computed on demand, with
// concurrent callers collapsed into one store read.
func (h *Handler) GetSummary(c *gin.Context) {
	if sum := h.scheduler.Summary(); sum != nil {
		c.JSON(http.StatusOK, sum)
		return
	}

	v, err, _ := h.summaryGroup.Do("summary", func() (interface{}, error) {
		return h.computeSummary(c.Request.Context())
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) computeSummary(ctx context.Context) (*engine.Summary, error) {
	products, err := h.store.LoadProducts(ctx)
	if err != nil {
		return nil, err
	}
	sum := &engine.Summary{Total: len(products)}
	for i := range products {
		switch products[i].MonitorState {
		case models.MonitorActive:
			sum.Active++
		case models.MonitorPaused:
			sum.Paused++
		case models.MonitorError:
			sum.Errored++
		}
		if products[i].StockStatus == models.StockInStock {
			sum.InStock++
		}
	}
	return sum, nil
}

// StartMonitoring clears a stop-all and re-arms the schedule.
func (h *Handler) StartMonitoring(c *gin.Context) {
	if err := h.scheduler.Start(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "started"})
}

// StopMonitoring requests a stop-all. An in-flight tick drains at the next
// product boundary.
func (h *Handler) StopMonitoring(c *gin.Context) {
	h.scheduler.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// TriggerTick runs a tick outside the schedule. The response reports whether
// the trigger ran or was dropped by the in-progress guard.
func (h *Handler) TriggerTick(c *gin.Context) {
	go h.scheduler.Tick(context.WithoutCancel(c.Request.Context()))
	c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
}

// ListLogs returns recent activity log entries, newest first.
// GET /api/v1/logs?limit=100
func (h *Handler) ListLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}

	logs, err := h.store.RecentLogs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "total": len(logs)})
}
