// Package api serves the webmonitor REST API, the notification stream and
// the health endpoints over gin.
package api

import (
	"context"
	"net/http"
	"time"

	"webmonitor/internal/api/types"
	"webmonitor/internal/core"
	"webmonitor/internal/storage"

	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
)

// Handler serves the liveness and health endpoints.
type Handler struct {
	engine    *core.Engine
	storage   *storage.Storage
	startTime time.Time
}

// NewHandler creates a handler. Either argument may be nil, which is
// reported as unhealthy.
func NewHandler(engine *core.Engine, storage *storage.Storage) *Handler {
	return &Handler{
		engine:    engine,
		storage:   storage,
		startTime: time.Now(),
	}
}

// Ping handles GET /ping.
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Health handles GET /health
//
// The overall status is "healthy" when both the database and the engine
// are; otherwise it is "degraded" and the response is 503 so load
// balancers can act on it.
func (h *Handler) Health(c *gin.Context) {
	resp := types.HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   Version,
		Components: types.HealthComponents{
			Database: h.databaseHealth(c.Request.Context()),
			Engine:   types.EngineHealth{Status: statusUnhealthy, CheckTypes: []string{}},
			Alerts:   types.AlertsHealth{Channels: []string{}},
		},
	}

	if h.engine != nil {
		if h.engine.IsRunning() {
			resp.Components.Engine.Status = statusHealthy
			resp.Components.Engine.ScheduledSites = h.engine.ScheduledSites()
		}
		resp.Components.Engine.CheckTypes = h.engine.CheckTypes()
		resp.Components.Alerts.Channels = h.engine.AlertChannels()
		resp.Components.Events.Subscribers = h.engine.Events().Subscribers()
	}

	status := http.StatusOK
	if resp.Components.Database.Status != statusHealthy || resp.Components.Engine.Status != statusHealthy {
		resp.Status = statusDegraded
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// databaseHealth pings the database and reports the round trip.
func (h *Handler) databaseHealth(ctx context.Context) types.ComponentHealth {
	if h.storage == nil {
		return types.ComponentHealth{Status: statusUnhealthy}
	}

	start := time.Now()
	err := h.storage.Ping(ctx)
	health := types.ComponentHealth{
		Status:         statusHealthy,
		ResponseTimeMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		health.Status = statusUnhealthy
	}
	return health
}
