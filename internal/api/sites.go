package api

import (
	"errors"
	"net/http"
	"strconv"

	"webmonitor/internal/alert"
	"webmonitor/internal/api/types"
	"webmonitor/internal/core"
	"webmonitor/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SiteHandler serves the website management and check endpoints.
type SiteHandler struct {
	engine *core.Engine
}

// NewSiteHandler creates a site handler backed by the engine.
func NewSiteHandler(engine *core.Engine) *SiteHandler {
	return &SiteHandler{engine: engine}
}

// List handles GET /websites
func (h *SiteHandler) List(c *gin.Context) {
	sites, err := h.engine.ListSites(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.NewSiteListResponse(sites))
}

// Create handles POST /websites
//
// The site is checked once before the response is written.
//
// Response:
//   - 201 Created with the new site
//   - 400 Bad Request on invalid input
func (h *SiteHandler) Create(c *gin.Context) {
	var req types.CreateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ValidationError("name and url are required"))
		return
	}

	site, err := h.engine.CreateSite(c.Request.Context(), core.CreateSiteInput{
		Name:            req.Name,
		URL:             req.URL,
		IntervalSeconds: req.Interval,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, types.NewSiteResponse(site))
}

// Update handles PUT /websites/:id
func (h *SiteHandler) Update(c *gin.Context) {
	id, ok := parseSiteID(c)
	if !ok {
		return
	}

	var req types.UpdateSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ValidationError("invalid request body"))
		return
	}

	site, err := h.engine.UpdateSite(c.Request.Context(), id, storage.SiteUpdate{
		Name:                 req.Name,
		URL:                  req.URL,
		IntervalSeconds:      req.Interval,
		NotificationsEnabled: req.NotificationsEnabled,
		AutoMonitor:          req.AutoMonitor,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.NewSiteResponse(site))
}

// Delete handles DELETE /websites/:id
//
// Response:
//   - 200 OK with {"message": "Deleted", "sites": [...remaining]}
func (h *SiteHandler) Delete(c *gin.Context) {
	id, ok := parseSiteID(c)
	if !ok {
		return
	}

	remaining, err := h.engine.DeleteSite(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.DeleteResponse{
		Message: "Deleted",
		Sites:   types.NewSiteListResponse(remaining),
	})
}

// Check handles POST /check/:id
func (h *SiteHandler) Check(c *gin.Context) {
	id, ok := parseSiteID(c)
	if !ok {
		return
	}

	site, err := h.engine.CheckSite(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.NewSiteResponse(site))
}

// Notify handles POST /notify
//
// Response:
//   - 200 OK with the channels the alert went through
//   - 503 Service Unavailable when no alert channel is enabled
//   - 502 Bad Gateway when delivery failed
func (h *SiteHandler) Notify(c *gin.Context) {
	var req types.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.ValidationError("site_id is required"))
		return
	}

	channels, err := h.engine.Notify(c.Request.Context(), core.NotifyInput{
		SiteID:  req.SiteID,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.NotifyResponse{Success: true, Channels: channels})
}

// respondError maps engine errors to API error responses.
func (h *SiteHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, types.NotFoundError("Site"))
	case errors.Is(err, storage.ErrInvalidSite):
		c.JSON(http.StatusBadRequest, types.ValidationError(err.Error()))
	case errors.Is(err, alert.ErrNoChannels):
		c.JSON(http.StatusServiceUnavailable, types.UnavailableError(err.Error()))
	case errors.Is(err, core.ErrDeliveryFailed):
		c.JSON(http.StatusBadGateway, types.BadGatewayError(err.Error()))
	case c.Request.Context().Err() != nil:
		c.JSON(http.StatusServiceUnavailable, types.UnavailableError("request cancelled"))
	default:
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("Request failed")
		c.JSON(http.StatusInternalServerError, types.InternalError("Internal server error"))
	}
}

func parseSiteID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, types.ValidationError("invalid site id"))
		return 0, false
	}
	return id, true
}
