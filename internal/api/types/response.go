package types

import (
	"webmonitor/internal/storage"
)

// HistoryEntry is one element of SiteResponse.ResponseHistory.
type HistoryEntry struct {
	Time   string `json:"time"`
	Status string `json:"status"`
	Ms     int64  `json:"ms"`
	Code   int    `json:"code"`
	Error  string `json:"error"`
}

// SiteResponse is the wire form of a monitored site.
type SiteResponse struct {
	ID                   int64          `json:"id"`
	Name                 string         `json:"name"`
	URL                  string         `json:"url"`
	Status               string         `json:"status"`
	LastChecked          *string        `json:"lastChecked"`
	ResponseHistory      []HistoryEntry `json:"responseHistory"`
	Uptime               float64        `json:"uptime"`
	Interval             int            `json:"interval"`
	NotificationsEnabled bool           `json:"notifications_enabled"`
	AutoMonitor          bool           `json:"auto_monitor"`
}

// DeleteResponse is the body of DELETE /websites/:id.
type DeleteResponse struct {
	Message string         `json:"message"`
	Sites   []SiteResponse `json:"sites"`
}

// NotifyResponse is the body of a successful POST /notify.
type NotifyResponse struct {
	Success  bool     `json:"success"`
	Channels []string `json:"channels"`
}

// LoginResponse is the body of POST /login.
type LoginResponse struct {
	Success bool `json:"success"`
}

// NewSiteResponse converts a stored site to its wire form.
func NewSiteResponse(site *storage.Site) SiteResponse {
	history := make([]HistoryEntry, 0, len(site.History))
	for _, r := range site.History {
		history = append(history, HistoryEntry{
			Time:   r.Time,
			Status: r.Status,
			Ms:     r.Ms,
			Code:   r.Code,
			Error:  r.Error,
		})
	}

	return SiteResponse{
		ID:                   site.ID,
		Name:                 site.Name,
		URL:                  site.URL,
		Status:               site.Status,
		LastChecked:          site.LastChecked,
		ResponseHistory:      history,
		Uptime:               site.Uptime,
		Interval:             site.IntervalSeconds,
		NotificationsEnabled: site.NotificationsEnabled,
		AutoMonitor:          site.AutoMonitor,
	}
}

// NewSiteListResponse converts a list of stored sites.
func NewSiteListResponse(sites []storage.Site) []SiteResponse {
	out := make([]SiteResponse, 0, len(sites))
	for i := range sites {
		out = append(out, NewSiteResponse(&sites[i]))
	}
	return out
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string           `json:"status"`
	Timestamp  string           `json:"timestamp"`
	Uptime     string           `json:"uptime"`
	Version    string           `json:"version"`
	Components HealthComponents `json:"components"`
}

// HealthComponents reports each backend component.
type HealthComponents struct {
	Database ComponentHealth `json:"database"`
	Engine   EngineHealth    `json:"engine"`
	Alerts   AlertsHealth    `json:"alerts"`
	Events   EventsHealth    `json:"events"`
}

type ComponentHealth struct {
	Status         string `json:"status"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

type EngineHealth struct {
	Status         string   `json:"status"`
	ScheduledSites int      `json:"scheduled_sites"`
	CheckTypes     []string `json:"check_types"`
}

type AlertsHealth struct {
	Channels []string `json:"channels"`
}

type EventsHealth struct {
	Subscribers int `json:"subscribers"`
}
