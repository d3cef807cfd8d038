// Package dashboard implements the client side of webmonitor: the REST
// client, the auto-monitoring loop, display metrics, the site form and
// local preference persistence. It holds no UI code; internal/tui
// renders it.
package dashboard

// Site statuses as reported by the backend.
const (
	StatusUp          = "up"
	StatusDown        = "down"
	StatusHighLatency = "high_latency"
	StatusDegraded    = "degraded"
	StatusUnknown     = "unknown"
)

// HistoryEntry is one past check result of a site.
type HistoryEntry struct {
	Time   string `json:"time"`
	Status string `json:"status"`
	Ms     int64  `json:"ms"`
	Code   int    `json:"code"`
	Error  string `json:"error"`
}

// Site is a monitored site as held by the dashboard.
type Site struct {
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

	// Checking is set while a check of this site is in flight
	Checking bool `json:"-"`
}

// Last returns the newest history entry, or nil when there is none.
func (s *Site) Last() *HistoryEntry {
	if len(s.ResponseHistory) == 0 {
		return nil
	}
	return &s.ResponseHistory[len(s.ResponseHistory)-1]
}

// Recent returns up to n newest history entries, oldest first.
func (s *Site) Recent(n int) []HistoryEntry {
	if len(s.ResponseHistory) <= n {
		return s.ResponseHistory
	}
	return s.ResponseHistory[len(s.ResponseHistory)-n:]
}
