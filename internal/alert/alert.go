// Package alert delivers site alerts through the configured channels.
//
// Supported channels:
//   - Email (SMTP)
//   - Telegram bot
//   - Generic JSON webhook
//
// Every delivery attempt is written to the alert log through a Recorder.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"webmonitor/internal/config"
	"webmonitor/internal/storage"

	"github.com/rs/zerolog/log"
)

// ErrNoChannels is returned when an alert is sent but no channel is enabled.
var ErrNoChannels = errors.New("no alert channels enabled")

// Alert is a single notification about a site.
type Alert struct {
	SiteID   int64
	SiteName string
	URL      string
	Status   string
	Title    string
	Message  string

	// Email overrides the configured email recipient when set
	Email string

	// Phone is a contact number passed through to channels that carry it
	Phone string
}

// Provider sends an alert through one channel.
type Provider interface {
	// Name returns the channel identifier recorded in the alert log.
	Name() string

	// Send delivers the alert.
	Send(ctx context.Context, a Alert) error
}

// Recorder persists delivery attempts.
type Recorder interface {
	Record(ctx context.Context, rec *storage.AlertRecord) error
}

// Manager fans an alert out to every enabled provider.
type Manager struct {
	providers []Provider
	recorder  Recorder
}

// NewManager creates a manager with a provider for every enabled channel.
//
// Parameters:
//   - cfg: Alert configuration
//   - recorder: Alert log; may be nil
//
// Returns:
//   - *Manager: Initialized alert manager
func NewManager(cfg config.AlertConfig, recorder Recorder) *Manager {
	m := &Manager{recorder: recorder}

	if cfg.Email.Enabled {
		m.Register(NewEmailProvider(cfg.Email))
	}
	if cfg.Telegram.Enabled {
		m.Register(NewTelegramProvider(cfg.Telegram))
	}
	if cfg.Webhook.Enabled {
		m.Register(NewWebhookProvider(cfg.Webhook))
	}

	return m
}

// Register adds a provider.
func (m *Manager) Register(p Provider) {
	m.providers = append(m.providers, p)
	log.Debug().Str("channel", p.Name()).Msg("Alert channel registered")
}

// Channels returns the names of the registered providers.
func (m *Manager) Channels() []string {
	names := make([]string, 0, len(m.providers))
	for _, p := range m.providers {
		names = append(names, p.Name())
	}
	return names
}

// Send delivers the alert through every provider. A failing provider does
// not stop the others; all failures are joined into the returned error.
func (m *Manager) Send(ctx context.Context, a Alert) error {
	if len(m.providers) == 0 {
		return ErrNoChannels
	}

	var errs []error
	for _, p := range m.providers {
		err := p.Send(ctx, a)
		m.record(ctx, a, p.Name(), err)

		if err != nil {
			log.Error().
				Err(err).
				Int64("site_id", a.SiteID).
				Str("channel", p.Name()).
				Msg("Failed to send alert")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}

		log.Info().
			Int64("site_id", a.SiteID).
			Str("channel", p.Name()).
			Str("status", a.Status).
			Msg("Alert sent")
	}

	return errors.Join(errs...)
}

func (m *Manager) record(ctx context.Context, a Alert, channel string, sendErr error) {
	if m.recorder == nil {
		return
	}

	rec := &storage.AlertRecord{
		SiteID:  a.SiteID,
		Channel: channel,
		Status:  storage.AlertStatusSent,
		Message: a.Message,
		SentAt:  time.Now(),
	}
	if sendErr != nil {
		rec.Status = storage.AlertStatusFailed
		rec.Error = sendErr.Error()
	}

	if err := m.recorder.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Int64("site_id", a.SiteID).Msg("Failed to record alert")
	}
}

// DownAlert builds the alert raised when a site goes down.
func DownAlert(site *storage.Site, reason string) Alert {
	return Alert{
		SiteID:   site.ID,
		SiteName: site.Name,
		URL:      site.URL,
		Status:   storage.StatusDown,
		Title:    fmt.Sprintf("%s is DOWN", site.Name),
		Message:  fmt.Sprintf("%s (%s) is down: %s", site.Name, site.URL, reason),
	}
}

// RecoveryAlert builds the alert raised when a site is back up.
func RecoveryAlert(site *storage.Site) Alert {
	return Alert{
		SiteID:   site.ID,
		SiteName: site.Name,
		URL:      site.URL,
		Status:   storage.StatusUp,
		Title:    fmt.Sprintf("%s is back UP", site.Name),
		Message:  fmt.Sprintf("%s (%s) has recovered", site.Name, site.URL),
	}
}
