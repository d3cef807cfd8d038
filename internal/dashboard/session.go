package dashboard

import (
	"context"
	"fmt"
	"slices"
	"time"

	"webmonitor/internal/config"

	"github.com/rs/zerolog/log"
)

// Settings is the dashboard-wide monitoring configuration.
type Settings struct {
	AutoMonitoring bool
	Interval       time.Duration

	// NotifyDelay is the minimum time between alerts for one site
	NotifyDelay time.Duration

	SoundOn bool

	// NotificationsEnabled gates all email alerts from the dashboard
	NotificationsEnabled bool

	Email string
	Phone string
}

// DefaultSettings returns the settings of a fresh dashboard.
func DefaultSettings(cfg config.DashboardConfig) Settings {
	return Settings{
		AutoMonitoring:       true,
		Interval:             cfg.DefaultInterval,
		NotifyDelay:          5 * time.Minute,
		NotificationsEnabled: true,
	}
}

// LoadSettings reads settings from prefs, falling back to def per key.
func LoadSettings(ctx context.Context, prefs *Prefs, def Settings) Settings {
	s := def
	s.AutoMonitoring = prefs.Bool(ctx, KeyAutoMonitoring, def.AutoMonitoring)
	s.SoundOn = prefs.Bool(ctx, KeySoundOn, def.SoundOn)
	s.NotificationsEnabled = prefs.Bool(ctx, KeyNotificationsEnabled, def.NotificationsEnabled)
	s.Email = prefs.String(ctx, KeyNotificationEmail, def.Email)
	s.Phone = prefs.String(ctx, KeyNotificationPhone, def.Phone)
	s.NotifyDelay = time.Duration(prefs.Int(ctx, KeyNotifyDelay, int(def.NotifyDelay/time.Minute))) * time.Minute

	interval := time.Duration(prefs.Int(ctx, KeyIntervalTime, int(def.Interval/time.Second))) * time.Second
	if ValidInterval(interval) {
		s.Interval = interval
	}
	return s
}

// SaveSettings writes every setting to prefs.
func SaveSettings(ctx context.Context, prefs *Prefs, s Settings) error {
	writes := []struct {
		key   string
		value string
	}{
		{KeyAutoMonitoring, fmt.Sprint(s.AutoMonitoring)},
		{KeyIntervalTime, fmt.Sprint(int(s.Interval / time.Second))},
		{KeyNotifyDelay, fmt.Sprint(int(s.NotifyDelay / time.Minute))},
		{KeySoundOn, fmt.Sprint(s.SoundOn)},
		{KeyNotificationsEnabled, fmt.Sprint(s.NotificationsEnabled)},
		{KeyNotificationEmail, s.Email},
		{KeyNotificationPhone, s.Phone},
	}
	for _, w := range writes {
		if err := prefs.Set(ctx, w.key, w.value); err != nil {
			return err
		}
	}
	return nil
}

// ValidInterval reports whether d is one of the selectable intervals.
func ValidInterval(d time.Duration) bool {
	return slices.Contains(config.IntervalOptions, d)
}

// NextInterval returns the selectable interval after d, wrapping around.
func NextInterval(d time.Duration) time.Duration {
	opts := config.IntervalOptions
	for i, opt := range opts {
		if d == opt {
			return opts[(i+1)%len(opts)]
		}
	}
	return opts[0]
}

// Session tracks the persisted login flag.
type Session struct {
	client *Client
	prefs  *Prefs
}

// NewSession creates a session backed by prefs.
func NewSession(client *Client, prefs *Prefs) *Session {
	return &Session{client: client, prefs: prefs}
}

// LoggedIn reports whether a previous login was persisted.
func (s *Session) LoggedIn(ctx context.Context) bool {
	return s.prefs.Bool(ctx, KeyLoggedIn, false)
}

// Login verifies the credentials with the backend and persists the flag
// on success.
func (s *Session) Login(ctx context.Context, username, password string) (bool, error) {
	ok, err := s.client.Login(ctx, username, password)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Warn().Str("username", username).Msg("Login rejected")
		return false, nil
	}

	if err := s.prefs.SetBool(ctx, KeyLoggedIn, true); err != nil {
		return true, err
	}
	log.Info().Str("username", username).Msg("Logged in")
	return true, nil
}

// Logout clears the persisted flag.
func (s *Session) Logout(ctx context.Context) error {
	return s.prefs.Delete(ctx, KeyLoggedIn)
}
