package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Package-level constants for performance optimization
var (
	validLogLevels      = []string{"debug", "info", "warn", "error", "fatal", "panic"}
	validStorageDrivers = []string{"sqlite", "postgres"}

	// IntervalOptions lists the auto-monitoring intervals the dashboard offers.
	IntervalOptions = []time.Duration{
		30 * time.Second,
		time.Minute,
		5 * time.Minute,
		15 * time.Minute,
		30 * time.Minute,
		time.Hour,
	}
)

// validateConfig validates the configuration and returns an error if invalid.
func validateConfig(c *Config) error {
	for _, validate := range []func() error{
		func() error { return validateServerConfig(c.Server) },
		func() error { return validateStorageConfig(c.Storage) },
		func() error { return validateAuthConfig(c.Auth) },
		func() error { return validateAlertConfig(c.Alert) },
		func() error { return validateSchedulerConfig(c.Scheduler) },
		func() error { return validateChecksConfig(c.Checks) },
		func() error { return validateDashboardConfig(c.Dashboard) },
		func() error { return validateLogConfig(c.Log) },
		func() error { return validateTimeouts(c) },
	} {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

// validateServerConfig validates server configuration.
func validateServerConfig(s ServerConfig) error {
	if s.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	host, portStr, err := net.SplitHostPort(s.Addr)
	if err != nil {
		return fmt.Errorf("server.addr invalid format: %w", err)
	}

	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("server.addr invalid port: %w", err)
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("server.addr port out of range (1-65535)")
		}
	}

	if host != "" && host != "0.0.0.0" && host != "localhost" {
		if ip := net.ParseIP(host); ip == nil {
			if _, err := net.LookupHost(host); err != nil {
				return fmt.Errorf("server.addr invalid host: %s", host)
			}
		}
	}

	if s.ReadTimeout < time.Second {
		return fmt.Errorf("server.read_timeout too small (min 1s)")
	}
	if s.WriteTimeout < time.Second {
		return fmt.Errorf("server.write_timeout too small (min 1s)")
	}
	if s.IdleTimeout <= 0 {
		return fmt.Errorf("server.idle_timeout must be greater than 0")
	}

	if s.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("server.read_timeout too large (max 5m)")
	}
	if s.WriteTimeout > 5*time.Minute {
		return fmt.Errorf("server.write_timeout too large (max 5m)")
	}
	if s.IdleTimeout > 30*time.Minute {
		return fmt.Errorf("server.idle_timeout too large (max 30m)")
	}

	for _, origin := range s.CORSOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("server.cors_origins cannot contain empty entries")
		}
	}

	return nil
}

// validateStorageConfig validates storage configuration.
func validateStorageConfig(s StorageConfig) error {
	if !slices.Contains(validStorageDrivers, s.Driver) {
		return fmt.Errorf("storage.driver must be one of: sqlite, postgres")
	}
	if s.DSN == "" {
		return fmt.Errorf("storage.dsn cannot be empty")
	}
	if s.Driver == "sqlite" && strings.Contains(s.DSN, "..") {
		return fmt.Errorf("storage.dsn cannot contain '..' for security")
	}

	if s.MaxOpenConns <= 0 {
		return fmt.Errorf("storage.max_open_conns must be greater than 0")
	}
	if s.MaxIdleConns < 0 {
		return fmt.Errorf("storage.max_idle_conns cannot be negative")
	}
	if s.MaxIdleConns > s.MaxOpenConns {
		return fmt.Errorf("storage.max_idle_conns cannot be greater than max_open_conns")
	}
	if s.MaxOpenConns > 1000 {
		return fmt.Errorf("storage.max_open_conns too large (max 1000)")
	}

	if s.ConnMaxLifetime < time.Minute {
		return fmt.Errorf("storage.conn_max_lifetime too small (min 1m)")
	}
	if s.ConnMaxLifetime > 24*time.Hour {
		return fmt.Errorf("storage.conn_max_lifetime too large (max 24h)")
	}

	return nil
}

// validateAuthConfig validates the administrator account settings.
func validateAuthConfig(a AuthConfig) error {
	if strings.TrimSpace(a.Username) == "" {
		return fmt.Errorf("auth.username cannot be empty")
	}
	if a.Password == "" {
		return fmt.Errorf("auth.password cannot be empty")
	}
	// bcrypt rejects longer inputs
	if len(a.Password) > 72 {
		return fmt.Errorf("auth.password too long (max 72 bytes)")
	}
	return nil
}

// validateAlertConfig validates alert configuration.
func validateAlertConfig(a AlertConfig) error {
	if err := validateEmailConfig(a.Email); err != nil {
		return err
	}
	if err := validateBotConfig(a.Telegram, "telegram"); err != nil {
		return err
	}
	if err := validateWebhookConfig(a.Webhook); err != nil {
		return err
	}
	return nil
}

func validateEmailConfig(e EmailConfig) error {
	if !e.Enabled {
		return nil
	}
	if e.Host == "" {
		return fmt.Errorf("alert.email.host is required when email is enabled")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("alert.email.port out of range (1-65535)")
	}
	if e.From == "" {
		return fmt.Errorf("alert.email.from is required when email is enabled")
	}
	return nil
}

// validateBotConfig validates a bot configuration.
func validateBotConfig(bot BotConfig, botType string) error {
	if bot.Enabled {
		if bot.Token == "" {
			return fmt.Errorf("alert.%s.token is required when %s is enabled", botType, botType)
		}
		if bot.ChatID == "" {
			return fmt.Errorf("alert.%s.chat_id is required when %s is enabled", botType, botType)
		}

		if len(bot.Token) < 10 {
			return fmt.Errorf("alert.%s.token too short (min 10 chars)", botType)
		}
		if len(bot.Token) > 200 {
			return fmt.Errorf("alert.%s.token too long (max 200 chars)", botType)
		}
		if len(bot.ChatID) > 50 {
			return fmt.Errorf("alert.%s.chat_id too long (max 50 chars)", botType)
		}

		if bot.Timeout < time.Second {
			return fmt.Errorf("alert.%s.timeout too small (min 1s)", botType)
		}
		if bot.Timeout > 2*time.Minute {
			return fmt.Errorf("alert.%s.timeout too large (max 2m)", botType)
		}
	}
	return nil
}

func validateWebhookConfig(w WebhookConfig) error {
	if !w.Enabled {
		return nil
	}
	if err := validateHTTPURL(w.URL); err != nil {
		return fmt.Errorf("alert.webhook.url %w", err)
	}
	if w.Timeout < time.Second {
		return fmt.Errorf("alert.webhook.timeout too small (min 1s)")
	}
	return nil
}

// validateSchedulerConfig validates scheduler configuration.
func validateSchedulerConfig(s SchedulerConfig) error {
	if s.WorkerCount <= 0 {
		return fmt.Errorf("scheduler.worker_count must be greater than 0")
	}
	if s.WorkerCount > 1000 {
		return fmt.Errorf("scheduler.worker_count too large (max 1000)")
	}

	if s.DefaultInterval < 5*time.Second {
		return fmt.Errorf("scheduler.default_interval too small (min 5s)")
	}
	if s.DefaultInterval > 24*time.Hour {
		return fmt.Errorf("scheduler.default_interval too large (max 24h)")
	}

	if s.MaxRetries < 0 {
		return fmt.Errorf("scheduler.max_retries cannot be negative")
	}
	if s.MaxRetries > 10 {
		return fmt.Errorf("scheduler.max_retries too large (max 10)")
	}
	if s.RetryBackoff < 0 || s.RetryBackoff > time.Minute {
		return fmt.Errorf("scheduler.retry_backoff must be between 0 and 1m")
	}

	return nil
}

// validateChecksConfig validates the HTTP check defaults.
func validateChecksConfig(c ChecksConfig) error {
	h := c.HTTP
	if h.UserAgent == "" {
		return fmt.Errorf("checks.http.user_agent cannot be empty")
	}
	if h.Timeout < time.Second {
		return fmt.Errorf("checks.http.timeout too small (min 1s)")
	}
	if h.Timeout > 5*time.Minute {
		return fmt.Errorf("checks.http.timeout too large (max 5m)")
	}
	if h.Attempts < 1 || h.Attempts > 10 {
		return fmt.Errorf("checks.http.attempts must be between 1 and 10")
	}
	if h.RetryPause < 0 {
		return fmt.Errorf("checks.http.retry_pause cannot be negative")
	}
	if h.DegradedAfter <= 0 {
		return fmt.Errorf("checks.http.degraded_after must be greater than 0")
	}
	if h.MaxHistory <= 0 {
		return fmt.Errorf("checks.http.max_history must be greater than 0")
	}
	if h.MaxRedirects < 0 {
		return fmt.Errorf("checks.http.max_redirects cannot be negative")
	}
	return nil
}

// validateDashboardConfig validates dashboard client configuration.
func validateDashboardConfig(d DashboardConfig) error {
	if err := validateHTTPURL(d.APIBase); err != nil {
		return fmt.Errorf("dashboard.api_base %w", err)
	}
	if d.RequestTimeout <= 0 {
		return fmt.Errorf("dashboard.request_timeout must be greater than 0")
	}
	if d.PrefsPath == "" {
		return fmt.Errorf("dashboard.prefs_path cannot be empty")
	}
	if !slices.Contains(IntervalOptions, d.DefaultInterval) {
		return fmt.Errorf("dashboard.default_interval must be one of: 30s, 1m, 5m, 15m, 30m, 1h")
	}
	if d.SSHAddr != "" {
		if _, _, err := net.SplitHostPort(d.SSHAddr); err != nil {
			return fmt.Errorf("dashboard.ssh_addr invalid format: %w", err)
		}
	}
	return nil
}

// validateTimeouts checks that a manual check, which runs inside a request,
// can finish before the server or the dashboard gives up on that request.
func validateTimeouts(c *Config) error {
	budget := c.Checks.HTTP.CheckBudget()
	if c.Server.WriteTimeout <= budget {
		return fmt.Errorf("server.write_timeout (%s) must exceed the check budget of %s", c.Server.WriteTimeout, budget)
	}
	if c.Dashboard.RequestTimeout <= budget {
		return fmt.Errorf("dashboard.request_timeout (%s) must exceed the check budget of %s", c.Dashboard.RequestTimeout, budget)
	}
	return nil
}

// validateLogConfig validates log configuration.
func validateLogConfig(l LogConfig) error {
	if !slices.Contains(validLogLevels, strings.ToLower(l.Level)) {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error, fatal, panic")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}
