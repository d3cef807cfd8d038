package config

import "github.com/spf13/viper"

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Storage defaults
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "webmonitor.db")
	v.SetDefault("storage.max_open_conns", 1)
	v.SetDefault("storage.max_idle_conns", 1)
	v.SetDefault("storage.conn_max_lifetime", "1h")

	// Auth defaults
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "admin")

	// Alert defaults
	v.SetDefault("alert.email.enabled", false)
	v.SetDefault("alert.email.host", "")
	v.SetDefault("alert.email.port", 587)
	v.SetDefault("alert.email.username", "")
	v.SetDefault("alert.email.password", "")
	v.SetDefault("alert.email.from", "webmonitor@localhost")
	v.SetDefault("alert.email.to", "")
	v.SetDefault("alert.telegram.enabled", false)
	v.SetDefault("alert.telegram.token", "")
	v.SetDefault("alert.telegram.chat_id", "")
	v.SetDefault("alert.telegram.timeout", "10s")
	v.SetDefault("alert.webhook.enabled", false)
	v.SetDefault("alert.webhook.url", "")
	v.SetDefault("alert.webhook.timeout", "10s")

	// Scheduler defaults
	v.SetDefault("scheduler.worker_count", 10)
	v.SetDefault("scheduler.default_interval", "30s")
	v.SetDefault("scheduler.max_retries", 1)
	v.SetDefault("scheduler.retry_backoff", "1s")

	// HTTP check defaults
	v.SetDefault("checks.http.user_agent", "Mozilla/5.0 (compatible; WebMonitor/1.0)")
	v.SetDefault("checks.http.timeout", "15s")
	v.SetDefault("checks.http.attempts", 2)
	v.SetDefault("checks.http.retry_pause", "1s")
	v.SetDefault("checks.http.degraded_after", "3s")
	v.SetDefault("checks.http.max_history", 500)
	v.SetDefault("checks.http.verify_ssl", true)
	v.SetDefault("checks.http.max_redirects", 30)

	// Dashboard defaults
	v.SetDefault("dashboard.api_base", "http://localhost:5000")
	v.SetDefault("dashboard.request_timeout", "60s")
	v.SetDefault("dashboard.prefs_path", "webmonitor-dash.db")
	v.SetDefault("dashboard.log_file", "webmonitor-dash.log")
	v.SetDefault("dashboard.ssh_addr", "")
	v.SetDefault("dashboard.host_key_path", ".ssh/id_ed25519")
	v.SetDefault("dashboard.authorized_keys", "authorized_keys")
	v.SetDefault("dashboard.default_interval", "60s")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}
