package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete configuration schema for webmonitor.
//
// Both the backend service and the dashboard read the same schema; each
// program only consults the sections it needs.
//
// Configuration sources (in order of precedence):
//  1. Defaults
//  2. Configuration file (optional)
//  3. Environment variables
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Alert     AlertConfig     `mapstructure:"alert" yaml:"alert"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Checks    ChecksConfig    `mapstructure:"checks" yaml:"checks"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins" yaml:"cors_origins"`
}

type StorageConfig struct {
	Driver          string        `mapstructure:"driver" yaml:"driver"` // sqlite or postgres
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// AuthConfig holds the single dashboard administrator. The password is
// hashed with bcrypt when the account is seeded.
type AuthConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

type AlertConfig struct {
	Email    EmailConfig   `mapstructure:"email" yaml:"email"`
	Telegram BotConfig     `mapstructure:"telegram" yaml:"telegram"`
	Webhook  WebhookConfig `mapstructure:"webhook" yaml:"webhook"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
	To       string `mapstructure:"to" yaml:"to"` // default recipient when a request names none
}

type BotConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Token   string        `mapstructure:"token" yaml:"token"`
	ChatID  string        `mapstructure:"chat_id" yaml:"chat_id"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type WebhookConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type SchedulerConfig struct {
	WorkerCount     int           `mapstructure:"worker_count" yaml:"worker_count"`
	DefaultInterval time.Duration `mapstructure:"default_interval" yaml:"default_interval"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`

	// RetryBackoff is multiplied by the attempt number between retries
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
}

type ChecksConfig struct {
	HTTP HTTPDefaultsConfig `mapstructure:"http" yaml:"http"`
}

type HTTPDefaultsConfig struct {
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Attempts      int           `mapstructure:"attempts" yaml:"attempts"`
	RetryPause    time.Duration `mapstructure:"retry_pause" yaml:"retry_pause"`
	DegradedAfter time.Duration `mapstructure:"degraded_after" yaml:"degraded_after"`
	MaxHistory    int           `mapstructure:"max_history" yaml:"max_history"`
	VerifySSL     bool          `mapstructure:"verify_ssl" yaml:"verify_ssl"`
	MaxRedirects  int           `mapstructure:"max_redirects" yaml:"max_redirects"`
}

// CheckBudget is the longest a single check can take: every attempt timing
// out plus the pauses between them.
func (h HTTPDefaultsConfig) CheckBudget() time.Duration {
	attempts := max(h.Attempts, 1)
	return time.Duration(attempts)*h.Timeout + time.Duration(attempts-1)*h.RetryPause
}

// DashboardConfig configures the terminal dashboard client.
type DashboardConfig struct {
	APIBase         string        `mapstructure:"api_base" yaml:"api_base"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	PrefsPath       string        `mapstructure:"prefs_path" yaml:"prefs_path"`
	LogFile         string        `mapstructure:"log_file" yaml:"log_file"`
	SSHAddr         string        `mapstructure:"ssh_addr" yaml:"ssh_addr"`
	HostKeyPath     string        `mapstructure:"host_key_path" yaml:"host_key_path"`
	AuthorizedKeys  string        `mapstructure:"authorized_keys" yaml:"authorized_keys"`
	DefaultInterval time.Duration `mapstructure:"default_interval" yaml:"default_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error, fatal, panic
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"` // human-readable console output
}

// Load loads configuration from defaults, the default configuration file
// locations, and environment variables, then validates the result.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is like Load but reads the given configuration file instead of
// searching the default locations. An empty path searches as Load does.
//
// The function fails fast on:
//   - Invalid configuration file
//   - Invalid or missing required configuration values
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Register default values
	setDefaults(v)

	// Environment variable support
	v.SetEnvPrefix("WEBMONITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(false)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("webmonitor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		// Cross-platform config directory
		if configDir := getConfigDir(); configDir != "" {
			v.AddConfigPath(configDir)
		}
	}

	// Read configuration file if present
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	// Secrets nested two levels deep are bound explicitly so they can be
	// supplied through the environment without a config file entry.
	for key, env := range map[string]string{
		"alert.telegram.token":   "WEBMONITOR_ALERT_TELEGRAM_TOKEN",
		"alert.telegram.chat_id": "WEBMONITOR_ALERT_TELEGRAM_CHAT_ID",
		"alert.email.password":   "WEBMONITOR_ALERT_EMAIL_PASSWORD",
		"auth.password":          "WEBMONITOR_AUTH_PASSWORD",
	} {
		if _, exists := os.LookupEnv(env); exists {
			_ = v.BindEnv(key, env)
		}
	}

	// Unmarshal configuration into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalizeConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// getConfigDir returns the appropriate config directory for the current OS
func getConfigDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "webmonitor")
		}
		return ""
	}

	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".webmonitor")
	}
	return ""
}
