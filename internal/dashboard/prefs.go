package dashboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// Preference keys.
const (
	KeyLoggedIn             = "loggedIn"
	KeyNotifyDelay          = "notifyDelay"
	KeyNotificationEmail    = "notificationEmail"
	KeyNotificationPhone    = "notificationPhone"
	KeyNotificationsEnabled = "notificationsEnabled"
	KeySoundOn              = "soundOn"
	KeyAutoMonitoring       = "autoMonitoring"
	KeyIntervalTime         = "intervalTime"
)

// NotifyKey is the key of a site's local notification flag.
func NotifyKey(siteID int64) string {
	return fmt.Sprintf("notify_%d", siteID)
}

// Prefs is a small persistent key/value store for dashboard preferences,
// kept apart from the backend.
type Prefs struct {
	db *sql.DB
}

// OpenPrefs opens (and creates if needed) the preference database at path.
func OpenPrefs(path string) (*Prefs, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences: %w", err)
	}
	db.SetMaxOpenConns(1)

	const schema = `CREATE TABLE IF NOT EXISTS prefs (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create preferences table: %w", err)
	}

	return &Prefs{db: db}, nil
}

// Close closes the store.
func (p *Prefs) Close() error {
	return p.db.Close()
}

// Get returns the value of key and whether it was set.
func (p *Prefs) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.db.QueryRowContext(ctx, "SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (p *Prefs) Set(ctx context.Context, key, value string) error {
	_, err := p.db.ExecContext(ctx,
		"INSERT INTO prefs (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Removing a missing key is not an error.
func (p *Prefs) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, "DELETE FROM prefs WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Bool returns the boolean value of key, or def when unset or unparsable.
func (p *Prefs) Bool(ctx context.Context, key string, def bool) bool {
	v, ok, err := p.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Int returns the integer value of key, or def when unset or unparsable.
func (p *Prefs) Int(ctx context.Context, key string, def int) int {
	v, ok, err := p.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// String returns the value of key, or def when unset.
func (p *Prefs) String(ctx context.Context, key, def string) string {
	v, ok, err := p.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	return v
}

// SetBool stores a boolean.
func (p *Prefs) SetBool(ctx context.Context, key string, v bool) error {
	return p.Set(ctx, key, strconv.FormatBool(v))
}

// SetInt stores an integer.
func (p *Prefs) SetInt(ctx context.Context, key string, v int) error {
	return p.Set(ctx, key, strconv.Itoa(v))
}
