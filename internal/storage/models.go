// Package storage defines the data models for the webmonitor system.
//
// All models are plain GORM models. Column names follow GORM's snake_case
// naming; constraints are declared with `gorm` struct tags and migrated
// automatically on startup.
package storage

import (
	"time"
)

// TimeLayout is the format of Site.LastChecked and ResponseRecord.Time.
const TimeLayout = "2006-01-02 15:04:05"

// Site represents a monitored website.
//
// This is the core entity in webmonitor. Each site carries its current
// status, its rolling response history and the flags that control
// background monitoring and alerting.
type Site struct {
	// ID is a server-assigned millisecond timestamp
	ID int64 `gorm:"primaryKey;autoIncrement:false"`

	// Name is a human-readable label for the site
	Name string `gorm:"not null"`

	// URL is the absolute http(s) address that is checked
	URL string `gorm:"not null"`

	// Status is one of the SiteStatus constants
	Status string `gorm:"not null"`

	// LastChecked is the local time of the latest check in TimeLayout,
	// nil until the first check completes
	LastChecked *string

	// Uptime is the response-time weighted up percentage over History
	Uptime float64 `gorm:"not null"`

	// IntervalSeconds defines how often the background monitor checks the site
	IntervalSeconds int `gorm:"not null"`

	// NotificationsEnabled turns on alert delivery for down/recovery transitions
	NotificationsEnabled bool `gorm:"not null"`

	// AutoMonitor includes the site in background scheduling
	AutoMonitor bool `gorm:"not null"`

	// History is ordered oldest first
	History []ResponseRecord `gorm:"foreignKey:SiteID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResponseRecord represents the result of a single check of a site.
type ResponseRecord struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	SiteID int64 `gorm:"not null;index"`

	// Time is the local check time in TimeLayout
	Time string `gorm:"not null"`

	Status string `gorm:"not null"`

	// Ms is the elapsed time in milliseconds, 0 on transport failure
	Ms int64 `gorm:"not null"`

	// Code is the HTTP status code, 0 on transport failure
	Code int `gorm:"not null"`

	// Error holds the reason phrase or failure description
	Error string
}

// Admin represents the dashboard administrator.
//
// Password holds a bcrypt hash, never plaintext.
type Admin struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Username  string `gorm:"not null;uniqueIndex"`
	Password  string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AlertRecord represents one delivery attempt of an alert through a channel.
type AlertRecord struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	SiteID  int64  `gorm:"not null;index"`
	Channel string `gorm:"not null"`
	Status  string `gorm:"not null"`
	Message string `gorm:"not null"`
	Error   string
	SentAt  time.Time `gorm:"not null"`
}

// TableName returns the database table name for Site.
func (*Site) TableName() string {
	return "sites"
}

// Validate validates the Site entity.
func (s *Site) Validate() error {
	return ValidateSite(s)
}

// TableName returns the database table name for ResponseRecord.
func (*ResponseRecord) TableName() string {
	return "response_history"
}

// Validate validates the ResponseRecord entity.
func (r *ResponseRecord) Validate() error {
	return ValidateResponseRecord(r)
}

// TableName returns the database table name for Admin.
func (*Admin) TableName() string {
	return "admins"
}

// Validate validates the Admin entity.
func (a *Admin) Validate() error {
	return ValidateAdmin(a)
}

// TableName returns the database table name for AlertRecord.
func (*AlertRecord) TableName() string {
	return "alert_history"
}

// SiteStatus constants define the possible site statuses.
const (
	StatusUp          = "up"
	StatusDown        = "down"
	StatusHighLatency = "high_latency"
	StatusDegraded    = "degraded"
	StatusUnknown     = "unknown"
)

// AlertStatus constants define the possible alert delivery statuses.
const (
	AlertStatusSent   = "sent"
	AlertStatusFailed = "failed"
)
