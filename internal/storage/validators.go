// Package storage provides validation functions for database entities.
package storage

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// Interval bounds for background monitoring, in seconds.
const (
	MinIntervalSeconds = 5
	MaxIntervalSeconds = 86400
)

// ValidateSite validates a complete Site entity before database operations.
func ValidateSite(site *Site) error {
	name := strings.TrimSpace(site.Name)
	if name == "" {
		return fmt.Errorf("site name cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("site name too long (max 100 chars)")
	}
	if strings.ContainsFunc(name, unicode.IsControl) {
		return fmt.Errorf("site name cannot contain control characters")
	}

	if err := ValidateSiteURL(site.URL); err != nil {
		return err
	}

	if !IsValidStatus(site.Status) {
		return fmt.Errorf("invalid site status: %s", site.Status)
	}

	if site.IntervalSeconds < MinIntervalSeconds || site.IntervalSeconds > MaxIntervalSeconds {
		return fmt.Errorf("interval must be between %d and %d seconds", MinIntervalSeconds, MaxIntervalSeconds)
	}

	if site.Uptime < 0 || site.Uptime > 100 {
		return fmt.Errorf("uptime out of range: %v", site.Uptime)
	}

	return nil
}

// ValidateSiteURL validates that target is an absolute http(s) URL with a host.
func ValidateSiteURL(target string) error {
	if strings.TrimSpace(target) == "" {
		return fmt.Errorf("site url cannot be empty")
	}

	parsedURL, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("invalid scheme: %q (only http and https supported)", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	if host == "" {
		return fmt.Errorf("missing host")
	}
	if len(host) > 253 {
		return fmt.Errorf("hostname too long")
	}

	if net.ParseIP(host) != nil {
		return nil
	}

	if strings.Contains(host, "..") ||
		strings.HasPrefix(host, ".") ||
		strings.HasSuffix(host, ".") {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}

// ValidateResponseRecord validates a ResponseRecord before it is appended.
func ValidateResponseRecord(r *ResponseRecord) error {
	if r.SiteID == 0 {
		return fmt.Errorf("site ID cannot be empty")
	}
	if r.Time == "" {
		return fmt.Errorf("record time cannot be empty")
	}
	if !IsValidStatus(r.Status) || r.Status == StatusUnknown {
		return fmt.Errorf("invalid record status: %s", r.Status)
	}
	if r.Ms < 0 {
		return fmt.Errorf("response time cannot be negative")
	}
	if r.Code < 0 || r.Code > 999 {
		return fmt.Errorf("invalid status code: %d", r.Code)
	}
	return nil
}

// ValidateAdmin validates a complete Admin entity before database operations.
func ValidateAdmin(admin *Admin) error {
	if admin.Username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(admin.Username) > 50 {
		return fmt.Errorf("username too long (max 50 chars)")
	}
	if !usernameRegex.MatchString(admin.Username) {
		return fmt.Errorf("username contains invalid characters")
	}

	// Password should be a bcrypt hash at this point
	if admin.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if !strings.HasPrefix(admin.Password, "$2") {
		return fmt.Errorf("password must be hashed")
	}

	return nil
}

// IsValidStatus validates if a site status is known.
func IsValidStatus(status string) bool {
	switch status {
	case StatusUp, StatusDown, StatusHighLatency, StatusDegraded, StatusUnknown:
		return true
	default:
		return false
	}
}
