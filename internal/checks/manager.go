// Package checks provides monitoring check implementations for webmonitor.
//
// Each check type implements the Checker interface. Sites are checked
// over HTTP/HTTPS; the Manager routes a site to the checker registered
// for its URL scheme.
//
// Example usage:
//
//	manager := checks.NewManager(cfg.Checks)
//	result, err := manager.ExecuteCheck(ctx, site)
package checks

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"webmonitor/internal/config"
	"webmonitor/internal/storage"

	"github.com/rs/zerolog/log"
)

// Checker defines the interface that all check types must implement.
type Checker interface {
	// Check executes the monitoring check and returns the result.
	Check(ctx context.Context, site *storage.Site) (*Result, error)

	// Type returns the check type identifier.
	Type() string
}

// schemeTypes maps URL schemes to checker types.
var schemeTypes = map[string]string{
	"http":  "http",
	"https": "http",
}

// Manager manages different types of monitoring checks.
// It routes check execution to the appropriate checker implementation.
type Manager struct {
	checkers map[string]Checker
}

// NewManager creates a new check manager with all available checkers.
//
// Parameters:
//   - cfg: Check defaults
//
// Returns:
//   - *Manager: Initialized check manager
func NewManager(cfg config.ChecksConfig) *Manager {
	manager := &Manager{
		checkers: make(map[string]Checker),
	}

	manager.registerChecker(NewHTTPChecker(cfg.HTTP))

	return manager
}

// registerChecker registers a checker with the manager.
func (m *Manager) registerChecker(checker Checker) {
	m.checkers[checker.Type()] = checker
	log.Debug().Str("type", checker.Type()).Msg("Checker registered")
}

// ExecuteCheck executes a monitoring check for a site.
// It routes the check to the checker matching the site URL's scheme.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - site: Site to check
//
// Returns:
//   - *Result: Result of the check
//   - error: Any error that prevented the check from completing
func (m *Manager) ExecuteCheck(ctx context.Context, site *storage.Site) (*Result, error) {
	u, err := url.Parse(site.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid site url: %w", err)
	}

	checker, exists := m.checkers[schemeTypes[u.Scheme]]
	if !exists {
		return nil, fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}

	log.Debug().Int64("site_id", site.ID).Str("type", checker.Type()).Str("url", site.URL).Msg("Executing check")

	result, err := checker.Check(ctx, site)
	if err != nil {
		log.Error().Int64("site_id", site.ID).Str("type", checker.Type()).Err(err).Msg("Check failed")
		return nil, err
	}

	log.Debug().
		Int64("site_id", site.ID).
		Str("status", result.Status).
		Int64("ms", result.Ms).
		Int("code", result.Code).
		Msg("Check completed")
	return result, nil
}

// GetSupportedTypes returns a sorted list of supported check types.
func (m *Manager) GetSupportedTypes() []string {
	types := make([]string, 0, len(m.checkers))
	for checkType := range m.checkers {
		types = append(types, checkType)
	}
	sort.Strings(types)
	return types
}
