// Package core provides the core monitoring engine for the webmonitor system.
//
// The core engine is responsible for:
//   - Managing per-site monitoring schedules
//   - Executing checks and recording their results
//   - Triggering alerts on status transitions
//   - Publishing events to live subscribers
package core

import (
	"context"
	"fmt"
	"sync"

	"webmonitor/internal/alert"
	"webmonitor/internal/checks"
	"webmonitor/internal/config"
	"webmonitor/internal/events"
	"webmonitor/internal/storage"

	"github.com/rs/zerolog/log"
)

// Engine represents the core monitoring engine.
// It orchestrates all monitoring activities and manages the lifecycle of sites.
type Engine struct {
	config    *config.Config
	storage   *storage.Storage
	sites     *storage.SiteRepository
	scheduler *Scheduler
	alerter   *alert.Manager
	checker   *checks.Manager
	hub       *events.Hub

	// siteLocks serializes checks and mutations per site
	siteLocks sync.Map

	// Internal state
	running bool
	mu      sync.RWMutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// alertsDrained is set while Stop waits for background alerts
	alertMu       sync.Mutex
	alertsDrained bool
}

// NewEngine creates a new monitoring engine with the given configuration.
//
// Parameters:
//   - cfg: Application configuration
//   - store: Storage instance for data persistence
//   - hub: Event hub receiving check and alert events
//
// Returns:
//   - *Engine: Initialized engine instance
//   - error: Any error that occurred during initialization
func NewEngine(cfg *config.Config, store *storage.Storage, hub *events.Hub) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if hub == nil {
		hub = events.NewHub(16)
	}

	repos := store.Repositories()

	engine := &Engine{
		config:    cfg,
		storage:   store,
		sites:     repos.Sites,
		scheduler: NewScheduler(cfg.Scheduler),
		alerter:   alert.NewManager(cfg.Alert, repos.Alerts),
		checker:   checks.NewManager(cfg.Checks),
		hub:       hub,
	}

	return engine, nil
}

// Start starts the monitoring engine and all its components.
// It loads auto-monitored sites from storage and begins scheduling checks.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: Any error that occurred during startup
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return fmt.Errorf("engine is already running")
	}

	engineCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	log.Info().Msg("Starting monitoring engine")

	sites, err := e.sites.List(engineCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to load sites: %w", err)
	}

	log.Info().Int("count", len(sites)).Msg("Loaded sites")

	if err := e.scheduler.Start(engineCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	for i := range sites {
		if !sites[i].AutoMonitor {
			continue
		}
		if err := e.scheduleSite(&sites[i], false); err != nil {
			log.Error().Int64("site_id", sites[i].ID).Str("name", sites[i].Name).Err(err).Msg("Failed to schedule site")
		}
	}

	e.alertMu.Lock()
	e.alertsDrained = false
	e.alertMu.Unlock()

	e.running = true
	log.Info().
		Int("scheduled", e.scheduler.Len()).
		Strs("alert_channels", e.alerter.Channels()).
		Msg("Monitoring engine started successfully")

	return nil
}

// IsRunning returns whether the engine is currently running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Stop stops the monitoring engine and all its components gracefully.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	log.Info().Msg("Stopping monitoring engine")

	if e.cancel != nil {
		e.cancel()
	}

	e.scheduler.Stop()

	// Wait for in-flight alert deliveries
	e.alertMu.Lock()
	e.alertsDrained = true
	e.alertMu.Unlock()
	e.wg.Wait()
	e.running = false
	log.Info().Msg("Monitoring engine stopped")
}

// ScheduledSites returns the number of sites with an active background job.
func (e *Engine) ScheduledSites() int {
	return e.scheduler.Len()
}

// AlertChannels returns the enabled alert channel names.
func (e *Engine) AlertChannels() []string {
	return e.alerter.Channels()
}

// CheckTypes returns the supported check types.
func (e *Engine) CheckTypes() []string {
	return e.checker.GetSupportedTypes()
}

// Events returns the engine's event hub.
func (e *Engine) Events() *events.Hub {
	return e.hub
}

// Storage returns the engine's storage.
func (e *Engine) Storage() *storage.Storage {
	return e.storage
}

func (e *Engine) siteLock(id int64) *sync.Mutex {
	lock, _ := e.siteLocks.LoadOrStore(id, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
