// Package core provides site management and check execution for the engine.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"webmonitor/internal/alert"
	"webmonitor/internal/events"
	"webmonitor/internal/storage"

	"github.com/rs/zerolog/log"
)

const (
	// alertTimeout bounds a single alert fan-out.
	alertTimeout = 30 * time.Second

	// recordGrace is added to the check budget for loading and storing
	// the site around a client-driven check.
	recordGrace = 5 * time.Second
)

// ErrDeliveryFailed is returned by Notify when at least one channel failed.
var ErrDeliveryFailed = errors.New("alert delivery failed")

// CreateSiteInput carries the user-supplied fields of a new site.
type CreateSiteInput struct {
	Name            string
	URL             string
	IntervalSeconds int
}

// NotifyInput carries an out-of-band alert request for a site.
type NotifyInput struct {
	SiteID  int64
	Email   string
	Phone   string
	Message string
}

// ListSites returns all sites with their history.
func (e *Engine) ListSites(ctx context.Context) ([]storage.Site, error) {
	return e.sites.List(ctx)
}

// GetSite returns a single site.
func (e *Engine) GetSite(ctx context.Context, id int64) (*storage.Site, error) {
	return e.sites.Get(ctx, id)
}

// CreateSite stores a new site, performs its first check immediately and
// schedules it for background monitoring.
//
// New sites start with status unknown, uptime 100, an empty history,
// auto monitoring on and notifications off.
//
// Parameters:
//   - ctx: Context for cancellation
//   - in: User-supplied site fields
//
// Returns:
//   - *storage.Site: The site after its first check
//   - error: storage.ErrInvalidSite wrapped for invalid input
func (e *Engine) CreateSite(ctx context.Context, in CreateSiteInput) (*storage.Site, error) {
	interval := in.IntervalSeconds
	if interval == 0 {
		interval = int(e.config.Scheduler.DefaultInterval / time.Second)
	}

	site := &storage.Site{
		Name:                 strings.TrimSpace(in.Name),
		URL:                  strings.TrimSpace(in.URL),
		Status:               storage.StatusUnknown,
		IntervalSeconds:      interval,
		AutoMonitor:          true,
		NotificationsEnabled: false,
	}
	if err := e.sites.Create(ctx, site); err != nil {
		return nil, err
	}

	log.Info().Int64("site_id", site.ID).Str("name", site.Name).Str("url", site.URL).Msg("Site added")

	checkCtx, cancel := e.checkContext(ctx)
	checked, err := e.PerformCheck(checkCtx, site.ID)
	cancel()
	if err != nil {
		log.Warn().Int64("site_id", site.ID).Str("url", site.URL).Err(err).Msg("Initial check failed")
	} else {
		site = checked
	}

	if e.IsRunning() {
		// The initial check already ran
		if err := e.scheduleSite(site, true); err != nil {
			log.Error().Int64("site_id", site.ID).Err(err).Msg("Failed to schedule site")
		}
	}

	return site, nil
}

// UpdateSite applies a partial update and reschedules the site.
func (e *Engine) UpdateSite(ctx context.Context, id int64, upd storage.SiteUpdate) (*storage.Site, error) {
	lock := e.siteLock(id)
	lock.Lock()
	site, err := e.sites.Update(ctx, id, upd)
	lock.Unlock()

	if err != nil {
		return nil, err
	}

	log.Info().Int64("site_id", id).Msg("Site updated")

	if e.IsRunning() {
		if site.AutoMonitor {
			if err := e.scheduleSite(site, true); err != nil {
				log.Error().Int64("site_id", id).Err(err).Msg("Failed to reschedule site")
			}
		} else {
			e.unscheduleSite(id)
		}
	}

	return site, nil
}

// DeleteSite removes a site and returns the remaining sites.
func (e *Engine) DeleteSite(ctx context.Context, id int64) ([]storage.Site, error) {
	e.unscheduleSite(id)

	lock := e.siteLock(id)
	lock.Lock()
	err := e.sites.Delete(ctx, id)
	lock.Unlock()
	e.siteLocks.Delete(id)

	if err != nil {
		return nil, err
	}

	log.Info().Int64("site_id", id).Msg("Site deleted")
	return e.sites.List(ctx)
}

// CheckSite checks a site on behalf of a client. The check is detached
// from ctx cancellation, so its result is recorded even if the client
// disconnects before it completes.
func (e *Engine) CheckSite(ctx context.Context, id int64) (*storage.Site, error) {
	checkCtx, cancel := e.checkContext(ctx)
	defer cancel()
	return e.PerformCheck(checkCtx, id)
}

// checkContext keeps the values of ctx but not its cancellation, bounded
// by the longest a check can take.
func (e *Engine) checkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.config.Checks.HTTP.CheckBudget()+recordGrace)
}

// PerformCheck checks a site now, records the result and processes any
// status transition.
//
// Parameters:
//   - ctx: Context for cancellation
//   - id: Site ID
//
// Returns:
//   - *storage.Site: Updated site
//   - error: storage.ErrNotFound if the site does not exist
func (e *Engine) PerformCheck(ctx context.Context, id int64) (*storage.Site, error) {
	lock := e.siteLock(id)
	lock.Lock()
	defer lock.Unlock()

	site, err := e.sites.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := site.Status

	result, err := e.checker.ExecuteCheck(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("check of site %d failed: %w", id, err)
	}

	updated, err := e.sites.AppendResult(ctx, id, result.Record(), e.config.Checks.HTTP.MaxHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to record result of site %d: %w", id, err)
	}

	log.Info().
		Int64("site_id", id).
		Str("status", updated.Status).
		Int64("ms", result.Ms).
		Int("code", result.Code).
		Float64("uptime", updated.Uptime).
		Msg("Site checked")

	e.hub.Publish(events.NewEvent(events.TypeSiteChecked, id, updated.Status,
		fmt.Sprintf("%s checked: %s", updated.Name, updated.Status)))

	e.processTransition(previous, updated, result.Error)

	return updated, nil
}

// processTransition publishes and alerts on down and recovery transitions.
func (e *Engine) processTransition(previous string, site *storage.Site, reason string) {
	var a alert.Alert
	var eventType string

	switch {
	case site.Status == storage.StatusDown && previous != storage.StatusDown:
		a = alert.DownAlert(site, reason)
		eventType = events.TypeSiteDown
	case previous == storage.StatusDown && site.Status == storage.StatusUp:
		a = alert.RecoveryAlert(site)
		eventType = events.TypeSiteRecovered
	default:
		return
	}

	e.hub.Publish(events.NewEvent(eventType, site.ID, site.Status, a.Message))

	if !site.NotificationsEnabled {
		return
	}

	deliver := func() {
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()

		if err := e.alerter.Send(ctx, a); err != nil && !errors.Is(err, alert.ErrNoChannels) {
			log.Warn().Int64("site_id", site.ID).Err(err).Msg("Alert delivery incomplete")
		}
	}

	// Once Stop is waiting on wg, deliveries run on the caller
	e.alertMu.Lock()
	if e.alertsDrained {
		e.alertMu.Unlock()
		deliver()
		return
	}
	e.wg.Add(1)
	e.alertMu.Unlock()

	go func() {
		defer e.wg.Done()
		deliver()
	}()
}

// Notify sends an out-of-band alert about a site through the enabled
// channels and publishes it to the notification stream.
//
// Returns:
//   - []string: Channels the alert was sent through
//   - error: storage.ErrNotFound, alert.ErrNoChannels or ErrDeliveryFailed
func (e *Engine) Notify(ctx context.Context, in NotifyInput) ([]string, error) {
	site, err := e.sites.Get(ctx, in.SiteID)
	if err != nil {
		return nil, err
	}

	reason := "Unknown Error"
	if n := len(site.History); n > 0 && site.History[n-1].Error != "" {
		reason = site.History[n-1].Error
	}

	a := alert.DownAlert(site, reason)
	a.Status = site.Status
	if in.Message != "" {
		a.Message = in.Message
	}
	a.Email = in.Email
	a.Phone = in.Phone

	e.hub.Publish(events.NewEvent(events.TypeNotification, site.ID, site.Status, a.Message))

	if err := e.alerter.Send(ctx, a); err != nil {
		if errors.Is(err, alert.ErrNoChannels) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return e.alerter.Channels(), nil
}

// scheduleSite schedules (or reschedules) periodic checks for a site.
func (e *Engine) scheduleSite(site *storage.Site, delayed bool) error {
	interval := time.Duration(site.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = e.config.Scheduler.DefaultInterval
	}

	id := site.ID
	job := Job{
		ID:       siteJobID(id),
		Interval: interval,
		Delayed:  delayed,
		Task: func(ctx context.Context) error {
			_, err := e.PerformCheck(ctx, id)
			if errors.Is(err, storage.ErrNotFound) {
				// Deleted between ticks
				e.unscheduleSite(id)
				return nil
			}
			return err
		},
	}

	return e.scheduler.Schedule(job)
}

func (e *Engine) unscheduleSite(id int64) {
	e.scheduler.Unschedule(siteJobID(id))
}

func siteJobID(id int64) string {
	return fmt.Sprintf("site_%d", id)
}
