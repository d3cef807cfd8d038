package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrCheckInProgress is returned when a check of the same site is
	// already in flight.
	ErrCheckInProgress = errors.New("check already running")

	// ErrUnknownSite is returned for a site id the monitor does not hold.
	ErrUnknownSite = errors.New("site not loaded")
)

// streamRetry is the pause before reconnecting the notification stream.
const streamRetry = 5 * time.Second

// EventKind identifies what an Event carries.
type EventKind int

const (
	// EventSites means the site list or a site's state changed.
	EventSites EventKind = iota

	// EventToast is a transient user notification.
	EventToast

	// EventAlarm asks the UI to sound the down alarm.
	EventAlarm
)

// Toast levels.
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// Event is a UI update emitted by the monitor.
type Event struct {
	Kind    EventKind
	Level   string
	Message string
	Time    time.Time
}

// Monitor owns the dashboard state: the site list, the per-site check
// guard, the settings and the auto-monitoring timer.
type Monitor struct {
	client *Client
	prefs  *Prefs

	mu        sync.Mutex
	sites     []Site
	settings  Settings
	shadow    map[int64]bool
	lastAlert map[int64]time.Time

	subMu   sync.RWMutex
	subs    map[int]chan Event
	nextSub int
	events  <-chan Event

	ctx         context.Context
	cancel      context.CancelFunc
	timerCancel context.CancelFunc
	wg          sync.WaitGroup

	now func() time.Time
}

// NewMonitor creates a monitor. prefs may be nil, in which case nothing
// is persisted.
func NewMonitor(client *Client, prefs *Prefs, settings Settings) *Monitor {
	m := &Monitor{
		client:    client,
		prefs:     prefs,
		settings:  settings,
		shadow:    make(map[int64]bool),
		lastAlert: make(map[int64]time.Time),
		subs:      make(map[int]chan Event),
		now:       time.Now,
	}
	m.events, _ = m.Subscribe()
	return m
}

// Start loads the sites, starts the auto-monitoring timer when enabled and
// follows the backend notification stream until ctx is done or Stop is
// called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	runCtx := m.ctx
	m.mu.Unlock()

	if err := m.Load(runCtx); err != nil {
		log.Warn().Err(err).Msg("Initial site load failed")
	}

	m.restartTimer()

	m.wg.Add(1)
	go m.follow(runCtx)
}

// Stop cancels the timer and the stream and waits for them to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Events returns the monitor's default event channel.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Subscribe returns an additional event channel and its cancel function.
// Events are dropped for subscribers that do not keep up.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

// Sites returns a snapshot of the held site list.
func (m *Monitor) Sites() []Site {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Site, len(m.sites))
	copy(out, m.sites)
	return out
}

// Site returns a snapshot of one site.
func (m *Monitor) Site(id int64) (Site, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexLocked(id); i >= 0 {
		return m.sites[i], true
	}
	return Site{}, false
}

// Settings returns the current settings.
func (m *Monitor) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Load replaces the held list with the backend's.
func (m *Monitor) Load(ctx context.Context) error {
	sites, err := m.client.ListSites(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load sites")
		m.toast(LevelError, "Failed to load sites")
		return err
	}

	m.loadShadows(ctx, sites)

	m.mu.Lock()
	m.replaceLocked(sites)
	m.mu.Unlock()

	m.emit(Event{Kind: EventSites})
	m.soundAlarm()
	return nil
}

// RunCycle performs one auto-monitoring pass: it refreshes the site list,
// checks every site concurrently and merges the results.
//
// Sites whose check is already in flight are skipped. A failed refresh
// aborts the cycle; failed site checks do not affect the others but turn
// the cycle result into a failure.
func (m *Monitor) RunCycle(ctx context.Context) error {
	sites, err := m.client.ListSites(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Auto-monitor refresh failed")
		m.toast(LevelError, "Auto-monitor cycle failed")
		return fmt.Errorf("failed to refresh sites: %w", err)
	}

	m.loadShadows(ctx, sites)

	m.mu.Lock()
	m.replaceLocked(sites)
	var ids []int64
	for i := range m.sites {
		if m.sites[i].Checking {
			continue
		}
		m.sites[i].Checking = true
		ids = append(ids, m.sites[i].ID)
	}
	m.mu.Unlock()

	m.emit(Event{Kind: EventSites})

	var wg sync.WaitGroup
	var failed atomic.Int32
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			defer m.release(id)

			if _, err := m.check(ctx, id); err != nil {
				failed.Add(1)
				log.Warn().Int64("site_id", id).Err(err).Msg("Auto check failed")
			}
		}(id)
	}
	wg.Wait()

	m.emit(Event{Kind: EventSites})
	m.soundAlarm()

	if n := failed.Load(); n > 0 {
		m.toast(LevelError, "Auto-monitor cycle failed")
		return fmt.Errorf("%d of %d site checks failed", n, len(ids))
	}

	log.Info().Int("sites", len(ids)).Msg("Auto-monitor cycle completed")
	m.toast(LevelInfo, "Auto-monitor cycle completed")
	return nil
}

// CheckSite checks one site now. A second call for a site whose check is
// still in flight fails with ErrCheckInProgress without contacting the
// backend.
func (m *Monitor) CheckSite(ctx context.Context, id int64) (*Site, error) {
	if err := m.acquire(id); err != nil {
		if errors.Is(err, ErrCheckInProgress) {
			m.toast(LevelError, "Check already running")
		}
		return nil, err
	}
	defer m.release(id)

	site, err := m.check(ctx, id)
	if err != nil {
		log.Error().Int64("site_id", id).Err(err).Msg("Manual check failed")
		m.toast(LevelError, "Manual check failed: "+err.Error())
		return nil, err
	}

	m.toast(LevelSuccess, "Manual check completed")
	m.soundAlarm()
	return site, nil
}

// ToggleNotifications flips a site's notification flag on the backend and
// in the local store.
func (m *Monitor) ToggleNotifications(ctx context.Context, id int64) (*Site, error) {
	current, ok := m.Site(id)
	if !ok {
		return nil, ErrUnknownSite
	}

	enabled := !current.NotificationsEnabled
	site, err := m.client.UpdateSite(ctx, id, SitePatch{NotificationsEnabled: &enabled})
	if err != nil {
		log.Error().Int64("site_id", id).Err(err).Msg("Toggle notifications failed")
		m.toast(LevelError, "Failed to toggle notifications")
		return nil, err
	}

	if m.prefs != nil {
		if err := m.prefs.SetBool(ctx, NotifyKey(id), enabled); err != nil {
			log.Warn().Int64("site_id", id).Err(err).Msg("Failed to persist notification flag")
		}
	}

	m.mu.Lock()
	m.shadow[id] = enabled
	site.NotificationsEnabled = enabled
	m.mergeLocked(*site)
	m.mu.Unlock()

	if enabled {
		m.toast(LevelSuccess, "Notifications enabled")
	} else {
		m.toast(LevelSuccess, "Notifications disabled")
	}
	m.emit(Event{Kind: EventSites})
	return site, nil
}

// DeleteSite removes a site on the backend and clears its local flag.
func (m *Monitor) DeleteSite(ctx context.Context, id int64) error {
	if _, err := m.client.DeleteSite(ctx, id); err != nil {
		log.Error().Int64("site_id", id).Err(err).Msg("Delete failed")
		m.toast(LevelError, "Failed to delete site")
		return err
	}

	if m.prefs != nil {
		if err := m.prefs.Delete(ctx, NotifyKey(id)); err != nil {
			log.Warn().Int64("site_id", id).Err(err).Msg("Failed to clear notification flag")
		}
	}

	m.mu.Lock()
	if i := m.indexLocked(id); i >= 0 {
		m.sites = append(m.sites[:i], m.sites[i+1:]...)
	}
	delete(m.shadow, id)
	delete(m.lastAlert, id)
	m.mu.Unlock()

	m.toast(LevelSuccess, "Site deleted")
	m.emit(Event{Kind: EventSites})
	return nil
}

// SaveSite submits the form and reloads the list on success.
func (m *Monitor) SaveSite(ctx context.Context, form *SiteForm) (*Site, error) {
	site, err := form.Submit(ctx, m.client)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("site_id", site.ID).Str("name", site.Name).Msg("Site saved")
	m.toast(LevelSuccess, "Site saved")

	_ = m.Load(ctx)
	return site, nil
}

// SetAutoMonitoring turns the auto-monitoring timer on or off.
func (m *Monitor) SetAutoMonitoring(on bool) {
	m.updateSettings(func(s *Settings) { s.AutoMonitoring = on })
	m.restartTimer()
}

// SetInterval changes the auto-monitoring interval and restarts the timer.
func (m *Monitor) SetInterval(d time.Duration) error {
	if !ValidInterval(d) {
		return fmt.Errorf("unsupported interval %s", d)
	}
	m.updateSettings(func(s *Settings) { s.Interval = d })
	m.restartTimer()
	return nil
}

// SetSound turns the down alarm on or off.
func (m *Monitor) SetSound(on bool) {
	m.updateSettings(func(s *Settings) { s.SoundOn = on })
	m.soundAlarm()
}

// SetNotifyDelay sets the minimum time between alerts for one site.
func (m *Monitor) SetNotifyDelay(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("notify delay cannot be negative")
	}
	m.updateSettings(func(s *Settings) { s.NotifyDelay = d })
	return nil
}

// SetContact sets the alert email and phone.
func (m *Monitor) SetContact(email, phone string) {
	m.updateSettings(func(s *Settings) {
		s.Email = email
		s.Phone = phone
	})
}

// SetNotificationsEnabled turns dashboard email alerts on or off.
func (m *Monitor) SetNotificationsEnabled(on bool) {
	m.updateSettings(func(s *Settings) { s.NotificationsEnabled = on })
}

// check fetches a fresh result for a site, merges it and raises an alert
// when needed. The caller holds the site's guard.
func (m *Monitor) check(ctx context.Context, id int64) (*Site, error) {
	site, err := m.client.CheckSite(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if v, ok := m.shadow[id]; ok {
		site.NotificationsEnabled = v
	}
	m.mergeLocked(*site)
	m.mu.Unlock()

	m.emit(Event{Kind: EventSites})
	m.maybeNotify(ctx, site)
	return site, nil
}

// maybeNotify asks the backend to alert about a down site, at most once
// per NotifyDelay per site.
func (m *Monitor) maybeNotify(ctx context.Context, site *Site) {
	if site.Status != StatusDown || !site.NotificationsEnabled {
		return
	}

	m.mu.Lock()
	settings := m.settings
	last, seen := m.lastAlert[site.ID]
	now := m.now()
	if !settings.NotificationsEnabled || settings.Email == "" {
		m.mu.Unlock()
		return
	}
	if seen && now.Sub(last) < settings.NotifyDelay {
		m.mu.Unlock()
		log.Debug().Int64("site_id", site.ID).Msg("Alert throttled")
		return
	}
	m.lastAlert[site.ID] = now
	m.mu.Unlock()

	err := m.client.Notify(ctx, NotifyRequest{
		SiteID:  site.ID,
		Email:   settings.Email,
		Phone:   settings.Phone,
		Message: fmt.Sprintf("%s (%s) is DOWN: %s", site.Name, site.URL, CardError(site)),
	})
	if err != nil {
		log.Error().Int64("site_id", site.ID).Err(err).Msg("Failed to send alert")
		m.toast(LevelError, "Failed to send alert: "+err.Error())
		return
	}

	log.Info().Int64("site_id", site.ID).Str("email", settings.Email).Msg("Alert sent")
	m.toast(LevelInfo, fmt.Sprintf("Alert sent for %s", site.Name))
}

func (m *Monitor) acquire(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexLocked(id)
	if i < 0 {
		return ErrUnknownSite
	}
	if m.sites[i].Checking {
		return ErrCheckInProgress
	}
	m.sites[i].Checking = true
	return nil
}

func (m *Monitor) release(id int64) {
	m.mu.Lock()
	if i := m.indexLocked(id); i >= 0 {
		m.sites[i].Checking = false
	}
	m.mu.Unlock()
}

func (m *Monitor) indexLocked(id int64) int {
	for i := range m.sites {
		if m.sites[i].ID == id {
			return i
		}
	}
	return -1
}

// replaceLocked installs a fresh list, keeping in-flight guards and local
// notification flags.
func (m *Monitor) replaceLocked(sites []Site) {
	checking := make(map[int64]bool)
	for _, s := range m.sites {
		if s.Checking {
			checking[s.ID] = true
		}
	}

	for i := range sites {
		sites[i].Checking = checking[sites[i].ID]
		if v, ok := m.shadow[sites[i].ID]; ok {
			sites[i].NotificationsEnabled = v
		}
	}
	m.sites = sites
}

// mergeLocked replaces the entry with the same id, keeping its guard.
func (m *Monitor) mergeLocked(site Site) {
	i := m.indexLocked(site.ID)
	if i < 0 {
		return
	}
	site.Checking = m.sites[i].Checking
	m.sites[i] = site
}

// loadShadows reads the local notification flags of sites not cached yet.
func (m *Monitor) loadShadows(ctx context.Context, sites []Site) {
	if m.prefs == nil {
		return
	}

	for _, s := range sites {
		m.mu.Lock()
		_, cached := m.shadow[s.ID]
		m.mu.Unlock()
		if cached {
			continue
		}

		v, ok, err := m.prefs.Get(ctx, NotifyKey(s.ID))
		if err != nil || !ok {
			continue
		}
		m.mu.Lock()
		m.shadow[s.ID] = v == "true"
		m.mu.Unlock()
	}
}

func (m *Monitor) updateSettings(fn func(*Settings)) {
	m.mu.Lock()
	fn(&m.settings)
	settings := m.settings
	m.mu.Unlock()

	if m.prefs != nil {
		if err := SaveSettings(context.Background(), m.prefs, settings); err != nil {
			log.Warn().Err(err).Msg("Failed to persist settings")
		}
	}
	m.emit(Event{Kind: EventSites})
}

// restartTimer stops the running timer and starts a new one when auto
// monitoring is on. In-flight cycles keep running.
func (m *Monitor) restartTimer() {
	m.mu.Lock()
	if m.timerCancel != nil {
		m.timerCancel()
		m.timerCancel = nil
	}
	if m.ctx == nil || m.ctx.Err() != nil || !m.settings.AutoMonitoring {
		m.mu.Unlock()
		return
	}

	runCtx := m.ctx
	timerCtx, cancel := context.WithCancel(runCtx)
	m.timerCancel = cancel
	interval := m.settings.Interval
	m.wg.Add(1)
	m.mu.Unlock()

	log.Info().Dur("interval", interval).Msg("Auto-monitoring started")

	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-timerCtx.Done():
				return
			case <-ticker.C:
				_ = m.RunCycle(runCtx)
			}
		}
	}()
}

// follow turns backend stream messages into toasts, reconnecting until ctx
// is done.
func (m *Monitor) follow(ctx context.Context) {
	defer m.wg.Done()

	for {
		err := m.client.Stream(ctx, func(msg string) {
			m.toast(LevelInfo, msg)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Debug().Err(err).Msg("Notification stream unavailable")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(streamRetry):
		}
	}
}

func (m *Monitor) soundAlarm() {
	m.mu.Lock()
	on := m.settings.SoundOn
	down := 0
	for _, s := range m.sites {
		if s.Status == StatusDown {
			down++
		}
	}
	m.mu.Unlock()

	if on && down > 0 {
		m.emit(Event{Kind: EventAlarm, Message: fmt.Sprintf("%d site(s) down", down)})
	}
}

func (m *Monitor) toast(level, message string) {
	m.emit(Event{Kind: EventToast, Level: level, Message: message})
}

func (m *Monitor) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	m.subMu.RLock()
	defer m.subMu.RUnlock()
	for _, ch := range m.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
