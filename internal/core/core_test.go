package core

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"webmonitor/internal/alert"
	"webmonitor/internal/config"
	"webmonitor/internal/events"
	"webmonitor/internal/storage"
)

type fakeProvider struct {
	mu   sync.Mutex
	sent []alert.Alert
	got  chan alert.Alert
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{got: make(chan alert.Alert, 8)}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Send(_ context.Context, a alert.Alert) error {
	f.mu.Lock()
	f.sent = append(f.sent, a)
	f.mu.Unlock()
	f.got <- a
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "core.db")
	cfg.Checks.HTTP.Attempts = 1
	cfg.Checks.HTTP.Timeout = 2 * time.Second
	cfg.Checks.HTTP.RetryPause = 10 * time.Millisecond
	cfg.Alert = config.AlertConfig{}
	cfg.Scheduler.MaxRetries = 0
	cfg.Scheduler.RetryBackoff = 10 * time.Millisecond
	return cfg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return newTestEngineWith(t, testConfig(t))
}

func newTestEngineWith(t *testing.T, cfg *config.Config) *Engine {
	t.Helper()

	store, err := storage.New(cfg.Storage)
	if err != nil {
		t.Fatalf("Failed to open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine, err := NewEngine(cfg, store, events.NewHub(64))
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(engine.Stop)
	return engine
}

// switchableServer answers 200 or 500 depending on the flag.
func switchableServer(t *testing.T) (*httptest.Server, *atomic.Bool) {
	t.Helper()

	failing := &atomic.Bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, failing
}

// hangingServer accepts requests and never answers them.
func hangingServer(t *testing.T) *httptest.Server {
	t.Helper()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv
}

func waitEvent(t *testing.T, ch <-chan events.Event, eventType string) events.Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type == eventType {
				return e
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for %s event", eventType)
			return events.Event{}
		}
	}
}

func TestEngineCreateSite(t *testing.T) {
	ctx := context.Background()

	t.Run("Runs initial check and forces monitoring flags", func(t *testing.T) {
		engine := newTestEngine(t)
		srv, _ := switchableServer(t)

		site, err := engine.CreateSite(ctx, CreateSiteInput{Name: "  Shop ", URL: srv.URL, IntervalSeconds: 60})
		if err != nil {
			t.Fatalf("CreateSite failed: %v", err)
		}

		if site.Name != "Shop" {
			t.Errorf("Expected trimmed name Shop, got %q", site.Name)
		}
		if !site.AutoMonitor {
			t.Error("Expected auto monitor to be on")
		}
		if site.NotificationsEnabled {
			t.Error("Expected notifications to be off")
		}
		if site.Status != storage.StatusUp {
			t.Errorf("Expected status up, got %s", site.Status)
		}
		if len(site.History) != 1 {
			t.Fatalf("Expected 1 history record, got %d", len(site.History))
		}
		if site.LastChecked == nil {
			t.Error("Expected last checked to be set")
		}
	})

	t.Run("Zero interval falls back to default", func(t *testing.T) {
		engine := newTestEngine(t)
		srv, _ := switchableServer(t)

		site, err := engine.CreateSite(ctx, CreateSiteInput{Name: "Default", URL: srv.URL})
		if err != nil {
			t.Fatalf("CreateSite failed: %v", err)
		}

		expected := int(engine.config.Scheduler.DefaultInterval / time.Second)
		if site.IntervalSeconds != expected {
			t.Errorf("Expected interval %d, got %d", expected, site.IntervalSeconds)
		}
	})

	t.Run("Rejects invalid input", func(t *testing.T) {
		engine := newTestEngine(t)

		cases := []CreateSiteInput{
			{Name: "", URL: "https://example.com"},
			{Name: "Bad", URL: "ftp://example.com"},
			{Name: "Bad", URL: "not a url"},
		}
		for _, in := range cases {
			if _, err := engine.CreateSite(ctx, in); !errors.Is(err, storage.ErrInvalidSite) {
				t.Errorf("Expected ErrInvalidSite for %+v, got %v", in, err)
			}
		}

		sites, err := engine.ListSites(ctx)
		if err != nil {
			t.Fatalf("ListSites failed: %v", err)
		}
		if len(sites) != 0 {
			t.Errorf("Expected no stored sites, got %d", len(sites))
		}
	})

	t.Run("Schedules site when running", func(t *testing.T) {
		engine := newTestEngine(t)
		srv, _ := switchableServer(t)

		if err := engine.Start(ctx); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		site, err := engine.CreateSite(ctx, CreateSiteInput{Name: "Live", URL: srv.URL, IntervalSeconds: 30})
		if err != nil {
			t.Fatalf("CreateSite failed: %v", err)
		}
		if !engine.scheduler.Scheduled(siteJobID(site.ID)) {
			t.Error("Expected site to be scheduled")
		}
	})
}

func TestEngineTransitions(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	provider := newFakeProvider()
	engine.alerter.Register(provider)

	srv, failing := switchableServer(t)
	site, err := engine.CreateSite(ctx, CreateSiteInput{Name: "Shop", URL: srv.URL, IntervalSeconds: 30})
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}

	enabled := true
	if _, err := engine.UpdateSite(ctx, site.ID, storage.SiteUpdate{NotificationsEnabled: &enabled}); err != nil {
		t.Fatalf("UpdateSite failed: %v", err)
	}

	sub, unsub := engine.Events().Subscribe()
	defer unsub()

	t.Run("Down transition publishes and alerts", func(t *testing.T) {
		failing.Store(true)

		updated, err := engine.PerformCheck(ctx, site.ID)
		if err != nil {
			t.Fatalf("PerformCheck failed: %v", err)
		}
		if updated.Status != storage.StatusDown {
			t.Fatalf("Expected status down, got %s", updated.Status)
		}

		e := waitEvent(t, sub, events.TypeSiteDown)
		if e.SiteID != site.ID {
			t.Errorf("Expected event for site %d, got %d", site.ID, e.SiteID)
		}

		select {
		case a := <-provider.got:
			if a.Status != storage.StatusDown {
				t.Errorf("Expected down alert, got %s", a.Status)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("Expected down alert to be delivered")
		}
	})

	t.Run("Repeated down does not alert again", func(t *testing.T) {
		if _, err := engine.PerformCheck(ctx, site.ID); err != nil {
			t.Fatalf("PerformCheck failed: %v", err)
		}
		select {
		case a := <-provider.got:
			t.Errorf("Expected no alert, got %+v", a)
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("Recovery publishes and alerts", func(t *testing.T) {
		failing.Store(false)

		updated, err := engine.PerformCheck(ctx, site.ID)
		if err != nil {
			t.Fatalf("PerformCheck failed: %v", err)
		}
		if updated.Status != storage.StatusUp {
			t.Fatalf("Expected status up, got %s", updated.Status)
		}

		waitEvent(t, sub, events.TypeSiteRecovered)

		select {
		case a := <-provider.got:
			if a.Status != storage.StatusUp {
				t.Errorf("Expected recovery alert, got %s", a.Status)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("Expected recovery alert to be delivered")
		}

		if len(updated.History) != 4 {
			t.Errorf("Expected 4 history records, got %d", len(updated.History))
		}
	})

	t.Run("Alerts are logged", func(t *testing.T) {
		engine.wg.Wait()

		records, err := engine.Storage().Repositories().Alerts.ListBySite(ctx, site.ID, 10)
		if err != nil {
			t.Fatalf("ListBySite failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("Expected 2 alert records, got %d", len(records))
		}
	})
}

func TestEngineUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	srv, _ := switchableServer(t)

	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	a, err := engine.CreateSite(ctx, CreateSiteInput{Name: "A", URL: srv.URL, IntervalSeconds: 30})
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}
	b, err := engine.CreateSite(ctx, CreateSiteInput{Name: "B", URL: srv.URL, IntervalSeconds: 30})
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}

	t.Run("Disabling auto monitor unschedules", func(t *testing.T) {
		off := false
		updated, err := engine.UpdateSite(ctx, a.ID, storage.SiteUpdate{AutoMonitor: &off})
		if err != nil {
			t.Fatalf("UpdateSite failed: %v", err)
		}
		if updated.AutoMonitor {
			t.Error("Expected auto monitor off")
		}
		if engine.scheduler.Scheduled(siteJobID(a.ID)) {
			t.Error("Expected job to be removed")
		}
	})

	t.Run("Invalid update is rejected", func(t *testing.T) {
		bad := 1
		if _, err := engine.UpdateSite(ctx, b.ID, storage.SiteUpdate{IntervalSeconds: &bad}); !errors.Is(err, storage.ErrInvalidSite) {
			t.Errorf("Expected ErrInvalidSite, got %v", err)
		}
	})

	t.Run("Unknown site is not found", func(t *testing.T) {
		name := "X"
		if _, err := engine.UpdateSite(ctx, 42, storage.SiteUpdate{Name: &name}); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if _, err := engine.DeleteSite(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
		if _, err := engine.PerformCheck(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete returns remaining sites", func(t *testing.T) {
		remaining, err := engine.DeleteSite(ctx, b.ID)
		if err != nil {
			t.Fatalf("DeleteSite failed: %v", err)
		}
		if len(remaining) != 1 || remaining[0].ID != a.ID {
			t.Errorf("Expected only site %d to remain, got %+v", a.ID, remaining)
		}
		if engine.scheduler.Scheduled(siteJobID(b.ID)) {
			t.Error("Expected job of deleted site to be removed")
		}
	})
}

func TestEngineStart(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	srv, _ := switchableServer(t)

	sites := engine.Storage().Repositories().Sites
	monitored := &storage.Site{Name: "On", URL: srv.URL, IntervalSeconds: 30, AutoMonitor: true}
	manual := &storage.Site{Name: "Off", URL: srv.URL, IntervalSeconds: 30}
	for _, s := range []*storage.Site{monitored, manual} {
		if err := sites.Create(ctx, s); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	sub, unsub := engine.Events().Subscribe()
	defer unsub()

	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := engine.Start(ctx); err == nil {
		t.Error("Expected second Start to fail")
	}

	if got := engine.ScheduledSites(); got != 1 {
		t.Errorf("Expected 1 scheduled site, got %d", got)
	}

	e := waitEvent(t, sub, events.TypeSiteChecked)
	if e.SiteID != monitored.ID {
		t.Errorf("Expected immediate check of site %d, got %d", monitored.ID, e.SiteID)
	}

	engine.Stop()
	if engine.IsRunning() {
		t.Error("Expected engine to be stopped")
	}
	if got := engine.ScheduledSites(); got != 0 {
		t.Errorf("Expected no scheduled sites after stop, got %d", got)
	}
}

func TestEngineNotify(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	srv, _ := switchableServer(t)

	site, err := engine.CreateSite(ctx, CreateSiteInput{Name: "Shop", URL: srv.URL, IntervalSeconds: 30})
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}

	t.Run("No channels", func(t *testing.T) {
		_, err := engine.Notify(ctx, NotifyInput{SiteID: site.ID})
		if !errors.Is(err, alert.ErrNoChannels) {
			t.Errorf("Expected ErrNoChannels, got %v", err)
		}
	})

	t.Run("Unknown site", func(t *testing.T) {
		_, err := engine.Notify(ctx, NotifyInput{SiteID: 7})
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delivers with overrides", func(t *testing.T) {
		provider := newFakeProvider()
		engine.alerter.Register(provider)

		sub, unsub := engine.Events().Subscribe()
		defer unsub()

		channels, err := engine.Notify(ctx, NotifyInput{
			SiteID:  site.ID,
			Email:   "ops@example.com",
			Phone:   "+15550100",
			Message: "Shop needs attention",
		})
		if err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
		if len(channels) != 1 || channels[0] != "fake" {
			t.Errorf("Expected [fake], got %v", channels)
		}

		a := <-provider.got
		if a.Email != "ops@example.com" || a.Phone != "+15550100" {
			t.Errorf("Expected contact overrides, got %+v", a)
		}
		if a.Message != "Shop needs attention" {
			t.Errorf("Expected custom message, got %q", a.Message)
		}

		e := waitEvent(t, sub, events.TypeNotification)
		if e.Message != "Shop needs attention" {
			t.Errorf("Expected notification event message, got %q", e.Message)
		}
	})
}

func TestEngineCheckSite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Checks.HTTP.Timeout = 100 * time.Millisecond
	cfg.Checks.HTTP.Attempts = 2
	cfg.Checks.HTTP.RetryPause = 10 * time.Millisecond
	engine := newTestEngineWith(t, cfg)
	srv := hangingServer(t)

	site, err := engine.CreateSite(context.Background(), CreateSiteInput{Name: "Hang", URL: srv.URL, IntervalSeconds: 30})
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}

	t.Run("Create records a timeout for a hanging site", func(t *testing.T) {
		if site.Status != storage.StatusDown {
			t.Errorf("Expected status down, got %s", site.Status)
		}
		if len(site.History) != 1 {
			t.Fatalf("Expected 1 history record, got %d", len(site.History))
		}
		if site.History[0].Error != "Timeout" {
			t.Errorf("Expected Timeout error, got %q", site.History[0].Error)
		}
	})

	t.Run("Result is recorded after the client leaves", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		checked, err := engine.CheckSite(ctx, site.ID)
		if err != nil {
			t.Fatalf("CheckSite failed: %v", err)
		}
		if len(checked.History) != 2 {
			t.Errorf("Expected 2 history records, got %d", len(checked.History))
		}

		stored, err := engine.GetSite(context.Background(), site.ID)
		if err != nil {
			t.Fatalf("GetSite failed: %v", err)
		}
		if len(stored.History) != 2 {
			t.Errorf("Expected 2 stored history records, got %d", len(stored.History))
		}
	})

	t.Run("Scheduled checks still stop with their context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := engine.PerformCheck(ctx, site.ID); err == nil {
			t.Error("Expected cancelled check to fail")
		}
	})
}

func TestEngineAlertsAfterStop(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t)
	provider := newFakeProvider()
	engine.alerter.Register(provider)

	srv, failing := switchableServer(t)
	site, err := engine.CreateSite(ctx, CreateSiteInput{Name: "Shop", URL: srv.URL, IntervalSeconds: 30})
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}
	enabled := true
	if _, err := engine.UpdateSite(ctx, site.ID, storage.SiteUpdate{NotificationsEnabled: &enabled}); err != nil {
		t.Fatalf("UpdateSite failed: %v", err)
	}

	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	engine.Stop()

	failing.Store(true)
	if _, err := engine.CheckSite(ctx, site.ID); err != nil {
		t.Fatalf("CheckSite failed: %v", err)
	}

	// Delivered before CheckSite returned
	select {
	case a := <-provider.got:
		if a.Status != storage.StatusDown {
			t.Errorf("Expected down alert, got %s", a.Status)
		}
	default:
		t.Fatal("Expected alert to be delivered synchronously after stop")
	}
}
