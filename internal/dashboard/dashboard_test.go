package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"webmonitor/internal/config"
)

// fakeBackend is an in-memory stand-in for the REST API.
type fakeBackend struct {
	mu      sync.Mutex
	sites   map[int64]*Site
	nextID  int64
	notices []NotifyRequest
	creates []SiteInput
	puts    []map[string]any

	checks    atomic.Int32
	failList  atomic.Bool
	failCheck map[int64]bool

	// checkGate, when set, blocks check requests until closed
	checkGate chan struct{}

	srv *httptest.Server
}

func newFakeBackend(t *testing.T, sites ...Site) *fakeBackend {
	t.Helper()

	b := &fakeBackend{sites: make(map[int64]*Site), failCheck: make(map[int64]bool)}
	for i := range sites {
		s := sites[i]
		b.sites[s.ID] = &s
		if s.ID > b.nextID {
			b.nextID = s.ID
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /websites", b.list)
	mux.HandleFunc("POST /websites", b.create)
	mux.HandleFunc("PUT /websites/{id}", b.update)
	mux.HandleFunc("DELETE /websites/{id}", b.remove)
	mux.HandleFunc("POST /check/{id}", b.check)
	mux.HandleFunc("POST /notify", b.notify)
	mux.HandleFunc("POST /login", b.login)
	mux.HandleFunc("GET /notifications/stream", b.stream)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) client() *Client {
	return NewClient(config.DashboardConfig{APIBase: b.srv.URL, RequestTimeout: 5 * time.Second})
}

func (b *fakeBackend) setStatus(id int64, status string, entry HistoryEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sites[id]
	s.Status = status
	s.ResponseHistory = append(s.ResponseHistory, entry)
}

func (b *fakeBackend) notifyCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.notices)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) list(w http.ResponseWriter, r *http.Request) {
	if b.failList.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "database unavailable"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []Site{}
	for id := int64(1); id <= b.nextID; id++ {
		if s, ok := b.sites[id]; ok {
			out = append(out, *s)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *fakeBackend) create(w http.ResponseWriter, r *http.Request) {
	var in SiteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if strings.Contains(in.URL, "duplicate") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url already monitored"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates = append(b.creates, in)
	b.nextID++
	s := &Site{ID: b.nextID, Name: in.Name, URL: in.URL, Status: StatusUnknown, AutoMonitor: true}
	b.sites[s.ID] = s
	writeJSON(w, http.StatusCreated, s)
}

func (b *fakeBackend) site(w http.ResponseWriter, r *http.Request) *Site {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	s, ok := b.sites[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Website not found"})
		return nil
	}
	return s
}

func (b *fakeBackend) update(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.site(w, r)
	if s == nil {
		return
	}
	b.puts = append(b.puts, body)
	if v, ok := body["name"].(string); ok {
		s.Name = v
	}
	if v, ok := body["url"].(string); ok {
		s.URL = v
	}
	if v, ok := body["notifications_enabled"].(bool); ok {
		s.NotificationsEnabled = v
	}
	writeJSON(w, http.StatusOK, s)
}

func (b *fakeBackend) remove(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.site(w, r)
	if s == nil {
		return
	}
	delete(b.sites, s.ID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Website deleted", "sites": []Site{}})
}

func (b *fakeBackend) check(w http.ResponseWriter, r *http.Request) {
	b.checks.Add(1)
	if b.checkGate != nil {
		<-b.checkGate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.site(w, r)
	if s == nil {
		return
	}
	if b.failCheck[s.ID] {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "check exploded"})
		return
	}
	checked := "2025-01-01 12:00:00"
	s.LastChecked = &checked
	writeJSON(w, http.StatusOK, s)
}

func (b *fakeBackend) notify(w http.ResponseWriter, r *http.Request) {
	var req NotifyRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	b.notices = append(b.notices, req)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "channels": []string{"email"}})
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	writeJSON(w, http.StatusOK, map[string]bool{"success": body["username"] == "admin" && body["password"] == "admin"})
}

func (b *fakeBackend) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprint(w, "event: message\ndata: Site Shop is DOWN\n\n")
	fmt.Fprint(w, "event: message\ndata: first line\ndata: second line\n\n")
}

func openTestPrefs(t *testing.T, path string) *Prefs {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "prefs.db")
	}
	p, err := OpenPrefs(path)
	if err != nil {
		t.Fatalf("Expected prefs to open, got %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func testSettings() Settings {
	return Settings{
		AutoMonitoring:       false,
		Interval:             time.Minute,
		NotifyDelay:          5 * time.Minute,
		NotificationsEnabled: true,
		Email:                "ops@example.com",
	}
}

func history(ms ...int64) []HistoryEntry {
	out := make([]HistoryEntry, len(ms))
	for i, v := range ms {
		out[i] = HistoryEntry{Time: fmt.Sprintf("2025-01-01 12:00:%02d", i), Status: StatusUp, Ms: v, Code: 200}
	}
	return out
}

// drain collects toast messages until the channel is idle.
func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func hasToast(events []Event, level, message string) bool {
	for _, e := range events {
		if e.Kind == EventToast && e.Level == level && e.Message == message {
			return true
		}
	}
	return false
}

func TestSummarize(t *testing.T) {
	t.Run("empty list shows placeholders", func(t *testing.T) {
		sum := Summarize(nil)
		if sum.Total != 0 || sum.Down != 0 {
			t.Errorf("Expected zero counts, got %+v", sum)
		}
		if sum.Slowest != Placeholder || sum.AvgResponse != Placeholder {
			t.Errorf("Expected placeholders, got %+v", sum)
		}
	})

	t.Run("slowest and average response", func(t *testing.T) {
		sites := []Site{
			{Name: "A", Status: StatusUp, ResponseHistory: history(100, 200)},
			{Name: "B", Status: StatusDown, ResponseHistory: history(900)},
			{Name: "C", Status: StatusUp},
		}
		sum := Summarize(sites)

		if sum.Total != 3 {
			t.Errorf("Expected total 3, got %d", sum.Total)
		}
		if sum.Down != 1 {
			t.Errorf("Expected 1 down, got %d", sum.Down)
		}
		if sum.Slowest != "B" {
			t.Errorf("Expected slowest B, got %s", sum.Slowest)
		}
		// (150 + 900 + 0) / 3 / 1000
		if sum.AvgResponse != "0.35 s" {
			t.Errorf("Expected 0.35 s, got %s", sum.AvgResponse)
		}
	})

	t.Run("first site wins a tie", func(t *testing.T) {
		sites := []Site{
			{Name: "First", ResponseHistory: history(300)},
			{Name: "Second", ResponseHistory: history(300)},
		}
		if got := Summarize(sites).Slowest; got != "First" {
			t.Errorf("Expected First, got %s", got)
		}
	})

	t.Run("all zero averages have no slowest site", func(t *testing.T) {
		sites := []Site{{Name: "A"}, {Name: "B", ResponseHistory: history(0)}}
		if got := Summarize(sites).Slowest; got != Placeholder {
			t.Errorf("Expected placeholder, got %s", got)
		}
	})
}

func TestSortSites(t *testing.T) {
	sites := []Site{
		{ID: 1, Status: StatusUp, ResponseHistory: history(100)},
		{ID: 2, Status: StatusDown, ResponseHistory: history(50)},
		{ID: 3, Status: StatusUnknown},
		{ID: 4, Status: StatusHighLatency, ResponseHistory: history(2000)},
		{ID: 5, Status: StatusUp, ResponseHistory: history(400)},
		{ID: 6, Status: "mystery"},
		{ID: 7, Status: StatusDegraded, ResponseHistory: history(3000)},
	}

	sorted := SortSites(sites)
	want := []int64{2, 7, 4, 3, 5, 1, 6}
	for i, id := range want {
		if sorted[i].ID != id {
			t.Fatalf("Expected order %v, got site %d at %d", want, sorted[i].ID, i)
		}
	}

	if sites[0].ID != 1 {
		t.Error("Expected input to be left untouched")
	}
}

func TestCardError(t *testing.T) {
	tests := []struct {
		name string
		site Site
		want string
	}{
		{"up shows nothing", Site{Status: StatusUp, ResponseHistory: history(10)}, ""},
		{"down without history", Site{Status: StatusDown}, "N/A"},
		{"down with http error text", Site{Status: StatusDown, ResponseHistory: []HistoryEntry{{Code: 503, Error: "HTTP 503"}}}, "HTTP 503"},
		{"down with status code", Site{Status: StatusDown, ResponseHistory: []HistoryEntry{{Code: 500, Error: "server fault"}}}, "HTTP 500"},
		{"down with transport error", Site{Status: StatusDown, ResponseHistory: []HistoryEntry{{Error: "Timeout"}}}, "Timeout"},
		{"down with nothing known", Site{Status: StatusDown, ResponseHistory: []HistoryEntry{{}}}, "Unknown Error"},
		{"high latency", Site{Status: StatusHighLatency}, "Slow response"},
		{"unknown", Site{Status: StatusUnknown}, "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CardError(&tt.site); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDownSitesAndChart(t *testing.T) {
	checked := "2025-01-01 12:00:00"
	sites := []Site{
		{Name: "Up", Status: StatusUp},
		{Name: "Coded", URL: "https://a", Status: StatusDown, LastChecked: &checked,
			ResponseHistory: []HistoryEntry{{Ms: 120, Code: 500, Error: "HTTP 500"}}},
		{Name: "Refused", URL: "https://b", Status: StatusDown,
			ResponseHistory: []HistoryEntry{{Error: "Connection refused"}}},
		{Name: "Blank", URL: "https://c", Status: StatusDown},
	}

	rows := DownSites(sites)
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[0].ResponseTime != "120 ms" || rows[0].LastChecked != checked || rows[0].Error != "(HTTP 500)" {
		t.Errorf("Unexpected first row %+v", rows[0])
	}
	if rows[1].ResponseTime != Placeholder || rows[1].Error != "Connection refused" {
		t.Errorf("Unexpected second row %+v", rows[1])
	}
	if rows[2].LastChecked != Placeholder || rows[2].Error != "N/A" {
		t.Errorf("Unexpected third row %+v", rows[2])
	}

	site := Site{ResponseHistory: history(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)}
	points := Chart(&site)
	if len(points) != ChartPoints {
		t.Fatalf("Expected %d points, got %d", ChartPoints, len(points))
	}
	if points[0].Ms != 3 || points[0].Label != "12:00:02" {
		t.Errorf("Expected oldest point 3 at 12:00:02, got %+v", points[0])
	}
	if LastResponse(&site) != "12 ms" {
		t.Errorf("Expected 12 ms, got %s", LastResponse(&site))
	}
}

func TestSiteForm(t *testing.T) {
	t.Run("validation runs before any request", func(t *testing.T) {
		b := newFakeBackend(t)

		_, err := NewSiteForm(nil).Submit(context.Background(), b.client())
		if !errors.Is(err, ErrFieldsRequired) {
			t.Errorf("Expected ErrFieldsRequired, got %v", err)
		}

		f := &SiteForm{Name: "Shop", URL: "not a url"}
		if _, err := f.Submit(context.Background(), b.client()); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Expected ErrInvalidURL, got %v", err)
		}
		if len(b.creates) != 0 {
			t.Errorf("Expected no create requests, got %d", len(b.creates))
		}
	})

	t.Run("create sends monitoring flags off", func(t *testing.T) {
		b := newFakeBackend(t)

		f := &SiteForm{Name: " Shop ", URL: "https://shop.example.com"}
		site, err := f.Submit(context.Background(), b.client())
		if err != nil {
			t.Fatalf("Expected create to succeed, got %v", err)
		}
		if site.Name != "Shop" {
			t.Errorf("Expected trimmed name, got %q", site.Name)
		}
		if len(b.creates) != 1 || b.creates[0].AutoMonitor || b.creates[0].NotificationsEnabled {
			t.Errorf("Expected one create with flags off, got %+v", b.creates)
		}
	})

	t.Run("edit sends name and url only", func(t *testing.T) {
		b := newFakeBackend(t, Site{ID: 1, Name: "Old", URL: "https://old.example.com"})

		f := NewSiteForm(&Site{ID: 1, Name: "Old", URL: "https://old.example.com"})
		if f.Title() != "Edit Site" {
			t.Errorf("Expected edit title, got %s", f.Title())
		}
		f.Name = "New"
		if _, err := f.Submit(context.Background(), b.client()); err != nil {
			t.Fatalf("Expected update to succeed, got %v", err)
		}
		if len(b.puts) != 1 || len(b.puts[0]) != 2 || b.puts[0]["name"] != "New" {
			t.Errorf("Expected one PUT with name and url, got %+v", b.puts)
		}
	})

	t.Run("backend error is shown", func(t *testing.T) {
		b := newFakeBackend(t)

		f := &SiteForm{Name: "Dup", URL: "https://duplicate.example.com"}
		_, err := f.Submit(context.Background(), b.client())
		if got := SubmitErrorMessage(err); got != "Error saving site: url already monitored" {
			t.Errorf("Expected backend message, got %q", got)
		}
	})
}

func TestPrefsAndSession(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.db")
	prefs := openTestPrefs(t, path)

	t.Run("defaults apply when nothing is stored", func(t *testing.T) {
		def := DefaultSettings(config.DashboardConfig{DefaultInterval: time.Minute})
		got := LoadSettings(ctx, prefs, def)
		if !got.AutoMonitoring || got.Interval != time.Minute || got.NotifyDelay != 5*time.Minute || got.SoundOn {
			t.Errorf("Expected defaults, got %+v", got)
		}
	})

	t.Run("settings round trip", func(t *testing.T) {
		s := testSettings()
		s.Interval = 15 * time.Minute
		s.SoundOn = true
		s.Phone = "+15550100"
		if err := SaveSettings(ctx, prefs, s); err != nil {
			t.Fatalf("Expected save to succeed, got %v", err)
		}

		got := LoadSettings(ctx, prefs, Settings{})
		if got != s {
			t.Errorf("Expected %+v, got %+v", s, got)
		}
	})

	t.Run("unsupported stored interval falls back", func(t *testing.T) {
		if err := prefs.SetInt(ctx, KeyIntervalTime, 7); err != nil {
			t.Fatal(err)
		}
		got := LoadSettings(ctx, prefs, Settings{Interval: time.Hour})
		if got.Interval != time.Hour {
			t.Errorf("Expected fallback 1h, got %s", got.Interval)
		}
	})

	t.Run("login persists across sessions", func(t *testing.T) {
		b := newFakeBackend(t)
		sess := NewSession(b.client(), prefs)

		ok, err := sess.Login(ctx, "admin", "wrong")
		if err != nil || ok {
			t.Fatalf("Expected rejection, got %v %v", ok, err)
		}
		if sess.LoggedIn(ctx) {
			t.Error("Expected not logged in after rejection")
		}

		if ok, err := sess.Login(ctx, "admin", "admin"); err != nil || !ok {
			t.Fatalf("Expected login, got %v %v", ok, err)
		}

		reopened := openTestPrefs(t, path)
		if !NewSession(b.client(), reopened).LoggedIn(ctx) {
			t.Error("Expected login to survive a new session")
		}

		if err := sess.Logout(ctx); err != nil {
			t.Fatal(err)
		}
		if sess.LoggedIn(ctx) {
			t.Error("Expected logout to clear the flag")
		}
	})

	t.Run("interval cycling wraps", func(t *testing.T) {
		if NextInterval(time.Hour) != 30*time.Second {
			t.Errorf("Expected wrap to 30s, got %s", NextInterval(time.Hour))
		}
		if ValidInterval(45 * time.Second) {
			t.Error("Expected 45s to be rejected")
		}
	})
}

func TestClient(t *testing.T) {
	b := newFakeBackend(t, Site{ID: 1, Name: "Shop", URL: "https://shop.example.com"})
	c := b.client()
	ctx := context.Background()

	t.Run("api error carries backend message", func(t *testing.T) {
		_, err := c.CheckSite(ctx, 99)
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected APIError, got %v", err)
		}
		if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Website not found" {
			t.Errorf("Unexpected error %+v", apiErr)
		}
	})

	t.Run("stream delivers messages", func(t *testing.T) {
		var got []string
		if err := c.Stream(ctx, func(m string) { got = append(got, m) }); err != nil {
			t.Fatalf("Expected stream to end cleanly, got %v", err)
		}
		if len(got) != 2 || got[0] != "Site Shop is DOWN" || got[1] != "first line\nsecond line" {
			t.Errorf("Unexpected messages %q", got)
		}
	})
}

func TestMonitorCheckSite(t *testing.T) {
	ctx := context.Background()

	t.Run("second check while in flight is rejected", func(t *testing.T) {
		b := newFakeBackend(t, Site{ID: 1, Name: "Shop", Status: StatusUp})
		b.checkGate = make(chan struct{})

		m := NewMonitor(b.client(), nil, testSettings())
		if err := m.Load(ctx); err != nil {
			t.Fatal(err)
		}

		done := make(chan error, 1)
		go func() {
			_, err := m.CheckSite(ctx, 1)
			done <- err
		}()

		deadline := time.Now().Add(2 * time.Second)
		for b.checks.Load() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		if _, err := m.CheckSite(ctx, 1); !errors.Is(err, ErrCheckInProgress) {
			t.Errorf("Expected ErrCheckInProgress, got %v", err)
		}

		close(b.checkGate)
		if err := <-done; err != nil {
			t.Fatalf("Expected first check to succeed, got %v", err)
		}
		if n := b.checks.Load(); n != 1 {
			t.Errorf("Expected exactly 1 backend check, got %d", n)
		}

		site, _ := m.Site(1)
		if site.Checking {
			t.Error("Expected guard to be released")
		}
		if site.LastChecked == nil {
			t.Error("Expected result to be merged")
		}
	})

	t.Run("failure toasts and releases the guard", func(t *testing.T) {
		b := newFakeBackend(t, Site{ID: 1, Name: "Shop"})
		b.failCheck[1] = true

		m := NewMonitor(b.client(), nil, testSettings())
		_ = m.Load(ctx)
		drain(m.Events())

		if _, err := m.CheckSite(ctx, 1); err == nil {
			t.Fatal("Expected check to fail")
		}
		if !hasToast(drain(m.Events()), LevelError, "Manual check failed: check exploded") {
			t.Error("Expected failure toast")
		}
		if site, _ := m.Site(1); site.Checking {
			t.Error("Expected guard to be released")
		}
	})

	t.Run("down site alerts once per delay", func(t *testing.T) {
		b := newFakeBackend(t, Site{ID: 1, Name: "Shop", URL: "https://shop", NotificationsEnabled: true})
		b.setStatus(1, StatusDown, HistoryEntry{Error: "Connection refused"})

		m := NewMonitor(b.client(), nil, testSettings())
		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		m.now = func() time.Time { return now }
		_ = m.Load(ctx)

		_, _ = m.CheckSite(ctx, 1)
		_, _ = m.CheckSite(ctx, 1)
		if n := b.notifyCount(); n != 1 {
			t.Errorf("Expected 1 alert within the delay, got %d", n)
		}

		now = now.Add(6 * time.Minute)
		_, _ = m.CheckSite(ctx, 1)
		if n := b.notifyCount(); n != 2 {
			t.Errorf("Expected 2 alerts after the delay, got %d", n)
		}
		if got := b.notices[0]; got.SiteID != 1 || got.Email != "ops@example.com" {
			t.Errorf("Unexpected notify request %+v", got)
		}
	})

	t.Run("no alert without email or flag", func(t *testing.T) {
		b := newFakeBackend(t,
			Site{ID: 1, Name: "Muted"},
			Site{ID: 2, Name: "Flagged", NotificationsEnabled: true},
		)
		b.setStatus(1, StatusDown, HistoryEntry{Error: "Timeout"})
		b.setStatus(2, StatusDown, HistoryEntry{Error: "Timeout"})

		settings := testSettings()
		settings.Email = ""
		m := NewMonitor(b.client(), nil, settings)
		_ = m.Load(ctx)

		_, _ = m.CheckSite(ctx, 1)
		_, _ = m.CheckSite(ctx, 2)
		if n := b.notifyCount(); n != 0 {
			t.Errorf("Expected no alerts, got %d", n)
		}
	})
}

func TestMonitorRunCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("checks every site and reports completion", func(t *testing.T) {
		b := newFakeBackend(t, Site{ID: 1, Name: "A"}, Site{ID: 2, Name: "B"}, Site{ID: 3, Name: "C"})

		m := NewMonitor(b.client(), nil, testSettings())
		if err := m.RunCycle(ctx); err != nil {
			t.Fatalf("Expected cycle to succeed, got %v", err)
		}
		if n := b.checks.Load(); n != 3 {
			t.Errorf("Expected 3 checks, got %d", n)
		}
		if !hasToast(drain(m.Events()), LevelInfo, "Auto-monitor cycle completed") {
			t.Error("Expected completion toast")
		}
		for _, s := range m.Sites() {
			if s.Checking || s.LastChecked == nil {
				t.Errorf("Expected site %d checked and released, got %+v", s.ID, s)
			}
		}
	})

	t.Run("one failing site fails the cycle only", func(t *testing.T) {
		b := newFakeBackend(t, Site{ID: 1, Name: "A"}, Site{ID: 2, Name: "B"})
		b.failCheck[2] = true

		m := NewMonitor(b.client(), nil, testSettings())
		if err := m.RunCycle(ctx); err == nil {
			t.Fatal("Expected cycle error")
		}
		if !hasToast(drain(m.Events()), LevelError, "Auto-monitor cycle failed") {
			t.Error("Expected failure toast")
		}
		if site, _ := m.Site(1); site.LastChecked == nil {
			t.Error("Expected healthy site to be merged")
		}
	})

	t.Run("refresh failure aborts", func(t *testing.T) {
		b := newFakeBackend(t, Site{ID: 1, Name: "A"})
		b.failList.Store(true)

		m := NewMonitor(b.client(), nil, testSettings())
		if err := m.RunCycle(ctx); err == nil {
			t.Fatal("Expected cycle error")
		}
		if n := b.checks.Load(); n != 0 {
			t.Errorf("Expected no checks, got %d", n)
		}
	})

	t.Run("sites already being checked are skipped", func(t *testing.T) {
		b := newFakeBackend(t, Site{ID: 1, Name: "A"}, Site{ID: 2, Name: "B"})

		m := NewMonitor(b.client(), nil, testSettings())
		_ = m.Load(ctx)
		if err := m.acquire(1); err != nil {
			t.Fatal(err)
		}

		if err := m.RunCycle(ctx); err != nil {
			t.Fatal(err)
		}
		if n := b.checks.Load(); n != 1 {
			t.Errorf("Expected 1 check, got %d", n)
		}
		if site, _ := m.Site(1); !site.Checking {
			t.Error("Expected manual guard to survive the cycle")
		}
	})

	t.Run("alarm sounds when a site is down", func(t *testing.T) {
		b := newFakeBackend(t, Site{ID: 1, Name: "A"})
		b.setStatus(1, StatusDown, HistoryEntry{Error: "Timeout"})

		settings := testSettings()
		settings.SoundOn = true
		m := NewMonitor(b.client(), nil, settings)
		_ = m.RunCycle(ctx)

		var alarm bool
		for _, e := range drain(m.Events()) {
			if e.Kind == EventAlarm {
				alarm = true
			}
		}
		if !alarm {
			t.Error("Expected alarm event")
		}
	})
}

func TestMonitorSiteActions(t *testing.T) {
	ctx := context.Background()

	t.Run("toggle persists across sessions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "prefs.db")
		b := newFakeBackend(t, Site{ID: 1, Name: "Shop"})

		m := NewMonitor(b.client(), openTestPrefs(t, path), testSettings())
		_ = m.Load(ctx)

		site, err := m.ToggleNotifications(ctx, 1)
		if err != nil {
			t.Fatalf("Expected toggle to succeed, got %v", err)
		}
		if !site.NotificationsEnabled {
			t.Error("Expected notifications on")
		}

		// the backend forgets, the local flag wins
		b.mu.Lock()
		b.sites[1].NotificationsEnabled = false
		b.mu.Unlock()

		fresh := NewMonitor(b.client(), openTestPrefs(t, path), testSettings())
		_ = fresh.Load(ctx)
		if s, _ := fresh.Site(1); !s.NotificationsEnabled {
			t.Error("Expected restored notification flag")
		}
	})

	t.Run("delete clears the local flag", func(t *testing.T) {
		prefs := openTestPrefs(t, "")
		b := newFakeBackend(t, Site{ID: 1, Name: "Shop"}, Site{ID: 2, Name: "Blog"})

		m := NewMonitor(b.client(), prefs, testSettings())
		_ = m.Load(ctx)
		_, _ = m.ToggleNotifications(ctx, 1)

		if err := m.DeleteSite(ctx, 1); err != nil {
			t.Fatalf("Expected delete to succeed, got %v", err)
		}
		if _, ok, _ := prefs.Get(ctx, NotifyKey(1)); ok {
			t.Error("Expected notify_1 to be removed")
		}
		if sites := m.Sites(); len(sites) != 1 || sites[0].ID != 2 {
			t.Errorf("Expected only site 2 left, got %+v", sites)
		}
	})

	t.Run("save reloads the list", func(t *testing.T) {
		b := newFakeBackend(t)
		m := NewMonitor(b.client(), nil, testSettings())

		if _, err := m.SaveSite(ctx, &SiteForm{Name: "Shop", URL: "https://shop.example.com"}); err != nil {
			t.Fatal(err)
		}
		if len(m.Sites()) != 1 {
			t.Errorf("Expected 1 site after save, got %d", len(m.Sites()))
		}
	})

	t.Run("settings are validated and persisted", func(t *testing.T) {
		prefs := openTestPrefs(t, "")
		b := newFakeBackend(t)
		m := NewMonitor(b.client(), prefs, testSettings())

		if err := m.SetInterval(45 * time.Second); err == nil {
			t.Error("Expected unsupported interval to be rejected")
		}
		if err := m.SetInterval(5 * time.Minute); err != nil {
			t.Fatal(err)
		}
		m.SetContact("a@example.com", "+1555")

		got := LoadSettings(ctx, prefs, Settings{})
		if got.Interval != 5*time.Minute || got.Email != "a@example.com" || got.Phone != "+1555" {
			t.Errorf("Unexpected persisted settings %+v", got)
		}
	})
}

func TestMonitorStart(t *testing.T) {
	b := newFakeBackend(t, Site{ID: 1, Name: "Shop"})

	m := NewMonitor(b.client(), nil, testSettings())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	defer m.Stop()

	if len(m.Sites()) != 1 {
		t.Fatalf("Expected sites to load on start, got %d", len(m.Sites()))
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-m.Events():
			if e.Kind == EventToast && e.Message == "Site Shop is DOWN" {
				return
			}
		case <-deadline:
			t.Fatal("Expected stream message as a toast")
		}
	}
}
