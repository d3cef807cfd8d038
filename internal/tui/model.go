// Package tui is the bubbletea front end of the dashboard.
package tui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"webmonitor/internal/dashboard"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	toastTTL  = 4 * time.Second
	maxToasts = 3
)

type sessionState int

const (
	stateLogin sessionState = iota
	stateDashboard
	stateSiteForm
	stateConfirmDelete
	stateSettings
)

const (
	tabSites = iota
	tabDown
	tabDetails
	tabCount
)

type toast struct {
	id      int
	level   string
	message string
}

type (
	eventMsg dashboard.Event

	loginResultMsg struct {
		ok  bool
		err error
	}

	saveResultMsg struct {
		err error
	}

	opDoneMsg struct{}

	toastExpiredMsg struct{ id int }
)

// Model is the dashboard UI state.
type Model struct {
	ctx     context.Context
	monitor *dashboard.Monitor
	session *dashboard.Session
	events  <-chan dashboard.Event

	state sessionState
	tab   int

	sites      []dashboard.Site
	selectedID int64
	cursor     int
	offset     int
	maxRows    int
	width      int

	inputs   []textinput.Model
	focus    int
	form     *dashboard.SiteForm
	errorMsg string
	saving   bool
	deleteID int64

	spinner spinner.Model
	details viewport.Model

	toasts    []toast
	nextToast int
	alarm     string

	// bell receives the BEL character when the down alarm sounds
	bell io.Writer
}

// New creates the UI. A nil session skips the login screen.
func New(ctx context.Context, monitor *dashboard.Monitor, session *dashboard.Session, events <-chan dashboard.Event) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = infoStyle

	m := Model{
		ctx:     ctx,
		monitor: monitor,
		session: session,
		events:  events,
		state:   stateDashboard,
		maxRows: 10,
		width:   100,
		spinner: sp,
		details: viewport.New(100, 20),
	}

	if session != nil && !session.LoggedIn(ctx) {
		m.state = stateLogin
		m.initLogin()
	}
	m.refresh()
	return m
}

// WithBell makes the down alarm ring the terminal bell on w.
func (m Model) WithBell(w io.Writer) Model {
	m.bell = w
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(ch <-chan dashboard.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

func expireToast(id int) tea.Cmd {
	return tea.Tick(toastTTL, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} })
}

// run executes fn off the UI loop. Results reach the UI as monitor events.
func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		_ = fn(ctx)
		return opDoneMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.maxRows = msg.Height - 16
		if m.maxRows < 1 {
			m.maxRows = 1
		}
		m.details.Width = msg.Width - 4
		m.details.Height = msg.Height - 10
		m.updateDetails()
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		return m.handleEvent(dashboard.Event(msg))

	case toastExpiredMsg:
		for i, t := range m.toasts {
			if t.id == msg.id {
				m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
				break
			}
		}
		return m, nil

	case opDoneMsg:
		m.refresh()
		return m, nil

	case loginResultMsg:
		switch {
		case msg.err != nil:
			m.errorMsg = "Login failed: " + msg.err.Error()
		case !msg.ok:
			m.errorMsg = "Invalid username or password"
		default:
			m.errorMsg = ""
			m.state = stateDashboard
			m.refresh()
		}
		return m, nil

	case saveResultMsg:
		m.saving = false
		if msg.err != nil {
			m.errorMsg = dashboard.SubmitErrorMessage(msg.err)
			return m, nil
		}
		m.state = stateDashboard
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.state {
		case stateDashboard:
			return m.updateDashboard(msg)
		case stateConfirmDelete:
			return m.updateConfirm(msg)
		case stateLogin, stateSiteForm, stateSettings:
			if m.saving {
				return m, nil
			}
			switch msg.String() {
			case "esc":
				if m.state != stateLogin {
					m.state = stateDashboard
					m.errorMsg = ""
				}
				return m, nil
			case "tab", "shift+tab", "enter", "up", "down":
				s := msg.String()
				if s == "enter" && m.focus == len(m.inputs)-1 {
					return m.submit()
				}

				if s == "up" || s == "shift+tab" {
					m.focus--
				} else {
					m.focus++
				}
				if m.focus > len(m.inputs)-1 {
					m.focus = 0
				}
				if m.focus < 0 {
					m.focus = len(m.inputs) - 1
				}

				for i := range m.inputs {
					if i == m.focus {
						cmds = append(cmds, m.inputs[i].Focus())
					} else {
						m.inputs[i].Blur()
					}
				}
				return m, tea.Batch(cmds...)
			}
		}
	}

	if m.state == stateLogin || m.state == stateSiteForm || m.state == stateSettings {
		for i := range m.inputs {
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleEvent(e dashboard.Event) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{waitForEvent(m.events)}

	switch e.Kind {
	case dashboard.EventSites:
		m.refresh()
	case dashboard.EventToast:
		m.nextToast++
		m.toasts = append(m.toasts, toast{id: m.nextToast, level: e.Level, message: e.Message})
		if len(m.toasts) > maxToasts {
			m.toasts = m.toasts[len(m.toasts)-maxToasts:]
		}
		cmds = append(cmds, expireToast(m.nextToast))
	case dashboard.EventAlarm:
		m.alarm = e.Message
		if w := m.bell; w != nil {
			cmds = append(cmds, func() tea.Msg {
				_, _ = io.WriteString(w, "\a")
				return nil
			})
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	settings := m.monitor.Settings()
	site, hasSite := m.selected()

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		m.tab = (m.tab + 1) % tabCount
		m.updateDetails()
	case "pgup", "pgdown":
		if m.tab == tabDetails {
			var cmd tea.Cmd
			m.details, cmd = m.details.Update(msg)
			return m, cmd
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			if m.cursor < m.offset {
				m.offset = m.cursor
			}
			m.selectedID = m.sites[m.cursor].ID
			m.updateDetails()
		}
	case "down", "j":
		if m.cursor < len(m.sites)-1 {
			m.cursor++
			if m.cursor >= m.offset+m.maxRows {
				m.offset++
			}
			m.selectedID = m.sites[m.cursor].ID
			m.updateDetails()
		}
	case "a":
		m.initSiteForm(nil)
	case "e", "enter":
		if hasSite {
			m.initSiteForm(&site)
		}
	case "d", "backspace":
		if hasSite {
			m.deleteID = site.ID
			m.state = stateConfirmDelete
		}
	case "c":
		if hasSite {
			id := site.ID
			return m, m.run(func(ctx context.Context) error {
				_, err := m.monitor.CheckSite(ctx, id)
				return err
			})
		}
	case "t":
		if hasSite {
			id := site.ID
			return m, m.run(func(ctx context.Context) error {
				_, err := m.monitor.ToggleNotifications(ctx, id)
				return err
			})
		}
	case "m":
		on := !settings.AutoMonitoring
		return m, m.run(func(context.Context) error {
			m.monitor.SetAutoMonitoring(on)
			return nil
		})
	case "i":
		next := dashboard.NextInterval(settings.Interval)
		return m, m.run(func(context.Context) error {
			return m.monitor.SetInterval(next)
		})
	case "s":
		on := !settings.SoundOn
		if !on {
			m.alarm = ""
		}
		return m, m.run(func(context.Context) error {
			m.monitor.SetSound(on)
			return nil
		})
	case "n":
		on := !settings.NotificationsEnabled
		return m, m.run(func(context.Context) error {
			m.monitor.SetNotificationsEnabled(on)
			return nil
		})
	case "o":
		m.initSettings(settings)
	case "r":
		m.alarm = ""
		return m, m.run(m.monitor.Load)
	case "x":
		if m.session != nil {
			_ = m.session.Logout(m.ctx)
			m.state = stateLogin
			m.initLogin()
		}
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		id := m.deleteID
		m.state = stateDashboard
		if m.cursor > 0 && m.cursor >= len(m.sites)-1 {
			m.cursor--
		}
		if m.cursor < m.offset {
			m.offset = m.cursor
		}
		return m, m.run(func(ctx context.Context) error {
			return m.monitor.DeleteSite(ctx, id)
		})
	case "n", "N", "esc":
		m.state = stateDashboard
	}
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	switch m.state {
	case stateLogin:
		user := strings.TrimSpace(m.inputs[0].Value())
		pass := m.inputs[1].Value()
		if user == "" || pass == "" {
			m.errorMsg = "Please enter username and password"
			return m, nil
		}
		ctx, session := m.ctx, m.session
		return m, func() tea.Msg {
			ok, err := session.Login(ctx, user, pass)
			return loginResultMsg{ok: ok, err: err}
		}

	case stateSiteForm:
		m.form.Name = m.inputs[0].Value()
		m.form.URL = m.inputs[1].Value()
		if err := m.form.Validate(); err != nil {
			m.errorMsg = err.Error()
			return m, nil
		}
		m.errorMsg = ""
		m.saving = true
		ctx, form := m.ctx, m.form
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
			_, err := m.monitor.SaveSite(ctx, form)
			return saveResultMsg{err: err}
		})

	case stateSettings:
		delay, err := strconv.Atoi(strings.TrimSpace(m.inputs[2].Value()))
		if err != nil || delay < 0 {
			m.errorMsg = "Notify delay must be a whole number of minutes"
			return m, nil
		}
		email := strings.TrimSpace(m.inputs[0].Value())
		phone := strings.TrimSpace(m.inputs[1].Value())
		m.errorMsg = ""
		m.state = stateDashboard
		return m, m.run(func(context.Context) error {
			m.monitor.SetContact(email, phone)
			return m.monitor.SetNotifyDelay(time.Duration(delay) * time.Minute)
		})
	}
	return m, nil
}

func (m *Model) initLogin() {
	m.inputs = make([]textinput.Model, 2)
	m.inputs[0] = ti("username", 24)
	m.inputs[0].Focus()
	m.inputs[1] = ti("password", 24)
	m.inputs[1].EchoMode = textinput.EchoPassword
	m.focus = 0
	m.errorMsg = ""
}

func (m *Model) initSiteForm(editing *dashboard.Site) {
	m.form = dashboard.NewSiteForm(editing)
	m.inputs = make([]textinput.Model, 2)
	m.inputs[0] = ti("My Site", 30)
	m.inputs[0].SetValue(m.form.Name)
	m.inputs[0].Focus()
	m.inputs[1] = ti("https://example.com", 50)
	m.inputs[1].SetValue(m.form.URL)
	m.focus = 0
	m.errorMsg = ""
	m.state = stateSiteForm
}

func (m *Model) initSettings(s dashboard.Settings) {
	m.inputs = make([]textinput.Model, 3)
	m.inputs[0] = ti("alerts@example.com", 40)
	m.inputs[0].SetValue(s.Email)
	m.inputs[0].Focus()
	m.inputs[1] = ti("+15550100", 20)
	m.inputs[1].SetValue(s.Phone)
	m.inputs[2] = ti("5", 5)
	m.inputs[2].SetValue(strconv.Itoa(int(s.NotifyDelay / time.Minute)))
	m.focus = 0
	m.errorMsg = ""
	m.state = stateSettings
}

// refresh copies the monitor's sites in display order and keeps the
// cursor on the selected site.
func (m *Model) refresh() {
	m.sites = dashboard.SortSites(m.monitor.Sites())

	m.cursor = 0
	for i, s := range m.sites {
		if s.ID == m.selectedID {
			m.cursor = i
			break
		}
	}
	if len(m.sites) > 0 {
		m.selectedID = m.sites[m.cursor].ID
	}
	if m.cursor < m.offset || m.cursor >= m.offset+m.maxRows {
		m.offset = max(0, m.cursor-m.maxRows+1)
	}
	m.updateDetails()
}

func (m Model) selected() (dashboard.Site, bool) {
	if m.cursor < 0 || m.cursor >= len(m.sites) {
		return dashboard.Site{}, false
	}
	return m.sites[m.cursor], true
}

func (m *Model) updateDetails() {
	site, ok := m.selected()
	if !ok {
		m.details.SetContent("\n  No site selected.")
		return
	}
	m.details.SetContent(renderCard(&site, m.monitor.Settings()))
}

func (m Model) checkingLabel(s *dashboard.Site) string {
	if s.Checking {
		return m.spinner.View() + " checking"
	}
	return statusStyle(s.Status).Render(s.Status)
}

func notifyLabel(on bool) string {
	if on {
		return specialStyle.Render("on")
	}
	return subtleStyle.Render("off")
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func formatUptime(u float64) string {
	return fmt.Sprintf("%.1f%%", u)
}
