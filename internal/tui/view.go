package tui

import (
	"fmt"
	"strings"

	"webmonitor/internal/dashboard"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	var body string
	switch m.state {
	case stateLogin:
		body = m.viewLogin()
	case stateSiteForm:
		body = m.viewSiteForm()
	case stateSettings:
		body = m.viewSettings()
	case stateConfirmDelete:
		body = m.viewConfirm()
	default:
		body = m.viewDashboard()
	}

	if toasts := m.viewToasts(); toasts != "" {
		body += "\n\n" + toasts
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(body)
}

func (m Model) viewLogin() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Website Monitor") + "\n\n")
	if m.errorMsg != "" {
		b.WriteString(dangerStyle.Render(m.errorMsg) + "\n\n")
	}
	b.WriteString("Username:\n" + m.inputs[0].View() + "\n\n")
	b.WriteString("Password:\n" + m.inputs[1].View() + "\n\n")
	b.WriteString(subtleStyle.Render("[Enter] Login  [Tab] Next field  [Ctrl+C] Quit"))
	return b.String()
}

func (m Model) viewSiteForm() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.form.Title()) + "\n\n")
	if m.errorMsg != "" {
		b.WriteString(dangerStyle.Render(m.errorMsg) + "\n\n")
	}
	b.WriteString("Site Name:\n" + m.inputs[0].View() + "\n\n")
	b.WriteString("URL:\n" + m.inputs[1].View() + "\n\n")

	if m.saving {
		b.WriteString(m.spinner.View() + " Saving...")
	} else {
		b.WriteString(subtleStyle.Render("[Enter] Save  [Tab] Next field  [Esc] Cancel"))
	}
	return b.String()
}

func (m Model) viewSettings() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Notification Settings") + "\n\n")
	if m.errorMsg != "" {
		b.WriteString(dangerStyle.Render(m.errorMsg) + "\n\n")
	}
	b.WriteString("Email:\n" + m.inputs[0].View() + "\n\n")
	b.WriteString("Phone:\n" + m.inputs[1].View() + "\n\n")
	b.WriteString("Notify delay (minutes):\n" + m.inputs[2].View() + "\n\n")
	b.WriteString(subtleStyle.Render("[Enter] Save  [Tab] Next field  [Esc] Cancel"))
	return b.String()
}

func (m Model) viewConfirm() string {
	name := fmt.Sprintf("#%d", m.deleteID)
	for _, s := range m.sites {
		if s.ID == m.deleteID {
			name = s.Name
		}
	}
	return titleStyle.Render("Delete Site") + "\n\n" +
		fmt.Sprintf("Are you sure you want to delete %s?", boldStyle.Render(name)) + "\n\n" +
		subtleStyle.Render("[y] Delete  [n/Esc] Cancel")
}

func (m Model) viewDashboard() string {
	tabs := []string{"Sites", "Down", "Details"}
	var rendered []string
	for i, t := range tabs {
		if i == m.tab {
			rendered = append(rendered, activeTab.Render(t))
		} else {
			rendered = append(rendered, inactiveTab.Render(t))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	content := "\n" + m.viewSummary() + "\n" + m.viewStatusLine() + "\n"
	switch m.tab {
	case tabSites:
		content += m.viewSites()
	case tabDown:
		content += m.viewDown()
	case tabDetails:
		content += m.details.View()
	}

	footer := subtleStyle.Render("[a] Add  [e] Edit  [d] Delete  [c] Check  [t] Notify  [m] Auto  [i] Interval  [s] Sound  [n] Alerts  [o] Contact  [r] Refresh  [Tab] View  [q] Quit")
	return header + "\n" + content + "\n" + footer
}

func (m Model) viewSummary() string {
	sum := dashboard.Summarize(m.sites)

	down := fmt.Sprintf("%d", sum.Down)
	if sum.Down > 0 {
		down = dangerStyle.Render(down)
	}

	boxes := []string{
		summaryBox.Render("Total Sites\n" + boldStyle.Render(fmt.Sprintf("%d", sum.Total))),
		summaryBox.Render("Sites Down\n" + down),
		summaryBox.Render("Slowest Site\n" + boldStyle.Render(limitStr(sum.Slowest, 20))),
		summaryBox.Render("Avg Response\n" + boldStyle.Render(sum.AvgResponse)),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m Model) viewStatusLine() string {
	s := m.monitor.Settings()

	auto := subtleStyle.Render("Auto-monitor: off")
	if s.AutoMonitoring {
		auto = specialStyle.Render(fmt.Sprintf("Auto-monitor: every %s", s.Interval))
	}
	line := fmt.Sprintf("%s  Sound: %s  Alerts: %s", auto, onOff(s.SoundOn), onOff(s.NotificationsEnabled))
	if s.Email != "" {
		line += subtleStyle.Render("  → " + s.Email)
	}
	if m.alarm != "" {
		line += "  " + dangerStyle.Bold(true).Render("ALARM: "+m.alarm)
	}
	return line
}

func (m Model) viewSites() string {
	var b strings.Builder
	headerRow := lipgloss.JoinHorizontal(lipgloss.Left,
		colName.Render("NAME"), colStatus.Render("STATUS"), colUptime.Render("UPTIME"),
		colLast.Render("LAST"), colNotify.Render("NOTIFY"), "ERROR")
	b.WriteString("\n  " + headerRow + "\n")
	b.WriteString("  " + subtleStyle.Render(strings.Repeat("-", 80)) + "\n")

	if len(m.sites) == 0 {
		b.WriteString("\n  No sites yet. Press [a] to add one.")
		return b.String()
	}

	end := min(m.offset+m.maxRows, len(m.sites))
	for i := m.offset; i < end; i++ {
		site := m.sites[i]
		row := lipgloss.JoinHorizontal(lipgloss.Left,
			colName.Render(limitStr(site.Name, 20)),
			colStatus.Render(m.checkingLabel(&site)),
			colUptime.Render(formatUptime(site.Uptime)),
			colLast.Render(dashboard.LastResponse(&site)),
			colNotify.Render(notifyLabel(site.NotificationsEnabled)),
			dangerStyle.Render(limitStr(dashboard.CardError(&site), 40)),
		)

		if m.cursor == i {
			row = boldStyle.Render("> " + row)
		} else {
			row = "  " + row
		}
		b.WriteString(row + "\n")
	}
	return b.String()
}

func (m Model) viewDown() string {
	rows := dashboard.DownSites(m.sites)

	var b strings.Builder
	b.WriteString("\n" + titleStyle.Render("Sites Down") + "\n\n")
	if len(rows) == 0 {
		b.WriteString(specialStyle.Render("  All sites are up."))
		return b.String()
	}

	b.WriteString("  " + lipgloss.JoinHorizontal(lipgloss.Left,
		colName.Render("NAME"), colURL.Render("URL"), colTime.Render("LAST CHECKED"),
		colLast.Render("RESPONSE"), "ERROR") + "\n")
	b.WriteString("  " + subtleStyle.Render(strings.Repeat("-", 100)) + "\n")
	for _, r := range rows {
		b.WriteString("  " + lipgloss.JoinHorizontal(lipgloss.Left,
			colName.Render(limitStr(r.Name, 20)),
			colURL.Render(limitStr(r.URL, 30)),
			colTime.Render(r.LastChecked),
			colLast.Render(r.ResponseTime),
			dangerStyle.Render(r.Error),
		) + "\n")
	}
	return b.String()
}

// renderCard renders the detail card of one site.
func renderCard(s *dashboard.Site, settings dashboard.Settings) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(s.Name) + "  " + subtleStyle.Render(s.URL) + "\n\n")
	b.WriteString("Status:        " + statusStyle(s.Status).Render(s.Status) + "\n")
	b.WriteString("Uptime:        " + formatUptime(s.Uptime) + "\n")
	b.WriteString("Last response: " + dashboard.LastResponse(s) + "\n")

	checked := dashboard.Placeholder
	if s.LastChecked != nil {
		checked = *s.LastChecked
	}
	b.WriteString("Last checked:  " + checked + "\n")
	b.WriteString("Notifications: " + notifyLabel(s.NotificationsEnabled) + "\n")
	if e := dashboard.CardError(s); e != "" {
		b.WriteString("Error:         " + dangerStyle.Render(e) + "\n")
	}

	points := dashboard.Chart(s)
	b.WriteString("\nResponse time (ms)\n")
	if len(points) == 0 {
		b.WriteString(subtleStyle.Render("No checks yet."))
	} else {
		b.WriteString(infoStyle.Render(sparkline(points)) + "\n")
		b.WriteString(subtleStyle.Render(fmt.Sprintf("%s … %s", points[0].Label, points[len(points)-1].Label)))
	}

	if settings.NotificationsEnabled && settings.Email == "" && s.NotificationsEnabled {
		b.WriteString("\n\n" + warnStyle.Render("Set a contact email with [o] to receive alerts."))
	}
	return cardBox.Render(b.String())
}

func (m Model) viewToasts() string {
	var lines []string
	for _, t := range m.toasts {
		style := levelStyle(t.level)
		lines = append(lines, toastBox.BorderForeground(style.GetForeground()).Render(style.Render(t.message)))
	}
	return strings.Join(lines, "\n")
}
