package tui

import (
	"strings"

	"webmonitor/internal/dashboard"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

var (
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9A9A9A", Dark: "#5C5C5C"})
	specialStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C9A400", Dark: "#F0E442"})
	dangerStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#2E7DD7", Dark: "#6CB6FF"})
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	boldStyle    = lipgloss.NewStyle().Bold(true)

	activeTab   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, true, false).BorderForeground(lipgloss.Color("#7D56F4")).Foreground(lipgloss.Color("#7D56F4")).Bold(true).Padding(0, 1)
	inactiveTab = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.AdaptiveColor{Light: "#AAA", Dark: "#555"})

	summaryBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4")).Padding(0, 1).MarginRight(1)
	cardBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	toastBox   = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).PaddingLeft(1)

	colName   = lipgloss.NewStyle().Width(22)
	colStatus = lipgloss.NewStyle().Width(14)
	colUptime = lipgloss.NewStyle().Width(9)
	colLast   = lipgloss.NewStyle().Width(10)
	colNotify = lipgloss.NewStyle().Width(8)
	colURL    = lipgloss.NewStyle().Width(32)
	colTime   = lipgloss.NewStyle().Width(21)
)

func statusStyle(status string) lipgloss.Style {
	switch status {
	case dashboard.StatusUp:
		return specialStyle
	case dashboard.StatusDown:
		return dangerStyle
	case dashboard.StatusHighLatency, dashboard.StatusDegraded:
		return warnStyle
	default:
		return subtleStyle
	}
}

func levelStyle(level string) lipgloss.Style {
	switch level {
	case dashboard.LevelError:
		return dangerStyle
	case dashboard.LevelSuccess:
		return specialStyle
	default:
		return infoStyle
	}
}

func ti(ph string, width int) textinput.Model {
	t := textinput.New()
	t.Placeholder = ph
	t.Width = width
	return t
}

func limitStr(text string, max int) string {
	if len([]rune(text)) > max {
		return string([]rune(text)[:max-3]) + "..."
	}
	return text
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline renders response times as block characters scaled to the
// largest value.
func sparkline(points []dashboard.ChartPoint) string {
	var max int64
	for _, p := range points {
		if p.Ms > max {
			max = p.Ms
		}
	}

	var b strings.Builder
	for _, p := range points {
		idx := 0
		if max > 0 {
			idx = int(p.Ms * int64(len(sparkLevels)-1) / max)
		}
		b.WriteRune(sparkLevels[idx])
	}
	return b.String()
}
