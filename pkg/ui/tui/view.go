package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire dashboard
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{
		m.renderHeader(),
		lipgloss.JoinHorizontal(lipgloss.Top, m.renderStatsPanel(), "  ", m.renderEnginePanel()),
		m.renderResultsPanel(),
		m.renderLogsPanel(),
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderHeader() string {
	status := m.spinner.View() + " fetching"
	if m.done {
		status = successStyle.Render("✓ done")
	}
	title := fmt.Sprintf("socialcache • %s • %s", m.network, status)
	bar := m.progress.ViewAs(m.Ratio())
	return lipgloss.JoinVertical(lipgloss.Left, headerStyle.Render(title), "  "+bar)
}

func (m *Model) columnWidth() int {
	return max(30, (m.width-4)/2)
}

func statLine(label string, value interface{}) string {
	return fmt.Sprintf("%s %s", statsLabelStyle.Render(label), statsValueStyle.Render(fmt.Sprint(value)))
}

func (m *Model) renderStatsPanel() string {
	lines := []string{
		titleStyle.Render(" RUN "),
		statLine("Elapsed:", formatDuration(time.Since(m.sessionStart))),
		statLine("Images:", m.Total()),
		statLine("Cached:", m.succeeded),
	}
	if m.failed > 0 {
		lines = append(lines, errorStyle.Render(fmt.Sprintf("Failed: %d", m.failed)))
	} else {
		lines = append(lines, statLine("Failed:", 0))
	}
	return panelStyle.Width(m.columnWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderEnginePanel() string {
	s := m.stats
	lines := []string{
		titleStyle.Render(" ENGINE "),
		statLine("Pending:", s.Pending),
		statLine("In flight:", s.InFlight),
		statLine("Merged:", s.Merged),
		statLine("Flushes:", s.Flushes),
	}
	if s.Unflushed > 0 {
		lines = append(lines, warningStyle.Render(fmt.Sprintf("Unflushed: %d", s.Unflushed)))
	} else {
		lines = append(lines, statLine("Unflushed:", 0))
	}
	return panelStyle.Width(m.columnWidth()).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderResultsPanel() string {
	lines := []string{titleStyle.Render(" RECENT ")}

	recent := m.recentFinished(5)
	if len(recent) == 0 {
		lines = append(lines, itemStyle.Render("Nothing finished yet"))
	}
	for _, item := range recent {
		name := item.Identifier
		if name == "" {
			name = item.URL
		}
		if item.State == ItemFailed {
			lines = append(lines, itemStyle.Render(errorStyle.Render("✗ ")+name))
			continue
		}
		lines = append(lines, itemStyle.Render(successStyle.Render("✓ ")+name+" → "+item.Path))
	}

	return panelStyle.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m *Model) renderLogsPanel() string {
	title := titleStyle.Render(" LOG ")

	start := max(0, len(m.logMessages)-8)
	var logs []string
	for _, entry := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(entry.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(levelColor(entry.Level)).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(entry.Message)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = logMessageStyle.Render("No logs yet...")
	}

	return panelStyle.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q/ctrl+c  - Stop fetching and quit
    ctrl+l      - Clear the log
    ?           - Toggle this help

  Results:
    ` + successStyle.Render("✓") + `  - Image cached
    ` + errorStyle.Render("✗") + `  - Download failed
`
	return panelStyle.Width(m.width - 4).Render(help)
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}
