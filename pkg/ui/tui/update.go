package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"socialcache/internal/downloader"
)

// QueuedMsg is sent when an image is handed to the engine
type QueuedMsg struct {
	URL        string
	Identifier string
}

// ResultMsg carries one engine notification; an empty Path is a failure
type ResultMsg struct {
	URL        string
	Identifier string
	Path       string
}

// StatsMsg replaces the engine counters shown on screen
type StatsMsg downloader.Stats

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// DoneMsg ends the program once every notification has arrived
type DoneMsg struct{}

// TickMsg is sent periodically to refresh engine counters
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(10, msg.Width-20)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.source != nil {
			m.stats = m.source.Stats()
		}
		return m, tickCmd()

	case QueuedMsg:
		m.addItem(msg.URL, msg.Identifier)
		return m, nil

	case ResultMsg:
		m.finishItem(msg.URL, msg.Identifier, msg.Path)
		return m, nil

	case StatsMsg:
		m.stats = downloader.Stats(msg)
		return m, nil

	case LogMsg:
		m.addLogMessage(msg.Level, msg.Message)
		return m, nil

	case DoneMsg:
		m.done = true
		m.addLogMessage("SUCCESS", "All notifications received")
		return m, tea.Quit
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if !m.done {
			m.interrupted = true
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
