// Package tui is the interactive dashboard shown by `socialcache fetch --tui`.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI wraps the bubbletea program driving a Model
type TUI struct {
	program *tea.Program
	model   *Model
}

// New creates a dashboard for network polling source for engine counters
func New(network string, source StatsSource, opts ...tea.ProgramOption) *TUI {
	model := NewModel(network, source)
	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return &TUI{
		program: tea.NewProgram(&model, opts...),
		model:   &model,
	}
}

// Run blocks until the run finishes or the user quits
func (t *TUI) Run() error {
	_, err := t.program.Run()
	return err
}

// Interrupted reports whether the user quit early. Valid after Run returns.
func (t *TUI) Interrupted() bool {
	return t.model.Interrupted()
}

// Queued records an image handed to the engine
func (t *TUI) Queued(url, identifier string) {
	t.program.Send(QueuedMsg{URL: url, Identifier: identifier})
}

// Result records one engine notification
func (t *TUI) Result(url, identifier, path string) {
	t.program.Send(ResultMsg{URL: url, Identifier: identifier, Path: path})
}

// Log adds a formatted line to the log panel
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.program.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Done tells the dashboard every notification arrived
func (t *TUI) Done() {
	t.program.Send(DoneMsg{})
}
