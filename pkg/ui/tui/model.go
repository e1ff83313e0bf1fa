package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"socialcache/internal/downloader"
)

// ItemState is where one enqueued image stands
type ItemState int

const (
	ItemQueued ItemState = iota
	ItemCached
	ItemFailed
)

// Item is one enqueued image as seen by the dashboard
type Item struct {
	URL        string
	Identifier string
	Path       string
	State      ItemState
	Finished   time.Time
}

// StatsSource is polled on every tick for engine counters
type StatsSource interface {
	Stats() downloader.Stats
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
}

// Model is the fetch dashboard state. It is only mutated through Update.
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	network string
	source  StatsSource
	stats   downloader.Stats

	items    map[string]*Item
	order    []string
	finished []string

	succeeded    int
	failed       int
	sessionStart time.Time

	width          int
	height         int
	showHelp       bool
	done           bool
	interrupted    bool
	logMessages    []LogMessage
	maxLogMessages int
}

// NewModel creates a dashboard for one fetch run; source may be nil
func NewModel(network string, source StatsSource) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = s.Style.Foreground(neonCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return Model{
		spinner:        s,
		progress:       p,
		network:        network,
		source:         source,
		items:          make(map[string]*Item),
		sessionStart:   time.Now(),
		maxLogMessages: 50,
	}
}

// Init starts the spinner and the stats ticker
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func itemKey(url, identifier string) string {
	if identifier != "" {
		return identifier
	}
	return url
}

func (m *Model) addItem(url, identifier string) {
	key := itemKey(url, identifier)
	if _, ok := m.items[key]; ok {
		return
	}
	m.items[key] = &Item{URL: url, Identifier: identifier}
	m.order = append(m.order, key)
}

func (m *Model) finishItem(url, identifier, path string) {
	key := itemKey(url, identifier)
	item, ok := m.items[key]
	if !ok {
		m.addItem(url, identifier)
		item = m.items[key]
	}
	if item.State != ItemQueued {
		return
	}

	item.Path = path
	item.Finished = time.Now()
	if path == "" {
		item.State = ItemFailed
		m.failed++
		m.addLogMessage("ERROR", "Failed: "+url)
	} else {
		item.State = ItemCached
		m.succeeded++
	}
	m.finished = append(m.finished, key)
}

func (m *Model) addLogMessage(level, message string) {
	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
	})
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Total is the number of distinct images enqueued
func (m *Model) Total() int { return len(m.order) }

// Counts returns the finished images split by outcome
func (m *Model) Counts() (succeeded, failed int) { return m.succeeded, m.failed }

// Interrupted reports whether the user quit before the run finished
func (m *Model) Interrupted() bool { return m.interrupted }

// Ratio is the finished fraction of enqueued images
func (m *Model) Ratio() float64 {
	if len(m.order) == 0 {
		return 0
	}
	return float64(m.succeeded+m.failed) / float64(len(m.order))
}

// recentFinished returns up to n most recently finished items, newest first
func (m *Model) recentFinished(n int) []*Item {
	var recent []*Item
	for i := len(m.finished) - 1; i >= 0 && len(recent) < n; i-- {
		recent = append(recent, m.items[m.finished[i]])
	}
	return recent
}
