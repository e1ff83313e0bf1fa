package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay prints a single self-overwriting line describing a fetch
// run: finished/total, throughput, failures and the last finished URL.
type ProgressDisplay struct {
	mu        sync.Mutex
	w         io.Writer
	label     string
	total     int
	succeeded int
	failed    int
	last      string
	startTime time.Time
	verbose   bool
}

// NewProgressDisplay creates a display for total notifications. In verbose
// mode every result is printed on its own line instead.
func NewProgressDisplay(w io.Writer, label string, total int, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		w:         w,
		label:     label,
		total:     total,
		startTime: time.Now(),
		verbose:   verbose,
	}
}

// Record accounts for one notification; an empty path is a failure
func (p *ProgressDisplay) Record(url, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if path == "" {
		p.failed++
	} else {
		p.succeeded++
	}
	p.last = url

	if p.verbose {
		if path == "" {
			fmt.Fprintf(p.w, "%s %s\n", Red("✗"), url)
		} else {
			fmt.Fprintf(p.w, "%s %s → %s\n", Green("✓"), url, Dim(path))
		}
		return
	}
	p.printProgress()
}

// Counts returns the successes and failures recorded so far
func (p *ProgressDisplay) Counts() (succeeded, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.succeeded, p.failed
}

func (p *ProgressDisplay) printProgress() {
	done := p.succeeded + p.failed
	fmt.Fprintf(p.w, "\r%s\r%s", strings.Repeat(" ", 120), p.line(done))
}

func (p *ProgressDisplay) line(done int) string {
	const barWidth = 20
	filled := 0
	if p.total > 0 {
		filled = done * barWidth / p.total
		if filled > barWidth {
			filled = barWidth
		}
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %.1f/min",
		Cyan(p.label), bar, done, p.total, p.rate(done))
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}
	if p.last != "" {
		line += " • " + Dim(truncate(p.last, 40))
	}
	return line
}

func (p *ProgressDisplay) rate(done int) float64 {
	minutes := time.Since(p.startTime).Minutes()
	if minutes == 0 {
		return 0
	}
	return float64(done) / minutes
}

// Complete prints the run summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.verbose {
		fmt.Fprintln(p.w)
	}
	fmt.Fprintf(p.w, "%s Cached %d of %d images for %s in %s\n",
		Green("✓"), p.succeeded, p.total, p.label, FormatDuration(time.Since(p.startTime)))
	if p.failed > 0 {
		fmt.Fprintf(p.w, "  %s %d downloads failed\n", Dim("•"), p.failed)
	}
}

// FormatDuration formats a duration in a compact human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n+1:]
}
