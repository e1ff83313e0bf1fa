package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetQuietMode(false)
	})
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	buf := captureOutput(t)

	PrintInfo("Network", "onedrive")
	PrintSuccess("done")
	PrintWarning("slow", "3s")
	PrintError("failed", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "Network")
	assert.Contains(t, out, "onedrive")
	assert.Contains(t, out, "slow: 3s")
	assert.Contains(t, out, "failed: boom")
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := captureOutput(t)
	SetQuietMode(true)

	PrintInfo("hidden", "value")
	PrintHighlight("hidden")
	PrintError("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestProgressDisplay(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "facebook", 3, false)

	p.Record("https://example.com/a.jpg", "/cache/a.jpg")
	p.Record("https://example.com/b.jpg", "")
	succeeded, failed := p.Counts()
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)
	assert.Contains(t, buf.String(), "2/3")
	assert.Contains(t, buf.String(), "1 failed")

	p.Complete()
	assert.Contains(t, buf.String(), "Cached 1 of 3 images for facebook")
}

func TestProgressDisplayVerbose(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressDisplay(&buf, "dropbox", 2, true)

	p.Record("https://example.com/a.jpg", "/cache/a.jpg")
	p.Record("https://example.com/b.jpg", "")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "/cache/a.jpg")
	assert.Contains(t, lines[1], "b.jpg")
}

type recordingSender struct {
	titles   []string
	messages []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return nil
}

func TestNotifier(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifierWithSender(sender)

	require.NoError(t, n.NotifyFetchComplete("onedrive", 4, 1))
	require.Len(t, sender.messages, 1)
	assert.Equal(t, "socialcache: onedrive", sender.titles[0])
	assert.Equal(t, "4 images cached, 1 failed", sender.messages[0])

	assert.NoError(t, NewNotifierWithSender(nil).NotifyFetchComplete("vk", 1, 0))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", FormatDuration(5*time.Second))
	assert.Equal(t, "2m5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h1m", FormatDuration(61*time.Minute))
}
