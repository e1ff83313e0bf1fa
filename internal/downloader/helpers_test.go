package downloader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"socialcache/pkg/cachepath"
	"socialcache/pkg/logger"
)

type record struct {
	url  string
	md   Metadata
	path string
}

// testProvider names files by URL below root and keeps completions in memory
type testProvider struct {
	resolver cachepath.Resolver

	mu         sync.Mutex
	records    []record
	sinceFlush int
	flushSizes []int
	flushErr   error
}

func newTestProvider(t *testing.T) *testProvider {
	return &testProvider{resolver: cachepath.Resolver{Root: t.TempDir()}}
}

func (p *testProvider) ResolvePath(url string, md Metadata, mimeType string) string {
	id, _ := md["identifier"].(string)
	return p.resolver.ByURL(cachepath.Facebook, cachepath.Images, id, url, mimeType)
}

func (p *testProvider) RecordCompletion(url string, md Metadata, localPath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record{url: url, md: md, path: localPath})
	p.sinceFlush++
}

func (p *testProvider) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushSizes = append(p.flushSizes, p.sinceFlush)
	if p.flushErr != nil {
		return p.flushErr
	}
	p.sinceFlush = 0
	return nil
}

func (p *testProvider) Records() []record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]record(nil), p.records...)
}

func (p *testProvider) FlushSizes() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.flushSizes...)
}

type notification struct {
	url  string
	path string
	md   Metadata
	at   time.Time
}

type collector struct {
	ch chan notification
}

func newCollector() *collector {
	return &collector{ch: make(chan notification, 256)}
}

func (c *collector) ready(url, path string, md Metadata) {
	c.ch <- notification{url: url, path: path, md: md, at: time.Now()}
}

func (c *collector) wait(t *testing.T, n int, timeout time.Duration) []notification {
	t.Helper()
	var got []notification
	deadline := time.After(timeout)
	for len(got) < n {
		select {
		case note := <-c.ch:
			got = append(got, note)
		case <-deadline:
			require.FailNowf(t, "timed out waiting for notifications", "got %d of %d", len(got), n)
		}
	}
	return got
}

func (c *collector) assertNoMore(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case note := <-c.ch:
		require.FailNowf(t, "unexpected notification", "%+v", note)
	case <-time.After(wait):
	}
}

func md(id string) Metadata {
	return Metadata{"identifier": id}
}

func newTestEngine(t *testing.T, cfg Config, p Provider, c *collector, log logger.Logger) *Engine {
	t.Helper()
	if log == nil {
		log = logger.NewNopLogger()
	}
	return New(cfg, p, c.ready, log)
}

func start(t *testing.T, e *Engine) {
	t.Helper()
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(e.Stop)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 4; i++ {
		img.Set(i, i, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var errFlush = errors.New("database is locked")
