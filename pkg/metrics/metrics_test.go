package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	m.ObserveDownload("succeeded", "", 0.2)
	m.ObserveDownload("failed", "not_an_image", 0.1)
	m.ObserveDownload("timed_out", "timeout", 60)
	m.IncrementRedirects()
	m.SetQueueDepth(7, 5)
	m.ObserveFlush(12, nil)
	m.ObserveFlush(3, errors.New("locked"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Downloads.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DownloadErrors.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Redirects))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Pending))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.InFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues("error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.FlushedRecords))
}

func TestDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewEngineMetrics(registry)
	require.NoError(t, err)

	_, err = NewEngineMetrics(registry)
	assert.Error(t, err)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.ObserveDownload("succeeded", "", 1)
		m.IncrementRedirects()
		m.SetQueueDepth(1, 1)
		m.ObserveFlush(1, nil)
	})
}

func TestHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewEngineMetrics(registry)
	require.NoError(t, err)
	m.IncrementRedirects()

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "socialcache_redirects_total 1")
}
