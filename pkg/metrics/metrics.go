// Package metrics provides Prometheus metrics for the download engine.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics contains all Prometheus metrics related to image caching.
// All methods are safe to call on a nil receiver, which records nothing.
type EngineMetrics struct {
	Downloads        *prometheus.CounterVec
	DownloadErrors   *prometheus.CounterVec
	DownloadDuration prometheus.Histogram
	Redirects        prometheus.Counter
	Pending          prometheus.Gauge
	InFlight         prometheus.Gauge
	Flushes          *prometheus.CounterVec
	FlushedRecords   prometheus.Counter
	registry         *prometheus.Registry
}

// NewEngineMetrics creates the engine metrics and registers them with registry.
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register engine metrics: %w", err)
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() {
	m.Downloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialcache_downloads_total",
		Help: "Total number of finished download operations by outcome.",
	}, []string{"outcome"})

	m.DownloadErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialcache_download_errors_total",
		Help: "Total number of failed downloads by error kind.",
	}, []string{"kind"})

	m.DownloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "socialcache_download_duration_seconds",
		Help:    "Duration of download operations in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	m.Redirects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialcache_redirects_total",
		Help: "Total number of redirects followed.",
	})

	m.Pending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "socialcache_pending_requests",
		Help: "Requests waiting for a download slot.",
	})

	m.InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "socialcache_inflight_requests",
		Help: "Download operations currently in flight.",
	})

	m.Flushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialcache_batch_flushes_total",
		Help: "Total number of batch flushes by result.",
	}, []string{"result"})

	m.FlushedRecords = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "socialcache_batch_flushed_completions_total",
		Help: "Total number of completions covered by successful flushes.",
	})
}

// ObserveDownload records a terminal download outcome. kind is the error kind
// for failures and ignored otherwise.
func (m *EngineMetrics) ObserveDownload(outcome, kind string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Downloads.WithLabelValues(outcome).Inc()
	if kind != "" {
		m.DownloadErrors.WithLabelValues(kind).Inc()
	}
	m.DownloadDuration.Observe(durationSeconds)
}

// IncrementRedirects increases the redirect counter by one.
func (m *EngineMetrics) IncrementRedirects() {
	if m == nil {
		return
	}
	m.Redirects.Inc()
}

// SetQueueDepth updates the pending and in-flight gauges.
func (m *EngineMetrics) SetQueueDepth(pending, inFlight int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(pending))
	m.InFlight.Set(float64(inFlight))
}

// ObserveFlush records a batch flush covering records completions.
func (m *EngineMetrics) ObserveFlush(records int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Flushes.WithLabelValues("error").Inc()
		return
	}
	m.Flushes.WithLabelValues("ok").Inc()
	m.FlushedRecords.Add(float64(records))
}

// Collect implements the prometheus.Collector interface.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Downloads.Collect(ch)
	m.DownloadErrors.Collect(ch)
	ch <- m.DownloadDuration
	ch <- m.Redirects
	ch <- m.Pending
	ch <- m.InFlight
	m.Flushes.Collect(ch)
	ch <- m.FlushedRecords
}

// Describe implements the prometheus.Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Downloads.Describe(ch)
	m.DownloadErrors.Describe(ch)
	ch <- m.DownloadDuration.Desc()
	ch <- m.Redirects.Desc()
	ch <- m.Pending.Desc()
	ch <- m.InFlight.Desc()
	m.Flushes.Describe(ch)
	ch <- m.FlushedRecords.Desc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.HTTPErrorOnError,
	})
}
