package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"socialcache/internal/downloader"
	"socialcache/pkg/cachepath"
	"socialcache/pkg/config"
	"socialcache/pkg/database"
	"socialcache/pkg/logger"
	"socialcache/pkg/metrics"
	"socialcache/pkg/providers"
	"socialcache/pkg/ratelimit"
)

// target is one image named on the command line or in an input file
type target struct {
	Identifier string
	URL        string
}

// parseTarget accepts identifier=url or a bare url, which is its own identifier
func parseTarget(arg string) (target, error) {
	arg = strings.TrimSpace(arg)
	if id, url, ok := strings.Cut(arg, "="); ok && !strings.Contains(id, "/") {
		if id == "" || url == "" {
			return target{}, fmt.Errorf("invalid target %q: want identifier=url", arg)
		}
		return target{Identifier: id, URL: url}, nil
	}
	if arg == "" {
		return target{}, errors.New("empty target")
	}
	return target{Identifier: arg, URL: arg}, nil
}

// readTargets parses "identifier url" lines, skipping blanks and # comments
func readTargets(r io.Reader) ([]target, error) {
	var targets []target
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		switch len(fields) {
		case 1:
			targets = append(targets, target{Identifier: fields[0], URL: fields[0]})
		case 2:
			targets = append(targets, target{Identifier: fields[0], URL: fields[1]})
		default:
			return nil, fmt.Errorf("line %d: want \"identifier url\", got %d fields", line, len(fields))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets: %w", err)
	}
	return targets, nil
}

// engineConfig maps the engine section of the configuration
func engineConfig(cfg *config.Config) downloader.Config {
	return downloader.Config{
		MaxConcurrent: cfg.Engine.MaxConcurrent,
		MaxBatchSize:  cfg.Engine.MaxBatchSize,
		Timeout:       cfg.Engine.Timeout,
		MaxRedirects:  cfg.Engine.MaxRedirects,
		UserAgent:     cfg.Engine.UserAgent,
		MaxBodySize:   cfg.Engine.MaxBodySize,
	}
}

// fetchOptions describes one fetch run
type fetchOptions struct {
	Network     cachepath.SocialNetwork
	AccountID   int
	ImageType   string
	AccessToken string
	Targets     []target
}

// fetchResult is one engine notification
type fetchResult struct {
	URL        string
	Identifier string
	Path       string
}

// fetchObserver follows a run as it progresses
type fetchObserver interface {
	Queued(url, identifier string)
	Result(url, identifier, path string)
}

// fetchSession owns the store, provider and engine of one fetch run
type fetchSession struct {
	opts     fetchOptions
	log      logger.Logger
	store    *database.Store
	engine   *downloader.Engine
	listener uint64
	results  chan fetchResult
}

// newFetchSession opens the store and wires an engine for opts. A nil
// registry disables metrics.
func newFetchSession(cfg *config.Config, opts fetchOptions, registry *prometheus.Registry, log logger.Logger) (*fetchSession, error) {
	store, err := database.Open(cfg.Cache.DatabasePath, log)
	if err != nil {
		return nil, err
	}

	provider, err := providers.New(opts.Network, cachepath.Resolver{Root: cfg.Cache.RootDirectory}, store, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	s := &fetchSession{
		opts:    opts,
		log:     log,
		store:   store,
		results: make(chan fetchResult, len(opts.Targets)),
	}

	dispatcher := providers.NewDispatcher(log)
	s.listener = dispatcher.AddListener(func(url, localPath string, md downloader.Metadata) {
		s.results <- fetchResult{URL: url, Identifier: providers.Identifier(md), Path: localPath}
	})

	s.engine = downloader.New(engineConfig(cfg), provider, dispatcher.Dispatch, log)
	s.engine.SetLimiter(ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))

	if registry != nil {
		m, err := metrics.NewEngineMetrics(registry)
		if err != nil {
			store.Close()
			return nil, err
		}
		s.engine.SetMetrics(m)
	}

	return s, nil
}

// Stats exposes the engine counters to dashboards
func (s *fetchSession) Stats() downloader.Stats {
	return s.engine.Stats()
}

// Run enqueues every target and waits for one notification per accepted
// target. Targets the engine refuses are reported as failures right away.
// Cancelling ctx stops the engine, which reports outstanding work as failed.
func (s *fetchSession) Run(ctx context.Context, observer fetchObserver) ([]fetchResult, error) {
	if err := s.engine.Start(ctx); err != nil {
		return nil, err
	}
	defer s.engine.Stop()

	var results []fetchResult
	report := func(r fetchResult) {
		results = append(results, r)
		if observer != nil {
			observer.Result(r.URL, r.Identifier, r.Path)
		}
	}

	expected := 0
	for _, t := range s.opts.Targets {
		img := providers.UncachedImage{
			URL:         t.URL,
			Identifier:  t.Identifier,
			ImageType:   s.opts.ImageType,
			AccountID:   s.opts.AccountID,
			AccessToken: s.opts.AccessToken,
			Listeners:   []uint64{s.listener},
		}
		if observer != nil {
			observer.Queued(t.URL, t.Identifier)
		}
		if err := providers.CacheImages(s.engine, []providers.UncachedImage{img}); err != nil {
			s.log.WithError(err).WarnWithFields("Image rejected", map[string]interface{}{
				"url": t.URL,
			})
			report(fetchResult{URL: t.URL, Identifier: t.Identifier})
			continue
		}
		expected++
	}

	for received := 0; received < expected; received++ {
		select {
		case r := <-s.results:
			report(r)
		case <-ctx.Done():
			s.engine.Stop()
			for len(s.results) > 0 {
				report(<-s.results)
			}
			return results, ctx.Err()
		}
	}
	return results, nil
}

// Close releases the store after the engine has stopped
func (s *fetchSession) Close() error {
	s.engine.Stop()
	return s.store.Close()
}

// startMetricsServer serves registry on listen until the returned func is called
func startMetricsServer(listen string, registry *prometheus.Registry, log logger.Logger) func() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &http.Server{
		Addr:              listen,
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server failed")
		}
	}()
	log.WithField("listen", listen).Info("Serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
