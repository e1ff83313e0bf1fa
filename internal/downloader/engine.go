package downloader

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	errs "socialcache/pkg/errors"
	"socialcache/pkg/logger"
	"socialcache/pkg/metrics"
	"socialcache/pkg/ratelimit"
	"socialcache/pkg/storage"
)

// Metadata is the opaque payload a caller attaches to a request. It is handed
// back untouched with the ready notification.
type Metadata map[string]interface{}

// Provider supplies the per-network policy: where files go and how completions
// are persisted. ResolvePath is called with an empty mimeType when a request is
// enqueued and with the sniffed type once the body is known. It runs on the
// caller's goroutine and on fetch goroutines, so it must be safe for
// concurrent use. RecordCompletion and Flush only run on the engine worker.
type Provider interface {
	ResolvePath(url string, md Metadata, mimeType string) string
	RecordCompletion(url string, md Metadata, localPath string)
	Flush() error
}

// RequestBuilder is implemented by providers that need custom requests
type RequestBuilder interface {
	BuildRequest(ctx context.Context, url string, md Metadata) (*http.Request, error)
}

// ContentWriter commits downloaded bytes to target
type ContentWriter interface {
	Write(data []byte, target string) (string, error)
}

// ReadyFunc is called once per Enqueue call. An empty localPath means the
// image could not be cached. It always runs on the engine worker goroutine.
type ReadyFunc func(url, localPath string, md Metadata)

// ErrStopped is returned by Enqueue and Start after Stop
var ErrStopped = errors.New("download engine is stopped")

// Config holds the engine limits
type Config struct {
	MaxConcurrent int
	MaxBatchSize  int
	Timeout       time.Duration
	// MaxRedirects caps the redirect hops of one request; 0 means unlimited
	MaxRedirects int
	UserAgent    string
	// MaxBodySize caps a response body in bytes; larger bodies fail the request
	MaxBodySize int64
}

// DefaultConfig returns the default engine limits
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 5,
		MaxBatchSize:  50,
		Timeout:       60 * time.Second,
		MaxRedirects:  5,
		UserAgent:     "socialcache/1.0",
		MaxBodySize:   32 << 20,
	}
}

// Stats is a snapshot of the engine state
type Stats struct {
	Pending   int
	InFlight  int
	Merged    int
	Completed int
	Failed    int
	Flushes   int
	Unflushed int
}

// operation is one network fetch occupying a concurrency slot. Its timer is
// armed by the worker once the fetch has its rate limiter token.
type operation struct {
	id      string
	req     *request
	started time.Time
	cancel  context.CancelFunc
	timer   *time.Timer
}

func (op *operation) stopTimer() {
	if op.timer != nil {
		op.timer.Stop()
	}
}

// outcome is what a fetch goroutine reports back to the worker
type outcome struct {
	op       *operation
	path     string
	location string
	err      error
}

type enqueued struct {
	url string
	md  Metadata
}

// Engine downloads images with bounded concurrency, merging duplicate
// requests for the same URL into one network operation.
type Engine struct {
	cfg      Config
	provider Provider
	onReady  ReadyFunc
	log      logger.Logger
	client   *http.Client
	limiter  ratelimit.Limiter
	writer   ContentWriter
	metrics  *metrics.EngineMetrics

	// inbox is the only state shared with callers
	mu      sync.Mutex
	inbox   []enqueued
	started bool
	stopped bool
	wake    chan struct{}

	results  chan outcome
	launched chan *operation
	timeouts chan *operation
	stopping chan struct{}
	done     chan struct{}
	cancel   context.CancelFunc
	ops      sync.WaitGroup
	stopOnce sync.Once

	// owned by the worker goroutine
	ledger     *ledger
	batchCount int
	merged     int
	completed  int
	failed     int
	flushes    int

	statsMu sync.Mutex
	stats   Stats
}

// New creates an engine. Zero config fields fall back to DefaultConfig.
func New(cfg Config, provider Provider, onReady ReadyFunc, log logger.Logger) *Engine {
	defaults := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaults.MaxConcurrent
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaults.MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaults.MaxBodySize
	}
	if cfg.MaxRedirects < 0 {
		cfg.MaxRedirects = 0
	}
	if log == nil {
		log = logger.GetLogger()
	}
	log = log.WithField("component", "downloader")

	e := &Engine{
		cfg:      cfg,
		provider: provider,
		onReady:  onReady,
		log:      log,
		limiter:  ratelimit.Unlimited{},
		writer:   storage.NewWriter(log),
		wake:     make(chan struct{}, 1),
		results:  make(chan outcome, cfg.MaxConcurrent),
		launched: make(chan *operation),
		timeouts: make(chan *operation, cfg.MaxConcurrent),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
		ledger:   newLedger(),
	}
	e.SetHTTPClient(&http.Client{})
	return e
}

// SetHTTPClient replaces the HTTP client. Redirects are never followed by the
// client itself; the engine handles them. Call before Start.
func (e *Engine) SetHTTPClient(client *http.Client) {
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	e.client = &c
}

// SetLimiter sets the outbound rate limiter. Call before Start.
func (e *Engine) SetLimiter(l ratelimit.Limiter) {
	if l == nil {
		l = ratelimit.Unlimited{}
	}
	e.limiter = l
}

// SetMetrics enables metrics collection. Call before Start.
func (e *Engine) SetMetrics(m *metrics.EngineMetrics) {
	e.metrics = m
}

// SetWriter replaces the content writer. Call before Start.
func (e *Engine) SetWriter(w ContentWriter) {
	e.writer = w
}

// Start launches the engine worker. Cancelling ctx has the same effect as Stop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrStopped
	}
	if e.started {
		return errors.New("download engine already started")
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)

	logger.LogComponentStart(e.log, "downloader", map[string]interface{}{
		"max_concurrent": e.cfg.MaxConcurrent,
		"max_batch_size": e.cfg.MaxBatchSize,
		"timeout":        e.cfg.Timeout,
		"max_redirects":  e.cfg.MaxRedirects,
	})

	go e.run(ctx)
	return nil
}

// Stop cancels in-flight operations, notifies every outstanding payload of
// failure, flushes unflushed completions and waits for the worker to exit.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		e.stopped = true
		started := e.started
		e.mu.Unlock()

		if !started {
			close(e.done)
			return
		}
		e.cancel()
		<-e.done
		logger.LogComponentStop(e.log, "downloader", "stopped")
	})
}

// Done is closed once the engine has fully stopped
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Enqueue requests url. It never blocks on network work: the request is
// handed to the worker and the result arrives through the ReadyFunc.
// Requests that can never produce a cache path are rejected here.
func (e *Engine) Enqueue(url string, md Metadata) error {
	if url == "" {
		return errs.New(errs.ErrorTypePrecondition, "url is empty")
	}
	if e.provider.ResolvePath(url, md, "") == "" {
		return errs.New(errs.ErrorTypePrecondition, "no cache path for request metadata").WithURL(url)
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	e.inbox = append(e.inbox, enqueued{url: url, md: md})
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Stats returns a snapshot of the engine state
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	defer e.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
			e.drainInbox()
		case op := <-e.launched:
			e.arm(op)
		case o := <-e.results:
			e.complete(o)
		case op := <-e.timeouts:
			e.expire(op)
		}

		e.admit(ctx)
		e.maybeFlush()
		e.publishStats()
	}
}

func (e *Engine) drainInbox() {
	e.mu.Lock()
	items := e.inbox
	e.inbox = nil
	e.mu.Unlock()

	for _, item := range items {
		if merged := e.ledger.enqueue(item.url, item.md); merged {
			e.merged++
			e.log.DebugWithFields("Merged duplicate request", map[string]interface{}{
				"url": item.url,
			})
		}
	}
}

// admit moves pending requests into flight while slots are free
func (e *Engine) admit(ctx context.Context) {
	for len(e.ledger.inflight) < e.cfg.MaxConcurrent {
		req := e.ledger.pop()
		if req == nil {
			return
		}

		opCtx, cancel := context.WithCancel(ctx)
		httpReq, err := e.newRequest(opCtx, req)
		if err != nil {
			cancel()
			e.log.WithError(err).WarnWithFields("Failed to build request", map[string]interface{}{
				"url":      req.url,
				"target":   req.target(),
				"payloads": len(req.payloads),
			})
			e.notify(req, "")
			continue
		}

		op := &operation{
			id:      newOperationID(),
			req:     req,
			started: time.Now(),
			cancel:  cancel,
		}
		e.ledger.start(op)

		e.ops.Add(1)
		go e.fetch(opCtx, op, httpReq, req.url, req.payloads[0])
	}
}

// arm starts the timeout of an operation that is about to hit the network.
// launched is unbuffered, so arm always runs before that operation's outcome
// is handled.
func (e *Engine) arm(op *operation) {
	if cur, ok := e.ledger.inflight[op.req.url]; !ok || cur != op {
		return
	}
	op.started = time.Now()
	op.timer = time.AfterFunc(e.cfg.Timeout, func() {
		select {
		case e.timeouts <- op:
		case <-e.stopping:
		}
	})
}

// complete handles a finished fetch. Results for operations that already
// timed out are dropped.
func (e *Engine) complete(o outcome) {
	op := o.op
	if !e.ledger.finish(op) {
		return
	}
	op.stopTimer()
	op.cancel()
	req := op.req

	switch {
	case o.location != "":
		req.redirects++
		if e.cfg.MaxRedirects > 0 && req.redirects > e.cfg.MaxRedirects {
			err := errs.New(errs.ErrorTypeNetwork, "too many redirects").WithURL(req.target())
			e.terminate(op, "failed", "", err)
			return
		}
		e.log.DebugWithFields("Following redirect", map[string]interface{}{
			"url":      req.url,
			"location": o.location,
			"hop":      req.redirects,
		})
		e.metrics.IncrementRedirects()
		req.redirectedURL = o.location
		e.ledger.push(req)

	case o.err != nil:
		e.terminate(op, "failed", "", o.err)

	default:
		e.provider.RecordCompletion(req.url, req.payloads[0], o.path)
		e.terminate(op, "succeeded", o.path, nil)
	}
}

// expire fails an operation whose timer fired first
func (e *Engine) expire(op *operation) {
	if !e.ledger.finish(op) {
		return
	}
	op.cancel()
	err := errs.New(errs.ErrorTypeTimeout, "download timed out").WithURL(op.req.target())
	e.terminate(op, "timed_out", "", err)
}

// terminate finishes a request for good and notifies its payloads
func (e *Engine) terminate(op *operation, result, path string, err error) {
	req := op.req
	duration := time.Since(op.started)

	kind := ""
	if err != nil {
		kind = string(errs.TypeOf(err))
		e.failed++
	} else {
		e.completed++
	}
	e.batchCount++

	log := e.log.WithField("op", op.id)
	if err != nil {
		log = log.WithField("transient", errs.IsTransient(err))
	}
	logger.LogFetch(log, req.url, result, len(req.payloads), duration, err)
	e.metrics.ObserveDownload(result, kind, duration.Seconds())

	e.notify(req, path)
}

func (e *Engine) notify(req *request, path string) {
	if e.onReady == nil {
		return
	}
	for _, md := range req.payloads {
		e.onReady(req.url, path, md)
	}
}

// shutdown runs on the worker as it exits
func (e *Engine) shutdown() {
	close(e.stopping)

	inflight := make([]*operation, 0, len(e.ledger.inflight))
	for _, op := range e.ledger.inflight {
		op.stopTimer()
		op.cancel()
		inflight = append(inflight, op)
	}
	e.ops.Wait()

	for _, op := range inflight {
		e.ledger.finish(op)
		e.notify(op.req, "")
	}
	for req := e.ledger.pop(); req != nil; req = e.ledger.pop() {
		e.notify(req, "")
	}

	e.mu.Lock()
	e.stopped = true
	items := e.inbox
	e.inbox = nil
	e.mu.Unlock()
	for _, item := range items {
		if e.onReady != nil {
			e.onReady(item.url, "", item.md)
		}
	}

	if e.batchCount > 0 {
		e.flush("shutdown")
	}
	e.client.CloseIdleConnections()
	e.publishStats()
}

func (e *Engine) publishStats() {
	s := Stats{
		Pending:   len(e.ledger.pending),
		InFlight:  len(e.ledger.inflight),
		Merged:    e.merged,
		Completed: e.completed,
		Failed:    e.failed,
		Flushes:   e.flushes,
		Unflushed: e.batchCount,
	}
	e.metrics.SetQueueDepth(s.Pending, s.InFlight)

	e.statsMu.Lock()
	e.stats = s
	e.statsMu.Unlock()
}
