package downloader

// request is one deduplicated URL and every payload that asked for it
type request struct {
	url           string
	redirectedURL string
	payloads      []Metadata
	redirects     int
}

// target is the URL the next network operation should hit
func (r *request) target() string {
	if r.redirectedURL != "" {
		return r.redirectedURL
	}
	return r.url
}

// ledger tracks pending and in-flight requests. It is owned by the engine
// worker and never touched from any other goroutine.
type ledger struct {
	pending  []*request
	queued   map[string]*request
	inflight map[string]*operation
}

func newLedger() *ledger {
	return &ledger{
		queued:   make(map[string]*request),
		inflight: make(map[string]*operation),
	}
}

// enqueue merges md into an existing request for url, or pushes a new one.
// A merged request keeps its position in the stack.
func (l *ledger) enqueue(url string, md Metadata) (merged bool) {
	if op, ok := l.inflight[url]; ok {
		op.req.payloads = append(op.req.payloads, md)
		return true
	}
	if r, ok := l.queued[url]; ok {
		r.payloads = append(r.payloads, md)
		return true
	}
	l.push(&request{url: url, payloads: []Metadata{md}})
	return false
}

// push places r on top of the stack
func (l *ledger) push(r *request) {
	l.pending = append(l.pending, r)
	l.queued[r.url] = r
}

// pop removes the most recently pushed request
func (l *ledger) pop() *request {
	n := len(l.pending)
	if n == 0 {
		return nil
	}
	r := l.pending[n-1]
	l.pending[n-1] = nil
	l.pending = l.pending[:n-1]
	delete(l.queued, r.url)
	return r
}

func (l *ledger) start(op *operation) {
	l.inflight[op.req.url] = op
}

// finish removes op from flight. It reports false when op is no longer the
// current operation for its URL, i.e. a late result that must be ignored.
func (l *ledger) finish(op *operation) bool {
	if cur, ok := l.inflight[op.req.url]; !ok || cur != op {
		return false
	}
	delete(l.inflight, op.req.url)
	return true
}

func (l *ledger) idle() bool {
	return len(l.pending) == 0 && len(l.inflight) == 0
}
