package downloader

import (
	"socialcache/pkg/logger"
)

// maybeFlush persists completions once the batch is over the limit or the
// engine has nothing left to do.
func (e *Engine) maybeFlush() {
	if e.batchCount == 0 {
		return
	}
	switch {
	case e.batchCount > e.cfg.MaxBatchSize:
		e.flush("batch_full")
	case e.ledger.idle():
		e.flush("drained")
	}
}

// flush asks the provider to commit. A failed flush is logged and the
// engine carries on; the provider keeps whatever it could not commit.
func (e *Engine) flush(reason string) {
	records := e.batchCount
	e.batchCount = 0

	err := e.provider.Flush()
	e.flushes++

	logger.LogFlush(e.log, records, reason, err)
	e.metrics.ObserveFlush(records, err)
}
