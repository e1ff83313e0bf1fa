// Package downloader implements the image download engine.
//
// An Engine owns one worker goroutine. Enqueue hands requests to it through a
// mutex-guarded inbox; the worker keeps the ledger of pending and in-flight
// requests, so none of that state is shared. Requests for a URL that is
// already pending or in flight are merged, and every caller is notified with
// the same result.
//
// Pending requests are served most recent first, at most MaxConcurrent at a
// time. Each admitted request runs in its own goroutine racing a timer; the
// first of the two to report back wins and the other is ignored. Responses
// carrying a Location header are re-queued on top of the stack with the new
// target. Successful bodies go through the content writer, which may transcode
// them, before the provider records the completion.
//
// Completions are flushed to the provider in batches: whenever more than
// MaxBatchSize have accumulated, and whenever the engine becomes idle.
//
//	engine := downloader.New(downloader.DefaultConfig(), provider, onReady, log)
//	if err := engine.Start(ctx); err != nil {
//	    return err
//	}
//	defer engine.Stop()
//	engine.Enqueue(url, downloader.Metadata{"identifier": id})
package downloader
