package providers

import (
	"sync"

	"socialcache/internal/downloader"
	"socialcache/pkg/logger"
)

// ListenerFunc receives ready notifications for the requests it made
type ListenerFunc func(url, localPath string, md downloader.Metadata)

// Dispatcher routes engine notifications to the listener named in each
// request's metadata. Listeners that have been removed receive nothing.
type Dispatcher struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]ListenerFunc
	log       logger.Logger
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher(log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Dispatcher{
		listeners: make(map[uint64]ListenerFunc),
		log:       log,
	}
}

// AddListener registers fn and returns the id to put under KeyListener
func (d *Dispatcher) AddListener(fn ListenerFunc) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.listeners[d.next] = fn
	return d.next
}

// RemoveListener unregisters a listener; pending notifications for it are dropped
func (d *Dispatcher) RemoveListener(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners, id)
}

// Dispatch is a downloader.ReadyFunc
func (d *Dispatcher) Dispatch(url, localPath string, md downloader.Metadata) {
	id, ok := listenerID(md[KeyListener])
	if !ok {
		return
	}

	d.mu.RLock()
	fn := d.listeners[id]
	d.mu.RUnlock()

	if fn == nil {
		d.log.DebugWithFields("Dropping notification for removed listener", map[string]interface{}{
			"url":      url,
			"listener": id,
		})
		return
	}
	fn(url, localPath, md)
}

func listenerID(v interface{}) (uint64, bool) {
	switch id := v.(type) {
	case uint64:
		return id, true
	case int:
		return uint64(id), id > 0
	default:
		return 0, false
	}
}
