package session

import (
	"sync"

	"github.com/donggyun112/PipeChat-server/internal/transcript"
)

// Handler receives one transcript event. Handlers run synchronously on the
// session's feed path and must not block.
type Handler func(transcript.Event)

// Dispatcher fans transcript events out to handlers, either for one event
// kind or for all of them. Each session owns its own dispatcher; there is
// no cross-session event bus.
type Dispatcher struct {
	mu     sync.RWMutex
	byKind map[transcript.EventKind][]Handler
	all    []Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		byKind: make(map[transcript.EventKind][]Handler),
	}
}

// Subscribe registers a handler for one event kind.
func (d *Dispatcher) Subscribe(kind transcript.EventKind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byKind[kind] = append(d.byKind[kind], h)
}

// SubscribeAll registers a handler for every event kind.
func (d *Dispatcher) SubscribeAll(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.all = append(d.all, h)
}

// Publish delivers the event to all matching handlers in registration
// order, kind-specific handlers first.
func (d *Dispatcher) Publish(ev transcript.Event) {
	d.mu.RLock()
	kindHandlers := d.byKind[ev.Kind]
	allHandlers := d.all
	d.mu.RUnlock()

	for _, h := range kindHandlers {
		h(ev)
	}
	for _, h := range allHandlers {
		h(ev)
	}
}
