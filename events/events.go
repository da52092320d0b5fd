// Package events implements the broadcast registries that decouple
// failure detection in the request transport from the UI reaction to it.
//
// A network call deep inside a screen can observe a 401 and notify the
// application shell without any callback threading through the layers in
// between: the transport publishes, the shell subscribes.
package events

import (
	"log/slog"
	"sync"
)

type listener struct {
	id uint64
	fn func()
}

// Registry is an ordered set of zero-argument listeners. Publish invokes
// every currently registered listener synchronously, in registration
// order. The registry does not deduplicate publishes; a subscriber that
// must react only once (a redirect, say) owns its own idempotence.
type Registry struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []listener
	logger    *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger falls back to
// slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Subscribe registers fn and returns an unsubscribe function that removes
// exactly this registration. Calling it more than once is a no-op, so an
// unmounted screen can release unconditionally on every teardown path.
func (r *Registry) Subscribe(fn func()) (unsubscribe func()) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, listener{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *Registry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l.id == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Publish invokes every registered listener. A panicking listener is
// recovered and logged; the remaining listeners still run. Membership is
// re-checked before each invocation, so a listener unsubscribed by an
// earlier listener in the same publish does not fire.
func (r *Registry) Publish() {
	r.mu.Lock()
	ids := make([]uint64, len(r.listeners))
	for i, l := range r.listeners {
		ids[i] = l.id
	}
	r.mu.Unlock()

	for _, id := range ids {
		l, ok := r.lookup(id)
		if !ok {
			continue
		}
		r.invoke(l)
	}
}

func (r *Registry) lookup(id uint64) (listener, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.listeners {
		if l.id == id {
			return l, true
		}
	}
	return listener{}, false
}

func (r *Registry) invoke(l listener) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event listener panicked", "panic", rec)
		}
	}()
	l.fn()
}

// Bus bundles the two session-failure channels.
type Bus struct {
	// Unauthorized fires when any request receives a 401.
	Unauthorized *Registry
	// Forbidden fires when any request receives a 403.
	Forbidden *Registry
}

// NewBus creates a Bus with two fresh registries sharing one logger.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		Unauthorized: NewRegistry(logger),
		Forbidden:    NewRegistry(logger),
	}
}
