// Package dispatcher routes run events to registered hooks. It decouples
// the orchestrator from its consumers: logging, metrics and tracing all
// attach here instead of being wired into the execution loop.
package dispatcher

import (
	"context"
	"sync"

	"github.com/promptstrike/promptstrike/pkg/events"
)

// Hook consumes run events. Implementations must be safe for concurrent
// use when the dispatcher runs in async mode.
type Hook interface {
	// OnEvent is called for each matching event.
	OnEvent(ctx context.Context, event events.Event) error

	// EventTypes returns the event types this hook handles. Nil or empty
	// means all events.
	EventTypes() []events.Type
}

// Dispatcher fans events out to hooks. Safe for concurrent use.
type Dispatcher struct {
	mu    sync.RWMutex
	hooks []Hook
	async bool
	wg    sync.WaitGroup
}

// Config configures dispatcher behavior.
type Config struct {
	// Async calls hooks in goroutines so a slow hook cannot stall the
	// execution loop.
	Async bool
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{async: cfg.Async}
}

// Register adds a hook.
func (d *Dispatcher) Register(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Emit delivers an event to every hook whose filter matches. Hook errors
// are swallowed so one failing consumer cannot break the others.
func (d *Dispatcher) Emit(ctx context.Context, event events.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, h := range d.hooks {
		if !supports(h, event.EventType()) {
			continue
		}
		if d.async {
			d.wg.Add(1)
			go func(hook Hook) {
				defer d.wg.Done()
				_ = hook.OnEvent(ctx, event)
			}(h)
		} else {
			_ = h.OnEvent(ctx, event)
		}
	}
}

// Close waits for in-flight async hook calls to finish.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

func supports(h Hook, t events.Type) bool {
	types := h.EventTypes()
	if len(types) == 0 {
		return true
	}
	for _, et := range types {
		if et == t {
			return true
		}
	}
	return false
}
