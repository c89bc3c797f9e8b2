// Package dispatcher fans ledger events out to subscribers such as chat
// notifications.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/event"
)

// Dispatcher routes events to the handlers subscribed to their type
type Dispatcher interface {
	port.EventPublisher

	// Subscribe registers a named handler for an event type
	Subscribe(eventType event.Type, name string, handler Handler)

	// Handlers lists the handler names subscribed to an event type
	Handlers(eventType event.Type) []string

	// Close rejects further events and waits for published ones to finish
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventDispatcher struct {
	// mu guards subs and closed. Publish adds to wg under mu so that Close
	// never waits while new handlers are being added.
	mu     sync.RWMutex
	subs   map[event.Type][]subscription
	closed bool
	logger Logger

	wg sync.WaitGroup
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		subs: make(map[event.Type][]subscription),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.subs[eventType] = append(d.subs[eventType], subscription{name: name, handler: handler})
	d.logInfo("Handler subscribed", "event_type", eventType.String(), "handler_name", name)
}

func (d *eventDispatcher) Handlers(eventType event.Type) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.subs[eventType]))
	for _, s := range d.subs[eventType] {
		names = append(names, s.name)
	}
	return names
}

// Publish hands the event to every subscribed handler in the background.
// Handlers outlive the caller's cancellation so that a finished request
// still gets its notifications out.
func (d *eventDispatcher) Publish(ctx context.Context, evt *event.Event) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.logError("Event dropped, dispatcher is closed", "event_type", evt.Type.String(), "event_id", evt.ID)
		return
	}
	subs := append([]subscription(nil), d.subs[evt.Type]...)
	d.wg.Add(len(subs))
	d.mu.RUnlock()

	detached := context.WithoutCancel(ctx)
	for _, s := range subs {
		go func(s subscription) {
			defer d.wg.Done()
			_ = d.run(detached, evt, s)
		}(s)
	}
}

func (d *eventDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	d.logInfo("Dispatcher closed")
	return nil
}

// run calls one handler, turning a panic into an error
func (d *eventDispatcher) run(ctx context.Context, evt *event.Event, s subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			d.logError("Event handler failed",
				"event_type", evt.Type.String(),
				"event_id", evt.ID,
				"handler_name", s.name,
				"error", err,
			)
		}
	}()

	return s.handler(ctx, evt)
}

func (d *eventDispatcher) logInfo(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Info(msg, kv...)
	}
}

func (d *eventDispatcher) logError(msg string, kv ...interface{}) {
	if d.logger != nil {
		d.logger.Error(msg, kv...)
	}
}
