// Package memory provides an in-process event bus. Events are delivered
// synchronously to subscribers and kept in a bounded history, which makes it
// suitable for local runs and tests where Kafka is not available.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/ahrav/defect-armada/internal/domain/events"
)

var (
	_ events.EventBus             = (*Broker)(nil)
	_ events.DomainEventPublisher = (*Broker)(nil)
)

// defaultHistorySize bounds the number of envelopes a Broker remembers.
const defaultHistorySize = 1024

// ErrClosed is returned when publishing to or subscribing on a closed broker.
var ErrClosed = errors.New("memory event bus is closed")

type subscription struct {
	id      uint64
	types   map[events.EventType]struct{}
	handler events.HandlerFunc
}

// Broker is an in-memory events.EventBus.
type Broker struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    []subscription
	history []events.EventEnvelope
	maxHist int
	closed  bool
}

// NewBroker creates an empty broker that remembers up to historySize
// published envelopes. A non-positive size selects the default.
func NewBroker(historySize int) *Broker {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &Broker{maxHist: historySize}
}

// Publish records event and delivers it to every subscriber of its type,
// stopping at the first handler error.
func (b *Broker) Publish(ctx context.Context, event events.EventEnvelope, opts ...events.PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := events.ApplyOptions(opts)
	if params.Key != "" {
		event.Key = params.Key
	}
	if len(params.Headers) > 0 {
		event.Headers = params.Headers
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.history = append(b.history, event)
	if over := len(b.history) - b.maxHist; over > 0 {
		b.history = slices.Delete(b.history, 0, over)
	}
	// Copy handlers to avoid holding the lock while executing them.
	var handlers []events.HandlerFunc
	for _, s := range b.subs {
		if _, ok := s.types[event.Type]; ok {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range handlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// PublishDomainEvent wraps event in an envelope and publishes it.
func (b *Broker) PublishDomainEvent(ctx context.Context, event events.DomainEvent, opts ...events.PublishOption) error {
	return b.Publish(ctx, events.EventEnvelope{
		Type:      event.EventType(),
		Timestamp: event.OccurredAt(),
		Payload:   event,
	}, opts...)
}

// Subscribe registers handler for eventTypes until ctx is canceled.
func (b *Broker) Subscribe(ctx context.Context, eventTypes []events.EventType, handler events.HandlerFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	types := make(map[events.EventType]struct{}, len(eventTypes))
	for _, et := range eventTypes {
		types[et] = struct{}{}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, types: types, handler: handler})
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscription) bool { return s.id == id })
	}()

	return nil
}

// History returns a copy of the remembered envelopes, oldest first.
func (b *Broker) History() []events.EventEnvelope {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.history)
}

// Close drops all subscribers. Later calls to Publish and Subscribe fail.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = nil
	return nil
}
