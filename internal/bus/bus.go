// Package bus implements the in-process domain event bus.
//
// The bus is a best-effort, at-most-once, same-process notification
// mechanism: no retry, no persistence, no ordering guarantee across handlers.
// A handler that needs durability or ordering must persist state before
// returning. Publishers never learn how many handlers exist or whether any
// of them failed; one feature's reaction can never take down another's.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/checkpointhq/checkpoint/internal/domain"
	"github.com/checkpointhq/checkpoint/internal/observability"
)

// Handler reacts to exactly one domain event type. Errors are caught, logged
// and contained by the bus; they are never propagated to the publisher or to
// sibling handlers.
type Handler func(ctx context.Context, ev domain.Event, ec *EventContext) error

// EventContext is ephemeral metadata attached to one Emit call. It is created
// at the start of Emit, shared by that event's handlers, and discarded once
// they have all settled. Never store it.
type EventContext struct {
	CorrelationID string
	Timestamp     time.Time
	Logger        *slog.Logger
}

// Bus is a process-wide map from event type to handler list. It is mutated
// only at startup wiring time in practice; Emit snapshots the handler list
// under a read lock, so registration and dispatch are safe to interleave.
// Create independent instances in tests; ClearHandlers exists for teardown.
type Bus struct {
	mu       sync.RWMutex
	handlers map[domain.EventType][]Handler

	logger        *slog.Logger
	metrics       *observability.Metrics
	registrations atomic.Int64
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		handlers: make(map[domain.EventType][]Handler),
		logger:   logger,
	}
}

// WithMetrics enables Prometheus metrics for publishes and handler failures.
func (b *Bus) WithMetrics(m *observability.Metrics) *Bus {
	b.metrics = m
	return b
}

// On registers a handler for one event type. Multiple handlers may be
// registered for the same type; registration order is preserved in the list
// but dispatch across handlers is unordered.
func (b *Bus) On(t domain.EventType, h Handler) error {
	if !t.Valid() {
		return fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidInput, t)
	}
	if h == nil {
		return fmt.Errorf("%w: nil handler for %q", domain.ErrInvalidInput, t)
	}

	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], h)
	b.mu.Unlock()

	b.registrations.Add(1)
	return nil
}

// Emit dispatches ev to every handler registered for its type, concurrently,
// and returns only after all of them have settled. Handler failures are
// logged with the handler's registration index and counted, but never
// surfaced to the caller: Emit is fire-and-forget from the publisher's
// perspective. Zero registered handlers is a deliberate no-op, not an error;
// the bus has no knowledge of which events "should" have listeners.
func (b *Bus) Emit(ctx context.Context, ev domain.Event) {
	b.mu.RLock()
	handlers := b.handlers[ev.Type()]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	ec := &EventContext{
		CorrelationID: uuid.NewString(),
		Timestamp:     time.Now(),
	}
	ec.Logger = b.logger.With(
		"correlation_id", ec.CorrelationID,
		"event_type", string(ev.Type()),
	)

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(string(ev.Type())).Inc()
	}

	// Handlers that log through the context-scoped logger pick up the same
	// correlation id as the bus's own dispatch logs.
	ctx = observability.ContextWithCorrelationID(ctx, ec.CorrelationID)
	ctx = observability.ContextWithLogger(ctx, ec.Logger)

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, h := range handlers {
		wg.Add(1)
		go func(idx int, h Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[idx] = fmt.Errorf("handler panic: %v", r)
				}
			}()
			errs[idx] = h(ctx, ev, ec)
		}(i, h)
	}
	wg.Wait()

	succeeded, failed := 0, 0
	for i, err := range errs {
		if err != nil {
			failed++
			ec.Logger.Error("event handler failed",
				"handler_index", i,
				"error", err,
			)
			if b.metrics != nil {
				b.metrics.HandlerFailures.WithLabelValues(string(ev.Type())).Inc()
			}
			continue
		}
		succeeded++
	}

	ec.Logger.Debug("event dispatched",
		"handlers", len(handlers),
		"succeeded", succeeded,
		"failed", failed,
	)
}

// ClearHandlers removes every registration. Test support; production code
// wires handlers once at startup and never tears them down.
func (b *Bus) ClearHandlers() {
	b.mu.Lock()
	b.handlers = make(map[domain.EventType][]Handler)
	b.mu.Unlock()
}

// HandlerCount returns the number of handlers registered for a type.
func (b *Bus) HandlerCount(t domain.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}

// RegisteredTypes returns the event types that currently have at least one
// handler.
func (b *Bus) RegisteredTypes() []domain.EventType {
	b.mu.RLock()
	defer b.mu.RUnlock()

	types := make([]domain.EventType, 0, len(b.handlers))
	for t, hs := range b.handlers {
		if len(hs) > 0 {
			types = append(types, t)
		}
	}
	return types
}

// Registrations returns the total number of On calls, for observability.
func (b *Bus) Registrations() int64 {
	return b.registrations.Load()
}
