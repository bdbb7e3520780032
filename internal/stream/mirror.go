package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/checkpointhq/checkpoint/internal/bus"
	"github.com/checkpointhq/checkpoint/internal/domain"
)

// Publisher is the slice of Producer the mirror needs.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// RegisterMirror subscribes a forwarding handler for every known event type.
// Each mirrored envelope carries the Emit call's correlation id and
// timestamp, so downstream consumers can join it with this process's logs.
func RegisterMirror(b *bus.Bus, p Publisher) error {
	for _, t := range domain.AllEventTypes() {
		if err := b.On(t, mirrorHandler(p)); err != nil {
			return fmt.Errorf("register stream mirror for %s: %w", t, err)
		}
	}
	return nil
}

func mirrorHandler(p Publisher) bus.Handler {
	return func(ctx context.Context, ev domain.Event, ec *bus.EventContext) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		return p.Publish(ctx, Envelope{
			CorrelationID: ec.CorrelationID,
			EventType:     string(ev.Type()),
			OccurredAt:    ec.Timestamp,
			Payload:       payload,
		})
	}
}
