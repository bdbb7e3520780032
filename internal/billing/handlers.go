// Package billing reacts to subscription lifecycle events: it keeps the
// user's call schedule in step with their payment status and tells the user
// what happened.
package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/checkpointhq/checkpoint/internal/bus"
	"github.com/checkpointhq/checkpoint/internal/domain"
	"github.com/checkpointhq/checkpoint/internal/observability"
	"github.com/checkpointhq/checkpoint/internal/resilience"
	"github.com/checkpointhq/checkpoint/internal/retry"
	"github.com/checkpointhq/checkpoint/internal/schedule"
)

// Notifier delivers a push notification. The concrete transport lives
// outside this module.
type Notifier interface {
	Send(ctx context.Context, userID, title, body string) error
}

// providerPush names the notification provider for the circuit breaker.
const providerPush = "push"

type handlers struct {
	schedules *schedule.Adapter
	notifier  Notifier
	breakers  *resilience.BreakerManager
	policy    retry.Policy
	logger    *slog.Logger
}

// Option configures optional handler collaborators.
type Option func(*handlers)

// WithMetrics counts retry attempts against the shared registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *handlers) { h.policy.Metrics = m }
}

// RegisterHandlers attaches billing's reactions to the bus. Called once at
// startup from the composition point.
func RegisterHandlers(
	b *bus.Bus,
	schedules *schedule.Adapter,
	notifier Notifier,
	breakers *resilience.BreakerManager,
	logger *slog.Logger,
	opts ...Option,
) error {
	h := &handlers{
		schedules: schedules,
		notifier:  notifier,
		breakers:  breakers,
		policy:    retry.DefaultPolicy(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}

	registrations := map[domain.EventType]bus.Handler{
		domain.EventSubscriptionCreated:     h.onCreated,
		domain.EventSubscriptionReactivated: h.onReactivated,
		domain.EventSubscriptionPastDue:     h.onPastDue,
		domain.EventSubscriptionCancelled:   h.onCancelled,
	}
	for t, handler := range registrations {
		if err := b.On(t, handler); err != nil {
			return fmt.Errorf("register billing handler for %s: %w", t, err)
		}
	}
	return nil
}

func (h *handlers) onCreated(ctx context.Context, ev domain.Event, ec *bus.EventContext) error {
	e, ok := ev.(domain.SubscriptionCreated)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}

	// The schedule may not exist yet; onboarding creates it. Resuming an
	// absent schedule is a recoverable operational issue, not a handler
	// failure.
	if res := h.schedules.Resume(ctx, e.UserID); !res.Success {
		ec.Logger.Info("no schedule to resume on subscription creation",
			"user_id", e.UserID,
			"detail", res.Error,
		)
	}

	return h.notify(ctx, e.UserID,
		"Welcome to Checkpoint",
		"Your subscription is active. Your daily accountability calls are on.",
	)
}

func (h *handlers) onReactivated(ctx context.Context, ev domain.Event, ec *bus.EventContext) error {
	e, ok := ev.(domain.SubscriptionReactivated)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}

	if res := h.schedules.Resume(ctx, e.UserID); !res.Success {
		ec.Logger.Warn("failed to resume schedule on reactivation",
			"user_id", e.UserID,
			"detail", res.Error,
		)
	}

	return h.notify(ctx, e.UserID,
		"Payment received",
		"Thanks! Your daily calls are back on.",
	)
}

func (h *handlers) onPastDue(ctx context.Context, ev domain.Event, ec *bus.EventContext) error {
	e, ok := ev.(domain.SubscriptionPastDue)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}

	if res := h.schedules.Pause(ctx, e.UserID); !res.Success {
		ec.Logger.Warn("failed to pause schedule on past due",
			"user_id", e.UserID,
			"detail", res.Error,
		)
	}

	return h.notify(ctx, e.UserID,
		"Payment issue",
		"We couldn't process your payment. Update your payment method to keep your daily calls.",
	)
}

func (h *handlers) onCancelled(ctx context.Context, ev domain.Event, ec *bus.EventContext) error {
	e, ok := ev.(domain.SubscriptionCancelled)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}

	if res := h.schedules.Pause(ctx, e.UserID); !res.Success {
		ec.Logger.Warn("failed to pause schedule on cancellation",
			"user_id", e.UserID,
			"detail", res.Error,
		)
	}

	return h.notify(ctx, e.UserID,
		"Subscription ended",
		"Your subscription has ended. Your daily calls are paused; come back anytime.",
	)
}

// notify wraps the outbound push call with retry and the shared push
// breaker. Terminal failures bubble up so the bus records the handler
// failure; sibling handlers are unaffected either way.
func (h *handlers) notify(ctx context.Context, userID, title, body string) error {
	_, err := retry.Do(ctx, "push notification", h.policy, func(ctx context.Context) (struct{}, error) {
		_, berr := h.breakers.Execute(providerPush, func() (any, error) {
			return nil, h.notifier.Send(ctx, userID, title, body)
		})
		return struct{}{}, berr
	})
	if err != nil {
		safe := retry.Classify(err, "push notification")
		h.logger.Error("notification delivery failed",
			"user_id", userID,
			"error_type", string(safe.Type),
			"error", err,
		)
		return fmt.Errorf("notify %s: %w", userID, err)
	}
	return nil
}
