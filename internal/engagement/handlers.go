// Package engagement turns call outcomes into progression: XP awards and
// streak accounting, with follow-up events for anything downstream that
// cares.
package engagement

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/checkpointhq/checkpoint/internal/bus"
	"github.com/checkpointhq/checkpoint/internal/domain"
	"github.com/checkpointhq/checkpoint/internal/observability"
	"github.com/checkpointhq/checkpoint/internal/retry"
)

// XP amounts per call outcome.
const (
	xpCallCompleted = 50
	reasonCall      = "call_completed"

	// streakMilestone is the cadence, in days, of streak celebration
	// notifications.
	streakMilestone = 7
)

// Notifier delivers a push notification. Declared here rather than imported
// so engagement depends only on what it calls.
type Notifier interface {
	Send(ctx context.Context, userID, title, body string) error
}

// Ledger persists XP balances and streak counters.
type Ledger interface {
	// Award adds amount to the user's XP balance and returns the new total.
	Award(ctx context.Context, userID string, amount int, reason string) (total int, err error)
	// ExtendStreak grows the user's streak by one day and returns the new
	// length.
	ExtendStreak(ctx context.Context, userID string) (length int, err error)
	// ResetStreak zeroes the user's streak.
	ResetStreak(ctx context.Context, userID string) error
}

type handlers struct {
	ledger   Ledger
	notifier Notifier
	events   *bus.Bus
	policy   retry.Policy
	logger   *slog.Logger
}

// Option configures optional handler collaborators.
type Option func(*handlers)

// WithMetrics counts retry attempts against the shared registry.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *handlers) { h.policy.Metrics = m }
}

// RegisterHandlers attaches engagement's reactions to the bus. The notifier
// may be nil, in which case milestone notifications are skipped.
func RegisterHandlers(b *bus.Bus, ledger Ledger, notifier Notifier, logger *slog.Logger, opts ...Option) error {
	h := &handlers{
		ledger:   ledger,
		notifier: notifier,
		events:   b,
		policy:   retry.DefaultPolicy(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}

	if err := b.On(domain.EventCallCompleted, h.onCallCompleted); err != nil {
		return fmt.Errorf("register engagement handler: %w", err)
	}
	if err := b.On(domain.EventCallMissed, h.onCallMissed); err != nil {
		return fmt.Errorf("register engagement handler: %w", err)
	}
	return nil
}

// onCallCompleted extends the streak first, then awards XP. The two writes
// are independent: a streak failure does not block the award, and each emits
// its own follow-up event only after its write succeeded.
func (h *handlers) onCallCompleted(ctx context.Context, ev domain.Event, ec *bus.EventContext) error {
	e, ok := ev.(domain.CallCompleted)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}

	var firstErr error

	length, err := retry.Do(ctx, "extend streak", h.policy, func(ctx context.Context) (int, error) {
		return h.ledger.ExtendStreak(ctx, e.UserID)
	})
	if err != nil {
		firstErr = fmt.Errorf("extend streak for %s: %w", e.UserID, err)
		ec.Logger.Error("streak extension failed", "user_id", e.UserID, "error", err)
	} else {
		h.events.Emit(ctx, domain.StreakExtended{UserID: e.UserID, Length: length})
		h.celebrate(ctx, e.UserID, length)
	}

	total, err := retry.Do(ctx, "award xp", h.policy, func(ctx context.Context) (int, error) {
		return h.ledger.Award(ctx, e.UserID, xpCallCompleted, reasonCall)
	})
	if err != nil {
		if firstErr == nil {
			firstErr = fmt.Errorf("award xp for %s: %w", e.UserID, err)
		}
		ec.Logger.Error("xp award failed", "user_id", e.UserID, "error", err)
	} else {
		ec.Logger.Info("xp awarded",
			"user_id", e.UserID,
			"amount", xpCallCompleted,
			"total", total,
		)
		h.events.Emit(ctx, domain.XPAwarded{
			UserID: e.UserID,
			Amount: xpCallCompleted,
			Reason: reasonCall,
		})
	}

	return firstErr
}

func (h *handlers) onCallMissed(ctx context.Context, ev domain.Event, ec *bus.EventContext) error {
	e, ok := ev.(domain.CallMissed)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}

	_, err := retry.Do(ctx, "reset streak", h.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.ledger.ResetStreak(ctx, e.UserID)
	})
	if err != nil {
		return fmt.Errorf("reset streak for %s: %w", e.UserID, err)
	}

	ec.Logger.Info("streak reset after missed call",
		"user_id", e.UserID,
		"scheduled_for", e.ScheduledFor,
	)
	return nil
}

// celebrate sends a push on streak milestones. Best effort only.
func (h *handlers) celebrate(ctx context.Context, userID string, length int) {
	if h.notifier == nil || length == 0 || length%streakMilestone != 0 {
		return
	}
	title := fmt.Sprintf("%d-day streak!", length)
	body := "You've kept your daily call streak alive. Keep it going."
	if err := h.notifier.Send(ctx, userID, title, body); err != nil {
		h.logger.Warn("streak notification failed", "user_id", userID, "error", err)
	}
}
