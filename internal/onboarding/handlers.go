// Package onboarding reacts to onboarding completion by provisioning the
// user's daily call schedule.
package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/checkpointhq/checkpoint/internal/bus"
	"github.com/checkpointhq/checkpoint/internal/domain"
	"github.com/checkpointhq/checkpoint/internal/schedule"
)

type handlers struct {
	schedules *schedule.Adapter
	logger    *slog.Logger
}

// RegisterHandlers attaches onboarding's reactions to the bus.
func RegisterHandlers(b *bus.Bus, schedules *schedule.Adapter, logger *slog.Logger) error {
	h := &handlers{schedules: schedules, logger: logger}
	if err := b.On(domain.EventOnboardingCompleted, h.onCompleted); err != nil {
		return fmt.Errorf("register onboarding handler: %w", err)
	}
	return nil
}

// callPayload is what the scheduler delivers to the dialer on each fire.
type callPayload struct {
	UserID string `json:"user_id"`
	Phone  string `json:"phone"`
}

func (h *handlers) onCompleted(ctx context.Context, ev domain.Event, ec *bus.EventContext) error {
	e, ok := ev.(domain.OnboardingCompleted)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev)
	}

	payload, err := json.Marshal(callPayload{UserID: e.UserID, Phone: e.Phone})
	if err != nil {
		return fmt.Errorf("marshal call payload: %w", err)
	}

	res := h.schedules.Upsert(ctx, schedule.Config{
		UserID:   e.UserID,
		CallTime: e.CallTime,
		Timezone: e.Timezone,
		Payload:  payload,
	})
	if !res.Success {
		// Surfaced as a handler failure for observability; onboarding
		// itself has already completed and is not rolled back.
		return fmt.Errorf("upsert call schedule for %s: %s", e.UserID, res.Error)
	}

	ec.Logger.Info("call schedule provisioned",
		"user_id", e.UserID,
		"schedule_name", res.ScheduleName,
		"call_time", e.CallTime,
		"timezone", e.Timezone,
	)
	return nil
}
