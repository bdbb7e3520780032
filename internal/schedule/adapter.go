// Package schedule maps a user's desired local call time onto a named
// recurring trigger held by an external scheduling capability. Trigger names
// are derived from the user id, so every operation is idempotent by
// construction.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/checkpointhq/checkpoint/internal/domain"
	"github.com/checkpointhq/checkpoint/internal/observability"
)

// ErrTriggerNotFound is returned by TriggerService implementations when the
// named trigger does not exist.
var ErrTriggerNotFound = errors.New("trigger not found")

// Trigger is the external scheduler's view of one recurring call: a named
// trigger bound to a timezone-qualified cron expression and an opaque
// payload delivered on each fire.
type Trigger struct {
	Name       string
	Expression string // five-field cron, wall clock in Timezone
	Timezone   string // IANA name
	Payload    json.RawMessage
	Enabled    bool
}

// TriggerService is the scheduling capability. The adapter never evaluates
// cron expressions or next-fire times itself; all timezone-aware evaluation
// belongs to the implementation behind this interface.
type TriggerService interface {
	Create(ctx context.Context, t Trigger) error
	// Update replaces the named trigger, returning ErrTriggerNotFound when
	// it does not exist.
	Update(ctx context.Context, t Trigger) error
	Get(ctx context.Context, name string) (Trigger, error)
	// Delete returns ErrTriggerNotFound when the trigger does not exist.
	Delete(ctx context.Context, name string) error
}

// Config is the input to Upsert.
type Config struct {
	UserID   string
	CallTime string // HH:MM wall clock
	Timezone string // IANA name
	Payload  json.RawMessage
}

// Result is returned by every adapter operation. Scheduling failures are
// recoverable operational issues: callers (onboarding completion,
// subscription transitions) must be able to continue their own flow, so the
// adapter reports structured results and never panics or returns raw errors.
type Result struct {
	Success      bool   `json:"success"`
	ScheduleName string `json:"schedule_name,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Adapter wraps a TriggerService with the per-user schedule conventions.
type Adapter struct {
	triggers TriggerService
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func NewAdapter(triggers TriggerService, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{triggers: triggers, logger: logger}
}

// WithMetrics enables per-operation outcome counters.
func (a *Adapter) WithMetrics(m *observability.Metrics) *Adapter {
	a.metrics = m
	return a
}

// Upsert updates the user's trigger, falling back to create when it does not
// exist yet. This collapses "I don't know if this user already has a
// schedule" into a single idempotent call.
func (a *Adapter) Upsert(ctx context.Context, cfg Config) Result {
	name := domain.ScheduleName(cfg.UserID)

	expr, err := CronExpression(cfg.CallTime)
	if err != nil {
		return a.failure("upsert", name, err)
	}
	if err := validateTimezone(cfg.Timezone); err != nil {
		return a.failure("upsert", name, err)
	}

	t := Trigger{
		Name:       name,
		Expression: expr,
		Timezone:   cfg.Timezone,
		Payload:    cfg.Payload,
		Enabled:    true,
	}

	err = a.triggers.Update(ctx, t)
	if errors.Is(err, ErrTriggerNotFound) {
		err = a.triggers.Create(ctx, t)
	}
	if err != nil {
		return a.failure("upsert", name, err)
	}

	return a.success("upsert", name)
}

// Pause disables the user's trigger, preserving every other field.
func (a *Adapter) Pause(ctx context.Context, userID string) Result {
	return a.setEnabled(ctx, "pause", userID, false)
}

// Resume re-enables the user's trigger, preserving every other field.
func (a *Adapter) Resume(ctx context.Context, userID string) Result {
	return a.setEnabled(ctx, "resume", userID, true)
}

// Delete removes the user's trigger. Already absent is success, not failure.
func (a *Adapter) Delete(ctx context.Context, userID string) Result {
	name := domain.ScheduleName(userID)

	err := a.triggers.Delete(ctx, name)
	if err != nil && !errors.Is(err, ErrTriggerNotFound) {
		return a.failure("delete", name, err)
	}
	return a.success("delete", name)
}

// setEnabled reads the full trigger specification and writes it back with
// only the enabled flag flipped; expression, timezone and payload must
// survive unchanged.
func (a *Adapter) setEnabled(ctx context.Context, op, userID string, enabled bool) Result {
	name := domain.ScheduleName(userID)

	t, err := a.triggers.Get(ctx, name)
	if err != nil {
		return a.failure(op, name, err)
	}

	t.Enabled = enabled
	if err := a.triggers.Update(ctx, t); err != nil {
		return a.failure(op, name, err)
	}
	return a.success(op, name)
}

func (a *Adapter) success(op, name string) Result {
	if a.metrics != nil {
		a.metrics.ScheduleOps.WithLabelValues(op, "success").Inc()
	}
	return Result{Success: true, ScheduleName: name}
}

func (a *Adapter) failure(op, name string, err error) Result {
	a.logger.Warn("schedule operation failed",
		"operation", op,
		"schedule_name", name,
		"error", err,
	)
	if a.metrics != nil {
		a.metrics.ScheduleOps.WithLabelValues(op, "failure").Inc()
	}
	return Result{Success: false, ScheduleName: name, Error: err.Error()}
}

// CronExpression converts an HH:MM wall-clock time into a five-field cron
// expression. The time stays wall-clock: the trigger service pairs it with
// the trigger's timezone, the adapter never resolves it to an instant.
func CronExpression(callTime string) (string, error) {
	if err := domain.ValidateCallTime(callTime); err != nil {
		return "", err
	}
	hh, mm, _ := strings.Cut(callTime, ":")
	return fmt.Sprintf("%s %s * * *", strings.TrimPrefix(mm, "0"), strings.TrimPrefix(hh, "0")), nil
}

func validateTimezone(tz string) error {
	if tz == "" {
		return fmt.Errorf("%w: empty timezone", domain.ErrInvalidInput)
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidInput, tz)
	}
	return nil
}
