package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/checkpointhq/checkpoint/internal/bus"
	"github.com/checkpointhq/checkpoint/internal/domain"
	"github.com/checkpointhq/checkpoint/internal/resilience"
	"github.com/checkpointhq/checkpoint/internal/schedule"
)

type fakeTriggerService struct {
	mu       sync.Mutex
	triggers map[string]schedule.Trigger
}

func newFakeTriggerService() *fakeTriggerService {
	return &fakeTriggerService{triggers: make(map[string]schedule.Trigger)}
}

func (f *fakeTriggerService) Create(ctx context.Context, t schedule.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers[t.Name] = t
	return nil
}

func (f *fakeTriggerService) Update(ctx context.Context, t schedule.Trigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.triggers[t.Name]; !ok {
		return fmt.Errorf("%w: %q", schedule.ErrTriggerNotFound, t.Name)
	}
	f.triggers[t.Name] = t
	return nil
}

func (f *fakeTriggerService) Get(ctx context.Context, name string) (schedule.Trigger, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.triggers[name]
	if !ok {
		return schedule.Trigger{}, fmt.Errorf("%w: %q", schedule.ErrTriggerNotFound, name)
	}
	return t, nil
}

func (f *fakeTriggerService) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.triggers, name)
	return nil
}

func (f *fakeTriggerService) enabled(name string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.triggers[name]
	return t.Enabled, ok
}

type recordingNotifier struct {
	mu    sync.Mutex
	sends []string // "userID: title"
	err   error
}

func (n *recordingNotifier) Send(ctx context.Context, userID, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sends = append(n.sends, userID+": "+title)
	return nil
}

type fixture struct {
	bus      *bus.Bus
	triggers *fakeTriggerService
	notifier *recordingNotifier
	adapter  *schedule.Adapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	triggers := newFakeTriggerService()
	adapter := schedule.NewAdapter(triggers, logger)
	notifier := &recordingNotifier{}
	breakers := resilience.NewBreakerManager(resilience.DefaultBreakerConfig())

	b := bus.New(logger)
	if err := RegisterHandlers(b, adapter, notifier, breakers, logger); err != nil {
		t.Fatalf("RegisterHandlers: %v", err)
	}
	return &fixture{bus: b, triggers: triggers, notifier: notifier, adapter: adapter}
}

// seedSchedule provisions a schedule the way onboarding would.
func (f *fixture) seedSchedule(t *testing.T, userID string) {
	t.Helper()
	res := f.adapter.Upsert(context.Background(), schedule.Config{
		UserID:   userID,
		CallTime: "21:00",
		Timezone: "UTC",
	})
	if !res.Success {
		t.Fatalf("seed schedule: %s", res.Error)
	}
}

func TestPastDue_PausesScheduleAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.seedSchedule(t, "u1")

	f.bus.Emit(context.Background(), domain.SubscriptionPastDue{
		UserID:                 "u1",
		Provider:               "paddle",
		ProviderSubscriptionID: "psub_1",
	})

	enabled, ok := f.triggers.enabled("daily-call-u1")
	if !ok {
		t.Fatal("schedule disappeared")
	}
	if enabled {
		t.Error("schedule still enabled after past_due")
	}

	if len(f.notifier.sends) != 1 || f.notifier.sends[0] != "u1: Payment issue" {
		t.Errorf("sends = %v", f.notifier.sends)
	}
}

func TestCancelled_PausesScheduleAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.seedSchedule(t, "u1")

	f.bus.Emit(context.Background(), domain.SubscriptionCancelled{
		UserID:      "u1",
		Provider:    "paddle",
		FinalStatus: domain.StatusCancelled,
	})

	if enabled, _ := f.triggers.enabled("daily-call-u1"); enabled {
		t.Error("schedule still enabled after cancellation")
	}
	if len(f.notifier.sends) != 1 || f.notifier.sends[0] != "u1: Subscription ended" {
		t.Errorf("sends = %v", f.notifier.sends)
	}
}

func TestReactivated_ResumesScheduleAndNotifies(t *testing.T) {
	f := newFixture(t)
	f.seedSchedule(t, "u1")

	f.bus.Emit(context.Background(), domain.SubscriptionPastDue{UserID: "u1"})
	if enabled, _ := f.triggers.enabled("daily-call-u1"); enabled {
		t.Fatal("expected paused schedule")
	}

	f.bus.Emit(context.Background(), domain.SubscriptionReactivated{UserID: "u1"})

	if enabled, _ := f.triggers.enabled("daily-call-u1"); !enabled {
		t.Error("schedule not re-enabled after reactivation")
	}
}

func TestCreated_NotifiesEvenWithoutSchedule(t *testing.T) {
	f := newFixture(t)

	// No schedule yet: onboarding has not run. The welcome must still go out.
	f.bus.Emit(context.Background(), domain.SubscriptionCreated{
		UserID: "u1",
		PlanID: "plan_monthly",
	})

	if len(f.notifier.sends) != 1 || f.notifier.sends[0] != "u1: Welcome to Checkpoint" {
		t.Errorf("sends = %v", f.notifier.sends)
	}
}

func TestPastDue_NotifierFailureStillPausesSchedule(t *testing.T) {
	f := newFixture(t)
	f.seedSchedule(t, "u1")
	// Non-retryable so the handler settles without backoff sleeps.
	f.notifier.err = errors.New("401 unauthorized")

	f.bus.Emit(context.Background(), domain.SubscriptionPastDue{UserID: "u1"})

	if enabled, _ := f.triggers.enabled("daily-call-u1"); enabled {
		t.Error("schedule still enabled; pause must not depend on notification delivery")
	}
}
