package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/checkpointhq/checkpoint/internal/domain"
)

func newTestCronService() *CronTriggerService {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	sink := TriggerSinkFunc(func(ctx context.Context, name string, payload []byte) {})
	return NewCronTriggerService(sink, logger)
}

func sampleTrigger(name string) Trigger {
	return Trigger{
		Name:       name,
		Expression: "0 21 * * *",
		Timezone:   "America/New_York",
		Payload:    json.RawMessage(`{"user_id":"u1"}`),
		Enabled:    true,
	}
}

func TestCronService_CreateAndGet(t *testing.T) {
	s := newTestCronService()
	ctx := context.Background()

	if err := s.Create(ctx, sampleTrigger("daily-call-u1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "daily-call-u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Expression != "0 21 * * *" || got.Timezone != "America/New_York" || !got.Enabled {
		t.Errorf("Get returned %+v", got)
	}
}

func TestCronService_CreateDuplicateFails(t *testing.T) {
	s := newTestCronService()
	ctx := context.Background()

	if err := s.Create(ctx, sampleTrigger("daily-call-u1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := s.Create(ctx, sampleTrigger("daily-call-u1"))
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Errorf("error = %v, want ErrAlreadyExists", err)
	}
}

func TestCronService_UpdateMissingFails(t *testing.T) {
	s := newTestCronService()

	err := s.Update(context.Background(), sampleTrigger("daily-call-ghost"))
	if !errors.Is(err, ErrTriggerNotFound) {
		t.Errorf("error = %v, want ErrTriggerNotFound", err)
	}
}

func TestCronService_UpdateReplacesTrigger(t *testing.T) {
	s := newTestCronService()
	ctx := context.Background()

	if err := s.Create(ctx, sampleTrigger("daily-call-u1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated := sampleTrigger("daily-call-u1")
	updated.Expression = "30 7 * * *"
	updated.Timezone = "Europe/Lisbon"
	if err := s.Update(ctx, updated); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(ctx, "daily-call-u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Expression != "30 7 * * *" || got.Timezone != "Europe/Lisbon" {
		t.Errorf("Get returned %+v", got)
	}
}

func TestCronService_DisabledTriggerIsStoredNotScheduled(t *testing.T) {
	s := newTestCronService()
	ctx := context.Background()

	trig := sampleTrigger("daily-call-u1")
	trig.Enabled = false
	if err := s.Create(ctx, trig); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.Get(ctx, "daily-call-u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Enabled {
		t.Error("trigger reported enabled")
	}
	if len(s.c.Entries()) != 0 {
		t.Errorf("cron entries = %d, want 0 for disabled trigger", len(s.c.Entries()))
	}

	// Re-enabling through Update schedules it.
	got.Enabled = true
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(s.c.Entries()) != 1 {
		t.Errorf("cron entries = %d, want 1 after enable", len(s.c.Entries()))
	}
}

func TestCronService_DeleteRemovesEntry(t *testing.T) {
	s := newTestCronService()
	ctx := context.Background()

	if err := s.Create(ctx, sampleTrigger("daily-call-u1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, "daily-call-u1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := s.Get(ctx, "daily-call-u1"); !errors.Is(err, ErrTriggerNotFound) {
		t.Errorf("Get after delete = %v, want ErrTriggerNotFound", err)
	}
	if err := s.Delete(ctx, "daily-call-u1"); !errors.Is(err, ErrTriggerNotFound) {
		t.Errorf("repeat Delete = %v, want ErrTriggerNotFound", err)
	}
	if len(s.c.Entries()) != 0 {
		t.Errorf("cron entries = %d, want 0", len(s.c.Entries()))
	}
}

func TestCronService_BadExpressionFails(t *testing.T) {
	s := newTestCronService()

	trig := sampleTrigger("daily-call-u1")
	trig.Expression = "not a cron spec"
	err := s.Create(context.Background(), trig)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}

	// The failed create must not leave a phantom trigger behind.
	if _, err := s.Get(context.Background(), "daily-call-u1"); !errors.Is(err, ErrTriggerNotFound) {
		t.Errorf("Get = %v, want ErrTriggerNotFound", err)
	}
}
