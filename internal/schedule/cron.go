package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/checkpointhq/checkpoint/internal/domain"
)

// TriggerSink receives the trigger payload on each fire; in production this
// is the outbound call dialer.
type TriggerSink interface {
	Deliver(ctx context.Context, name string, payload []byte)
}

// TriggerSinkFunc adapts a function to TriggerSink.
type TriggerSinkFunc func(ctx context.Context, name string, payload []byte)

func (f TriggerSinkFunc) Deliver(ctx context.Context, name string, payload []byte) {
	f(ctx, name, payload)
}

// CronTriggerService is the in-process TriggerService implementation, backed
// by robfig/cron. Timezone handling is delegated to the cron parser through
// a CRON_TZ prefix, so the expression stays wall-clock exactly as the
// adapter produced it.
type CronTriggerService struct {
	c      *cron.Cron
	sink   TriggerSink
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cronEntry
}

type cronEntry struct {
	id      cron.EntryID // zero when the trigger is disabled
	trigger Trigger
}

func NewCronTriggerService(sink TriggerSink, logger *slog.Logger) *CronTriggerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CronTriggerService{
		c:       cron.New(),
		sink:    sink,
		logger:  logger,
		entries: make(map[string]cronEntry),
	}
}

// Start begins evaluating registered triggers.
func (s *CronTriggerService) Start() {
	s.c.Start()
}

// Stop halts evaluation and waits for running fires to finish.
func (s *CronTriggerService) Stop() {
	ctx := s.c.Stop()
	<-ctx.Done()
}

func (s *CronTriggerService) Create(ctx context.Context, t Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[t.Name]; exists {
		return fmt.Errorf("%w: trigger %q", domain.ErrAlreadyExists, t.Name)
	}
	return s.registerLocked(t)
}

func (s *CronTriggerService) Update(ctx context.Context, t Trigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.entries[t.Name]
	if !exists {
		return fmt.Errorf("%w: %q", ErrTriggerNotFound, t.Name)
	}
	if existing.id != 0 {
		s.c.Remove(existing.id)
	}
	return s.registerLocked(t)
}

func (s *CronTriggerService) Get(ctx context.Context, name string) (Trigger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[name]
	if !exists {
		return Trigger{}, fmt.Errorf("%w: %q", ErrTriggerNotFound, name)
	}
	return entry.trigger, nil
}

func (s *CronTriggerService) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("%w: %q", ErrTriggerNotFound, name)
	}
	if entry.id != 0 {
		s.c.Remove(entry.id)
	}
	delete(s.entries, name)
	return nil
}

// registerLocked stores the trigger and, when enabled, schedules it. Must be
// called with mu held.
func (s *CronTriggerService) registerLocked(t Trigger) error {
	entry := cronEntry{trigger: t}

	if t.Enabled {
		spec := t.Expression
		if t.Timezone != "" {
			spec = "CRON_TZ=" + t.Timezone + " " + spec
		}
		name, payload := t.Name, append([]byte(nil), t.Payload...)
		id, err := s.c.AddFunc(spec, func() {
			s.logger.Debug("trigger fired", "trigger", name)
			s.sink.Deliver(context.Background(), name, payload)
		})
		if err != nil {
			return fmt.Errorf("%w: bad expression %q: %v", domain.ErrInvalidInput, spec, err)
		}
		entry.id = id
	}

	s.entries[t.Name] = entry
	return nil
}
