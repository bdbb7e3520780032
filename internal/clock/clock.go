// Package clock abstracts time for testability. Production code uses
// RealClock; tests use MockClock to control backoff sleeps deterministically.
package clock

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Sleep blocks for d on the given clock, returning early with ctx.Err() if
// the context is cancelled first.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	select {
	case <-c.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type MockClock struct {
	NowTime time.Time
}

func (m *MockClock) Now() time.Time {
	return m.NowTime
}

func (m *MockClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- m.NowTime.Add(d)
	return ch
}

func (m *MockClock) Advance(d time.Duration) {
	m.NowTime = m.NowTime.Add(d)
}
