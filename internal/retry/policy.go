// Package retry wraps outbound provider calls with bounded retries,
// exponential backoff with jitter, per-attempt timeouts, and classification
// of terminal failures into the SafeError taxonomy.
package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/checkpointhq/checkpoint/internal/clock"
	"github.com/checkpointhq/checkpoint/internal/observability"
)

// Policy configures one retry wrapper. It is a configuration value, never
// persisted. MaxRetries counts retries after the first attempt, so zero means
// exactly one attempt.
type Policy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Jitter scales each delay by a uniform random factor in [0.75, 1.25]
	// to avoid synchronized retry storms across concurrent callers.
	Jitter bool
	// AttemptTimeout is a hard per-attempt limit. When an attempt does not
	// settle in time the wrapper stops waiting on it and treats it as a
	// timeout failure; the operation itself is not forcibly cancelled if it
	// ignores its context.
	AttemptTimeout time.Duration

	// IsRetryable judges whether a failed attempt may be retried. Nil uses
	// DefaultRetryable. Retryability is a predicate over the error, not the
	// operation, so one wrapper serves heterogeneous provider calls.
	IsRetryable func(error) bool

	// OnRetry is invoked before each backoff sleep for observability. Nil
	// emits a default log line.
	OnRetry func(attempt int, err error, nextDelay time.Duration)

	// Clock is injectable for tests. Nil uses the real clock.
	Clock clock.Clock

	// Metrics, when set, counts retry attempts and terminal failures per
	// operation name.
	Metrics *observability.Metrics
}

// DefaultPolicy returns the policy used for most provider calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		AttemptTimeout:  10 * time.Second,
	}
}

const (
	jitterMin = 0.75
	jitterMax = 1.25
)

// Delay computes the backoff before retry number attempt (1-based):
// min(initial * multiplier^(attempt-1), max), then the jitter band.
func (p Policy) Delay(attempt int) time.Duration {
	delay := float64(p.InitialInterval) * math.Pow(p.Multiplier, float64(attempt-1))

	if delay > float64(p.MaxInterval) {
		delay = float64(p.MaxInterval)
	}

	if p.Jitter {
		delay *= jitterMin + rand.Float64()*(jitterMax-jitterMin)
	}

	return time.Duration(delay)
}

func (p Policy) clock() clock.Clock {
	if p.Clock != nil {
		return p.Clock
	}
	return clock.RealClock{}
}

func (p Policy) retryable(err error) bool {
	if p.IsRetryable != nil {
		return p.IsRetryable(err)
	}
	return DefaultRetryable(err)
}
