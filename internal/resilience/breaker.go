// Package resilience guards outbound provider calls with per-provider
// circuit breakers and rate limiters. It composes with the retry package:
// retry.Do handles transient failures of a single call, while the breaker
// stops hammering a provider that is failing across calls.
package resilience

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig defines circuit breaker behavior per provider.
//
// MaxRequests is the maximum number of requests allowed in half-open state.
// Interval is the cyclic period for clearing internal counts while closed.
// Timeout is how long to wait in open state before transitioning to half-open.
// FailureRatio is the failure percentage threshold to trip the breaker.
// MinRequests is the minimum requests needed before the ratio is evaluated.
type BreakerConfig struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  5,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

// BreakerState mirrors gobreaker's states under our own names so callers
// never import gobreaker directly.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// BreakerManager maintains one circuit breaker per external provider
// (payments, transcription, voice, storage, scheduling). Breakers are
// created lazily with double-checked locking.
type BreakerManager struct {
	config BreakerConfig

	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker

	onStateChange func(provider string, from, to BreakerState)
}

func NewBreakerManager(config BreakerConfig) *BreakerManager {
	return &BreakerManager{
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// OnStateChange sets a callback for breaker state transitions. Must be set
// before the first Execute for a provider to take effect for it.
func (m *BreakerManager) OnStateChange(fn func(provider string, from, to BreakerState)) {
	m.mu.Lock()
	m.onStateChange = fn
	m.mu.Unlock()
}

func (m *BreakerManager) breaker(provider string) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	cb, exists := m.breakers[provider]
	m.mu.RUnlock()
	if exists {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, exists = m.breakers[provider]; exists {
		return cb
	}

	callback := m.onStateChange
	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: m.config.MaxRequests,
		Interval:    m.config.Interval,
		Timeout:     m.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < m.config.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= m.config.FailureRatio
		},
	}
	if callback != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			callback(name, toBreakerState(from), toBreakerState(to))
		}
	}

	cb = gobreaker.NewCircuitBreaker(settings)
	m.breakers[provider] = cb
	return cb
}

// Execute runs fn through the provider's breaker. If the breaker is open it
// returns gobreaker.ErrOpenState immediately without calling fn; failures
// from fn count toward the failure threshold.
func (m *BreakerManager) Execute(provider string, fn func() (any, error)) (any, error) {
	return m.breaker(provider).Execute(fn)
}

// State returns the current breaker state for a provider.
func (m *BreakerManager) State(provider string) BreakerState {
	return toBreakerState(m.breaker(provider).State())
}

func toBreakerState(s gobreaker.State) BreakerState {
	switch s {
	case gobreaker.StateOpen:
		return BreakerOpen
	case gobreaker.StateHalfOpen:
		return BreakerHalfOpen
	default:
		return BreakerClosed
	}
}
