package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterConfig defines the default outbound rate limit applied to a
// provider until SetRate overrides it.
type LimiterConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		RequestsPerSecond: 20,
		BurstSize:         5,
	}
}

// LimiterManager maintains per-provider token buckets so a burst of bus
// handlers reacting to the same event cannot exceed a provider's documented
// rate limits. Limiters are created lazily with double-checked locking.
type LimiterManager struct {
	config   LimiterConfig
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

func NewLimiterManager(config LimiterConfig) *LimiterManager {
	return &LimiterManager{
		config:   config,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (m *LimiterManager) limiter(provider string) *rate.Limiter {
	m.mu.RLock()
	l, exists := m.limiters[provider]
	m.mu.RUnlock()
	if exists {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, exists = m.limiters[provider]; exists {
		return l
	}

	l = rate.NewLimiter(rate.Limit(m.config.RequestsPerSecond), m.config.BurstSize)
	m.limiters[provider] = l
	return l
}

// Allow reports whether a call to the provider may proceed right now.
func (m *LimiterManager) Allow(provider string) bool {
	return m.limiter(provider).Allow()
}

// Wait blocks until a call to the provider is permitted or ctx is done.
func (m *LimiterManager) Wait(ctx context.Context, provider string) error {
	return m.limiter(provider).Wait(ctx)
}

// Reserve returns how long the caller would need to wait before the next
// call would be allowed, without consuming a token.
func (m *LimiterManager) Reserve(provider string) time.Duration {
	r := m.limiter(provider).Reserve()
	if !r.OK() {
		return 0
	}
	d := r.Delay()
	r.Cancel()
	return d
}

// SetRate configures a provider-specific limit, replacing any existing
// limiter for that provider.
func (m *LimiterManager) SetRate(provider string, requestsPerSecond float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[provider] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
