package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Provider ids recognized by the default registry.
const (
	ProviderSECEdgar     = "sec_edgar"
	ProviderYahooFinance = "yahoo_finance"
	ProviderFinnhub      = "finnhub"
	ProviderFRED         = "fred"
	ProviderReddit       = "reddit"
	ProviderNYT          = "nyt"
	ProviderTavily       = "tavily"
	ProviderAlphaVantage = "alpha_vantage"
)

// DefaultAcquireTimeout is the wait budget the fetcher grants a limiter.
const DefaultAcquireTimeout = 5 * time.Second

// Registry holds the per-provider limiters and daily quotas. Unregistered
// providers are admitted without limits.
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]Limiter
	quotas   map[string]*DailyQuota
}

// NewRegistry creates a registry pre-configured with the published limits
// of the known upstream providers.
func NewRegistry() *Registry {
	r := &Registry{
		limiters: make(map[string]Limiter),
		quotas:   make(map[string]*DailyQuota),
	}

	// Burst-friendly providers.
	r.limiters[ProviderSECEdgar] = NewTokenBucket(10, 10)
	r.limiters[ProviderYahooFinance] = NewTokenBucket(5, 20)
	r.limiters[ProviderFinnhub] = NewTokenBucket(1, 5)

	// Strict per-minute limits.
	r.limiters[ProviderFRED] = NewSlidingWindow(120, time.Minute)
	r.limiters[ProviderReddit] = NewSlidingWindow(100, time.Minute)

	// Published daily caps. Tavily's monthly 1000 is spread as ~33/day.
	r.quotas[ProviderNYT] = NewDailyQuota(500)
	r.quotas[ProviderTavily] = NewDailyQuota(33)

	return r
}

// Register installs or replaces the limiter for a provider.
func (r *Registry) Register(provider string, limiter Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.limiters[provider] = limiter
}

// Limiter returns the limiter for a provider, or nil when none is configured.
func (r *Registry) Limiter(provider string) Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.limiters[provider]
}

// Quota returns the daily quota tracker for a provider, or nil.
func (r *Registry) Quota(provider string) *DailyQuota {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.quotas[provider]
}

// Acquire takes one admission slot for the provider: the daily quota is
// checked first (cheaper to reject), then the rate limiter with the given
// wait budget. Providers without configuration are always admitted.
func (r *Registry) Acquire(ctx context.Context, provider string, timeout time.Duration) error {
	if quota := r.Quota(provider); quota != nil {
		if !quota.TryAcquire() {
			return ErrRateLimited
		}
	}

	limiter := r.Limiter(provider)
	if limiter == nil {
		return nil
	}

	return limiter.Acquire(ctx, timeout)
}

// LimiterStatus describes one limiter for diagnostics.
type LimiterStatus struct {
	Type      string  `json:"type"`
	Available float64 `json:"available,omitempty"`
	Capacity  int     `json:"capacity,omitempty"`
	Used      int     `json:"used,omitempty"`
	Max       int     `json:"max,omitempty"`
}

// QuotaStatus describes one daily quota for diagnostics.
type QuotaStatus struct {
	Remaining  int `json:"remaining"`
	DailyLimit int `json:"daily_limit"`
}

// Status reports the state of every limiter and quota.
func (r *Registry) Status() (map[string]LimiterStatus, map[string]QuotaStatus) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limiters := make(map[string]LimiterStatus, len(r.limiters))

	for name, limiter := range r.limiters {
		switch l := limiter.(type) {
		case *TokenBucket:
			limiters[name] = LimiterStatus{
				Type:      "token_bucket",
				Available: l.Available(),
				Capacity:  int(l.capacity),
			}
		case *SlidingWindow:
			limiters[name] = LimiterStatus{
				Type: "sliding_window",
				Used: l.InWindow(),
				Max:  l.maxRequests,
			}
		}
	}

	quotas := make(map[string]QuotaStatus, len(r.quotas))
	for name, quota := range r.quotas {
		quotas[name] = QuotaStatus{
			Remaining:  quota.Remaining(),
			DailyLimit: quota.limit,
		}
	}

	return limiters, quotas
}
