// Package ratelimit provides admission control for upstream providers:
// token buckets for burst-friendly APIs, sliding windows for strict
// per-minute limits, and daily quota counters for capped APIs.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimited indicates a token could not be acquired within the wait budget.
var ErrRateLimited = errors.New("rate limited: token not acquired within wait budget")

// pollInterval bounds how often blocked acquirers re-check for capacity.
const pollInterval = 10 * time.Millisecond

// Limiter is the admission check shared by the bucket and window variants.
type Limiter interface {
	// TryAcquire attempts to take one slot without blocking.
	TryAcquire() bool

	// Acquire blocks until a slot is available, the timeout elapses, or the
	// context is canceled. Returns ErrRateLimited on timeout.
	Acquire(ctx context.Context, timeout time.Duration) error
}

// TokenBucket refills at a steady rate and allows bursting up to capacity.
type TokenBucket struct {
	mu         sync.Mutex
	rate       float64
	capacity   float64
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
}

// NewTokenBucket creates a full bucket with the given refill rate
// (tokens per second) and burst capacity.
func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	b := &TokenBucket{
		rate:     rate,
		capacity: float64(capacity),
		tokens:   float64(capacity),
		now:      time.Now,
	}
	b.lastUpdate = b.now()

	return b
}

func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastUpdate).Seconds()
	b.tokens = min(b.capacity, b.tokens+elapsed*b.rate)
	b.lastUpdate = now
}

// TryAcquire takes one token if available.
func (b *TokenBucket) TryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.tokens >= 1 {
		b.tokens--

		return true
	}

	return false
}

// Acquire blocks until a token is available or the timeout elapses.
func (b *TokenBucket) Acquire(ctx context.Context, timeout time.Duration) error {
	return pollAcquire(ctx, timeout, b.TryAcquire)
}

// Available returns the current token count after refill.
func (b *TokenBucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	return b.tokens
}

// SlidingWindow admits at most maxRequests within any rolling window.
type SlidingWindow struct {
	mu          sync.Mutex
	maxRequests int
	window      time.Duration
	stamps      []time.Time
	now         func() time.Time
}

// NewSlidingWindow creates a sliding-window limiter.
func NewSlidingWindow(maxRequests int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

func (w *SlidingWindow) pruneLocked() {
	cutoff := w.now().Add(-w.window)

	i := 0
	for i < len(w.stamps) && w.stamps[i].Before(cutoff) {
		i++
	}

	w.stamps = w.stamps[i:]
}

// TryAcquire records a request if the window has room.
func (w *SlidingWindow) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked()

	if len(w.stamps) < w.maxRequests {
		w.stamps = append(w.stamps, w.now())

		return true
	}

	return false
}

// Acquire blocks until a slot is available or the timeout elapses.
func (w *SlidingWindow) Acquire(ctx context.Context, timeout time.Duration) error {
	return pollAcquire(ctx, timeout, w.TryAcquire)
}

// InWindow returns the number of requests currently inside the window.
func (w *SlidingWindow) InWindow() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked()

	return len(w.stamps)
}

// DailyQuota counts requests against a per-calendar-day cap. The counter
// resets when the local day rolls over.
type DailyQuota struct {
	mu    sync.Mutex
	limit int
	used  int
	day   string
	now   func() time.Time
}

// NewDailyQuota creates a quota tracker with the given daily cap.
func NewDailyQuota(limit int) *DailyQuota {
	q := &DailyQuota{limit: limit, now: time.Now}
	q.day = q.currentDay()

	return q
}

func (q *DailyQuota) currentDay() string {
	return q.now().Format(time.DateOnly)
}

func (q *DailyQuota) resetIfRolledLocked() {
	today := q.currentDay()
	if today != q.day {
		q.used = 0
		q.day = today
	}
}

// TryAcquire consumes one unit of today's quota if available.
func (q *DailyQuota) TryAcquire() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.resetIfRolledLocked()

	if q.used < q.limit {
		q.used++

		return true
	}

	return false
}

// Remaining returns the unused quota for the current day.
func (q *DailyQuota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.resetIfRolledLocked()

	return max(0, q.limit-q.used)
}

func pollAcquire(ctx context.Context, timeout time.Duration, try func() bool) error {
	if try() {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrRateLimited
		case <-ticker.C:
			if try() {
				return nil
			}
		}
	}
}
