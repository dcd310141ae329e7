package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpensAfterFailureThreshold(t *testing.T) {
	t.Parallel()

	b := New("sec_edgar", DefaultConfig())

	for range 4 {
		b.RecordFailure()
		require.Equal(t, StateClosed, b.State())
	}

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
	assert.False(t, b.Allow())
}

func TestSuccessDecrementsFailureCountWithFloor(t *testing.T) {
	t.Parallel()

	b := New("yahoo_finance", DefaultConfig())

	b.RecordSuccess()
	assert.Equal(t, 0, b.Status().FailureCount, "floor at zero")

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	assert.Equal(t, 1, b.Status().FailureCount)
}

func TestHalfOpenProbeAfterTimeout(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := New("fred", DefaultConfig())
	b.now = func() time.Time { return now }

	for range 5 {
		b.RecordFailure()
	}

	require.Equal(t, StateOpen, b.State())
	require.False(t, b.Allow())

	now = now.Add(31 * time.Second)

	assert.True(t, b.Allow(), "probe admitted after half-open timeout")
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestHalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := New("finnhub", DefaultConfig())
	b.now = func() time.Time { return now }

	b.ForceOpen()
	now = now.Add(time.Minute)
	require.True(t, b.Allow())

	b.RecordSuccess()
	b.RecordSuccess()
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Status().FailureCount, "counters reset on transition")
}

func TestHalfOpenReopensOnFailure(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := New("tavily", DefaultConfig())
	b.now = func() time.Time { return now }

	b.ForceOpen()
	now = now.Add(time.Minute)
	require.True(t, b.Allow())
	require.Equal(t, StateHalfOpen, b.State())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Now()
	b := New("nyt", DefaultConfig())
	b.now = func() time.Time { return now }

	assert.Zero(t, b.RetryAfter())

	b.ForceOpen()
	now = now.Add(10 * time.Second)

	assert.InDelta(t, float64(20*time.Second), float64(b.RetryAfter()), float64(time.Second))
}

func TestRegistryCreatesOnDemand(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultConfig())

	require.True(t, r.Allow("fundamentals"))
	require.Same(t, r.Get("fundamentals"), r.Get("fundamentals"))
}

func TestRegistryOverride(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultConfig())
	r.Override("yahoo_finance", Config{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		HalfOpenTimeout:  time.Second,
	})

	r.RecordFailure("yahoo_finance")
	r.RecordFailure("yahoo_finance")

	assert.Equal(t, StateOpen, r.Get("yahoo_finance").State())
	assert.Contains(t, r.OpenBreakers(), "yahoo_finance")
}

func TestRegistryCheckOpen(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultConfig())

	require.NoError(t, r.CheckOpen("reddit"))

	r.Get("reddit").ForceOpen()

	err := r.CheckOpen("reddit")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "retry after")
}

func TestRegistryResetAll(t *testing.T) {
	t.Parallel()

	r := NewRegistry(DefaultConfig())
	r.Get("a").ForceOpen()
	r.Get("b").ForceOpen()

	r.ResetAll()

	assert.Empty(t, r.OpenBreakers())
}
