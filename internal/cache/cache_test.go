package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetRoundTrip(t *testing.T) {
	t.Parallel()

	c := NewTTL[string](time.Minute)
	c.Set("AAPL", "0000320193")

	val, ok := c.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "0000320193", val)

	_, ok = c.Get("MSFT")
	assert.False(t, ok)
}

func TestEntriesExpire(t *testing.T) {
	t.Parallel()

	c := NewTTL[int](20 * time.Millisecond)
	c.Set("k", 42)

	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok, "entry should expire after TTL")
}

func TestGetOrComputeCachesResult(t *testing.T) {
	t.Parallel()

	c := NewTTL[string](time.Minute)
	calls := 0

	compute := func() (string, error) {
		calls++

		return "CIK123", nil
	}

	val, err := c.GetOrCompute("TSLA", compute)
	require.NoError(t, err)
	assert.Equal(t, "CIK123", val)

	val, err = c.GetOrCompute("TSLA", compute)
	require.NoError(t, err)
	assert.Equal(t, "CIK123", val)
	assert.Equal(t, 1, calls, "second lookup served from cache")
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	t.Parallel()

	c := NewTTL[string](time.Minute)
	boom := errors.New("upstream down")

	_, err := c.GetOrCompute("KO", func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)

	_, ok := c.Get("KO")
	assert.False(t, ok, "failed compute must not populate the cache")
}

func TestStatsCounters(t *testing.T) {
	t.Parallel()

	c := NewTTL[int](time.Minute)
	c.Set("a", 1)

	c.Get("a")
	c.Get("a")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestStoreNamespaces(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Identifiers.Set("AAPL", "0000320193")
	s.Bodies.Set("facts:AAPL", map[string]any{"facts": true})

	stats := s.Stats()
	require.Contains(t, stats, "identifiers")
	require.Contains(t, stats, "bodies")
	require.Contains(t, stats, "company_info")
	assert.Equal(t, 1, stats["identifiers"].Entries)
}
