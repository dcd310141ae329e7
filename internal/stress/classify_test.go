package stress

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullFundamentals() map[string]any {
	return map[string]any{
		"ticker":       "AAPL",
		"financials":   map[string]any{"revenue": 394_328_000_000.0},
		"debt":         map[string]any{"debt_to_equity": 1.79},
		"cash_flow":    map[string]any{"free_cash_flow": 99_584_000_000.0},
		"swot_summary": "strong cash generation",
	}
}

func TestClassifySuccess(t *testing.T) {
	t.Parallel()

	c := NewClassifier()

	outcome := c.Classify("fundamentals-basket", "AAPL", fullFundamentals(), nil, 120*time.Millisecond)

	assert.Equal(t, CategorySuccess, outcome.Category)
	assert.InDelta(t, 1.0, outcome.Completeness, 0.001)
	assert.Equal(t, float64(120), outcome.LatencyMS)
	assert.False(t, outcome.FallbackUsed)
}

func TestClassifyPartialOnThinPayload(t *testing.T) {
	t.Parallel()

	c := NewClassifier()

	payload := map[string]any{"ticker": "AAPL"}
	outcome := c.Classify("fundamentals-basket", "AAPL", payload, nil, time.Millisecond)

	assert.Equal(t, CategoryPartial, outcome.Category)
	assert.Less(t, outcome.Completeness, 0.5)
}

func TestClassifyFallbackFlag(t *testing.T) {
	t.Parallel()

	c := NewClassifier()

	payload := fullFundamentals()
	payload["fallback"] = true
	payload["fallback_reason"] = "SEC EDGAR unavailable"
	payload["source"] = "Yahoo Finance"

	outcome := c.Classify("fundamentals-basket", "AAPL", payload, nil, time.Millisecond)

	assert.Equal(t, CategoryFallback, outcome.Category)
	assert.True(t, outcome.FallbackUsed)
	assert.Equal(t, "SEC EDGAR unavailable", outcome.PrimarySource)
	assert.Equal(t, "Yahoo Finance", outcome.FallbackSource)
}

func TestClassifyNewsArchiveOnlyFallback(t *testing.T) {
	t.Parallel()

	c := NewClassifier()

	payload := map[string]any{
		"results":      []any{map[string]any{"title": "earnings beat"}},
		"sources_used": []any{"NYT"},
	}

	outcome := c.Classify("news-basket", "AAPL", payload, nil, time.Millisecond)

	assert.Equal(t, CategoryFallback, outcome.Category)
	assert.Equal(t, "Tavily", outcome.PrimarySource)
	assert.Equal(t, "NYT", outcome.FallbackSource)
}

func TestClassifyErrorPayload(t *testing.T) {
	t.Parallel()

	c := NewClassifier()

	payload := map[string]any{"error": "ticker not found"}
	outcome := c.Classify("fundamentals-basket", "ZZZZ", payload, nil, time.Millisecond)

	assert.Equal(t, CategoryHardFailure, outcome.Category)
	assert.Equal(t, "ticker not found", outcome.ErrorMessage)
}

func TestClassifyNilPayload(t *testing.T) {
	t.Parallel()

	c := NewClassifier()

	outcome := c.Classify("macro-basket", "AAPL", nil, nil, time.Millisecond)

	assert.Equal(t, CategoryHardFailure, outcome.Category)
	assert.Equal(t, "no response received", outcome.ErrorMessage)
}

func TestClassifyErrorStrings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		message string
		want    Category
	}{
		{name: "rate limit", message: "HTTP 429 too many requests", want: CategoryRateLimited},
		{name: "timeout", message: "context deadline exceeded", want: CategoryTimeout},
		{name: "dependency", message: "upstream hf.space returned garbage", want: CategoryDependency},
		{name: "cold start", message: "cold start in progress", want: CategoryColdStart},
		{name: "server error", message: "HTTP 503 service unavailable", want: CategoryTransient},
		{name: "client error", message: "HTTP 404 not found", want: CategoryHardFailure},
		{name: "unclassified", message: "connection reset by peer", want: CategoryTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := NewClassifier()
			outcome := c.Classify("macro-basket", "AAPL", nil, errors.New(tc.message), time.Millisecond)
			assert.Equal(t, tc.want, outcome.Category)
		})
	}
}

func TestClassifyTransientUpgradesToPersistent(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	err := errors.New("HTTP 502 bad gateway")

	first := c.Classify("news-basket", "GME", nil, err, time.Millisecond)
	second := c.Classify("news-basket", "GME", nil, err, time.Millisecond)
	third := c.Classify("news-basket", "GME", nil, err, time.Millisecond)

	assert.Equal(t, CategoryTransient, first.Category)
	assert.Equal(t, CategoryTransient, second.Category)
	assert.Equal(t, CategoryPersistent, third.Category)

	// A success resets the streak for that pair.
	ok := c.Classify("news-basket", "GME", map[string]any{"results": []any{map[string]any{}}}, nil, time.Millisecond)
	require.True(t, ok.Category.Healthy())

	again := c.Classify("news-basket", "GME", nil, err, time.Millisecond)
	assert.Equal(t, CategoryTransient, again.Category)
}

func TestClassifyFailureStreaksAreIndependent(t *testing.T) {
	t.Parallel()

	c := NewClassifier()
	err := errors.New("HTTP 500 internal")

	for range persistentAfter {
		c.Classify("macro-basket", "AAPL", nil, err, time.Millisecond)
	}

	other := c.Classify("macro-basket", "MSFT", nil, err, time.Millisecond)
	assert.Equal(t, CategoryTransient, other.Category)
}

func TestCompletenessWeighting(t *testing.T) {
	t.Parallel()

	// Required present, all optional absent: 0.7*1 + 0.3*0.
	payload := map[string]any{
		"ticker":     "AAPL",
		"financials": map[string]any{"revenue": 1.0},
	}

	assert.InDelta(t, 0.7, completeness("fundamentals-basket", payload), 0.001)

	// Empty containers do not count as populated.
	payload["debt"] = map[string]any{}
	payload["cash_flow"] = []any{}
	assert.InDelta(t, 0.7, completeness("fundamentals-basket", payload), 0.001)

	payload["swot_summary"] = "ok"
	assert.InDelta(t, 0.8, completeness("fundamentals-basket", payload), 0.001)
}
