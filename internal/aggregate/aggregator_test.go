package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/model"
)

// scriptedCaller replays queued responses per server, mimicking the
// worker transport.
type scriptedCaller struct {
	mu        sync.Mutex
	responses map[string][]scriptedResponse
	calls     []string
}

type scriptedResponse struct {
	payload map[string]any
	err     error
}

func (c *scriptedCaller) CallTool(_ context.Context, server, tool string, _ map[string]any) (map[string]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls = append(c.calls, server+"/"+tool)

	queue := c.responses[server]
	if len(queue) == 0 {
		return nil, errors.New("no scripted response for " + server)
	}

	next := queue[0]
	c.responses[server] = queue[1:]

	return next.payload, next.err
}

func (c *scriptedCaller) callCount(server string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0

	for _, call := range c.calls {
		if strings.HasPrefix(call, server+"/") {
			count++
		}
	}

	return count
}

func okPayload(source string, data map[string]any) map[string]any {
	return map[string]any{
		"group":  model.GroupRawMetrics,
		"source": source,
		"as_of":  "2026-08-24",
		"sources": map[string]any{
			"fred": map[string]any{"source": source, "data": data},
		},
	}
}

func newsPayload(count int) map[string]any {
	results := make([]any, count)
	for i := range results {
		results[i] = map[string]any{
			"title":          fmt.Sprintf("article %d", i),
			"published_date": fmt.Sprintf("2026-08-%02d", i+1),
		}
	}

	return map[string]any{
		"source":  "Tavily",
		"as_of":   "2026-08-24",
		"results": results,
	}
}

func happyCaller() *scriptedCaller {
	fundamentals := map[string]any{
		"group":  model.GroupSourceComparison,
		"source": "SEC EDGAR + Yahoo Finance",
		"as_of":  "2026-08-24",
		"sources": map[string]any{
			"sec_edgar": map[string]any{
				"source": "SEC EDGAR",
				"data": map[string]any{
					"revenue":        map[string]any{"value": 100.0},
					"net_income":     map[string]any{"value": 25.0},
					"eps":            4.0,
					"debt_to_equity": 1.1,
				},
			},
			"yahoo_finance": map[string]any{
				"source": "Yahoo Finance",
				"data": map[string]any{
					"revenue":    103.0,
					"net_income": 25.1,
				},
			},
		},
	}

	valuation := map[string]any{
		"group":  model.GroupSourceComparison,
		"source": "Yahoo Finance",
		"as_of":  "2026-08-24",
		"sources": map[string]any{
			"yahoo_finance": map[string]any{
				"source": "Yahoo Finance",
				"data":   map[string]any{"trailing_pe": 28.0, "pb_ratio": 9.0, "ps_ratio": 7.0},
			},
		},
	}

	return &scriptedCaller{responses: map[string][]scriptedResponse{
		"fundamentals-basket": {{payload: fundamentals}},
		"valuation-basket":    {{payload: valuation}},
		"volatility-basket":   {{payload: okPayload("FRED", map[string]any{"vix": 17.0, "beta": 1.2})}},
		"macro-basket":        {{payload: okPayload("FRED", map[string]any{"gdp_growth": 2.8, "interest_rate": 4.3, "cpi_inflation": 2.9})}},
		"news-basket":         {{payload: newsPayload(12)}},
		"sentiment-basket":    {{payload: map[string]any{"source": "Finnhub + Reddit", "as_of": "2026-08-24", "items": []any{}}}},
	}}
}

func TestAggregatorHappyPath(t *testing.T) {
	t.Parallel()

	caller := happyCaller()
	agg := New(caller, Config{}, nil)

	var events []model.MetricEvent

	sink := SinkFunc(func(event model.MetricEvent) { events = append(events, event) })

	artifact, err := agg.Run(context.Background(), "AAPL", "Apple", sink)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", artifact.Ticker)
	assert.Equal(t, model.BasketOrder, artifact.SourcesAvailable)
	assert.Empty(t, artifact.SourcesFailed)

	news := artifact.Metrics[model.BasketNews]
	require.NotNil(t, news)
	assert.Equal(t, 12, news.TotalItems)
	assert.Equal(t, 10, news.Showing)
	assert.Len(t, news.Items, 10)
	assert.Equal(t, "article 11", news.Items[0].Title)

	require.Contains(t, artifact.MultiSource, "fundamentals_all")
	require.Contains(t, artifact.MultiSource, "macro_all")

	conflicts := artifact.ConflictResolution[model.BasketFundamentals]
	require.Len(t, conflicts, 1)
	assert.Equal(t, "revenue", conflicts[0].Metric)

	assert.NotEmpty(t, events)
	assert.Equal(t, "revenue", events[0].Metric)
	assert.NotEmpty(t, artifact.GeneratedAt)
	assert.Positive(t, artifact.Completeness.Pct)
}

func TestAggregatorRetriesOnceThenSucceeds(t *testing.T) {
	t.Parallel()

	caller := happyCaller()
	caller.responses["volatility-basket"] = []scriptedResponse{
		{payload: map[string]any{"error": "upstream 503", "tool": "get_all_sources_volatility"}},
		{payload: okPayload("FRED", map[string]any{"vix": 19.0, "beta": 1.5})},
	}

	agg := New(caller, Config{}, nil)

	artifact, err := agg.Run(context.Background(), "TSLA", "Tesla", nil)
	require.NoError(t, err)

	assert.Equal(t, 2, caller.callCount("volatility-basket"))
	assert.Contains(t, artifact.SourcesAvailable, model.BasketVolatility)
	assert.Empty(t, artifact.SourcesFailed)
}

func TestAggregatorRecordsFailureAfterRetry(t *testing.T) {
	t.Parallel()

	caller := happyCaller()
	caller.responses["macro-basket"] = []scriptedResponse{
		{err: errors.New("worker spawn failed")},
		{err: errors.New("worker spawn failed")},
	}

	agg := New(caller, Config{}, nil)

	artifact, err := agg.Run(context.Background(), "AAPL", "Apple", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{model.BasketMacro}, artifact.SourcesFailed)

	failed := artifact.Metrics[model.BasketMacro]
	require.NotNil(t, failed)
	assert.True(t, failed.Retried)
	assert.Contains(t, failed.Error, "worker spawn failed")

	assert.NotContains(t, artifact.SourcesAvailable, model.BasketMacro)
	assert.Contains(t, artifact.Completeness.Missing[model.BasketMacro], "gdp_growth")
}

func TestAggregatorStopsAtBasketBoundaryOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := New(happyCaller(), Config{}, nil)

	artifact, err := agg.Run(ctx, "AAPL", "Apple", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, artifact)
}

func TestAggregatorAlwaysRespondEnvelope(t *testing.T) {
	t.Parallel()

	caller := happyCaller()
	caller.responses["sentiment-basket"] = []scriptedResponse{
		{payload: map[string]any{"as_of": "2026-08-24"}},
	}

	agg := New(caller, Config{}, nil)

	artifact, err := agg.Run(context.Background(), "AAPL", "Apple", nil)
	require.NoError(t, err)

	sentiment := artifact.Metrics[model.BasketSentiment]
	require.NotNil(t, sentiment)
	require.Len(t, sentiment.Sources, 1)

	for _, entry := range sentiment.Sources {
		assert.Equal(t, model.MinimalFallbackSource, entry.Source)
	}
}
