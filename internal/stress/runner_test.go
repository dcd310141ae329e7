package stress

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCaller answers probe calls from per-server canned payloads.
type stubCaller struct {
	mu       sync.Mutex
	payloads map[string]map[string]any
	errs     map[string]error
	calls    []string
}

func (s *stubCaller) CallTool(_ context.Context, server, tool string, _ map[string]any) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, server+"/"+tool)

	if err, ok := s.errs[server]; ok {
		return nil, err
	}

	return s.payloads[server], nil
}

func (s *stubCaller) callCount(server string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0

	for _, call := range s.calls {
		if strings.HasPrefix(call, server+"/") {
			count++
		}
	}

	return count
}

func healthyCaller() *stubCaller {
	return &stubCaller{
		payloads: map[string]map[string]any{
			"fundamentals-basket": fullFundamentals(),
			"valuation-basket": {
				"metrics":            map[string]any{"trailing_pe": 28.5},
				"overall_assessment": "fair value",
				"swot_summary":       "premium multiple",
			},
			"volatility-basket": {
				"metrics":      map[string]any{"beta": 1.2, "vix": 15.3},
				"swot_summary": "calm regime",
				"generated_at": "2025-06-01T12:00:00Z",
			},
			"macro-basket": {
				"metrics":            map[string]any{"gdp_growth": 2.1},
				"overall_assessment": "expansion",
				"source":             "FRED",
			},
			"news-basket": {
				"results":      []any{map[string]any{"title": "earnings beat"}},
				"query":        "AAPL",
				"source":       "Tavily",
				"sources_used": []any{"Tavily", "NYT"},
			},
			"sentiment-basket": {
				"items":        []any{map[string]any{"title": "bullish thread"}},
				"sources_used": []any{"reddit"},
				"source":       "Finnhub",
			},
		},
		errs: map[string]error{},
	}
}

func TestNewRunnerRejectsUnknownServer(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(Config{Servers: []string{"options-basket"}}, healthyCaller(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "options-basket")
}

func TestRunnerFullMatrixHealthy(t *testing.T) {
	t.Parallel()

	caller := healthyCaller()

	runner, err := NewRunner(Config{
		BatchSize:       3,
		Strategy:        StrategyUniform,
		MaxConcurrent:   2,
		RequestInterval: time.Millisecond,
		Timeout:         5 * time.Second,
		Seed:            5,
	}, caller, slog.Default())
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 18, summary.Total)
	assert.InDelta(t, 1.0, summary.SuccessRate, 0.001)
	assert.Zero(t, summary.FailureRate)
	assert.Len(t, summary.ByServer, 6)
	assert.Equal(t, 3, caller.callCount("macro-basket"))
	assert.Len(t, runner.Outcomes(), 18)

	assert.False(t, summary.StartTime.IsZero())
	assert.False(t, summary.EndTime.Before(summary.StartTime))
	assert.Equal(t, int64(5), summary.Config.Seed)
	assert.Len(t, summary.CircuitBreakerStatus, 6)
}

func TestRunnerClassifiesFailingServer(t *testing.T) {
	t.Parallel()

	caller := healthyCaller()
	caller.errs["news-basket"] = errors.New("HTTP 503 service unavailable")

	runner, err := NewRunner(Config{
		BatchSize:       4,
		Strategy:        StrategyUniform,
		MaxConcurrent:   1,
		RequestInterval: time.Millisecond,
		Timeout:         5 * time.Second,
		Seed:            8,
	}, caller, slog.Default())
	require.NoError(t, err)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 24, summary.Total)

	unhealthy := 0
	for category, count := range summary.ByServer["news-basket"] {
		assert.False(t, category.Healthy())
		unhealthy += count
	}

	assert.Equal(t, 4, unhealthy)
	assert.Less(t, summary.SuccessRate, 1.0)
}

func TestRunnerHonorsCancellation(t *testing.T) {
	t.Parallel()

	caller := healthyCaller()

	runner, err := NewRunner(Config{
		BatchSize:       10,
		Strategy:        StrategyUniform,
		MaxConcurrent:   1,
		RequestInterval: 50 * time.Millisecond,
		Timeout:         5 * time.Second,
		Seed:            2,
	}, caller, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	summary, err := runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, summary.Total, 60)
}

func TestRunnerDefaultsApplied(t *testing.T) {
	t.Parallel()

	runner, err := NewRunner(Config{}, healthyCaller(), nil)
	require.NoError(t, err)

	assert.Equal(t, 20, runner.cfg.BatchSize)
	assert.Equal(t, StrategyUniform, runner.cfg.Strategy)
	assert.Equal(t, 5, runner.cfg.MaxConcurrent)
	assert.Len(t, runner.cfg.Servers, 6)
}
