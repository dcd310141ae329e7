package basket_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/basket"
)

func testSet() *basket.Set {
	return &basket.Set{
		Server: "test-basket",
		Tools: []basket.Tool{
			{
				Name: "echo",
				Handler: func(_ context.Context, ticker string, _ map[string]any) (any, error) {
					return map[string]any{"ticker": ticker}, nil
				},
			},
			{
				Name: "boom",
				Handler: func(_ context.Context, _ string, _ map[string]any) (any, error) {
					return nil, errors.New("upstream unavailable")
				},
			},
			{
				Name: "panic",
				Handler: func(_ context.Context, _ string, _ map[string]any) (any, error) {
					panic("unexpected state")
				},
			},
		},
	}
}

func TestInvokeSuccess(t *testing.T) {
	t.Parallel()

	result := testSet().Invoke(context.Background(), nil, "echo", map[string]any{"ticker": "aapl"})

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AAPL", payload["ticker"])
}

func TestInvokeMissingTicker(t *testing.T) {
	t.Parallel()

	result := testSet().Invoke(context.Background(), nil, "echo", map[string]any{})

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ticker is required", payload["error"])
	assert.Nil(t, payload["ticker"])
	assert.Equal(t, "test-basket", payload["source"])
}

func TestInvokeUnknownTool(t *testing.T) {
	t.Parallel()

	result := testSet().Invoke(context.Background(), nil, "nope", map[string]any{"ticker": "AAPL"})

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "unknown tool: nope", payload["error"])
}

func TestInvokeHandlerError(t *testing.T) {
	t.Parallel()

	result := testSet().Invoke(context.Background(), nil, "boom", map[string]any{"ticker": "AAPL"})

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "upstream unavailable", payload["error"])
	assert.Equal(t, "AAPL", payload["ticker"])
	assert.Equal(t, "boom", payload["tool"])
	assert.Equal(t, true, payload["fallback"])
}

func TestInvokeRecoversPanic(t *testing.T) {
	t.Parallel()

	result := testSet().Invoke(context.Background(), nil, "panic", map[string]any{"ticker": "AAPL"})

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, payload["error"], "panic")
	assert.Equal(t, true, payload["fallback"])
}

func TestIntArg(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, basket.IntArg(map[string]any{"limit": float64(5)}, "limit", 20))
	assert.Equal(t, 7, basket.IntArg(map[string]any{"limit": 7}, "limit", 20))
	assert.Equal(t, 20, basket.IntArg(map[string]any{}, "limit", 20))
}
