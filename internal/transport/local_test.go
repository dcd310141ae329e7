package transport

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/config"
	"github.com/equityscope/equityscope/internal/worker"
)

func TestLocalCallToolUnknownServer(t *testing.T) {
	t.Parallel()

	registry := worker.Build(worker.BuildDeps{Config: &config.Config{}})
	local := NewLocal(registry, slog.Default())

	_, err := local.CallTool(context.Background(), "options-basket", "get_options", nil)
	require.ErrorIs(t, err, ErrTransport)
}

func TestLocalCallToolErrorPayloadShape(t *testing.T) {
	t.Parallel()

	registry := worker.Build(worker.BuildDeps{Config: &config.Config{}})
	local := NewLocal(registry, slog.Default())

	// Missing ticker never reaches a provider, so no network is touched.
	payload, err := local.CallTool(context.Background(), "fundamentals-basket", "get_sec_fundamentals",
		map[string]any{})
	require.NoError(t, err)

	assert.True(t, HasError(payload))
	assert.Equal(t, "ticker is required", ErrorMessage(payload))
	assert.Equal(t, "fundamentals-basket", payload["source"])
}

func TestLocalCallToolUnknownTool(t *testing.T) {
	t.Parallel()

	registry := worker.Build(worker.BuildDeps{Config: &config.Config{}})
	local := NewLocal(registry, slog.Default())

	payload, err := local.CallTool(context.Background(), "macro-basket", "get_weather",
		map[string]any{})
	require.NoError(t, err)

	assert.True(t, HasError(payload))
	assert.Contains(t, ErrorMessage(payload), "unknown tool")
}
