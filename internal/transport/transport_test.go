package transport

import (
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textResult(text string, isError bool) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		IsError: isError,
	}
}

func TestDecodeResultJSON(t *testing.T) {
	t.Parallel()

	payload, err := decodeResult(textResult(`{"ticker":"AAPL","metrics":{"beta":1.2}}`, false))
	require.NoError(t, err)

	assert.Equal(t, "AAPL", payload["ticker"])
	assert.False(t, HasError(payload))
}

func TestDecodeResultToolError(t *testing.T) {
	t.Parallel()

	payload, err := decodeResult(textResult("ticker is required", true))
	require.NoError(t, err)

	assert.True(t, HasError(payload))
	assert.Equal(t, "ticker is required", ErrorMessage(payload))
}

func TestDecodeResultNonJSONText(t *testing.T) {
	t.Parallel()

	payload, err := decodeResult(textResult("not json", false))
	require.NoError(t, err)

	assert.Equal(t, "not json", payload["raw_text"])
}

func TestDecodeResultNoTextContent(t *testing.T) {
	t.Parallel()

	_, err := decodeResult(&mcpsdk.CallToolResult{})
	require.ErrorIs(t, err, ErrTransport)
}

func TestErrorMessageShapes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "boom", ErrorMessage(map[string]any{"error": "boom"}))
	assert.Equal(t, "", ErrorMessage(map[string]any{}))
	assert.Equal(t, "42", ErrorMessage(map[string]any{"error": 42}))
}
