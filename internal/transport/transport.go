// Package transport carries tool calls from the aggregator to the basket
// workers. The default transport spawns the worker binary per call and
// speaks MCP over stdio; an HTTP transport serves the fundamentals basket
// behind a load balancer and falls back to stdio when the cluster is
// unreachable.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrTransport indicates the worker call failed below the application
// level: the child process could not be spawned, the handshake broke, or
// the HTTP layer returned garbage.
var ErrTransport = errors.New("worker transport failed")

// Caller delivers one tool call to a basket worker. Implementations
// return the decoded tool payload; application-level failures travel
// inside the payload as an "error" field, not as a Go error.
type Caller interface {
	CallTool(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error)
}

// HasError reports whether a tool payload carries an application-level
// error field.
func HasError(payload map[string]any) bool {
	_, ok := payload["error"]

	return ok
}

// ErrorMessage extracts the error text from a failed tool payload.
func ErrorMessage(payload map[string]any) string {
	switch v := payload["error"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// decodeResult extracts the first text part of a tool result and decodes
// it as JSON. Non-JSON text comes back wrapped as {"raw_text": ...} so
// the caller always receives a structured payload.
func decodeResult(result *mcpsdk.CallToolResult) (map[string]any, error) {
	text, ok := firstText(result)
	if !ok {
		return nil, fmt.Errorf("%w: tool result carried no text content", ErrTransport)
	}

	if result.IsError {
		return map[string]any{"error": text}, nil
	}

	var payload map[string]any

	err := json.Unmarshal([]byte(text), &payload)
	if err != nil {
		return map[string]any{"raw_text": text}, nil
	}

	return payload, nil
}

func firstText(result *mcpsdk.CallToolResult) (string, bool) {
	for _, content := range result.Content {
		if text, ok := content.(*mcpsdk.TextContent); ok {
			return text.Text, true
		}
	}

	return "", false
}
