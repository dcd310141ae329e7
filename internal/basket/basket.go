// Package basket defines the shared tool contract for the six research
// baskets and the always-respond invocation wrapper around them.
package basket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ToolTimeout bounds a single tool invocation end to end.
const ToolTimeout = 90 * time.Second

// SWOT categories attached to metric interpretations.
const (
	CategoryStrength     = "STRENGTH"
	CategoryWeakness     = "WEAKNESS"
	CategoryOpportunity  = "OPPORTUNITY"
	CategoryThreat       = "THREAT"
	CategoryNeutral      = "NEUTRAL"
	CategorySevereThreat = "SEVERE_THREAT"
)

// HandlerFunc executes one tool. The returned value must be JSON
// serializable; it becomes the text content of the tool response.
type HandlerFunc func(ctx context.Context, ticker string, args map[string]any) (any, error)

// Tool is one named operation exposed by a basket server.
type Tool struct {
	Name        string
	Description string
	// NoTicker marks market-wide tools that take no ticker argument.
	NoTicker bool
	Handler  HandlerFunc
}

// Set is the tool collection of one basket server.
type Set struct {
	// Server is the basket's server name, e.g. "fundamentals-basket".
	Server string
	Tools  []Tool
}

// Lookup finds a tool by name.
func (s *Set) Lookup(name string) (Tool, bool) {
	for _, tool := range s.Tools {
		if tool.Name == name {
			return tool, true
		}
	}

	return Tool{}, false
}

// Invoke runs a tool under the shared deadline and never fails: handler
// errors, panics, and timeouts all come back as a structured payload so
// the caller always receives valid JSON.
func (s *Set) Invoke(ctx context.Context, logger *slog.Logger, name string, args map[string]any) any {
	if logger == nil {
		logger = slog.Default()
	}

	ticker, _ := args["ticker"].(string)
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	tool, ok := s.Lookup(name)
	if !ok {
		return map[string]any{
			"error":  fmt.Sprintf("unknown tool: %s", name),
			"ticker": ticker,
			"source": s.Server,
		}
	}

	if ticker == "" && !tool.NoTicker {
		return map[string]any{
			"error":  "ticker is required",
			"ticker": nil,
			"source": s.Server,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, ToolTimeout)
	defer cancel()

	type outcome struct {
		result any
		err    error
	}

	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("tool panicked",
					"tool", name, "ticker", ticker, "panic", r)
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()

		result, err := tool.Handler(ctx, ticker, args)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		logger.Error("tool timed out",
			"tool", name, "ticker", ticker, "timeout", ToolTimeout)

		return map[string]any{
			"error":    fmt.Sprintf("Tool execution timed out after %d seconds", int(ToolTimeout.Seconds())),
			"ticker":   ticker,
			"tool":     name,
			"source":   s.Server,
			"fallback": true,
		}
	case out := <-done:
		if out.err != nil {
			logger.Error("tool failed",
				"tool", name, "ticker", ticker, "error", out.err)

			return map[string]any{
				"error":    out.err.Error(),
				"ticker":   ticker,
				"tool":     name,
				"source":   s.Server,
				"fallback": true,
			}
		}

		return out.result
	}
}

// IntArg reads an integer argument, tolerating JSON's float64 decoding.
func IntArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}

	return fallback
}

// Date formats a time as the calendar date carried in as_of fields.
func Date(t time.Time) string {
	return t.Format("2006-01-02")
}
