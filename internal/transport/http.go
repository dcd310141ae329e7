package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// healthTimeout bounds the load-balancer liveness probe.
const healthTimeout = 5 * time.Second

// HTTP posts tool calls to a load-balanced worker cluster. Connection
// failures fall back transparently to the configured secondary transport
// (normally the child-process one); HTTP-level failures come back as
// error payloads so the aggregator's retry loop handles them uniformly.
type HTTP struct {
	base     string
	client   *http.Client
	fallback Caller
	logger   *slog.Logger
}

// NewHTTP builds the HTTP transport. The fallback may be nil, in which
// case connection failures surface as transport errors.
func NewHTTP(baseURL string, timeout time.Duration, fallback Caller, logger *slog.Logger) *HTTP {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &HTTP{
		base:     baseURL,
		client:   &http.Client{Timeout: timeout},
		fallback: fallback,
		logger:   logger,
	}
}

// CallTool POSTs the argument object to /tools/<name> on the cluster.
func (h *HTTP) CallTool(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("%w: encode args for %s: %v", ErrTransport, tool, err)
	}

	endpoint := h.base + "/tools/" + url.PathEscape(tool)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request for %s: %v", ErrTransport, tool, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return map[string]any{
				"error": fmt.Sprintf("HTTP timeout after %s", h.client.Timeout),
				"tool":  tool,
			}, nil
		}

		// Cluster down: fall back to the child-process transport.
		if h.fallback != nil {
			h.logger.Warn("HTTP worker unreachable, falling back to stdio",
				"server", server, "tool", tool, "error", err)

			return h.fallback.CallTool(ctx, server, tool, args)
		}

		return nil, fmt.Errorf("%w: post %s: %v", ErrTransport, tool, err)
	}

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response for %s: %v", ErrTransport, tool, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return map[string]any{
			"error": fmt.Sprintf("HTTP %d", resp.StatusCode),
			"tool":  tool,
		}, nil
	}

	var payload map[string]any

	err = json.Unmarshal(data, &payload)
	if err != nil {
		return map[string]any{"raw_text": string(data)}, nil
	}

	return payload, nil
}

// Healthy probes the cluster's /health endpoint.
func (h *HTTP) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return false
	}

	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

func isTimeout(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// Router dispatches per-server transport overrides, falling through to
// the default caller. It lets the fundamentals basket ride HTTP while
// the rest stay on stdio.
type Router struct {
	fallback  Caller
	overrides map[string]Caller
}

// NewRouter builds a router over a default caller and per-server
// overrides.
func NewRouter(fallback Caller, overrides map[string]Caller) *Router {
	return &Router{fallback: fallback, overrides: overrides}
}

// CallTool routes to the server's override when one is registered.
func (r *Router) CallTool(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	if caller, ok := r.overrides[server]; ok {
		return caller.CallTool(ctx, server, tool, args)
	}

	return r.fallback.CallTool(ctx, server, tool, args)
}
