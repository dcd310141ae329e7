package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/equityscope/equityscope/internal/worker"
)

// Local invokes basket tools in-process against a worker registry. The
// one-shot research command and the stress harness use it to skip the
// per-call child spawn while keeping the same payload contract.
type Local struct {
	registry *worker.Registry
	logger   *slog.Logger
}

// NewLocal builds the in-process transport.
func NewLocal(registry *worker.Registry, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}

	return &Local{registry: registry, logger: logger}
}

// CallTool runs the tool through the basket's execution wrapper and
// round-trips the result through JSON so the payload shape matches the
// wire transports exactly.
func (l *Local) CallTool(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	set, ok := l.registry.Set(server)
	if !ok {
		return nil, fmt.Errorf("%w: unknown basket server %q", ErrTransport, server)
	}

	result := set.Invoke(ctx, l.logger, tool, args)

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s/%s result: %v", ErrTransport, server, tool, err)
	}

	var payload map[string]any

	err = json.Unmarshal(data, &payload)
	if err != nil {
		return map[string]any{"raw_text": string(data)}, nil
	}

	return payload, nil
}
