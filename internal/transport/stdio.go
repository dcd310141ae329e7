package transport

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/equityscope/equityscope/pkg/version"
)

// Handshake and tool-call deadlines for the child-process transport.
const (
	// InitTimeout bounds the initialize exchange with a fresh child.
	InitTimeout = 20 * time.Second

	// DefaultToolTimeout bounds a single tools/call round trip.
	DefaultToolTimeout = 90 * time.Second
)

// Stdio spawns the worker binary per tool call and speaks MCP over the
// child's stdin/stdout. Stderr is log material only; the SDK reaps the
// child when the session closes.
type Stdio struct {
	binary      string
	toolTimeout time.Duration
	logger      *slog.Logger
}

// NewStdio builds the child-process transport. Zero toolTimeout and nil
// logger get production defaults.
func NewStdio(binary string, toolTimeout time.Duration, logger *slog.Logger) *Stdio {
	if toolTimeout <= 0 {
		toolTimeout = DefaultToolTimeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Stdio{binary: binary, toolTimeout: toolTimeout, logger: logger}
}

// CallTool spawns `<binary> worker --basket <server>`, performs the MCP
// initialize handshake, issues one tools/call, and tears the child down.
func (s *Stdio) CallTool(ctx context.Context, server, tool string, args map[string]any) (map[string]any, error) {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "equityscope-aggregator",
		Version: version.Version,
	}, nil)

	cmd := exec.Command(s.binary, "worker", "--basket", server)

	initCtx, cancelInit := context.WithTimeout(ctx, InitTimeout)
	defer cancelInit()

	session, err := client.Connect(initCtx, &mcpsdk.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrTransport, server, err)
	}

	defer func() {
		closeErr := session.Close()
		if closeErr != nil {
			s.logger.Debug("worker session close failed",
				"server", server, "error", closeErr)
		}
	}()

	callCtx, cancelCall := context.WithTimeout(ctx, s.toolTimeout)
	defer cancelCall()

	result, err := session.CallTool(callCtx, &mcpsdk.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: call %s/%s: %v", ErrTransport, server, tool, err)
	}

	return decodeResult(result)
}
