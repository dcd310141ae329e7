package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/pkg/observability"
	"github.com/equityscope/equityscope/pkg/version"
)

// ToolArgs is the shared argument surface of every basket tool. Tools
// read only the fields they declare; the rest stay at their zero value.
type ToolArgs struct {
	Ticker      string   `json:"ticker,omitempty"       jsonschema:"stock ticker symbol (e.g. TSLA)"`
	CompanyName string   `json:"company_name,omitempty" jsonschema:"company display name used to widen searches"`
	Industry    string   `json:"industry,omitempty"     jsonschema:"industry label for trend searches"`
	Query       string   `json:"query,omitempty"        jsonschema:"free-form search query"`
	SearchDepth string   `json:"search_depth,omitempty" jsonschema:"web search depth (basic or advanced)"`
	Sort        string   `json:"sort,omitempty"         jsonschema:"archive result ordering (newest or relevance)"`
	MaxResults  int      `json:"max_results,omitempty"  jsonschema:"maximum search results to return"`
	Limit       int      `json:"limit,omitempty"        jsonschema:"maximum filings to return"`
	PeriodDays  int      `json:"period_days,omitempty"  jsonschema:"trailing window in days"`
	Competitors []string `json:"competitors,omitempty"  jsonschema:"competitor tickers for comparison searches"`
}

// toMap rebuilds the loose argument object the basket wrapper consumes,
// carrying only the fields the caller actually set.
func (a ToolArgs) toMap() map[string]any {
	args := map[string]any{}

	if a.Ticker != "" {
		args["ticker"] = a.Ticker
	}

	if a.CompanyName != "" {
		args["company_name"] = a.CompanyName
	}

	if a.Industry != "" {
		args["industry"] = a.Industry
	}

	if a.Query != "" {
		args["query"] = a.Query
	}

	if a.SearchDepth != "" {
		args["search_depth"] = a.SearchDepth
	}

	if a.Sort != "" {
		args["sort"] = a.Sort
	}

	if a.MaxResults != 0 {
		args["max_results"] = a.MaxResults
	}

	if a.Limit != 0 {
		args["limit"] = a.Limit
	}

	if a.PeriodDays != 0 {
		args["period_days"] = a.PeriodDays
	}

	if len(a.Competitors) != 0 {
		competitors := make([]any, len(a.Competitors))
		for i, c := range a.Competitors {
			competitors[i] = c
		}

		args["competitors"] = competitors
	}

	return args
}

// ToolOutput wraps a tool result as structured output.
type ToolOutput struct {
	Data any `json:"data"`
}

// ServerDeps holds injectable dependencies for the basket MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server exposes one basket's tool set over the MCP stdio protocol.
type Server struct {
	inner   *mcpsdk.Server
	set     *basket.Set
	logger  *slog.Logger
	metrics *observability.REDMetrics
	tracer  trace.Tracer
}

// NewServer creates an MCP server with the basket's tools registered.
func NewServer(set *basket.Set, deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := &mcpsdk.ServerOptions{Logger: logger}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    set.Server,
			Version: version.Version,
		},
		opts,
	)

	srv := &Server{
		inner:   inner,
		set:     set,
		logger:  logger,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ToolNames returns the registered tool names in catalog order.
func (s *Server) ToolNames() []string {
	names := make([]string, len(s.set.Tools))
	for i, tool := range s.set.Tools {
		names[i] = tool.Name
	}

	return names
}

// Run starts the server on stdio transport. It blocks until the context
// is canceled or the aggregator closes stdin.
func (s *Server) Run(ctx context.Context) error {
	err := s.inner.Run(ctx, &mcpsdk.StdioTransport{})
	if err != nil {
		return fmt.Errorf("basket mcp server: %w", err)
	}

	return nil
}

// RunWithTransport starts the server on the given transport. Tests use
// it with in-memory transports.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("basket mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	for _, tool := range s.set.Tools {
		mcpsdk.AddTool(s.inner, &mcpsdk.Tool{
			Name:        tool.Name,
			Description: tool.Description,
		}, s.handlerFor(tool.Name))
	}
}

// handlerFor adapts one basket tool to the SDK handler shape. The basket
// wrapper already guarantees a structured payload for every outcome, so
// the handler only encodes.
func (s *Server) handlerFor(name string) func(context.Context, *mcpsdk.CallToolRequest, ToolArgs) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, args ToolArgs) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, end := s.startSpan(ctx, name, args.Ticker)
		defer end()

		start := time.Now()
		result := s.set.Invoke(ctx, s.logger, name, args.toMap())

		if s.metrics != nil {
			status := "ok"
			if payload, ok := result.(map[string]any); ok {
				if _, failed := payload["error"]; failed {
					status = "error"
				}
			}

			s.metrics.RecordRequest(ctx, name, status, time.Since(start))
		}

		return jsonResult(result)
	}
}

// startSpan opens a per-call span when a tracer is configured.
func (s *Server) startSpan(ctx context.Context, tool, ticker string) (context.Context, func()) {
	if s.tracer == nil {
		return ctx, func() {}
	}

	ctx, span := s.tracer.Start(ctx, "worker."+tool, trace.WithAttributes(
		attribute.String("basket.server", s.set.Server),
		attribute.String("basket.tool", tool),
		attribute.String("basket.ticker", ticker),
	))

	return ctx, func() { span.End() }
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{
				&mcpsdk.TextContent{Text: fmt.Sprintf("encode result: %v", err)},
			},
			IsError: true,
		}, ToolOutput{}, nil
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
