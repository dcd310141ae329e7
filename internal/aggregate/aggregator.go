package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/transport"
)

// topContentItems caps the content items retained on news and sentiment
// results after the newest-first sort.
const topContentItems = 10

// basketCall binds one basket to the worker server and tool the
// aggregator drives it with.
type basketCall struct {
	id     string
	server string
	tool   string
	args   func(ticker, company string) map[string]any
}

func tickerArgs(ticker, _ string) map[string]any {
	return map[string]any{"ticker": ticker}
}

func companyArgs(ticker, company string) map[string]any {
	return map[string]any{"ticker": ticker, "company_name": company}
}

// basketCalls drives the baskets in the fixed collection order. Macro
// context is company-independent, so its call carries no arguments.
var basketCalls = []basketCall{
	{id: model.BasketFundamentals, server: "fundamentals-basket", tool: "get_all_sources_fundamentals", args: tickerArgs},
	{id: model.BasketValuation, server: "valuation-basket", tool: "get_all_sources_valuation", args: tickerArgs},
	{id: model.BasketVolatility, server: "volatility-basket", tool: "get_all_sources_volatility", args: tickerArgs},
	{id: model.BasketMacro, server: "macro-basket", tool: "get_all_sources_macro", args: func(_, _ string) map[string]any { return map[string]any{} }},
	{id: model.BasketNews, server: "news-basket", tool: "search_company_news", args: companyArgs},
	{id: model.BasketSentiment, server: "sentiment-basket", tool: "get_sentiment_basket", args: companyArgs},
}

// multiSourceKeys names the comparison copies the artifact carries for
// the metric baskets.
var multiSourceKeys = map[string]string{
	model.BasketFundamentals: "fundamentals_all",
	model.BasketValuation:    "valuation_all",
	model.BasketMacro:        "macro_all",
	model.BasketVolatility:   "volatility_all",
}

// Config tunes one aggregation run.
type Config struct {
	// ToolTimeout bounds each worker tool call. The whole run is capped
	// at twice the timeout per basket.
	ToolTimeout time.Duration

	// MetricDelay paces successive metric events on the progress stream.
	MetricDelay time.Duration
}

// Aggregator collects the six research baskets for one company in a
// fixed order and assembles the research artifact.
type Aggregator struct {
	caller transport.Caller
	logger *slog.Logger
	cfg    Config
}

// New builds an aggregator over the given worker transport.
func New(caller transport.Caller, cfg Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{caller: caller, logger: logger, cfg: cfg}
}

// Run collects every basket once, retrying each failed call a single
// time, and builds the artifact. Failed baskets land in sources_failed
// with an error envelope; the run itself fails only on cancellation,
// which is honored at basket boundaries.
func (a *Aggregator) Run(ctx context.Context, ticker, company string, sink Sink) (*model.ResearchArtifact, error) {
	if a.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(len(basketCalls))*a.cfg.ToolTimeout*2)
		defer cancel()
	}

	artifact := &model.ResearchArtifact{
		Ticker:             ticker,
		CompanyName:        company,
		SourcesAvailable:   []string{},
		SourcesFailed:      []string{},
		Metrics:            map[string]*model.BasketResult{},
		MultiSource:        map[string]*model.BasketResult{},
		ConflictResolution: map[string][]model.ConflictRecord{},
	}

	for _, call := range basketCalls {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("aggregation stopped before %s: %w", call.id, err)
		}

		a.collect(ctx, call, ticker, company, artifact, sink)
	}

	artifact.Completeness = ScoreCompleteness(artifact.Metrics)
	artifact.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	return artifact, nil
}

// collect runs one basket end to end: call with one retry, normalize,
// validate, trim, detect conflicts, merge SWOT, and stream metrics.
func (a *Aggregator) collect(ctx context.Context, call basketCall, ticker, company string, artifact *model.ResearchArtifact, sink Sink) {
	payload, err := a.callWithRetry(ctx, call, call.args(ticker, company))
	if err != nil {
		a.logger.Warn("basket failed after retry",
			slog.String("basket", call.id),
			slog.String("error", err.Error()))

		artifact.SourcesFailed = append(artifact.SourcesFailed, call.id)
		artifact.Metrics[call.id] = &model.BasketResult{
			Ticker:  ticker,
			Error:   err.Error(),
			Retried: true,
		}

		return
	}

	result := Normalize(call.id, payload)
	result.Showing = len(result.Items)

	a.validate(call.id, result)
	trimContent(result)

	if conflicts := DetectConflicts(call.id, result); len(conflicts) > 0 {
		artifact.ConflictResolution[call.id] = conflicts
	}

	if result.SWOT != nil {
		artifact.AggregatedSWOT.Merge(*result.SWOT)
	}

	artifact.SourcesAvailable = append(artifact.SourcesAvailable, call.id)
	artifact.Metrics[call.id] = result

	if key, ok := multiSourceKeys[call.id]; ok {
		artifact.MultiSource[key] = result
	}

	a.stream(ctx, call.id, result, sink)
}

// callWithRetry performs the basket tool call, retrying exactly once on
// a transport error or an error payload.
func (a *Aggregator) callWithRetry(ctx context.Context, call basketCall, args map[string]any) (map[string]any, error) {
	payload, err := a.caller.CallTool(ctx, call.server, call.tool, args)
	if err == nil && !transport.HasError(payload) {
		return payload, nil
	}

	if err != nil {
		a.logger.Debug("basket call errored, retrying",
			slog.String("basket", call.id),
			slog.String("error", err.Error()))
	} else {
		a.logger.Debug("basket returned error payload, retrying",
			slog.String("basket", call.id),
			slog.String("error", transport.ErrorMessage(payload)))
	}

	payload, err = a.caller.CallTool(ctx, call.server, call.tool, args)
	if err != nil {
		return nil, err
	}

	if transport.HasError(payload) {
		return nil, fmt.Errorf("%s: %s", call.tool, transport.ErrorMessage(payload))
	}

	return payload, nil
}

func (a *Aggregator) validate(basketID string, result *model.BasketResult) {
	payload, err := decodeLoose(result)
	if err != nil {
		return
	}

	issues, err := ValidateEnvelope(payload)
	if err != nil {
		a.logger.Debug("envelope validation unavailable", slog.String("error", err.Error()))

		return
	}

	for _, issue := range issues {
		a.logger.Warn("envelope violation",
			slog.String("basket", basketID),
			slog.String("issue", issue))
	}
}

// stream projects the result into metric events and emits them with the
// configured pacing. Cancellation stops the stream mid-basket; the
// artifact itself is already recorded.
func (a *Aggregator) stream(ctx context.Context, basketID string, result *model.BasketResult, sink Sink) {
	if sink == nil {
		return
	}

	for _, event := range Project(basketID, result) {
		sink.Emit(event)

		if a.cfg.MetricDelay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.MetricDelay):
		}
	}
}

// trimContent keeps the newest items on a content result, recording how
// many the full merge held.
func trimContent(result *model.BasketResult) {
	if len(result.Items) == 0 {
		return
	}

	result.TotalItems = len(result.Items)

	if len(result.Items) > topContentItems {
		result.Items = result.Items[:topContentItems]
	}

	result.Showing = len(result.Items)
}
