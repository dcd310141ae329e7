package aggregate

import (
	"github.com/equityscope/equityscope/internal/model"
)

// Sink receives metric events as a basket's normalized result is
// projected. The task manager stamps timestamps at receive time.
type Sink interface {
	Emit(event model.MetricEvent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(event model.MetricEvent)

// Emit calls f.
func (f SinkFunc) Emit(event model.MetricEvent) { f(event) }

// candidate is one provider's data keyed by its display name, in
// preference order.
type candidate struct {
	label string
	data  map[string]any
}

// projection maps one basket field onto its user-visible metric name.
type projection struct {
	field  string
	metric string
}

// fundamentalsProjections prefer the filing-derived source over the
// market-data supplement.
var fundamentalsProjections = []projection{
	{field: "revenue", metric: "revenue"},
	{field: "net_margin_pct", metric: "net_margin"},
	{field: "eps", metric: "EPS"},
	{field: "debt_to_equity", metric: "debt_to_equity"},
}

var valuationProjections = []projection{
	{field: "trailing_pe", metric: "P/E"},
	{field: "pb_ratio", metric: "P/B"},
	{field: "ps_ratio", metric: "P/S"},
	{field: "ev_ebitda", metric: "EV/EBITDA"},
}

var volatilityProjections = []projection{
	{field: "vix", metric: "VIX"},
	{field: "beta", metric: "beta"},
	{field: "historical_volatility", metric: "hist_vol"},
}

var macroProjections = []projection{
	{field: "gdp_growth", metric: "GDP_growth"},
	{field: "interest_rate", metric: "interest_rate"},
	{field: "cpi_inflation", metric: "inflation"},
	{field: "unemployment", metric: "unemployment"},
}

// Project flattens a normalized basket result into the ordered metric
// events the task stream carries. Content baskets project a count, or a
// status line when the merge came back empty.
func Project(basketID string, result *model.BasketResult) []model.MetricEvent {
	if result == nil {
		return nil
	}

	switch basketID {
	case model.BasketFundamentals:
		return projectMetrics(fundamentalsProjections, candidates(result, "sec_edgar", "yahoo_finance"))
	case model.BasketValuation:
		return projectMetrics(valuationProjections, candidates(result, "yahoo_finance", "alpha_vantage", "market_averages"))
	case model.BasketVolatility:
		return projectMetrics(volatilityProjections, candidates(result, "fred", "yahoo_finance", "alpha_vantage", "minimal_fallback"))
	case model.BasketMacro:
		return projectMetrics(macroProjections, candidates(result, "fred", "historical_averages", "minimal_fallback"))
	case model.BasketNews:
		return projectContent(result, "No recent news found")
	case model.BasketSentiment:
		return projectContent(result, "No sentiment content found")
	default:
		return nil
	}
}

// candidates resolves source entries in preference order, skipping
// absent ones, then appends any entries not named so no provider's data
// is unreachable.
func candidates(result *model.BasketResult, preferred ...string) []candidate {
	seen := map[string]bool{}
	list := make([]candidate, 0, len(result.Sources))

	for _, key := range preferred {
		entry, ok := result.Sources[key]
		if !ok {
			continue
		}

		seen[key] = true

		list = append(list, candidate{label: sourceLabel(entry, key), data: entry.Data})
	}

	for key, entry := range result.Sources {
		if seen[key] {
			continue
		}

		list = append(list, candidate{label: sourceLabel(entry, key), data: entry.Data})
	}

	return list
}

func sourceLabel(entry model.SourceEntry, key string) string {
	if entry.Source != "" {
		return entry.Source
	}

	return key
}

// projectMetrics emits one event per projection, taking each metric
// from the first candidate that carries it.
func projectMetrics(projections []projection, sources []candidate) []model.MetricEvent {
	events := make([]model.MetricEvent, 0, len(projections))

	for _, p := range projections {
		for _, c := range sources {
			leaf, ok := c.data[p.field]
			if !ok || !present(leaf) {
				continue
			}

			events = append(events, metricEvent(c.label, p.metric, leaf))

			break
		}
	}

	return events
}

// projectContent emits the item count, or a status line when the basket
// found nothing.
func projectContent(result *model.BasketResult, emptyStatus string) []model.MetricEvent {
	source := result.Source
	if source == "" || source == "None" {
		for _, entry := range result.Sources {
			if entry.Source != "" {
				source = entry.Source

				break
			}
		}
	}

	if result.TotalItems == 0 {
		return []model.MetricEvent{{Source: source, Metric: "status", Value: emptyStatus}}
	}

	return []model.MetricEvent{{Source: source, Metric: "items_found", Value: result.TotalItems}}
}

// metricEvent builds one event from a metric leaf, keeping the scalar
// value and the leaf's temporal provenance when it has any.
func metricEvent(source, metric string, leaf any) model.MetricEvent {
	event := model.MetricEvent{Source: source, Metric: metric, Value: leaf}

	if scalar, ok := metricScalar(leaf); ok {
		event.Value = scalar
	}

	endDate, fiscalYear, form := metricMeta(leaf)
	event.EndDate = endDate
	event.FiscalYear = fiscalYear
	event.Form = form

	return event
}
