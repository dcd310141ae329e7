package aggregate

import (
	"sort"
	"strings"

	"github.com/equityscope/equityscope/internal/model"
)

// Normalizer bridges one basket's wire payload into the canonical
// sources envelope. Two schemas coexist upstream: the sources form
// (fundamentals, valuation) and the legacy flat-metrics form
// (volatility, macro); content baskets carry item lists. The canonical
// form all downstream consumers see is the sources envelope.
type Normalizer func(payload map[string]any) *model.BasketResult

// normalizers keys each basket to its bridge.
var normalizers = map[string]Normalizer{
	model.BasketFundamentals: normalizeSources,
	model.BasketValuation:    normalizeSources,
	model.BasketVolatility:   normalizeVolatility,
	model.BasketMacro:        normalizeMacro,
	model.BasketNews:         normalizeNews,
	model.BasketSentiment:    normalizeSentiment,
}

// Normalize bridges a basket payload into the canonical envelope. The
// result always carries at least one source entry.
func Normalize(basketID string, payload map[string]any) *model.BasketResult {
	normalize, ok := normalizers[basketID]
	if !ok {
		normalize = normalizeSources
	}

	result := normalize(payload)
	ensureFallbackEntry(result)

	return result
}

// ensureFallbackEntry enforces the always-respond invariant at the
// aggregator boundary: a result with no source entries gets the single
// minimal-fallback entry with null data.
func ensureFallbackEntry(result *model.BasketResult) {
	if len(result.Sources) > 0 {
		return
	}

	result.Sources = map[string]model.SourceEntry{
		"minimal_fallback": {
			Source: model.MinimalFallbackSource,
			AsOf:   result.AsOf,
			Data:   map[string]any{},
		},
	}
}

// normalizeSources decodes a payload already in the sources form.
func normalizeSources(payload map[string]any) *model.BasketResult {
	result, err := decodeBasketResult(payload)
	if err != nil || result == nil {
		return looseEnvelope(payload)
	}

	return result
}

// normalizeVolatility decodes the sources form, bridging the legacy
// {"metrics": {...}} shape when a worker still speaks it: VIX and VXN
// become the market-context source, the stock metrics the Yahoo source.
func normalizeVolatility(payload map[string]any) *model.BasketResult {
	if _, legacy := payload["metrics"]; !legacy {
		return normalizeSources(payload)
	}

	metrics := nestedMap(payload, "metrics")
	result := looseEnvelope(payload)

	result.Group = model.GroupRawMetrics
	result.Sources = map[string]model.SourceEntry{
		"fred": {
			Source: "FRED",
			AsOf:   result.AsOf,
			Data: map[string]any{
				"vix": metrics["vix"],
				"vxn": metrics["vxn"],
			},
		},
		"yahoo_finance": {
			Source: "Yahoo Finance",
			AsOf:   result.AsOf,
			Data: map[string]any{
				"beta":                  metrics["beta"],
				"historical_volatility": metrics["historical_volatility"],
				"implied_volatility":    metrics["implied_volatility"],
			},
		},
	}

	return result
}

// normalizeMacro decodes the sources form, bridging the legacy flat
// shape into a single reserve-bank source entry.
func normalizeMacro(payload map[string]any) *model.BasketResult {
	if _, legacy := payload["metrics"]; !legacy {
		return normalizeSources(payload)
	}

	metrics := nestedMap(payload, "metrics")
	result := looseEnvelope(payload)

	result.Group = model.GroupRawMetrics
	result.Sources = map[string]model.SourceEntry{
		"fred": {
			Source: "FRED",
			AsOf:   result.AsOf,
			Data: map[string]any{
				"gdp_growth":    metrics["gdp_growth"],
				"interest_rate": metrics["interest_rate"],
				"cpi_inflation": metrics["cpi_inflation"],
				"unemployment":  metrics["unemployment"],
			},
		},
	}

	return result
}

// normalizeNews reshapes the merged search payload: result entries
// become content items grouped per provider, and signal hints map onto
// the SWOT envelope.
func normalizeNews(payload map[string]any) *model.BasketResult {
	result := looseEnvelope(payload)
	result.Group = model.GroupContentAnalysis

	rawItems, _ := payload["results"].([]any)

	items := make([]model.ContentItem, 0, len(rawItems))

	for _, raw := range rawItems {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		source, _ := entry["source"].(string)
		if source == "" {
			source = "Tavily"
		}

		datetime, _ := entry["published_date"].(string)

		items = append(items, model.ContentItem{
			Title:    asStr(entry["title"]),
			Content:  asStr(entry["content"]),
			URL:      asStr(entry["url"]),
			Datetime: datetime,
			Source:   source,
		})
	}

	sortItems(items)

	result.Items = items
	result.TotalItems = len(items)
	result.Sources = contentSources(items, result.AsOf, "news")

	hints := nestedMap(payload, "swot_hints")
	if len(hints) > 0 {
		result.SWOT = &model.SWOTSummary{
			Strengths:     strList(hints["strengths"]),
			Weaknesses:    strList(hints["weaknesses"]),
			Opportunities: strList(hints["opportunities"]),
			Threats:       strList(hints["threats"]),
		}
	}

	return result
}

// normalizeSentiment reshapes the merged retail-content payload.
func normalizeSentiment(payload map[string]any) *model.BasketResult {
	result := looseEnvelope(payload)
	result.Group = model.GroupContentAnalysis

	rawItems, _ := payload["items"].([]any)

	items := make([]model.ContentItem, 0, len(rawItems))

	for _, raw := range rawItems {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		items = append(items, model.ContentItem{
			Title:     asStr(entry["title"]),
			Content:   asStr(entry["content"]),
			URL:       asStr(entry["url"]),
			Datetime:  asStr(entry["datetime"]),
			Source:    asStr(entry["source"]),
			Subreddit: asStr(entry["subreddit"]),
		})
	}

	sortItems(items)

	result.Items = items
	result.TotalItems = len(items)
	result.Sources = contentSources(items, result.AsOf, "sentiment")

	return result
}

// contentSources groups content items into one source entry per
// provider. An empty merge yields no entries; the minimal-fallback rule
// fills the envelope.
func contentSources(items []model.ContentItem, asOf, kind string) map[string]model.SourceEntry {
	grouped := map[string][]model.ContentItem{}

	for _, item := range items {
		source := item.Source
		if source == "" {
			source = kind
		}

		grouped[source] = append(grouped[source], item)
	}

	sources := map[string]model.SourceEntry{}

	for source, group := range grouped {
		key := strings.ReplaceAll(strings.ToLower(source), " ", "_")

		sources[key] = model.SourceEntry{
			Source: source,
			AsOf:   asOf,
			Data:   map[string]any{"items": group},
		}
	}

	return sources
}

// sortItems orders content newest first; undated items sink to the end.
func sortItems(items []model.ContentItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return itemDate(items[i]) > itemDate(items[j])
	})
}

func itemDate(item model.ContentItem) string {
	if item.Datetime == "" {
		return "1970-01-01"
	}

	return item.Datetime
}

// looseEnvelope builds a bare result from the common envelope fields of
// any payload shape.
func looseEnvelope(payload map[string]any) *model.BasketResult {
	return &model.BasketResult{
		Ticker: asStr(payload["ticker"]),
		Source: asStr(payload["source"]),
		AsOf:   asStr(payload["as_of"]),
	}
}

func asStr(v any) string {
	s, _ := v.(string)

	return s
}

func strList(v any) []string {
	raw, _ := v.([]any)

	list := make([]string, 0, len(raw))

	for _, entry := range raw {
		if s, ok := entry.(string); ok {
			list = append(list, s)
		}
	}

	return list
}
