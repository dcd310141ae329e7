// Package macro implements the macro basket: GDP growth, interest
// rates, CPI inflation and unemployment from FRED, with historical-
// average defaults when the series are unavailable.
package macro

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/sources/fred"
)

// ServerName identifies this basket in tool responses.
const ServerName = "macro-basket"

// Source labels.
const (
	SourceFRED = "FRED (Federal Reserve)"
	// SourceEstimated marks defaulted metrics; the prefix is what
	// downstream fallback detection keys on.
	SourceEstimated = model.HistoricalAverageSource + " (estimated)"
)

const fallbackReason = "FRED API unavailable"

// Observation windows per series.
const (
	gdpLimit          = 8
	ratesLimit        = 12
	cpiLimit          = 13 // thirteen months covers the year-over-year pair
	unemploymentLimit = 12
)

const fedInflationTarget = 2.0

// Deps holds the injectable collaborators. Nil Logger and Now get
// production defaults.
type Deps struct {
	FRED   *fred.Client
	Logger *slog.Logger
	Now    func() time.Time
}

// Basket is the macro tool provider.
type Basket struct {
	fred   *fred.Client
	logger *slog.Logger
	now    func() time.Time
}

// New builds the basket from deps.
func New(deps Deps) *Basket {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Basket{fred: deps.FRED, logger: logger, now: now}
}

// Tools returns the basket's tool set. Macro indicators are market-wide,
// so no tool takes a ticker.
func (b *Basket) Tools() *basket.Set {
	return &basket.Set{
		Server: ServerName,
		Tools: []basket.Tool{
			{
				Name:        "get_gdp",
				Description: "Get real GDP growth rate. Indicates economic expansion or contraction.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
					return b.GDPGrowth(ctx), nil
				},
			},
			{
				Name:        "get_interest_rates",
				Description: "Get Federal Funds Rate. Indicates cost of borrowing and monetary policy stance.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
					return b.InterestRates(ctx), nil
				},
			},
			{
				Name:        "get_cpi",
				Description: "Get Consumer Price Index and year-over-year inflation rate.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
					return b.CPI(ctx), nil
				},
			},
			{
				Name:        "get_unemployment",
				Description: "Get unemployment rate. Indicates labor market health.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
					return b.Unemployment(ctx), nil
				},
			},
			{
				Name:        "get_macro_basket",
				Description: "Get full macro basket (GDP, rates, CPI, unemployment) with aggregated SWOT summary.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
					return b.MacroBasket(ctx), nil
				},
			},
			{
				Name:        "get_all_sources_macro",
				Description: "Get macro indicators from ALL sources for side-by-side comparison.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
					return b.AllSources(ctx), nil
				},
			},
		},
	}
}

// GDPGrowth returns the latest real GDP growth rate. Never fails: the
// long-run 2.5% average stands in when FRED is unavailable.
func (b *Basket) GDPGrowth(ctx context.Context) map[string]any {
	series, err := b.observations(ctx, fred.SeriesGDPGrowth, gdpLimit)
	if err != nil {
		b.logger.Warn("FRED GDP unavailable, using default", "error", err)

		return b.defaultMetric("GDP Growth", 2.5, "% change (quarterly, annualized)",
			"Moderate growth - Stable economic conditions (estimated)", basket.CategoryNeutral)
	}

	value, date, _ := series.Latest()

	interpretation, category := interpretGDP(value)

	payload := map[string]any{
		"metric":         "GDP Growth",
		"value":          round2(value),
		"unit":           "% change (quarterly, annualized)",
		"date":           date,
		"previous_value": nil,
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceFRED,
		"as_of":          basket.Date(b.now()),
	}

	if previous, ok := series.Previous(); ok {
		payload["previous_value"] = round2(previous)
	}

	return payload
}

func interpretGDP(value float64) (string, string) {
	switch {
	case value > 3:
		return "Strong economic growth - Favorable business environment", basket.CategoryOpportunity
	case value > 1:
		return "Moderate growth - Stable economic conditions", basket.CategoryNeutral
	case value > 0:
		return "Slow growth - Cautious economic outlook", basket.CategoryThreat
	case value > -2:
		return "Economic contraction - Recessionary conditions", basket.CategoryThreat
	default:
		return "Severe contraction - Deep recession", basket.CategorySevereThreat
	}
}

// InterestRates returns the latest federal funds rate with its recent
// trend. Never fails.
func (b *Basket) InterestRates(ctx context.Context) map[string]any {
	series, err := b.observations(ctx, fred.SeriesFedFunds, ratesLimit)
	if err != nil {
		b.logger.Warn("FRED rates unavailable, using default", "error", err)

		payload := b.defaultMetric("Federal Funds Rate", 5.0, "%",
			"High interest rates - Tight monetary policy (estimated)", basket.CategoryNeutral)
		payload["trend"] = "stable"

		return payload
	}

	value, date, _ := series.Latest()
	previous, hasPrevious := series.Previous()

	trend := "stable"

	switch {
	case hasPrevious && value > previous+0.1:
		trend = "rising"
	case hasPrevious && value < previous-0.1:
		trend = "falling"
	}

	interpretation, category := interpretRates(value, trend)

	payload := map[string]any{
		"metric":         "Federal Funds Rate",
		"value":          round2(value),
		"unit":           "%",
		"date":           date,
		"previous_value": nil,
		"trend":          trend,
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceFRED,
		"as_of":          basket.Date(b.now()),
	}

	if hasPrevious {
		payload["previous_value"] = round2(previous)
	}

	return payload
}

func interpretRates(value float64, trend string) (string, string) {
	switch {
	case value > 5:
		return fmt.Sprintf("High interest rates (%s) - Tight monetary policy, higher borrowing costs", trend),
			basket.CategoryThreat
	case value > 3:
		return fmt.Sprintf("Moderate rates (%s) - Balanced monetary policy", trend),
			basket.CategoryNeutral
	case value > 1:
		return fmt.Sprintf("Low rates (%s) - Accommodative policy, favorable for borrowing", trend),
			basket.CategoryOpportunity
	default:
		return fmt.Sprintf("Near-zero rates (%s) - Highly accommodative, may signal economic stress", trend),
			basket.CategoryNeutral
	}
}

// CPI returns year-over-year inflation derived from the CPI index
// level: the latest observation against the one twelve months back.
// Never fails.
func (b *Basket) CPI(ctx context.Context) map[string]any {
	series, err := b.observations(ctx, fred.SeriesCPI, cpiLimit)
	if err != nil {
		b.logger.Warn("FRED CPI unavailable, using default", "error", err)

		payload := b.defaultMetric("CPI / Inflation", 3.0, "% YoY",
			"Moderate inflation - Near Fed target (estimated)", basket.CategoryNeutral)
		payload["fed_target"] = fedInflationTarget

		return payload
	}

	current, date, ok := series.Latest()
	yearAgo, yearAgoOK := series.At(11)

	if !yearAgoOK {
		// Short series: compare against the oldest valid observation.
		yearAgo, yearAgoOK = oldestValid(series)
	}

	if !ok || !yearAgoOK || yearAgo == 0 {
		b.logger.Warn("insufficient CPI observations, using default")

		payload := b.defaultMetric("CPI / Inflation", 3.0, "% YoY",
			"Moderate inflation - Near Fed target (estimated)", basket.CategoryNeutral)
		payload["fed_target"] = fedInflationTarget

		return payload
	}

	yoy := (current - yearAgo) / yearAgo * 100

	interpretation, category := interpretCPI(yoy)

	return map[string]any{
		"metric":         "CPI / Inflation",
		"value":          round2(yoy),
		"unit":           "% YoY",
		"date":           date,
		"fed_target":     fedInflationTarget,
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceFRED,
		"as_of":          basket.Date(b.now()),
	}
}

func interpretCPI(yoy float64) (string, string) {
	switch {
	case yoy > 6:
		return "High inflation - Eroding purchasing power, cost pressures", basket.CategoryThreat
	case yoy > 4:
		return "Elevated inflation - Above target, potential rate hikes", basket.CategoryThreat
	case yoy > 2:
		return "Moderate inflation - Near Fed target (2%)", basket.CategoryNeutral
	case yoy > 0:
		return "Low inflation - Subdued price pressures", basket.CategoryOpportunity
	default:
		return "Deflation - Falling prices, potential economic weakness", basket.CategoryThreat
	}
}

// Unemployment returns the latest unemployment rate with its recent
// trend. Never fails.
func (b *Basket) Unemployment(ctx context.Context) map[string]any {
	series, err := b.observations(ctx, fred.SeriesUnemployment, unemploymentLimit)
	if err != nil {
		b.logger.Warn("FRED unemployment unavailable, using default", "error", err)

		payload := b.defaultMetric("Unemployment Rate", 4.0, "%",
			"Low unemployment - Tight labor market (estimated)", basket.CategoryOpportunity)
		payload["trend"] = "stable"

		return payload
	}

	value, date, _ := series.Latest()
	previous, hasPrevious := series.Previous()

	trend := "stable"

	switch {
	case hasPrevious && value > previous+0.2:
		trend = "rising"
	case hasPrevious && value < previous-0.2:
		trend = "falling"
	}

	interpretation, category := interpretUnemployment(value, trend)

	payload := map[string]any{
		"metric":         "Unemployment Rate",
		"value":          round1(value),
		"unit":           "%",
		"date":           date,
		"previous_value": nil,
		"trend":          trend,
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceFRED,
		"as_of":          basket.Date(b.now()),
	}

	if hasPrevious {
		payload["previous_value"] = round1(previous)
	}

	return payload
}

func interpretUnemployment(value float64, trend string) (string, string) {
	switch {
	case value < 4:
		category := basket.CategoryOpportunity
		if trend == "rising" {
			category = basket.CategoryNeutral
		}

		return fmt.Sprintf("Low unemployment (%s) - Tight labor market, wage pressures", trend), category
	case value < 5:
		return fmt.Sprintf("Normal unemployment (%s) - Healthy labor market", trend), basket.CategoryNeutral
	case value < 7:
		return fmt.Sprintf("Elevated unemployment (%s) - Labor market slack", trend), basket.CategoryThreat
	default:
		return fmt.Sprintf("High unemployment (%s) - Weak labor market, recessionary", trend), basket.CategorySevereThreat
	}
}

// MacroBasket assembles all four indicators with an aggregated SWOT
// summary and an overall economic assessment.
func (b *Basket) MacroBasket(ctx context.Context) map[string]any {
	gdp := b.GDPGrowth(ctx)
	rates := b.InterestRates(ctx)
	cpi := b.CPI(ctx)
	unemployment := b.Unemployment(ctx)

	swot := model.SWOTSummary{
		Strengths:     []string{},
		Weaknesses:    []string{},
		Opportunities: []string{},
		Threats:       []string{},
	}

	for _, metric := range []map[string]any{gdp, rates, cpi, unemployment} {
		desc := metricDescription(metric)

		switch metric["swot_category"] {
		case basket.CategoryOpportunity:
			swot.Opportunities = append(swot.Opportunities, desc)
		case basket.CategoryThreat, basket.CategorySevereThreat:
			swot.Threats = append(swot.Threats, desc)
		}
	}

	overall := "Neutral macroeconomic conditions"

	switch {
	case len(swot.Threats) >= 3:
		overall = "Challenging macroeconomic environment"
	case len(swot.Threats) >= 2:
		overall = "Mixed macroeconomic conditions with headwinds"
	case len(swot.Opportunities) >= 2:
		overall = "Favorable macroeconomic environment"
	}

	return map[string]any{
		"basket": "Macro Indicators",
		"metrics": map[string]any{
			"gdp_growth":    gdp,
			"interest_rate": rates,
			"cpi_inflation": cpi,
			"unemployment":  unemployment,
		},
		"overall_assessment": overall,
		"swot_summary":       swot,
		"generated_at":       basket.Date(b.now()),
	}
}

// AllSources builds the raw_metrics envelope. Macro data is market-wide,
// so the envelope carries the fixed ticker "MACRO".
func (b *Basket) AllSources(ctx context.Context) *model.BasketResult {
	asOf := basket.Date(b.now())

	gdp := b.GDPGrowth(ctx)
	rates := b.InterestRates(ctx)
	cpi := b.CPI(ctx)
	unemployment := b.Unemployment(ctx)

	return &model.BasketResult{
		Group:  model.GroupRawMetrics,
		Ticker: "MACRO",
		Sources: map[string]model.SourceEntry{
			"fred": {
				Source: SourceFRED,
				AsOf:   asOf,
				Data: map[string]any{
					"gdp_growth":    rawMetric(gdp, model.DataTypeQuarterly),
					"interest_rate": rawMetric(rates, model.DataTypeMonthly),
					"cpi_inflation": rawMetric(cpi, model.DataTypeMonthly),
					"unemployment":  rawMetric(unemployment, model.DataTypeMonthly),
				},
			},
		},
		Source: ServerName,
		AsOf:   asOf,
	}
}

func rawMetric(metric map[string]any, dataType string) map[string]any {
	fallback := false
	if v, ok := metric["fallback"].(bool); ok {
		fallback = v
	}

	asOf := metric["date"]
	if asOf == nil {
		asOf = metric["as_of"]
	}

	return map[string]any{
		"value":     metric["value"],
		"data_type": dataType,
		"as_of":     asOf,
		"source":    metric["source"],
		"fallback":  fallback,
	}
}

// metricDescription renders "Metric: value<unit> - interpretation" for
// the SWOT lists.
func metricDescription(metric map[string]any) string {
	value := "N/A"
	if v, ok := metric["value"].(float64); ok {
		value = strconv.FormatFloat(v, 'f', -1, 64)
	}

	unit, _ := metric["unit"].(string)

	return fmt.Sprintf("%v: %s%s - %v", metric["metric"], value, unit, metric["interpretation"])
}

func (b *Basket) defaultMetric(name string, value float64, unit, interpretation, category string) map[string]any {
	return map[string]any{
		"metric":          name,
		"value":           value,
		"unit":            unit,
		"date":            nil,
		"previous_value":  nil,
		"interpretation":  interpretation,
		"swot_category":   category,
		"source":          SourceEstimated,
		"fallback":        true,
		"fallback_reason": fallbackReason,
		"estimated":       true,
		"as_of":           basket.Date(b.now()),
	}
}

func (b *Basket) observations(ctx context.Context, seriesID string, limit int) (*fred.Series, error) {
	if b.fred == nil {
		return nil, fred.ErrNoKey
	}

	series, err := b.fred.Observations(ctx, seriesID, limit)
	if err != nil {
		return nil, err
	}

	if _, _, ok := series.Latest(); !ok {
		return nil, fmt.Errorf("fred: no valid observations for %s", seriesID)
	}

	return series, nil
}

func oldestValid(series *fred.Series) (float64, bool) {
	value := 0.0
	found := false

	for _, obs := range series.Observations {
		if v, ok := obs.Float(); ok {
			value = v
			found = true
		}
	}

	return value, found
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }
