// Package volatility implements the volatility basket: market volatility
// indices (VIX, VXN) from FRED with a Yahoo fallback, plus beta,
// historical volatility and implied volatility computed from price and
// options data.
package volatility

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/sources/alphavantage"
	"github.com/equityscope/equityscope/internal/sources/fred"
	"github.com/equityscope/equityscope/internal/sources/yahoo"
)

// ServerName identifies this basket in tool responses.
const ServerName = "volatility-basket"

// Source labels.
const (
	SourceFRED         = "FRED (Federal Reserve)"
	SourceYahoo        = "Yahoo Finance"
	SourceCalculated   = "Calculated from Yahoo Finance data"
	SourceYahooOptions = "Yahoo Finance Options"
	SourceAlphaVantage = "Alpha Vantage"
	// SourceEstimated marks defaulted metrics; the prefix is what
	// downstream fallback detection keys on.
	SourceEstimated = model.HistoricalAverageSource + " (estimated)"
)

const defaultHVPeriodDays = 30

// Deps holds the injectable collaborators. Nil Logger and Now get
// production defaults; nil FRED or AlphaVantage clients skip those legs.
type Deps struct {
	FRED         *fred.Client
	Yahoo        *yahoo.Client
	AlphaVantage *alphavantage.Client
	Logger       *slog.Logger
	Now          func() time.Time
}

// Basket is the volatility tool provider.
type Basket struct {
	fred   *fred.Client
	yahoo  *yahoo.Client
	av     *alphavantage.Client
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

	return &Basket{
		fred:   deps.FRED,
		yahoo:  deps.Yahoo,
		av:     deps.AlphaVantage,
		logger: logger,
		now:    now,
	}
}

// Tools returns the basket's tool set.
func (b *Basket) Tools() *basket.Set {
	return &basket.Set{
		Server: ServerName,
		Tools: []basket.Tool{
			{
				Name:        "get_vix",
				Description: "Get current VIX (S&P 500 Volatility Index) level with SWOT interpretation. Indicates market-wide fear/greed.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
					return b.VIX(ctx), nil
				},
			},
			{
				Name:        "get_vxn",
				Description: "Get current VXN (Nasdaq-100 Volatility Index) level with SWOT interpretation. Use for tech/Nasdaq stocks.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, _ map[string]any) (any, error) {
					return b.VXN(ctx), nil
				},
			},
			{
				Name:        "get_beta",
				Description: "Get Beta coefficient for a stock ticker. Measures volatility relative to market (S&P 500).",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.Beta(ctx, symbol), nil
				},
			},
			{
				Name:        "get_historical_volatility",
				Description: "Calculate historical volatility (annualized) from past price movements.",
				Handler: func(ctx context.Context, symbol string, args map[string]any) (any, error) {
					return b.HistoricalVolatility(ctx, symbol, basket.IntArg(args, "period_days", defaultHVPeriodDays)), nil
				},
			},
			{
				Name:        "get_implied_volatility",
				Description: "Get implied volatility from options market. Indicates expected future price movement.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.ImpliedVolatility(ctx, symbol), nil
				},
			},
			{
				Name:        "get_volatility_basket",
				Description: "Get full volatility basket (VIX, Beta, HV, IV) with aggregated SWOT summary for a ticker.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.VolatilityBasket(ctx, symbol), nil
				},
			},
			{
				Name:        "get_all_sources_volatility",
				Description: "Get volatility from ALL sources (Yahoo + Alpha Vantage) with VIX/VXN market context for side-by-side comparison.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.AllSources(ctx, symbol), nil
				},
			},
		},
	}
}

// indexReading is one market-index observation.
type indexReading struct {
	value          float64
	previousClose  float64
	source         string
	date           string
	fallback       bool
	fallbackReason string
}

// VIX returns the S&P 500 volatility index: FRED first, the Yahoo ^VIX
// chart on failure, a long-run average when both are down.
func (b *Basket) VIX(ctx context.Context) map[string]any {
	reading := b.marketIndex(ctx, fred.SeriesVIX, "^VIX", 20.0, "All VIX sources unavailable")

	interpretation, category := interpretVIX(reading.value)

	return b.indexPayload("VIX", "", reading, interpretation, category)
}

// VXN returns the Nasdaq-100 volatility index from FRED, with a slightly
// higher long-run default. There is no Yahoo fallback leg for VXN.
func (b *Basket) VXN(ctx context.Context) map[string]any {
	reading, err := b.fredIndex(ctx, fred.SeriesVXN)
	if err != nil {
		b.logger.Warn("FRED VXN unavailable, using default", "error", err)

		reading = indexReading{
			value:          22.0,
			previousClose:  22.0,
			source:         SourceEstimated,
			fallback:       true,
			fallbackReason: "All VXN sources unavailable",
		}
	}

	interpretation, category := interpretVXN(reading.value)

	return b.indexPayload("VXN", "Nasdaq-100 Volatility Index", reading, interpretation, category)
}

func (b *Basket) marketIndex(ctx context.Context, seriesID, yahooSymbol string, defaultValue float64, defaultReason string) indexReading {
	reading, err := b.fredIndex(ctx, seriesID)
	if err == nil {
		return reading
	}

	b.logger.Warn("FRED index unavailable, trying Yahoo", "series", seriesID, "error", err)

	chart, err := b.yahoo.Chart(ctx, yahooSymbol, "5d")
	if err == nil {
		previous := chart.PreviousClose
		if previous == 0 {
			previous = chart.RegularMarketPrice
		}

		return indexReading{
			value:         chart.RegularMarketPrice,
			previousClose: previous,
			source:        SourceYahoo,
		}
	}

	b.logger.Warn("Yahoo index unavailable, using default", "symbol", yahooSymbol, "error", err)

	return indexReading{
		value:          defaultValue,
		previousClose:  defaultValue,
		source:         SourceEstimated,
		fallback:       true,
		fallbackReason: defaultReason,
	}
}

func (b *Basket) fredIndex(ctx context.Context, seriesID string) (indexReading, error) {
	if b.fred == nil {
		return indexReading{}, fred.ErrNoKey
	}

	series, err := b.fred.Observations(ctx, seriesID, 5)
	if err != nil {
		return indexReading{}, err
	}

	value, date, ok := series.Latest()
	if !ok {
		return indexReading{}, fmt.Errorf("fred: no valid observations for %s", seriesID)
	}

	previous, ok := series.Previous()
	if !ok {
		previous = value
	}

	return indexReading{
		value:         value,
		previousClose: previous,
		source:        SourceFRED,
		date:          date,
	}, nil
}

func (b *Basket) indexPayload(metric, description string, reading indexReading, interpretation, category string) map[string]any {
	changePct := 0.0
	if reading.previousClose != 0 {
		changePct = round2((reading.value - reading.previousClose) / reading.previousClose * 100)
	}

	asOf := reading.date
	if asOf == "" {
		asOf = basket.Date(b.now())
	}

	payload := map[string]any{
		"metric":         metric,
		"value":          round2(reading.value),
		"previous_close": round2(reading.previousClose),
		"change_pct":     changePct,
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         reading.source,
		"as_of":          asOf,
	}

	if description != "" {
		payload["description"] = description
	}

	if reading.fallback {
		payload["fallback"] = true
		payload["fallback_reason"] = reading.fallbackReason
		payload["estimated"] = true
	}

	return payload
}

func interpretVIX(v float64) (string, string) {
	switch {
	case v < 15:
		return "Low volatility - Complacent market", basket.CategoryOpportunity
	case v < 20:
		return "Normal volatility - Stable conditions", basket.CategoryNeutral
	case v < 30:
		return "Elevated volatility - Increased uncertainty", basket.CategoryThreat
	default:
		return "High volatility - Fear/crisis mode", basket.CategorySevereThreat
	}
}

func interpretVXN(v float64) (string, string) {
	switch {
	case v < 17:
		return "Low volatility - Complacent tech market", basket.CategoryOpportunity
	case v < 22:
		return "Normal volatility - Stable tech conditions", basket.CategoryNeutral
	case v < 32:
		return "Elevated volatility - Tech sector uncertainty", basket.CategoryThreat
	default:
		return "High volatility - Tech fear/crisis mode", basket.CategorySevereThreat
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
