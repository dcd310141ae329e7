// Package valuation implements the valuation basket: price multiples
// from Yahoo Finance with an Alpha Vantage overview fallback and
// market-average defaults when every provider is down.
package valuation

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/sources/alphavantage"
	"github.com/equityscope/equityscope/internal/sources/yahoo"
)

// ServerName identifies this basket in tool responses.
const ServerName = "valuation-basket"

// Source labels.
const (
	SourceYahoo        = "Yahoo Finance"
	SourceAlphaVantage = "Alpha Vantage"
)

// Deps holds the injectable collaborators. Nil Logger and Now get
// production defaults; a nil AlphaVantage client skips the fallback leg.
type Deps struct {
	Yahoo        *yahoo.Client
	AlphaVantage *alphavantage.Client
	Logger       *slog.Logger
	Now          func() time.Time
}

// Basket is the valuation tool provider.
type Basket struct {
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
				Name:        "get_pe_ratio",
				Description: "Get P/E ratio (trailing and forward) with interpretation.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.PERatio(ctx, symbol)
				},
			},
			{
				Name:        "get_ps_ratio",
				Description: "Get Price-to-Sales ratio with interpretation.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.PSRatio(ctx, symbol)
				},
			},
			{
				Name:        "get_pb_ratio",
				Description: "Get Price-to-Book ratio with interpretation.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.PBRatio(ctx, symbol)
				},
			},
			{
				Name:        "get_ev_ebitda",
				Description: "Get EV/EBITDA ratio with interpretation.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.EVEBITDA(ctx, symbol)
				},
			},
			{
				Name:        "get_peg_ratio",
				Description: "Get PEG ratio (P/E relative to earnings growth) with interpretation.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.PEGRatio(ctx, symbol)
				},
			},
			{
				Name:        "get_valuation_basket",
				Description: "Get complete valuation basket with all multiples and SWOT summary.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.ValuationBasket(ctx, symbol), nil
				},
			},
			{
				Name:        "get_all_sources_valuation",
				Description: "Get valuation multiples from ALL sources (Yahoo Finance + Alpha Vantage) for side-by-side comparison.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.AllSources(ctx, symbol), nil
				},
			},
		},
	}
}

// Snapshot carries the valuation multiples of one ticker from one
// provider. Absent fields stay nil rather than zero.
type Snapshot struct {
	Ticker          string
	CurrentPrice    *float64
	MarketCap       *float64
	EnterpriseValue *float64
	TrailingPE      *float64
	ForwardPE       *float64
	PSRatio         *float64
	PBRatio         *float64
	EVEBITDA        *float64
	TrailingPEG     *float64
	ForwardPEG      *float64
	EarningsGrowth  *float64
	RevenueGrowth   *float64
	Source          string
}

func (b *Basket) snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	summary, err := b.yahoo.QuoteSummary(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return snapshotFromSummary(summary, symbol), nil
}

func snapshotFromSummary(s *yahoo.Summary, symbol string) *Snapshot {
	snap := &Snapshot{Ticker: symbol, Source: SourceYahoo}

	if v, ok := s.Price(); ok {
		snap.CurrentPrice = &v
	}

	snap.MarketCap = numPtr(s.MarketCap)
	snap.EnterpriseValue = numPtr(s.EnterpriseValue)
	snap.TrailingPE = numPtr(s.TrailingPE)
	snap.ForwardPE = numPtr(s.ForwardPE)
	snap.PSRatio = numPtr(s.PriceToSales)
	snap.PBRatio = numPtr(s.PriceToBook)
	snap.EVEBITDA = numPtr(s.EVToEBITDA)
	snap.TrailingPEG = numPtr(s.TrailingPEG)
	snap.EarningsGrowth = numPtr(s.EarningsGrowth)
	snap.RevenueGrowth = numPtr(s.RevenueGrowth)
	snap.ForwardPEG = forwardPEG(snap.ForwardPE, snap.EarningsGrowth)

	return snap
}

func snapshotFromOverview(o alphavantage.Overview, symbol string) *Snapshot {
	snap := &Snapshot{Ticker: symbol, Source: SourceAlphaVantage}

	snap.MarketCap = ovPtr(o, "MarketCapitalization")
	snap.TrailingPE = ovPtr(o, "PERatio")
	snap.ForwardPE = ovPtr(o, "ForwardPE")
	snap.PSRatio = ovPtr(o, "PriceToSalesRatioTTM")
	snap.PBRatio = ovPtr(o, "PriceToBookRatio")
	snap.EVEBITDA = ovPtr(o, "EVToEBITDA")
	snap.TrailingPEG = ovPtr(o, "PEGRatio")
	snap.EarningsGrowth = ovPtr(o, "QuarterlyEarningsGrowthYOY")
	snap.RevenueGrowth = ovPtr(o, "QuarterlyRevenueGrowthYOY")
	snap.ForwardPEG = forwardPEG(snap.ForwardPE, snap.EarningsGrowth)

	return snap
}

// forwardPEG derives the forward PEG from the forward P/E and the
// fractional earnings growth rate. Requires positive growth.
func forwardPEG(forwardPE, growth *float64) *float64 {
	if forwardPE == nil || growth == nil || *growth <= 0 {
		return nil
	}

	v := *forwardPE / (*growth * 100)

	return &v
}

// PairMetric is a trailing/forward multiple pair.
type PairMetric struct {
	Trailing *float64 `json:"trailing"`
	Forward  *float64 `json:"forward"`
}

// Growth carries the growth rates as percentages.
type Growth struct {
	EarningsGrowthPct *float64 `json:"earnings_growth_pct"`
	RevenueGrowthPct  *float64 `json:"revenue_growth_pct"`
}

// Metrics is the formatted multiples block of the basket payload.
type Metrics struct {
	CurrentPrice    *float64   `json:"current_price"`
	MarketCap       *float64   `json:"market_cap"`
	EnterpriseValue *float64   `json:"enterprise_value"`
	PERatio         PairMetric `json:"pe_ratio"`
	PSRatio         *float64   `json:"ps_ratio"`
	PBRatio         *float64   `json:"pb_ratio"`
	EVEBITDA        *float64   `json:"ev_ebitda"`
	PEGRatio        PairMetric `json:"peg_ratio"`
	Growth          Growth     `json:"growth"`
}

// BasketPayload is the complete valuation basket.
type BasketPayload struct {
	Ticker            string            `json:"ticker"`
	Metrics           Metrics           `json:"metrics"`
	OverallAssessment string            `json:"overall_assessment"`
	SWOT              model.SWOTSummary `json:"swot_summary"`
	Source            string            `json:"source"`
	Fallback          bool              `json:"fallback,omitempty"`
	FallbackReason    string            `json:"fallback_reason,omitempty"`
	GeneratedAt       string            `json:"generated_at"`
}

// ValuationBasket assembles the complete basket. It never fails: Yahoo
// Finance first, the Alpha Vantage overview on failure, and market-
// average multiples when both providers are down.
func (b *Basket) ValuationBasket(ctx context.Context, symbol string) any {
	snap, yahooErr := b.snapshot(ctx, symbol)
	if yahooErr == nil {
		return b.basketPayload(snap, false, "")
	}

	b.logger.Warn("Yahoo valuation unavailable", "ticker", symbol, "error", yahooErr)

	if b.av != nil {
		overview, avErr := b.av.CompanyOverview(ctx, symbol)
		if avErr == nil {
			return b.basketPayload(snapshotFromOverview(overview, symbol), true, "Yahoo Finance unavailable")
		}

		b.logger.Warn("Alpha Vantage valuation unavailable", "ticker", symbol, "error", avErr)
	}

	return b.marketAverages(symbol)
}

func (b *Basket) basketPayload(snap *Snapshot, fallback bool, reason string) *BasketPayload {
	swot, overall := BuildSWOT(snap)

	return &BasketPayload{
		Ticker: snap.Ticker,
		Metrics: Metrics{
			CurrentPrice:    round2Ptr(snap.CurrentPrice),
			MarketCap:       snap.MarketCap,
			EnterpriseValue: snap.EnterpriseValue,
			PERatio: PairMetric{
				Trailing: round2Ptr(snap.TrailingPE),
				Forward:  round2Ptr(snap.ForwardPE),
			},
			PSRatio:  round2Ptr(snap.PSRatio),
			PBRatio:  round2Ptr(snap.PBRatio),
			EVEBITDA: round2Ptr(snap.EVEBITDA),
			PEGRatio: PairMetric{
				Trailing: round2Ptr(snap.TrailingPEG),
				Forward:  round2Ptr(snap.ForwardPEG),
			},
			Growth: Growth{
				EarningsGrowthPct: pctPtr(snap.EarningsGrowth),
				RevenueGrowthPct:  pctPtr(snap.RevenueGrowth),
			},
		},
		OverallAssessment: overall,
		SWOT:              swot,
		Source:            snap.Source,
		Fallback:          fallback,
		FallbackReason:    reason,
		GeneratedAt:       basket.Date(b.now()),
	}
}

// Long-run broad-market multiples used when every provider is down.
const (
	marketAvgTrailingPE = 20.0
	marketAvgForwardPE  = 18.0
	marketAvgPSRatio    = 2.7
	marketAvgPBRatio    = 4.0
	marketAvgEVEBITDA   = 13.0
	marketAvgPEGRatio   = 1.5
)

// marketAverages is the guaranteed response when every source fails.
func (b *Basket) marketAverages(symbol string) map[string]any {
	return map[string]any{
		"ticker": symbol,
		"metrics": map[string]any{
			"current_price":    nil,
			"market_cap":       nil,
			"enterprise_value": nil,
			"pe_ratio": map[string]any{
				"trailing": marketAvgTrailingPE,
				"forward":  marketAvgForwardPE,
			},
			"ps_ratio":  marketAvgPSRatio,
			"pb_ratio":  marketAvgPBRatio,
			"ev_ebitda": marketAvgEVEBITDA,
			"peg_ratio": map[string]any{
				"trailing": marketAvgPEGRatio,
				"forward":  nil,
			},
		},
		"overall_assessment": "Market-average multiples - company data unavailable",
		"swot_summary": map[string]any{
			"strengths":     []string{},
			"weaknesses":    []string{},
			"opportunities": []string{},
			"threats":       []string{},
			"note":          "SWOT unavailable - data sources temporarily unavailable",
		},
		"source":          model.HistoricalAverageSource + " (market multiples)",
		"fallback":        true,
		"fallback_reason": "All valuation sources unavailable",
		"estimated":       true,
		"generated_at":    basket.Date(b.now()),
	}
}

// AllSources builds the source_comparison envelope: Yahoo Finance and
// Alpha Vantage multiples side by side.
func (b *Basket) AllSources(ctx context.Context, symbol string) *model.BasketResult {
	asOf := basket.Date(b.now())
	sources := map[string]model.SourceEntry{}

	snap, yahooErr := b.snapshot(ctx, symbol)
	if yahooErr == nil {
		data := map[string]any{}
		putFloat(data, "current_price", snap.CurrentPrice)
		putFloat(data, "market_cap", snap.MarketCap)
		putFloat(data, "trailing_pe", snap.TrailingPE)
		putFloat(data, "forward_pe", snap.ForwardPE)
		putFloat(data, "pb_ratio", snap.PBRatio)
		putFloat(data, "ps_ratio", snap.PSRatio)
		putFloat(data, "ev_ebitda", snap.EVEBITDA)
		putFloat(data, "peg_ratio", snap.TrailingPEG)

		sources["yahoo_finance"] = model.SourceEntry{
			Source: SourceYahoo,
			AsOf:   asOf,
			Data:   data,
		}
	} else {
		b.logger.Warn("Yahoo comparison leg failed", "ticker", symbol, "error", yahooErr)
	}

	if b.av != nil {
		overview, avErr := b.av.CompanyOverview(ctx, symbol)
		if avErr == nil {
			avSnap := snapshotFromOverview(overview, symbol)

			data := map[string]any{}
			putFloat(data, "market_cap", avSnap.MarketCap)
			putFloat(data, "trailing_pe", avSnap.TrailingPE)
			putFloat(data, "forward_pe", avSnap.ForwardPE)
			putFloat(data, "pb_ratio", avSnap.PBRatio)
			putFloat(data, "ps_ratio", avSnap.PSRatio)
			putFloat(data, "ev_ebitda", avSnap.EVEBITDA)
			putFloat(data, "peg_ratio", avSnap.TrailingPEG)

			sources["alpha_vantage"] = model.SourceEntry{
				Source: SourceAlphaVantage,
				AsOf:   asOf,
				Data:   data,
			}
		} else {
			b.logger.Warn("Alpha Vantage comparison leg failed", "ticker", symbol, "error", avErr)
		}
	}

	if len(sources) == 0 {
		sources["market_averages"] = model.SourceEntry{
			Source: model.HistoricalAverageSource + " (market multiples)",
			AsOf:   asOf,
			Data: map[string]any{
				"trailing_pe": marketAvgTrailingPE,
				"forward_pe":  marketAvgForwardPE,
				"pb_ratio":    marketAvgPBRatio,
				"ps_ratio":    marketAvgPSRatio,
				"ev_ebitda":   marketAvgEVEBITDA,
				"peg_ratio":   marketAvgPEGRatio,
			},
		}
	}

	return &model.BasketResult{
		Group:   model.GroupSourceComparison,
		Ticker:  symbol,
		Sources: sources,
		Source:  ServerName,
		AsOf:    asOf,
	}
}

func numPtr(n yahoo.Number) *float64 {
	if v, ok := n.Float(); ok {
		return &v
	}

	return nil
}

func ovPtr(o alphavantage.Overview, key string) *float64 {
	if v, ok := o.Float(key); ok {
		return &v
	}

	return nil
}

func putFloat(data map[string]any, key string, p *float64) {
	if p != nil {
		data[key] = *p
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2Ptr(p *float64) *float64 {
	if p == nil {
		return nil
	}

	v := round2(*p)

	return &v
}

// pctPtr converts a fractional rate to a percentage rounded to one
// decimal.
func pctPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}

	v := round1(*p * 100)

	return &v
}

// first returns the first non-nil value.
func first(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}

	return nil
}
