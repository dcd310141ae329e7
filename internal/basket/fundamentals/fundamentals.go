// Package fundamentals implements the fundamentals basket: XBRL-backed
// financial metrics from SEC EDGAR with a Yahoo Finance fallback, plus
// filing-derived risk tools (material events, ownership, going concern).
package fundamentals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/cache"
	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/sources/sec"
	"github.com/equityscope/equityscope/internal/sources/yahoo"
	"github.com/equityscope/equityscope/internal/ticker"
)

// ServerName identifies this basket in tool responses.
const ServerName = "fundamentals-basket"

// Deps holds the injectable collaborators. Nil Logger and Now get
// production defaults.
type Deps struct {
	SEC    *sec.Client
	Yahoo  *yahoo.Client
	CIKs   *ticker.CIKResolver
	Store  *cache.Store
	Logger *slog.Logger
	Now    func() time.Time
}

// Basket is the fundamentals tool provider.
type Basket struct {
	sec    *sec.Client
	yahoo  *yahoo.Client
	ciks   *ticker.CIKResolver
	info   *cache.TTLCache[map[string]any]
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

	info := (*cache.TTLCache[map[string]any])(nil)
	if deps.Store != nil {
		info = deps.Store.CompanyInfo
	}

	if info == nil {
		info = cache.NewTTL[map[string]any](cache.CompanyInfoTTL)
	}

	return &Basket{
		sec:    deps.SEC,
		yahoo:  deps.Yahoo,
		ciks:   deps.CIKs,
		info:   info,
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
				Name:        "get_company_info",
				Description: "Get basic company information from SEC EDGAR (name, industry, CIK).",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.CompanyInfo(ctx, symbol)
				},
			},
			{
				Name:        "get_financials",
				Description: "Get key financial metrics from SEC filings (revenue, income, margins).",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.Financials(ctx, symbol)
				},
			},
			{
				Name:        "get_debt_metrics",
				Description: "Get debt and leverage metrics (debt levels, debt-to-equity ratio).",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.Debt(ctx, symbol)
				},
			},
			{
				Name:        "get_cash_flow",
				Description: "Get cash flow metrics (operating CF, CapEx, free cash flow, R&D).",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.CashFlow(ctx, symbol)
				},
			},
			{
				Name:        "get_sec_fundamentals",
				Description: "Get complete SEC fundamentals basket with aggregated SWOT summary.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.FundamentalsBasket(ctx, symbol), nil
				},
			},
			{
				Name:        "get_material_events",
				Description: "Get recent 8-K material events (bankruptcy, impairments, executive changes, delisting).",
				Handler: func(ctx context.Context, symbol string, args map[string]any) (any, error) {
					return b.MaterialEvents(ctx, symbol, basket.IntArg(args, "limit", defaultFilingLimit))
				},
			},
			{
				Name:        "get_ownership_filings",
				Description: "Get ownership filings: 13D/13G (5%+ ownership changes), Form 4 (insider transactions).",
				Handler: func(ctx context.Context, symbol string, args map[string]any) (any, error) {
					return b.OwnershipFilings(ctx, symbol, basket.IntArg(args, "limit", defaultFilingLimit))
				},
			},
			{
				Name:        "get_going_concern",
				Description: "Search latest 10-K for going concern warnings (substantial doubt, liquidity issues).",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.GoingConcern(ctx, symbol)
				},
			},
			{
				Name:        "get_all_sources_fundamentals",
				Description: "Get financials from ALL sources (SEC EDGAR + Yahoo Finance) for side-by-side comparison.",
				Handler: func(ctx context.Context, symbol string, _ map[string]any) (any, error) {
					return b.AllSources(ctx, symbol), nil
				},
			},
		},
	}
}

// CompanyInfo returns the EDGAR company profile for symbol.
func (b *Basket) CompanyInfo(ctx context.Context, symbol string) (map[string]any, error) {
	if cached, ok := b.info.Get(symbol); ok {
		return cached, nil
	}

	cik, err := b.ciks.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	subs, err := b.sec.Submissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	info := map[string]any{
		"ticker":                 symbol,
		"cik":                    cik,
		"name":                   subs.Name,
		"sic":                    subs.SIC,
		"sic_description":        subs.SICDescription,
		"state_of_incorporation": subs.StateOfIncorporation,
		"fiscal_year_end":        subs.FiscalYearEnd,
		"source":                 "SEC EDGAR",
	}

	b.info.Set(symbol, info)

	return info, nil
}

// Financials returns the universal financial metrics, preferring SEC
// EDGAR and falling back to Yahoo Finance.
func (b *Basket) Financials(ctx context.Context, symbol string) (*Financials, error) {
	facts, err := b.companyFacts(ctx, symbol)
	if err == nil {
		return ParseFinancials(facts, symbol), nil
	}

	b.logger.Warn("SEC financials unavailable, using Yahoo fallback",
		"ticker", symbol, "error", err)

	summary, err := b.yahoo.QuoteSummary(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("financials unavailable from all sources: %w", err)
	}

	fin, _, _ := ParseYahoo(summary, symbol)

	return fin, nil
}

// Debt returns the leverage metrics from SEC EDGAR.
func (b *Basket) Debt(ctx context.Context, symbol string) (*DebtMetrics, error) {
	facts, err := b.companyFacts(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return ParseDebt(facts, symbol), nil
}

// CashFlow returns the cash-flow metrics from SEC EDGAR.
func (b *Basket) CashFlow(ctx context.Context, symbol string) (*CashFlowMetrics, error) {
	facts, err := b.companyFacts(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return ParseCashFlow(facts, symbol), nil
}

// BasketPayload is the complete fundamentals basket with SWOT.
type BasketPayload struct {
	Ticker         string            `json:"ticker"`
	Company        map[string]any    `json:"company"`
	Financials     *Financials       `json:"financials"`
	Debt           *DebtMetrics      `json:"debt"`
	CashFlow       *CashFlowMetrics  `json:"cash_flow"`
	SWOT           model.SWOTSummary `json:"swot_summary"`
	Source         string            `json:"source"`
	Fallback       bool              `json:"fallback,omitempty"`
	FallbackReason string            `json:"fallback_reason,omitempty"`
}

// FundamentalsBasket assembles the complete basket. It never fails:
// SEC EDGAR first, Yahoo Finance on failure, and a minimal payload when
// both sources are down.
func (b *Basket) FundamentalsBasket(ctx context.Context, symbol string) any {
	facts, secErr := b.companyFacts(ctx, symbol)
	if secErr == nil {
		fin := ParseFinancials(facts, symbol)
		debt := ParseDebt(facts, symbol)
		cf := ParseCashFlow(facts, symbol)

		company, infoErr := b.CompanyInfo(ctx, symbol)
		if infoErr != nil {
			company = map[string]any{"ticker": symbol, "name": facts.EntityName}
		}

		return &BasketPayload{
			Ticker:     symbol,
			Company:    company,
			Financials: fin,
			Debt:       debt,
			CashFlow:   cf,
			SWOT:       BuildSWOT(fin, debt, cf),
			Source:     SourceSECEdgar,
		}
	}

	b.logger.Warn("SEC basket unavailable", "ticker", symbol, "error", secErr)

	summary, yahooErr := b.yahoo.QuoteSummary(ctx, symbol)
	if yahooErr == nil {
		fin, debt, cf := ParseYahoo(summary, symbol)

		return &BasketPayload{
			Ticker:         symbol,
			Company:        map[string]any{"ticker": symbol},
			Financials:     fin,
			Debt:           debt,
			CashFlow:       cf,
			SWOT:           BuildSWOT(fin, debt, cf),
			Source:         SourceYahoo,
			Fallback:       true,
			FallbackReason: "SEC EDGAR unavailable",
		}
	}

	b.logger.Warn("Yahoo basket unavailable", "ticker", symbol, "error", yahooErr)

	return b.minimalFallback(symbol)
}

// minimalFallback is the guaranteed response when every source fails.
func (b *Basket) minimalFallback(symbol string) map[string]any {
	unavailable := map[string]any{"note": "Data temporarily unavailable"}

	return map[string]any{
		"ticker":     symbol,
		"company":    map[string]any{"name": symbol},
		"financials": unavailable,
		"debt":       unavailable,
		"cash_flow":  unavailable,
		"swot_summary": map[string]any{
			"strengths":     []string{},
			"weaknesses":    []string{},
			"opportunities": []string{},
			"threats":       []string{},
			"note":          "SWOT unavailable - data sources temporarily unavailable",
		},
		"source":          model.MinimalFallbackSource,
		"fallback":        true,
		"fallback_reason": "All data sources unavailable",
		"generated_at":    basket.Date(b.now()),
	}
}

// AllSources builds the source_comparison envelope: SEC EDGAR core
// metrics plus Yahoo supplementary metrics, with Yahoo promoted to core
// provider when EDGAR fails.
func (b *Basket) AllSources(ctx context.Context, symbol string) *model.BasketResult {
	asOf := basket.Date(b.now())
	sources := map[string]model.SourceEntry{}

	facts, secErr := b.companyFacts(ctx, symbol)
	if secErr == nil {
		fin := ParseFinancials(facts, symbol)
		debt := ParseDebt(facts, symbol)
		cf := ParseCashFlow(facts, symbol)

		sources["sec_edgar"] = model.SourceEntry{
			Source: SourceSECEdgar,
			AsOf:   asOf,
			Data: map[string]any{
				"revenue":             metricDict(fin.Revenue),
				"net_income":          metricDict(fin.NetIncome),
				"net_margin_pct":      metricDict(fin.NetMarginPct),
				"eps":                 metricDict(fin.EPS),
				"total_assets":        metricDict(fin.TotalAssets),
				"total_liabilities":   metricDict(fin.TotalLiabilities),
				"stockholders_equity": metricDict(fin.StockholdersEquity),
				"total_debt":          metricDict(debt.TotalDebt),
				"debt_to_equity":      metricDict(debt.DebtToEquity),
				"free_cash_flow":      metricDict(cf.FreeCashFlow),
			},
		}
	} else {
		b.logger.Warn("SEC comparison leg failed", "ticker", symbol, "error", secErr)
	}

	if summary, yahooErr := b.yahoo.QuoteSummary(ctx, symbol); yahooErr == nil {
		fin, debt, cf := ParseYahoo(summary, symbol)

		data := map[string]any{
			"revenue":              metricDict(fin.Revenue),
			"net_income":           metricDict(fin.NetIncome),
			"net_margin_pct":       metricDict(fin.NetMarginPct),
			"operating_margin_pct": metricDict(fin.OperatingMarginPct),
			"total_debt":           metricDict(debt.TotalDebt),
			"debt_to_equity":       metricDict(debt.DebtToEquity),
			"operating_cash_flow":  metricDict(cf.OperatingCashFlow),
			"free_cash_flow":       metricDict(cf.FreeCashFlow),
		}

		// When EDGAR failed, Yahoo also carries the balance-sheet core.
		if secErr != nil {
			data["total_assets"] = metricDict(fin.TotalAssets)
			data["total_liabilities"] = metricDict(fin.TotalLiabilities)
			data["stockholders_equity"] = metricDict(fin.StockholdersEquity)
		}

		sources["yahoo_finance"] = model.SourceEntry{
			Source: SourceYahoo,
			AsOf:   asOf,
			Data:   data,
		}
	} else {
		b.logger.Warn("Yahoo comparison leg failed", "ticker", symbol, "error", yahooErr)
	}

	if len(sources) == 0 {
		sources["minimal_fallback"] = model.SourceEntry{
			Source: model.MinimalFallbackSource,
			AsOf:   asOf,
			Data: map[string]any{
				"revenue":        nil,
				"net_income":     nil,
				"eps":            nil,
				"debt_to_equity": nil,
				"free_cash_flow": nil,
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

func metricDict(m *model.TemporalMetric) map[string]any {
	if m == nil {
		return nil
	}

	return map[string]any{
		"value":       m.Value,
		"end_date":    m.EndDate,
		"data_type":   m.DataType,
		"fiscal_year": m.FiscalYear,
		"form":        m.Form,
	}
}

func (b *Basket) companyFacts(ctx context.Context, symbol string) (*sec.CompanyFacts, error) {
	cik, err := b.ciks.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	facts, err := b.sec.CompanyFacts(ctx, cik)
	if err != nil {
		return nil, err
	}

	if len(facts.USGAAP()) == 0 {
		return nil, errors.New("no company facts available")
	}

	return facts, nil
}
