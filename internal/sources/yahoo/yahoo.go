// Package yahoo wraps the public Yahoo Finance endpoints used as the
// fundamentals fallback and as the primary source for valuation and
// single-name volatility data.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ratelimit"
)

// ErrNoData is returned when Yahoo answers but carries nothing usable
// for the requested symbol.
var ErrNoData = errors.New("yahoo: no data for symbol")

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Browser-like headers; the plain-Go default agent gets blocked.
var requestHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	"Accept":          "application/json",
	"Accept-Language": "en-US,en;q=0.9",
}

// Client fetches Yahoo Finance data. All calls pass through the shared
// bounded pool so at most three upstream requests run at once.
type Client struct {
	fetcher *fetch.Client
	pool    *fetch.CallPool
	baseURL string
}

// NewClient builds a Yahoo client on the shared fetcher. A nil pool gets
// a fresh one.
func NewClient(fetcher *fetch.Client, pool *fetch.CallPool) *Client {
	if pool == nil {
		pool = fetch.NewCallPool()
	}

	return &Client{fetcher: fetcher, pool: pool, baseURL: defaultBaseURL}
}

// SetBaseURL overrides the endpoint base. Tests point it at a local server.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

// Number tolerates Yahoo's two encodings of a numeric field: a plain
// JSON number or a {"raw": n, "fmt": "..."} wrapper.
type Number struct {
	Value *float64
}

func (n *Number) UnmarshalJSON(data []byte) error {
	var plain float64
	if err := json.Unmarshal(data, &plain); err == nil {
		n.Value = &plain

		return nil
	}

	var wrapped struct {
		Raw *float64 `json:"raw"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		n.Value = wrapped.Raw

		return nil
	}

	// Empty object or unparsable value means absent, not failure.
	n.Value = nil

	return nil
}

// Float unwraps the value.
func (n Number) Float() (float64, bool) {
	if n.Value == nil {
		return 0, false
	}

	return *n.Value, true
}

// Summary is the subset of quoteSummary modules the baskets consume.
type Summary struct {
	// price / financialData
	CurrentPrice       Number
	RegularMarketPrice Number
	MarketCap          Number

	// valuation multiples
	EnterpriseValue Number
	TrailingPE      Number
	ForwardPE       Number
	PriceToSales    Number
	PriceToBook     Number
	EVToEBITDA      Number
	TrailingPEG     Number
	EarningsGrowth  Number
	RevenueGrowth   Number

	// fundamentals fallback
	TotalRevenue       Number
	NetIncome          Number
	GrossProfit        Number
	OperatingIncome    Number
	TotalAssets        Number
	TotalLiabilities   Number
	StockholdersEquity Number
	TotalDebt          Number
	TotalCash          Number
	OperatingCashflow  Number
	FreeCashflow       Number

	// temporal context
	MostRecentQuarter Number
	RegularMarketTime Number
}

type quoteSummaryEnvelope struct {
	QuoteSummary struct {
		Result []struct {
			Price *struct {
				RegularMarketPrice Number `json:"regularMarketPrice"`
				RegularMarketTime  Number `json:"regularMarketTime"`
				MarketCap          Number `json:"marketCap"`
			} `json:"price"`
			SummaryDetail *struct {
				TrailingPE                   Number `json:"trailingPE"`
				ForwardPE                    Number `json:"forwardPE"`
				PriceToSalesTrailing12Months Number `json:"priceToSalesTrailing12Months"`
				MarketCap                    Number `json:"marketCap"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics *struct {
				EnterpriseValue    Number `json:"enterpriseValue"`
				PriceToBook        Number `json:"priceToBook"`
				EnterpriseToEbitda Number `json:"enterpriseToEbitda"`
				TrailingPegRatio   Number `json:"trailingPegRatio"`
				NetIncomeToCommon  Number `json:"netIncomeToCommon"`
				MostRecentQuarter  Number `json:"mostRecentQuarter"`
			} `json:"defaultKeyStatistics"`
			FinancialData *struct {
				CurrentPrice      Number `json:"currentPrice"`
				TotalRevenue      Number `json:"totalRevenue"`
				GrossProfits      Number `json:"grossProfits"`
				OperatingCashflow Number `json:"operatingCashflow"`
				FreeCashflow      Number `json:"freeCashflow"`
				TotalDebt         Number `json:"totalDebt"`
				TotalCash         Number `json:"totalCash"`
				EarningsGrowth    Number `json:"earningsGrowth"`
				RevenueGrowth     Number `json:"revenueGrowth"`
				OperatingMargins  Number `json:"operatingMargins"`
			} `json:"financialData"`
			BalanceSheetHistory *struct {
				Statements []struct {
					TotalAssets            Number `json:"totalAssets"`
					TotalLiab              Number `json:"totalLiab"`
					TotalStockholderEquity Number `json:"totalStockholderEquity"`
				} `json:"balanceSheetStatements"`
			} `json:"balanceSheetHistory"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// QuoteSummary fetches the quoteSummary modules for symbol and flattens
// them into a Summary.
func (c *Client) QuoteSummary(ctx context.Context, symbol string) (*Summary, error) {
	modules := "price,summaryDetail,defaultKeyStatistics,financialData,balanceSheetHistory"
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(modules))

	var envelope quoteSummaryEnvelope

	err := c.pool.Do(ctx, func(ctx context.Context) error {
		return c.fetcher.DecodeJSON(ctx, ratelimit.ProviderYahooFinance, endpoint, requestHeaders, &envelope)
	})
	if err != nil {
		return nil, err
	}

	results := envelope.QuoteSummary.Result
	if len(results) == 0 {
		if e := envelope.QuoteSummary.Error; e != nil && e.Description != "" {
			return nil, fmt.Errorf("%w: %s: %s", ErrNoData, symbol, e.Description)
		}

		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	r := results[0]
	summary := &Summary{}

	if p := r.Price; p != nil {
		summary.RegularMarketPrice = p.RegularMarketPrice
		summary.RegularMarketTime = p.RegularMarketTime
		summary.MarketCap = p.MarketCap
	}

	if sd := r.SummaryDetail; sd != nil {
		summary.TrailingPE = sd.TrailingPE
		summary.ForwardPE = sd.ForwardPE
		summary.PriceToSales = sd.PriceToSalesTrailing12Months

		if summary.MarketCap.Value == nil {
			summary.MarketCap = sd.MarketCap
		}
	}

	if ks := r.DefaultKeyStatistics; ks != nil {
		summary.EnterpriseValue = ks.EnterpriseValue
		summary.PriceToBook = ks.PriceToBook
		summary.EVToEBITDA = ks.EnterpriseToEbitda
		summary.TrailingPEG = ks.TrailingPegRatio
		summary.NetIncome = ks.NetIncomeToCommon
		summary.MostRecentQuarter = ks.MostRecentQuarter
	}

	if fd := r.FinancialData; fd != nil {
		summary.CurrentPrice = fd.CurrentPrice
		summary.TotalRevenue = fd.TotalRevenue
		summary.GrossProfit = fd.GrossProfits
		summary.OperatingCashflow = fd.OperatingCashflow
		summary.FreeCashflow = fd.FreeCashflow
		summary.TotalDebt = fd.TotalDebt
		summary.TotalCash = fd.TotalCash
		summary.EarningsGrowth = fd.EarningsGrowth
		summary.RevenueGrowth = fd.RevenueGrowth

		if rev, ok := fd.TotalRevenue.Float(); ok && rev > 0 {
			if margin, ok := fd.OperatingMargins.Float(); ok {
				operating := margin * rev
				summary.OperatingIncome = Number{Value: &operating}
			}
		}
	}

	if bs := r.BalanceSheetHistory; bs != nil && len(bs.Statements) > 0 {
		latest := bs.Statements[0]
		summary.TotalAssets = latest.TotalAssets
		summary.TotalLiabilities = latest.TotalLiab
		summary.StockholdersEquity = latest.TotalStockholderEquity
	}

	if summary.CurrentPrice.Value == nil && summary.RegularMarketPrice.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	return summary, nil
}

// Price returns the best available share price.
func (s *Summary) Price() (float64, bool) {
	if v, ok := s.CurrentPrice.Float(); ok {
		return v, true
	}

	return s.RegularMarketPrice.Float()
}

// Chart is a daily price history for one symbol.
type Chart struct {
	Symbol             string
	Closes             []float64
	Timestamps         []int64
	RegularMarketPrice float64
	PreviousClose      float64
}

// End returns the date of the last bar; false when the history is empty.
func (ch *Chart) End() (string, bool) {
	if len(ch.Timestamps) == 0 {
		return "", false
	}

	last := ch.Timestamps[len(ch.Timestamps)-1]

	return time.Unix(last, 0).UTC().Format("2006-01-02"), true
}

type chartEnvelope struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"previousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// Chart fetches daily closes for symbol over the given range ("5d",
// "3mo", "1y"). Null closes from market holidays are dropped.
func (c *Client) Chart(ctx context.Context, symbol, dataRange string) (*Chart, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(dataRange))

	var envelope chartEnvelope

	err := c.pool.Do(ctx, func(ctx context.Context) error {
		return c.fetcher.DecodeJSON(ctx, ratelimit.ProviderYahooFinance, endpoint, requestHeaders, &envelope)
	})
	if err != nil {
		return nil, err
	}

	results := envelope.Chart.Result
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, symbol)
	}

	r := results[0]
	chart := &Chart{
		Symbol:             r.Meta.Symbol,
		Timestamps:         r.Timestamp,
		RegularMarketPrice: r.Meta.RegularMarketPrice,
		PreviousClose:      r.Meta.PreviousClose,
	}

	if len(r.Indicators.Quote) > 0 {
		for _, close := range r.Indicators.Quote[0].Close {
			if close != nil {
				chart.Closes = append(chart.Closes, *close)
			}
		}
	}

	return chart, nil
}

// OptionContract is one listed option.
type OptionContract struct {
	Strike            float64 `json:"strike"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
}

// OptionChain is the near-dated call chain for one symbol.
type OptionChain struct {
	Calls      []OptionContract
	Expiration int64
}

type optionsEnvelope struct {
	OptionChain struct {
		Result []struct {
			ExpirationDates []int64 `json:"expirationDates"`
			Options         []struct {
				Calls []OptionContract `json:"calls"`
			} `json:"options"`
		} `json:"result"`
	} `json:"optionChain"`
}

// OptionCalls fetches the near-dated call chain for symbol.
func (c *Client) OptionCalls(ctx context.Context, symbol string) (*OptionChain, error) {
	endpoint := fmt.Sprintf("%s/v7/finance/options/%s", c.baseURL, url.PathEscape(symbol))

	var envelope optionsEnvelope

	err := c.pool.Do(ctx, func(ctx context.Context) error {
		return c.fetcher.DecodeJSON(ctx, ratelimit.ProviderYahooFinance, endpoint, requestHeaders, &envelope)
	})
	if err != nil {
		return nil, err
	}

	results := envelope.OptionChain.Result
	if len(results) == 0 || len(results[0].Options) == 0 {
		return nil, fmt.Errorf("%w: %s: no option chain", ErrNoData, symbol)
	}

	chain := &OptionChain{Calls: results[0].Options[0].Calls}
	if len(results[0].ExpirationDates) > 0 {
		chain.Expiration = results[0].ExpirationDates[0]
	}

	if len(chain.Calls) == 0 {
		return nil, fmt.Errorf("%w: %s: no calls", ErrNoData, symbol)
	}

	return chain, nil
}
