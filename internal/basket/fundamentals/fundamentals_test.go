package fundamentals_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/basket/fundamentals"
	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/sources/sec"
	"github.com/equityscope/equityscope/internal/sources/yahoo"
	"github.com/equityscope/equityscope/internal/ticker"
)

const directoryBody = `{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."}}`

const submissionsBody = `{
	"cik": "320193",
	"name": "Apple Inc.",
	"sic": "3571",
	"sicDescription": "Electronic Computers",
	"stateOfIncorporation": "CA",
	"fiscalYearEnd": "0930",
	"filings": {"recent": {
		"form": ["8-K", "8-K", "10-K", "SC 13G", "4"],
		"filingDate": ["2024-03-01", "2024-02-01", "2023-11-03", "2024-01-15", "2024-02-20"],
		"accessionNumber": ["0001-24-000001", "0001-24-000002", "0001-23-000106", "0001-24-000003", "0001-24-000004"],
		"primaryDocument": ["ev1.htm", "ev2.htm", "aapl-10k.htm", "sc13g.htm", "form4.xml"],
		"items": ["1.03,9.01", "7.01", "", "", ""]
	}}
}`

const quoteSummaryBody = `{"quoteSummary":{"result":[{
	"price": {"regularMarketPrice": {"raw": 190.5}},
	"financialData": {
		"currentPrice": {"raw": 190.5},
		"totalRevenue": {"raw": 380e9},
		"operatingCashflow": {"raw": 110e9},
		"freeCashflow": {"raw": 95e9},
		"totalDebt": {"raw": 110e9}
	},
	"defaultKeyStatistics": {"netIncomeToCommon": {"raw": 95e9}}
}],"error":null}}`

type fixture struct {
	basket *fundamentals.Basket
	srv    *httptest.Server
	secOK  bool
}

func newFixture(t *testing.T, secOK bool) *fixture {
	t.Helper()

	f := &fixture{secOK: secOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/directory", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(directoryBody))
	})
	mux.HandleFunc("/submissions/CIK0000320193.json", func(w http.ResponseWriter, _ *http.Request) {
		if !f.secOK {
			http.Error(w, "down", http.StatusNotFound)

			return
		}
		_, _ = w.Write([]byte(submissionsBody))
	})
	mux.HandleFunc("/api/xbrl/companyfacts/CIK0000320193.json", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusNotFound)
	})
	mux.HandleFunc("/edgar/data/320193/000123000106/aapl-10k.htm", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("... substantial doubt about the ability to continue as a going concern ..."))
	})
	mux.HandleFunc("/v10/finance/quoteSummary/AAPL", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(quoteSummaryBody))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	fetcher := fetch.NewClient(fetch.Deps{HTTPClient: f.srv.Client()})

	ciks := ticker.NewCIKResolver(fetcher, nil, "test agent")
	ciks.SetDirectoryURL(f.srv.URL + "/directory")

	secClient := sec.NewClient(fetcher, "test agent")
	secClient.SetBaseURLs(f.srv.URL, f.srv.URL)

	yahooClient := yahoo.NewClient(fetcher, nil)
	yahooClient.SetBaseURL(f.srv.URL)

	f.basket = fundamentals.New(fundamentals.Deps{
		SEC:   secClient,
		Yahoo: yahooClient,
		CIKs:  ciks,
		Now:   func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	})

	return f
}

func TestCompanyInfo(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	info, err := f.basket.CompanyInfo(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", info["name"])
	assert.Equal(t, "0000320193", info["cik"])
	assert.Equal(t, "Electronic Computers", info["sic_description"])
	assert.Equal(t, "SEC EDGAR", info["source"])
}

func TestMaterialEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	result, err := f.basket.MaterialEvents(context.Background(), "AAPL", 20)
	require.NoError(t, err)

	assert.Equal(t, 2, result["total_8k_filings"])
	assert.Equal(t, 1, result["high_priority_events"])

	events, ok := result["events"].([]fundamentals.MaterialEvent)
	require.True(t, ok)
	require.Len(t, events, 2)
	assert.True(t, events[0].HighPriority)
	assert.Equal(t, []string{"Bankruptcy or receivership"}, events[0].Descriptions)
	assert.False(t, events[1].HighPriority)
}

func TestOwnershipFilings(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	result, err := f.basket.OwnershipFilings(context.Background(), "AAPL", 20)
	require.NoError(t, err)

	ownership, ok := result["ownership_5pct_filings"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, ownership["count"])

	insiders, ok := result["insider_transactions"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, insiders["count"])
}

func TestGoingConcern(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	result, err := f.basket.GoingConcern(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, true, result["going_concern_found"])
	assert.Equal(t, "high", result["risk_level"])
	assert.ElementsMatch(t, []string{"going concern", "substantial doubt", "ability to continue"},
		result["keywords_found"])
}

func TestFundamentalsBasketYahooFallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	result := f.basket.FundamentalsBasket(context.Background(), "AAPL")

	payload, ok := result.(*fundamentals.BasketPayload)
	require.True(t, ok)
	assert.Equal(t, fundamentals.SourceYahoo, payload.Source)
	assert.True(t, payload.Fallback)
	assert.Equal(t, "SEC EDGAR unavailable", payload.FallbackReason)

	rev, ok := payload.Financials.Revenue.Float()
	require.True(t, ok)
	assert.InDelta(t, 380e9, rev, 1)
}

func TestFundamentalsBasketMinimalFallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	// Sink the Yahoo leg too.
	f.basket = fundamentals.New(fundamentals.Deps{
		SEC:   sec.NewClient(fetch.NewClient(fetch.Deps{HTTPClient: f.srv.Client()}), "test agent"),
		Yahoo: yahooFailing(t, f),
		CIKs:  failingCIKs(t, f),
		Now:   func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	})

	result := f.basket.FundamentalsBasket(context.Background(), "AAPL")

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, model.MinimalFallbackSource, payload["source"])
	assert.Equal(t, true, payload["fallback"])
	assert.Equal(t, "All data sources unavailable", payload["fallback_reason"])
	assert.Equal(t, "2024-03-15", payload["generated_at"])
}

func TestAllSourcesWithSECDown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	result := f.basket.AllSources(context.Background(), "AAPL")

	assert.Equal(t, model.GroupSourceComparison, result.Group)
	assert.Equal(t, "AAPL", result.Ticker)
	assert.Equal(t, "2024-03-15", result.AsOf)

	// The facts endpoint is down, so Yahoo carries core plus
	// supplementary metrics.
	_, hasSEC := result.Sources["sec_edgar"]
	assert.False(t, hasSEC)

	entry, ok := result.Sources["yahoo_finance"]
	require.True(t, ok)
	assert.Equal(t, fundamentals.SourceYahoo, entry.Source)
	assert.Contains(t, entry.Data, "revenue")
	assert.Contains(t, entry.Data, "free_cash_flow")
}

func yahooFailing(t *testing.T, f *fixture) *yahoo.Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := yahoo.NewClient(fetch.NewClient(fetch.Deps{HTTPClient: srv.Client()}), nil)
	client.SetBaseURL(srv.URL)

	return client
}

func failingCIKs(t *testing.T, f *fixture) *ticker.CIKResolver {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	resolver := ticker.NewCIKResolver(fetch.NewClient(fetch.Deps{HTTPClient: srv.Client()}), nil, "test agent")
	resolver.SetDirectoryURL(srv.URL)

	return resolver
}
