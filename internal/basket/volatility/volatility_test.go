package volatility_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/basket/volatility"
	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/sources/alphavantage"
	"github.com/equityscope/equityscope/internal/sources/fred"
	"github.com/equityscope/equityscope/internal/sources/yahoo"
)

// betaCloses builds aligned price paths where the stock's daily return
// is exactly twice the market's, so beta is exactly 2.
func betaCloses() (stock, market []float64) {
	stock = []float64{100}
	market = []float64{100}

	for i := 0; i < 40; i++ {
		r := 0.01
		if i%2 == 1 {
			r = -0.01
		}

		market = append(market, market[len(market)-1]*(1+r))
		stock = append(stock, stock[len(stock)-1]*(1+2*r))
	}

	return stock, market
}

func hvCloses() []float64 {
	closes := make([]float64, 0, 20)
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			closes = append(closes, 100)
		} else {
			closes = append(closes, 101)
		}
	}

	return closes
}

func chartBody(symbol string, closes []float64, price, previous float64) string {
	encoded, _ := json.Marshal(closes)

	return fmt.Sprintf(`{"chart":{"result":[{
		"meta":{"symbol":%q,"regularMarketPrice":%g,"previousClose":%g},
		"timestamp":[1703980800],
		"indicators":{"quote":[{"close":%s}]}
	}]}}`, symbol, price, previous, encoded)
}

type fixture struct {
	fredOK  bool
	yahooOK bool
}

func (f *fixture) basket(t *testing.T) *volatility.Basket {
	t.Helper()

	stockCloses, marketCloses := betaCloses()

	mux := http.NewServeMux()
	mux.HandleFunc("/series/observations", func(w http.ResponseWriter, r *http.Request) {
		if !f.fredOK {
			http.Error(w, "down", http.StatusNotFound)

			return
		}

		switch r.URL.Query().Get("series_id") {
		case fred.SeriesVIX:
			_, _ = w.Write([]byte(`{"observations":[
				{"date":"2024-03-14","value":"14.2"},
				{"date":"2024-03-13","value":"15.0"}
			]}`))
		case fred.SeriesVXN:
			_, _ = w.Write([]byte(`{"observations":[
				{"date":"2024-03-14","value":"25.0"},
				{"date":"2024-03-13","value":"24.5"}
			]}`))
		default:
			http.Error(w, "unknown series", http.StatusNotFound)
		}
	})
	mux.HandleFunc("/v8/finance/chart/", func(w http.ResponseWriter, r *http.Request) {
		if !f.yahooOK {
			http.Error(w, "down", http.StatusNotFound)

			return
		}

		symbol := strings.TrimPrefix(r.URL.Path, "/v8/finance/chart/")

		switch {
		case symbol == "^VIX":
			_, _ = w.Write([]byte(chartBody("^VIX", nil, 32.5, 31.0)))
		case symbol == "^GSPC":
			_, _ = w.Write([]byte(chartBody("^GSPC", marketCloses, 0, 0)))
		case r.URL.Query().Get("range") == "3mo":
			_, _ = w.Write([]byte(chartBody(symbol, hvCloses(), 0, 0)))
		case r.URL.Query().Get("range") == "1d":
			_, _ = w.Write([]byte(chartBody(symbol, nil, 190.5, 189.0)))
		default:
			_, _ = w.Write([]byte(chartBody(symbol, stockCloses, 0, 0)))
		}
	})
	mux.HandleFunc("/v7/finance/options/AAPL", func(w http.ResponseWriter, _ *http.Request) {
		if !f.yahooOK {
			http.Error(w, "down", http.StatusNotFound)

			return
		}
		_, _ = w.Write([]byte(`{"optionChain":{"result":[{"expirationDates":[1705622400],"options":[{"calls":[
			{"strike":180,"impliedVolatility":0.31},
			{"strike":190,"impliedVolatility":0.29},
			{"strike":200,"impliedVolatility":0.33}
		]}]}]}}`))
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Symbol":"AAPL","Beta":"1.3","LatestQuarter":"2023-12-31"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	fetcher := fetch.NewClient(fetch.Deps{HTTPClient: srv.Client()})

	fredClient := fred.NewClient(fetcher, "test-key")
	fredClient.SetBaseURL(srv.URL)

	yahooClient := yahoo.NewClient(fetcher, nil)
	yahooClient.SetBaseURL(srv.URL)

	avClient := alphavantage.NewClient(fetcher, "test-key")
	avClient.SetBaseURL(srv.URL)

	return volatility.New(volatility.Deps{
		FRED:         fredClient,
		Yahoo:        yahooClient,
		AlphaVantage: avClient,
		Now:          func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	})
}

func TestVIXFromFRED(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: true, yahooOK: true}).basket(t)

	vix := b.VIX(context.Background())

	assert.Equal(t, "VIX", vix["metric"])
	assert.Equal(t, 14.2, vix["value"])
	assert.Equal(t, 15.0, vix["previous_close"])
	assert.Equal(t, -5.33, vix["change_pct"])
	assert.Equal(t, "Low volatility - Complacent market", vix["interpretation"])
	assert.Equal(t, basket.CategoryOpportunity, vix["swot_category"])
	assert.Equal(t, volatility.SourceFRED, vix["source"])
	assert.Equal(t, "2024-03-14", vix["as_of"])
	assert.NotContains(t, vix, "fallback")
}

func TestVIXYahooFallback(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: false, yahooOK: true}).basket(t)

	vix := b.VIX(context.Background())

	assert.Equal(t, 32.5, vix["value"])
	assert.Equal(t, "High volatility - Fear/crisis mode", vix["interpretation"])
	assert.Equal(t, basket.CategorySevereThreat, vix["swot_category"])
	assert.Equal(t, volatility.SourceYahoo, vix["source"])
	assert.Equal(t, "2024-03-15", vix["as_of"])
}

func TestVIXDefault(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: false, yahooOK: false}).basket(t)

	vix := b.VIX(context.Background())

	assert.Equal(t, 20.0, vix["value"])
	assert.Equal(t, "Elevated volatility - Increased uncertainty", vix["interpretation"])
	assert.Equal(t, volatility.SourceEstimated, vix["source"])
	assert.Equal(t, true, vix["fallback"])
	assert.Equal(t, "All VIX sources unavailable", vix["fallback_reason"])
	assert.Equal(t, true, vix["estimated"])
}

func TestVXN(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: true, yahooOK: true}).basket(t)

	vxn := b.VXN(context.Background())

	assert.Equal(t, "VXN", vxn["metric"])
	assert.Equal(t, "Nasdaq-100 Volatility Index", vxn["description"])
	assert.Equal(t, 25.0, vxn["value"])
	assert.Equal(t, "Elevated volatility - Tech sector uncertainty", vxn["interpretation"])
	assert.Equal(t, basket.CategoryThreat, vxn["swot_category"])
}

func TestVXNDefault(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: false, yahooOK: true}).basket(t)

	vxn := b.VXN(context.Background())

	assert.Equal(t, 22.0, vxn["value"])
	assert.Equal(t, "All VXN sources unavailable", vxn["fallback_reason"])
	assert.Equal(t, volatility.SourceEstimated, vxn["source"])
}

func TestBeta(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: true, yahooOK: true}).basket(t)

	beta := b.Beta(context.Background(), "AAPL")

	value, ok := beta["value"].(float64)
	require.True(t, ok)
	assert.InDelta(t, 2.0, value, 0.001)
	assert.Equal(t, "Very high beta - Significantly more volatile", beta["interpretation"])
	assert.Equal(t, basket.CategoryWeakness, beta["swot_category"])
	assert.Equal(t, "S&P 500", beta["benchmark"])
	assert.Equal(t, "1 year", beta["period"])
	assert.Equal(t, volatility.SourceCalculated, beta["source"])
	assert.Equal(t, "2023-12-31", beta["as_of"])
}

func TestBetaDefault(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: true, yahooOK: false}).basket(t)

	beta := b.Beta(context.Background(), "AAPL")

	assert.Equal(t, 1.0, beta["value"])
	assert.Equal(t, "Market beta - Moves with the market (estimated)", beta["interpretation"])
	assert.Equal(t, basket.CategoryNeutral, beta["swot_category"])
	assert.Equal(t, true, beta["fallback"])
	assert.Equal(t, "Unable to calculate beta from price data", beta["fallback_reason"])
}

func TestHistoricalVolatility(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: true, yahooOK: true}).basket(t)

	hv := b.HistoricalVolatility(context.Background(), "AAPL", 30)

	value, ok := hv["value"].(float64)
	require.True(t, ok)

	// Alternating ±1% daily moves annualize to roughly 16%.
	assert.Greater(t, value, 10.0)
	assert.Less(t, value, 20.0)
	assert.Equal(t, "Low historical volatility - Stable price action", hv["interpretation"])
	assert.Equal(t, basket.CategoryStrength, hv["swot_category"])
	assert.Equal(t, "% annualized", hv["unit"])
	assert.Equal(t, 30, hv["period_days"])
}

func TestHistoricalVolatilityDefault(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: true, yahooOK: false}).basket(t)

	hv := b.HistoricalVolatility(context.Background(), "AAPL", 30)

	assert.Equal(t, 25.0, hv["value"])
	assert.Equal(t, "Unable to calculate historical volatility", hv["fallback_reason"])
	assert.Equal(t, volatility.SourceEstimated, hv["source"])
}

func TestImpliedVolatility(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: true, yahooOK: true}).basket(t)

	iv := b.ImpliedVolatility(context.Background(), "AAPL")

	// ATM strike for a 190.5 price is 190, carrying 29% IV.
	assert.Equal(t, 29.0, iv["value"])
	assert.Equal(t, 190.0, iv["strike"])
	assert.Equal(t, int64(1705622400), iv["expiration"])
	assert.Equal(t, "Moderate IV - Normal expected movement", iv["interpretation"])
	assert.Equal(t, basket.CategoryNeutral, iv["swot_category"])
	assert.Equal(t, volatility.SourceYahooOptions, iv["source"])
}

func TestImpliedVolatilityDefault(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: true, yahooOK: false}).basket(t)

	iv := b.ImpliedVolatility(context.Background(), "AAPL")

	assert.Equal(t, 30.0, iv["value"])
	assert.Equal(t, "Options data unavailable", iv["fallback_reason"])
	assert.Nil(t, iv["strike"])
}

func TestVolatilityBasket(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: true, yahooOK: true}).basket(t)

	result := b.VolatilityBasket(context.Background(), "AAPL")

	metrics, ok := result["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, metrics, "vix")
	assert.Contains(t, metrics, "beta")
	assert.Contains(t, metrics, "historical_volatility")
	assert.Contains(t, metrics, "implied_volatility")

	swot, ok := result["swot_summary"].(model.SWOTSummary)
	require.True(t, ok)

	// VIX 14.2 is an opportunity, beta 2.0 a weakness, stable price
	// action a strength; moderate IV stays neutral.
	require.Len(t, swot.Opportunities, 1)
	assert.Contains(t, swot.Opportunities[0], "VIX: 14.2")
	require.Len(t, swot.Weaknesses, 1)
	assert.Contains(t, swot.Weaknesses[0], "Beta: 2")
	require.Len(t, swot.Strengths, 1)
	assert.Contains(t, swot.Strengths[0], "Historical Volatility:")
	assert.Empty(t, swot.Threats)

	generatedAt, ok := result["generated_at"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(generatedAt, "2024-03-15T"))
}

func TestAllSources(t *testing.T) {
	t.Parallel()

	b := (&fixture{fredOK: true, yahooOK: true}).basket(t)

	result := b.AllSources(context.Background(), "AAPL")

	assert.Equal(t, model.GroupRawMetrics, result.Group)
	assert.Equal(t, "AAPL", result.Ticker)
	assert.Equal(t, volatility.ServerName, result.Source)

	fredEntry, ok := result.Sources["fred"]
	require.True(t, ok)

	vix, ok := fredEntry.Data["vix"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 14.2, vix["value"])
	assert.Equal(t, model.DataTypeDaily, vix["data_type"])
	assert.Equal(t, false, vix["fallback"])

	yahooEntry, ok := result.Sources["yahoo_finance"]
	require.True(t, ok)
	assert.Contains(t, yahooEntry.Data, "beta")
	assert.Contains(t, yahooEntry.Data, "historical_volatility")
	assert.Contains(t, yahooEntry.Data, "implied_volatility")

	avEntry, ok := result.Sources["alpha_vantage"]
	require.True(t, ok)

	avBeta, ok := avEntry.Data["beta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1.3, avBeta["value"])
	assert.Equal(t, model.DataTypeAnnual, avBeta["data_type"])
}
