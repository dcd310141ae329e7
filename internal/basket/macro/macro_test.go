package macro_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/basket/macro"
	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/sources/fred"
)

// cpiObservations builds thirteen monthly CPI levels where the latest
// sits exactly 3% above the reading twelve months back.
func cpiObservations() string {
	var sb strings.Builder

	sb.WriteString(`{"observations":[`)
	sb.WriteString(`{"date":"2024-02-01","value":"309.0"}`)

	for i := 1; i <= 10; i++ {
		month := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -i, 0)
		sb.WriteString(fmt.Sprintf(`,{"date":%q,"value":"305.0"}`, month.Format("2006-01-02")))
	}

	sb.WriteString(`,{"date":"2023-03-01","value":"300.0"}`)
	sb.WriteString(`,{"date":"2023-02-01","value":"299.0"}`)
	sb.WriteString(`]}`)

	return sb.String()
}

func newBasket(t *testing.T, fredOK bool) *macro.Basket {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/series/observations", func(w http.ResponseWriter, r *http.Request) {
		if !fredOK {
			http.Error(w, "down", http.StatusNotFound)

			return
		}

		switch r.URL.Query().Get("series_id") {
		case fred.SeriesGDPGrowth:
			_, _ = w.Write([]byte(`{"observations":[
				{"date":"2024-01-01","value":"3.4"},
				{"date":"2023-10-01","value":"4.9"}
			]}`))
		case fred.SeriesFedFunds:
			_, _ = w.Write([]byte(`{"observations":[
				{"date":"2024-02-01","value":"5.33"},
				{"date":"2024-01-01","value":"5.33"}
			]}`))
		case fred.SeriesCPI:
			_, _ = w.Write([]byte(cpiObservations()))
		case fred.SeriesUnemployment:
			_, _ = w.Write([]byte(`{"observations":[
				{"date":"2024-02-01","value":"3.9"},
				{"date":"2024-01-01","value":"3.7"}
			]}`))
		default:
			http.Error(w, "unknown series", http.StatusNotFound)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	fetcher := fetch.NewClient(fetch.Deps{HTTPClient: srv.Client()})

	fredClient := fred.NewClient(fetcher, "test-key")
	fredClient.SetBaseURL(srv.URL)

	return macro.New(macro.Deps{
		FRED: fredClient,
		Now:  func() time.Time { return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC) },
	})
}

func TestGDPGrowth(t *testing.T) {
	t.Parallel()

	b := newBasket(t, true)

	gdp := b.GDPGrowth(context.Background())

	assert.Equal(t, "GDP Growth", gdp["metric"])
	assert.Equal(t, 3.4, gdp["value"])
	assert.Equal(t, 4.9, gdp["previous_value"])
	assert.Equal(t, "% change (quarterly, annualized)", gdp["unit"])
	assert.Equal(t, "2024-01-01", gdp["date"])
	assert.Equal(t, "Strong economic growth - Favorable business environment", gdp["interpretation"])
	assert.Equal(t, basket.CategoryOpportunity, gdp["swot_category"])
	assert.Equal(t, macro.SourceFRED, gdp["source"])
	assert.Equal(t, "2024-03-15", gdp["as_of"])
	assert.NotContains(t, gdp, "fallback")
}

func TestGDPGrowthDefault(t *testing.T) {
	t.Parallel()

	b := newBasket(t, false)

	gdp := b.GDPGrowth(context.Background())

	assert.Equal(t, 2.5, gdp["value"])
	assert.Equal(t, "Moderate growth - Stable economic conditions (estimated)", gdp["interpretation"])
	assert.Equal(t, basket.CategoryNeutral, gdp["swot_category"])
	assert.Equal(t, macro.SourceEstimated, gdp["source"])
	assert.Equal(t, true, gdp["fallback"])
	assert.Equal(t, "FRED API unavailable", gdp["fallback_reason"])
	assert.Equal(t, true, gdp["estimated"])
	assert.Nil(t, gdp["date"])
}

func TestInterestRates(t *testing.T) {
	t.Parallel()

	b := newBasket(t, true)

	rates := b.InterestRates(context.Background())

	assert.Equal(t, "Federal Funds Rate", rates["metric"])
	assert.Equal(t, 5.33, rates["value"])
	assert.Equal(t, 5.33, rates["previous_value"])
	assert.Equal(t, "stable", rates["trend"])
	assert.Equal(t, "High interest rates (stable) - Tight monetary policy, higher borrowing costs", rates["interpretation"])
	assert.Equal(t, basket.CategoryThreat, rates["swot_category"])
	assert.Equal(t, macro.SourceFRED, rates["source"])
}

func TestInterestRatesDefault(t *testing.T) {
	t.Parallel()

	b := newBasket(t, false)

	rates := b.InterestRates(context.Background())

	assert.Equal(t, 5.0, rates["value"])
	assert.Equal(t, "stable", rates["trend"])
	assert.Equal(t, "High interest rates - Tight monetary policy (estimated)", rates["interpretation"])
	assert.Equal(t, basket.CategoryNeutral, rates["swot_category"])
	assert.Equal(t, macro.SourceEstimated, rates["source"])
}

func TestCPI(t *testing.T) {
	t.Parallel()

	b := newBasket(t, true)

	cpi := b.CPI(context.Background())

	assert.Equal(t, "CPI / Inflation", cpi["metric"])
	assert.Equal(t, 3.0, cpi["value"])
	assert.Equal(t, "% YoY", cpi["unit"])
	assert.Equal(t, 2.0, cpi["fed_target"])
	assert.Equal(t, "2024-02-01", cpi["date"])
	assert.Equal(t, "Moderate inflation - Near Fed target (2%)", cpi["interpretation"])
	assert.Equal(t, basket.CategoryNeutral, cpi["swot_category"])
	assert.Equal(t, macro.SourceFRED, cpi["source"])
}

func TestCPIDefault(t *testing.T) {
	t.Parallel()

	b := newBasket(t, false)

	cpi := b.CPI(context.Background())

	assert.Equal(t, 3.0, cpi["value"])
	assert.Equal(t, 2.0, cpi["fed_target"])
	assert.Equal(t, "Moderate inflation - Near Fed target (estimated)", cpi["interpretation"])
	assert.Equal(t, macro.SourceEstimated, cpi["source"])
	assert.Equal(t, true, cpi["fallback"])
}

func TestUnemployment(t *testing.T) {
	t.Parallel()

	b := newBasket(t, true)

	unemployment := b.Unemployment(context.Background())

	assert.Equal(t, "Unemployment Rate", unemployment["metric"])
	assert.Equal(t, 3.9, unemployment["value"])
	assert.Equal(t, 3.7, unemployment["previous_value"])

	// A 0.2 point move sits exactly on the trend threshold.
	assert.Equal(t, "stable", unemployment["trend"])
	assert.Equal(t, "Low unemployment (stable) - Tight labor market, wage pressures", unemployment["interpretation"])
	assert.Equal(t, basket.CategoryOpportunity, unemployment["swot_category"])
	assert.Equal(t, macro.SourceFRED, unemployment["source"])
}

func TestUnemploymentDefault(t *testing.T) {
	t.Parallel()

	b := newBasket(t, false)

	unemployment := b.Unemployment(context.Background())

	assert.Equal(t, 4.0, unemployment["value"])
	assert.Equal(t, "Low unemployment - Tight labor market (estimated)", unemployment["interpretation"])
	assert.Equal(t, basket.CategoryOpportunity, unemployment["swot_category"])
	assert.Equal(t, macro.SourceEstimated, unemployment["source"])
}

func TestMacroBasket(t *testing.T) {
	t.Parallel()

	b := newBasket(t, true)

	result := b.MacroBasket(context.Background())

	assert.Equal(t, "Macro Indicators", result["basket"])

	metrics, ok := result["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, metrics, "gdp_growth")
	assert.Contains(t, metrics, "interest_rate")
	assert.Contains(t, metrics, "cpi_inflation")
	assert.Contains(t, metrics, "unemployment")

	swot, ok := result["swot_summary"].(model.SWOTSummary)
	require.True(t, ok)

	// Strong GDP and low unemployment are opportunities; high rates are
	// the lone threat, so the overall read is favorable.
	require.Len(t, swot.Opportunities, 2)
	assert.Contains(t, swot.Opportunities[0], "GDP Growth: 3.4% change (quarterly, annualized)")
	require.Len(t, swot.Threats, 1)
	assert.Contains(t, swot.Threats[0], "Federal Funds Rate: 5.33%")
	assert.Empty(t, swot.Strengths)
	assert.Empty(t, swot.Weaknesses)

	assert.Equal(t, "Favorable macroeconomic environment", result["overall_assessment"])
	assert.Equal(t, "2024-03-15", result["generated_at"])
}

func TestMacroBasketAllDefaults(t *testing.T) {
	t.Parallel()

	b := newBasket(t, false)

	result := b.MacroBasket(context.Background())

	// Defaults carry one opportunity (low unemployment) and no threats.
	assert.Equal(t, "Neutral macroeconomic conditions", result["overall_assessment"])
}

func TestAllSources(t *testing.T) {
	t.Parallel()

	b := newBasket(t, true)

	result := b.AllSources(context.Background())

	assert.Equal(t, model.GroupRawMetrics, result.Group)
	assert.Equal(t, "MACRO", result.Ticker)
	assert.Equal(t, macro.ServerName, result.Source)
	assert.Equal(t, "2024-03-15", result.AsOf)

	fredEntry, ok := result.Sources["fred"]
	require.True(t, ok)
	assert.Equal(t, macro.SourceFRED, fredEntry.Source)

	gdp, ok := fredEntry.Data["gdp_growth"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3.4, gdp["value"])
	assert.Equal(t, model.DataTypeQuarterly, gdp["data_type"])
	assert.Equal(t, "2024-01-01", gdp["as_of"])
	assert.Equal(t, false, gdp["fallback"])

	unemployment, ok := fredEntry.Data["unemployment"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, model.DataTypeMonthly, unemployment["data_type"])
	assert.Contains(t, fredEntry.Data, "interest_rate")
	assert.Contains(t, fredEntry.Data, "cpi_inflation")
}

func TestToolsTakeNoTicker(t *testing.T) {
	t.Parallel()

	b := newBasket(t, true)

	set := b.Tools()
	assert.Equal(t, macro.ServerName, set.Server)
	require.Len(t, set.Tools, 6)

	for _, tool := range set.Tools {
		assert.True(t, tool.NoTicker, tool.Name)
	}

	result := set.Invoke(context.Background(), nil, "get_gdp", map[string]any{})

	payload, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 3.4, payload["value"])
}
