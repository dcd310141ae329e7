package alphavantage_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/sources/alphavantage"
)

func TestCompanyOverview(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OVERVIEW", r.URL.Query().Get("function"))
		_, _ = w.Write([]byte(`{"Symbol":"AAPL","PERatio":"31.5","ForwardPE":"28.1","PriceToBookRatio":"45.2","PriceToSalesRatioTTM":"7.7","PEGRatio":"None"}`))
	}))
	defer srv.Close()

	client := alphavantage.NewClient(fetch.NewClient(fetch.Deps{HTTPClient: srv.Client()}), "key")
	client.SetBaseURL(srv.URL)

	overview, err := client.CompanyOverview(context.Background(), "AAPL")
	require.NoError(t, err)

	pe, ok := overview.Float("PERatio")
	require.True(t, ok)
	assert.InDelta(t, 31.5, pe, 0.001)

	_, ok = overview.Float("PEGRatio")
	assert.False(t, ok)
}

func TestCompanyOverviewThrottled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"Note":"API call frequency exceeded"}`))
	}))
	defer srv.Close()

	client := alphavantage.NewClient(fetch.NewClient(fetch.Deps{HTTPClient: srv.Client()}), "key")
	client.SetBaseURL(srv.URL)

	_, err := client.CompanyOverview(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestCompanyOverviewWithoutKey(t *testing.T) {
	t.Parallel()

	client := alphavantage.NewClient(fetch.NewClient(fetch.Deps{}), "")

	_, err := client.CompanyOverview(context.Background(), "AAPL")
	assert.ErrorIs(t, err, alphavantage.ErrNoKey)
}
