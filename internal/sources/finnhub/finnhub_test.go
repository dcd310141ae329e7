package finnhub_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/sources/finnhub"
)

func TestCompanyNews(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TSLA", r.URL.Query().Get("symbol"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		_, _ = w.Write([]byte(`[
			{"headline":"Deliveries beat","summary":"Quarterly deliveries above estimates","url":"https://example.com/1","source":"Wire","datetime":1700000000},
			{"headline":"Recall notice","summary":"","url":"https://example.com/2","source":"Wire","datetime":1699900000}
		]`))
	}))
	defer srv.Close()

	client := finnhub.NewClient(fetch.NewClient(fetch.Deps{HTTPClient: srv.Client()}), "key")
	client.SetBaseURL(srv.URL)

	articles, err := client.CompanyNews(context.Background(), "TSLA")
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "Deliveries beat", articles[0].Headline)
	assert.Equal(t, "2023-11-14", articles[0].Date())
}

func TestCompanyNewsWithoutKey(t *testing.T) {
	t.Parallel()

	client := finnhub.NewClient(fetch.NewClient(fetch.Deps{}), "")

	_, err := client.CompanyNews(context.Background(), "TSLA")
	assert.ErrorIs(t, err, finnhub.ErrNoKey)
}
