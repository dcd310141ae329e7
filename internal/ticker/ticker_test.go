package ticker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equityscope/equityscope/internal/cache"
	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ticker"
)

func TestResolveKnownCompany(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		ticker string
		name   string
	}{
		{"Tesla", "TSLA", "Tesla"},
		{"tesla", "TSLA", "Tesla"},
		{"Apple Inc.", "AAPL", "Apple"},
		{"The Coca-Cola Company", "KO", "Coca-Cola"},
		{"Meta Platforms, Inc.", "META", "Meta"},
		{"johnson & johnson", "JNJ", "Johnson & Johnson"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			id, err := ticker.Resolve(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.ticker, id.Ticker)
			assert.Equal(t, tt.name, id.CompanyName)
		})
	}
}

func TestResolveBareTicker(t *testing.T) {
	t.Parallel()

	id, err := ticker.Resolve("NVDA")
	require.NoError(t, err)
	assert.Equal(t, "NVDA", id.Ticker)

	id, err = ticker.Resolve("BRK.B")
	require.NoError(t, err)
	assert.Equal(t, "BRK.B", id.Ticker)
}

func TestResolveShortUnknownAssumedTicker(t *testing.T) {
	t.Parallel()

	id, err := ticker.Resolve("gme")
	require.NoError(t, err)
	assert.Equal(t, "GME", id.Ticker)
}

func TestResolveNoMatch(t *testing.T) {
	t.Parallel()

	_, err := ticker.Resolve("")
	assert.ErrorIs(t, err, ticker.ErrNoMatch)

	_, err = ticker.Resolve("some entirely unrelated phrase about markets")
	assert.ErrorIs(t, err, ticker.ErrNoMatch)
}

func TestCleanCompanyName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"NVIDIA Corporation", "NVIDIA"},
		{"Meta Platforms, Inc.", "Meta"},
		{"Alphabet Inc. - Class A Common Stock", "Alphabet"},
		{"The Walt Disney Company", "Walt Disney"},
		{"Shopify", "Shopify"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ticker.CleanCompanyName(tt.in), tt.in)
	}
}

func TestCIKResolver(t *testing.T) {
	t.Parallel()

	var hits int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{
			"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
			"1": {"cik_str": 1318605, "ticker": "TSLA", "title": "Tesla, Inc."}
		}`))
	}))
	defer srv.Close()

	client := fetch.NewClient(fetch.Deps{HTTPClient: srv.Client()})
	resolver := ticker.NewCIKResolver(client, cache.NewStore(), "test test@example.com")
	resolver.SetDirectoryURL(srv.URL)

	cik, err := resolver.Resolve(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "0000320193", cik)

	// Second symbol was warmed by the first fetch.
	cik, err = resolver.Resolve(context.Background(), "tsla")
	require.NoError(t, err)
	assert.Equal(t, "0001318605", cik)
	assert.Equal(t, 1, hits)
}

func TestCIKResolverNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}}`))
	}))
	defer srv.Close()

	client := fetch.NewClient(fetch.Deps{HTTPClient: srv.Client()})
	resolver := ticker.NewCIKResolver(client, nil, "test test@example.com")
	resolver.SetDirectoryURL(srv.URL)

	_, err := resolver.Resolve(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, ticker.ErrCIKNotFound)
}

func TestFormatCIK(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0000320193", ticker.FormatCIK(320193))
}
