// Package alphavantage fetches the company OVERVIEW report, used as the
// secondary source for valuation multiple cross-checks.
package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ratelimit"
)

// ErrNoKey is returned when no API key is configured.
var ErrNoKey = errors.New("alphavantage: api key not configured")

const defaultBaseURL = "https://www.alphavantage.co"

// Client is an Alpha Vantage API client.
type Client struct {
	fetcher *fetch.Client
	apiKey  string
	baseURL string
}

// NewClient builds an Alpha Vantage client.
func NewClient(fetcher *fetch.Client, apiKey string) *Client {
	return &Client{fetcher: fetcher, apiKey: apiKey, baseURL: defaultBaseURL}
}

// SetBaseURL overrides the endpoint base. Tests point it at a local server.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

// Overview is the company report. Alpha Vantage serializes every value
// as a string; Float handles the numeric fields.
type Overview map[string]string

// Float parses the named field; false when absent, "None", or "-".
func (o Overview) Float(key string) (float64, bool) {
	raw, ok := o[key]
	if !ok || raw == "" || raw == "None" || raw == "-" {
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// CompanyOverview fetches the OVERVIEW function for symbol. An empty
// report (unknown symbol) is an error.
func (c *Client) CompanyOverview(ctx context.Context, symbol string) (Overview, error) {
	if c.apiKey == "" {
		return nil, ErrNoKey
	}

	query := url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {symbol},
		"apikey":   {c.apiKey},
	}
	endpoint := fmt.Sprintf("%s/query?%s", c.baseURL, query.Encode())

	var overview Overview
	if err := c.fetcher.DecodeJSON(ctx, ratelimit.ProviderAlphaVantage, endpoint, nil, &overview); err != nil {
		return nil, err
	}

	// Unknown symbols and throttling both come back as 200 with a
	// sparse body.
	if _, ok := overview["Symbol"]; !ok {
		if note, ok := overview["Note"]; ok {
			return nil, fmt.Errorf("alphavantage: throttled: %s", note)
		}

		return nil, fmt.Errorf("alphavantage: no overview for %s", symbol)
	}

	return overview, nil
}
