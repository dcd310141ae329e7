// Package finnhub fetches company news for the sentiment basket.
package finnhub

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ratelimit"
)

// ErrNoKey is returned when no API key is configured.
var ErrNoKey = errors.New("finnhub: api key not configured")

const defaultBaseURL = "https://finnhub.io/api/v1"

// Client is a Finnhub API client.
type Client struct {
	fetcher *fetch.Client
	apiKey  string
	baseURL string

	now func() time.Time
}

// NewClient builds a Finnhub client.
func NewClient(fetcher *fetch.Client, apiKey string) *Client {
	return &Client{
		fetcher: fetcher,
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		now:     time.Now,
	}
}

// SetBaseURL overrides the endpoint base. Tests point it at a local server.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

// Article is one company-news entry. Datetime is a Unix timestamp.
type Article struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Datetime int64  `json:"datetime"`
}

// Date formats the article timestamp as a UTC calendar date.
func (a Article) Date() string {
	if a.Datetime == 0 {
		return ""
	}

	return time.Unix(a.Datetime, 0).UTC().Format("2006-01-02")
}

// CompanyNews fetches the last seven days of news for symbol.
func (c *Client) CompanyNews(ctx context.Context, symbol string) ([]Article, error) {
	if c.apiKey == "" {
		return nil, ErrNoKey
	}

	today := c.now().UTC()
	weekAgo := today.AddDate(0, 0, -7)

	query := url.Values{
		"symbol": {symbol},
		"from":   {weekAgo.Format("2006-01-02")},
		"to":     {today.Format("2006-01-02")},
		"token":  {c.apiKey},
	}
	endpoint := fmt.Sprintf("%s/company-news?%s", c.baseURL, query.Encode())

	var articles []Article
	if err := c.fetcher.DecodeJSON(ctx, ratelimit.ProviderFinnhub, endpoint, nil, &articles); err != nil {
		return nil, err
	}

	return articles, nil
}
