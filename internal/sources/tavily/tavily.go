// Package tavily wraps the Tavily web-search API used by the news
// basket for company coverage and distress scanning.
package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ratelimit"
)

// ErrNoKey is returned when no API key is configured.
var ErrNoKey = errors.New("tavily: api key not configured")

const defaultBaseURL = "https://api.tavily.com"

// Search depths.
const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

const maxResults = 10

// Client is a Tavily API client.
type Client struct {
	fetcher *fetch.Client
	apiKey  string
	baseURL string
}

// NewClient builds a Tavily client.
func NewClient(fetcher *fetch.Client, apiKey string) *Client {
	return &Client{fetcher: fetcher, apiKey: apiKey, baseURL: defaultBaseURL}
}

// SetBaseURL overrides the endpoint base. Tests point it at a local server.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

// Request is one search invocation.
type Request struct {
	Query          string
	SearchDepth    string
	MaxResults     int
	ExcludeDomains []string
	IncludeAnswer  bool
}

// Result is one search hit.
type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

// Response is the search outcome.
type Response struct {
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
}

// Search executes the query. MaxResults is clamped to the API's cap.
func (c *Client) Search(ctx context.Context, req Request) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrNoKey
	}

	depth := req.SearchDepth
	if depth == "" {
		depth = DepthBasic
	}

	count := req.MaxResults
	if count <= 0 || count > maxResults {
		count = maxResults
	}

	payload := map[string]any{
		"api_key":             c.apiKey,
		"query":               req.Query,
		"search_depth":        depth,
		"max_results":         count,
		"include_answer":      req.IncludeAnswer,
		"include_raw_content": false,
	}

	if len(req.ExcludeDomains) > 0 {
		payload["exclude_domains"] = req.ExcludeDomains
	}

	body, err := c.fetcher.Post(ctx, ratelimit.ProviderTavily, c.baseURL+"/search", nil, payload)
	if err != nil {
		return nil, err
	}

	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: tavily: %v", fetch.ErrParse, err)
	}

	return &response, nil
}
