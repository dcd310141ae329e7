// Package nyt wraps the New York Times Article Search API, the second
// leg of the news basket.
package nyt

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ratelimit"
)

// ErrNoKey is returned when no API key is configured.
var ErrNoKey = errors.New("nyt: api key not configured")

const defaultBaseURL = "https://api.nytimes.com/svc/search/v2/articlesearch.json"

// Sort orders accepted by the API.
const (
	SortNewest    = "newest"
	SortOldest    = "oldest"
	SortRelevance = "relevance"
)

// Client is an NYT Article Search client.
type Client struct {
	fetcher *fetch.Client
	apiKey  string
	baseURL string
}

// NewClient builds an NYT client.
func NewClient(fetcher *fetch.Client, apiKey string) *Client {
	return &Client{fetcher: fetcher, apiKey: apiKey, baseURL: defaultBaseURL}
}

// SetBaseURL overrides the endpoint. Tests point it at a local server.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

// Article is one search document, flattened.
type Article struct {
	Title         string
	URL           string
	Content       string
	PublishedDate string
	Section       string
}

type searchEnvelope struct {
	Response struct {
		Docs []struct {
			Headline struct {
				Main string `json:"main"`
			} `json:"headline"`
			WebURL        string `json:"web_url"`
			Snippet       string `json:"snippet"`
			LeadParagraph string `json:"lead_paragraph"`
			PubDate       string `json:"pub_date"`
			SectionName   string `json:"section_name"`
		} `json:"docs"`
		Meta struct {
			Hits int `json:"hits"`
		} `json:"meta"`
	} `json:"response"`
}

// ArticleSearch queries the archive, returning at most limit articles.
func (c *Client) ArticleSearch(ctx context.Context, query, sort string, limit int) ([]Article, int, error) {
	if c.apiKey == "" {
		return nil, 0, ErrNoKey
	}

	if sort == "" {
		sort = SortNewest
	}

	params := url.Values{
		"api-key": {c.apiKey},
		"q":       {query},
		"sort":    {sort},
		"page":    {"0"},
	}
	endpoint := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var envelope searchEnvelope
	if err := c.fetcher.DecodeJSON(ctx, ratelimit.ProviderNYT, endpoint, nil, &envelope); err != nil {
		return nil, 0, err
	}

	docs := envelope.Response.Docs
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	articles := make([]Article, 0, len(docs))

	for _, doc := range docs {
		content := doc.Snippet
		if content == "" {
			content = doc.LeadParagraph
		}

		articles = append(articles, Article{
			Title:         doc.Headline.Main,
			URL:           doc.WebURL,
			Content:       content,
			PublishedDate: doc.PubDate,
			Section:       doc.SectionName,
		})
	}

	return articles, envelope.Response.Meta.Hits, nil
}
