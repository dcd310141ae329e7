// Package reddit fetches retail-investor posts from the public search
// endpoints of r/WallStreetBets and r/stocks.
package reddit

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ratelimit"
)

const defaultBaseURL = "https://www.reddit.com"

// Subreddits searched for ticker mentions.
var DefaultSubreddits = []string{"wallstreetbets", "stocks"}

const maxSelftextLen = 500

// Client is a Reddit public-JSON client.
type Client struct {
	fetcher *fetch.Client
	baseURL string
}

// NewClient builds a Reddit client.
func NewClient(fetcher *fetch.Client) *Client {
	return &Client{fetcher: fetcher, baseURL: defaultBaseURL}
}

// SetBaseURL overrides the endpoint base. Tests point it at a local server.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

// Post is one search hit.
type Post struct {
	Title     string
	Selftext  string
	URL       string
	Subreddit string
	Upvotes   int
	Created   string
}

type listingEnvelope struct {
	Data struct {
		Children []struct {
			Data struct {
				Title      string  `json:"title"`
				Selftext   string  `json:"selftext"`
				Permalink  string  `json:"permalink"`
				Ups        int     `json:"ups"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// Search queries one subreddit for posts from the last week. Rate-limit
// rejections surface as errors; callers skip the subreddit and continue.
func (c *Client) Search(ctx context.Context, subreddit, query string, limit int) ([]Post, error) {
	params := url.Values{
		"q":           {query},
		"sort":        {"relevance"},
		"t":           {"week"},
		"limit":       {fmt.Sprintf("%d", limit)},
		"restrict_sr": {"true"},
	}
	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", c.baseURL, url.PathEscape(subreddit), params.Encode())

	headers := map[string]string{"User-Agent": "equityscope/1.0"}

	var envelope listingEnvelope
	if err := c.fetcher.DecodeJSON(ctx, ratelimit.ProviderReddit, endpoint, headers, &envelope); err != nil {
		return nil, err
	}

	posts := make([]Post, 0, len(envelope.Data.Children))

	for _, child := range envelope.Data.Children {
		d := child.Data

		selftext := d.Selftext
		if len(selftext) > maxSelftextLen {
			selftext = selftext[:maxSelftextLen]
		}

		post := Post{
			Title:     d.Title,
			Selftext:  selftext,
			Subreddit: "r/" + subreddit,
			Upvotes:   d.Ups,
		}

		if d.Permalink != "" {
			post.URL = "https://reddit.com" + d.Permalink
		}

		if d.CreatedUTC > 0 {
			post.Created = time.Unix(int64(d.CreatedUTC), 0).UTC().Format("2006-01-02")
		}

		posts = append(posts, post)
	}

	return posts, nil
}
