// Package sentiment implements the sentiment basket: raw retail and
// newswire content from Finnhub company news and Reddit, normalized for
// downstream sentiment analysis. No scoring happens here.
package sentiment

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/sources/finnhub"
	"github.com/equityscope/equityscope/internal/sources/reddit"
)

// ServerName identifies this basket in tool responses.
const ServerName = "sentiment-basket"

const maxArticles = 50

// Deps holds the injectable collaborators. Nil Logger and Now get
// production defaults; a nil client skips that provider.
type Deps struct {
	Finnhub *finnhub.Client
	Reddit  *reddit.Client
	Logger  *slog.Logger
	Now     func() time.Time
}

// Basket is the sentiment tool provider.
type Basket struct {
	finnhub *finnhub.Client
	reddit  *reddit.Client
	logger  *slog.Logger
	now     func() time.Time
}

// New builds the basket from deps.
func New(deps Deps) *Basket {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Basket{finnhub: deps.Finnhub, reddit: deps.Reddit, logger: logger, now: now}
}

// Tools returns the basket's tool set.
func (b *Basket) Tools() *basket.Set {
	return &basket.Set{
		Server: ServerName,
		Tools: []basket.Tool{
			{
				Name:        "get_finnhub_news",
				Description: "Get news articles from Finnhub company news. Returns raw articles without sentiment scoring.",
				Handler: func(ctx context.Context, ticker string, _ map[string]any) (any, error) {
					return b.FinnhubNews(ctx, ticker)
				},
			},
			{
				Name:        "get_reddit_posts",
				Description: "Get retail investor posts from Reddit (r/WallStreetBets, r/stocks). Returns raw posts without sentiment scoring.",
				Handler: func(ctx context.Context, ticker string, _ map[string]any) (any, error) {
					return b.RedditPosts(ctx, ticker), nil
				},
			},
			{
				Name:        "get_sentiment_basket",
				Description: "Get full content basket (Finnhub + Reddit) with raw articles and posts, normalized for downstream scoring.",
				Handler: func(ctx context.Context, ticker string, _ map[string]any) (any, error) {
					return b.ContentBasket(ctx, ticker), nil
				},
			},
		},
	}
}

// FinnhubNews fetches the last week of company news, capped at 50
// articles.
func (b *Basket) FinnhubNews(ctx context.Context, ticker string) (map[string]any, error) {
	if b.finnhub == nil {
		return nil, finnhub.ErrNoKey
	}

	articles, err := b.finnhub.CompanyNews(ctx, ticker)
	if err != nil {
		return nil, err
	}

	total := len(articles)
	if len(articles) > maxArticles {
		articles = articles[:maxArticles]
	}

	shaped := make([]map[string]any, 0, len(articles))

	for _, a := range articles {
		shaped = append(shaped, map[string]any{
			"headline": a.Headline,
			"summary":  a.Summary,
			"url":      a.URL,
			"source":   a.Source,
			"datetime": a.Date(),
		})
	}

	return map[string]any{
		"metric":         "Finnhub News",
		"ticker":         ticker,
		"articles_count": len(shaped),
		"total_articles": total,
		"articles":       shaped,
		"source":         "Finnhub",
		"as_of":          basket.Date(b.now()),
	}, nil
}

// RedditPosts searches the default subreddits for ticker mentions. A
// failing subreddit is skipped; no mentions is a valid, empty result.
func (b *Basket) RedditPosts(ctx context.Context, ticker string) map[string]any {
	posts := b.redditPosts(ctx, ticker)

	totalUpvotes := 0
	shaped := make([]map[string]any, 0, len(posts))

	for _, p := range posts {
		totalUpvotes += p.Upvotes

		shaped = append(shaped, map[string]any{
			"title":       p.Title,
			"selftext":    p.Selftext,
			"url":         p.URL,
			"subreddit":   p.Subreddit,
			"upvotes":     p.Upvotes,
			"created_utc": p.Created,
		})
	}

	return map[string]any{
		"metric":        "Reddit Posts",
		"ticker":        ticker,
		"posts_count":   len(shaped),
		"total_upvotes": totalUpvotes,
		"posts":         shaped,
		"source":        "Reddit (Public)",
		"as_of":         basket.Date(b.now()),
	}
}

// ContentBasket merges both providers into the content_analysis
// envelope: items sorted newest first, ready for downstream scoring.
// Provider failures shrink the merge rather than failing it.
func (b *Basket) ContentBasket(ctx context.Context, ticker string) map[string]any {
	type newsOutcome struct {
		articles []finnhub.Article
		err      error
	}

	newsDone := make(chan newsOutcome, 1)

	go func() {
		articles, err := b.companyNews(ctx, ticker)
		newsDone <- newsOutcome{articles: articles, err: err}
	}()

	posts := b.redditPosts(ctx, ticker)

	items := []model.ContentItem{}
	sourcesUsed := []string{}

	news := <-newsDone
	if news.err != nil {
		b.logger.Warn("finnhub news failed", "ticker", ticker, "error", news.err)
	} else if len(news.articles) > 0 {
		sourcesUsed = append(sourcesUsed, "Finnhub")

		articles := news.articles
		if len(articles) > maxArticles {
			articles = articles[:maxArticles]
		}

		for _, a := range articles {
			items = append(items, model.ContentItem{
				Title:    a.Headline,
				Content:  a.Summary,
				URL:      a.URL,
				Datetime: a.Date(),
				Source:   "Finnhub",
			})
		}
	}

	if len(posts) > 0 {
		sourcesUsed = append(sourcesUsed, "Reddit")

		for _, p := range posts {
			items = append(items, model.ContentItem{
				Title:     p.Title,
				Content:   p.Selftext,
				URL:       p.URL,
				Datetime:  p.Created,
				Source:    "Reddit",
				Subreddit: p.Subreddit,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Datetime > items[j].Datetime
	})

	return map[string]any{
		"group":        model.GroupContentAnalysis,
		"ticker":       ticker,
		"items":        items,
		"item_count":   len(items),
		"sources_used": sourcesUsed,
		"source":       ServerName,
		"as_of":        basket.Date(b.now()),
	}
}

func (b *Basket) companyNews(ctx context.Context, ticker string) ([]finnhub.Article, error) {
	if b.finnhub == nil {
		return nil, finnhub.ErrNoKey
	}

	return b.finnhub.CompanyNews(ctx, ticker)
}

func (b *Basket) redditPosts(ctx context.Context, ticker string) []reddit.Post {
	if b.reddit == nil {
		return nil
	}

	var posts []reddit.Post

	for _, subreddit := range reddit.DefaultSubreddits {
		found, err := b.reddit.Search(ctx, subreddit, ticker, 10)
		if err != nil {
			b.logger.Warn("reddit search failed",
				"subreddit", subreddit, "ticker", ticker, "error", err)

			continue
		}

		posts = append(posts, found...)
	}

	return posts
}
