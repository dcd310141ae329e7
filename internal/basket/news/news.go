// Package news implements the news basket: company coverage merged from
// Tavily web search and the NYT article archive, with keyword-derived
// SWOT hints and a financial-distress scanner.
package news

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/sources/nyt"
	"github.com/equityscope/equityscope/internal/sources/tavily"
)

// ServerName identifies this basket in tool responses.
const ServerName = "news-basket"

// Domains excluded from web search; social chatter belongs to the
// sentiment basket.
var socialDomains = []string{"reddit.com", "twitter.com", "x.com"}

// Keyword lists feeding the SWOT hints.
var (
	positiveSignals = []string{"upgrade", "beat", "growth", "strong", "positive"}
	negativeSignals = []string{"downgrade", "miss", "decline", "weak", "concern", "warning"}
)

const (
	companyNewsResults  = 5
	nytNewsResults      = 3
	distressResults     = 10
	trendResults        = 8
	competitorResults   = 5
	hintTitleLimit      = 80
	signalTitleLimit    = 60
	maxReportedSignals  = 5
	highRiskSignalCount = 3
)

// Deps holds the injectable collaborators. Nil Logger and Now get
// production defaults; a nil client skips that provider.
type Deps struct {
	Tavily *tavily.Client
	NYT    *nyt.Client
	Logger *slog.Logger
	Now    func() time.Time
}

// Basket is the news tool provider.
type Basket struct {
	tavily *tavily.Client
	nyt    *nyt.Client
	logger *slog.Logger
	now    func() time.Time
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

	return &Basket{tavily: deps.Tavily, nyt: deps.NYT, logger: logger, now: now}
}

// Tools returns the basket's tool set.
func (b *Basket) Tools() *basket.Set {
	return &basket.Set{
		Server: ServerName,
		Tools: []basket.Tool{
			{
				Name:        "tavily_search",
				Description: "General web search. Returns relevant articles with an AI-generated answer.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, args map[string]any) (any, error) {
					query, _ := args["query"].(string)
					depth, _ := args["search_depth"].(string)

					return b.WebSearch(ctx, query, depth, basket.IntArg(args, "max_results", companyNewsResults))
				},
			},
			{
				Name:        "nyt_search",
				Description: "Search New York Times articles. High-quality financial journalism.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, args map[string]any) (any, error) {
					query, _ := args["query"].(string)
					sort, _ := args["sort"].(string)

					return b.ArchiveSearch(ctx, query, sort, basket.IntArg(args, "max_results", companyNewsResults))
				},
			},
			{
				Name:        "search_company_news",
				Description: "Search recent company news from Tavily + NYT. Returns merged items with SWOT hints.",
				Handler: func(ctx context.Context, ticker string, args map[string]any) (any, error) {
					companyName, _ := args["company_name"].(string)

					return b.CompanyNews(ctx, ticker, companyName), nil
				},
			},
			{
				Name:        "search_going_concern_news",
				Description: "Search for going concern, bankruptcy, or financial distress news about a company.",
				Handler: func(ctx context.Context, ticker string, args map[string]any) (any, error) {
					companyName, _ := args["company_name"].(string)

					return b.GoingConcernNews(ctx, ticker, companyName)
				},
			},
			{
				Name:        "search_industry_trends",
				Description: "Search for industry trends and outlook.",
				NoTicker:    true,
				Handler: func(ctx context.Context, _ string, args map[string]any) (any, error) {
					industry, _ := args["industry"].(string)

					return b.IndustryTrends(ctx, industry)
				},
			},
			{
				Name:        "search_competitor_news",
				Description: "Search for news about competitor companies.",
				Handler: func(ctx context.Context, _ string, args map[string]any) (any, error) {
					return b.CompetitorNews(ctx, competitorList(args))
				},
			},
		},
	}
}

// WebSearch runs one Tavily query and shapes the hits.
func (b *Basket) WebSearch(ctx context.Context, query, depth string, maxResults int) (map[string]any, error) {
	if depth == "" {
		depth = tavily.DepthBasic
	}

	response, err := b.search(ctx, tavily.Request{
		Query:         query,
		SearchDepth:   depth,
		MaxResults:    maxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, err
	}

	items := tavilyItems(response)

	return map[string]any{
		"query":        query,
		"answer":       response.Answer,
		"results":      items,
		"result_count": len(items),
		"search_depth": depth,
		"source":       "Tavily",
		"as_of":        b.timestamp(),
	}, nil
}

// ArchiveSearch runs one NYT article search and shapes the documents.
func (b *Basket) ArchiveSearch(ctx context.Context, query, sort string, maxResults int) (map[string]any, error) {
	if b.nyt == nil {
		return nil, nyt.ErrNoKey
	}

	articles, totalHits, err := b.nyt.ArticleSearch(ctx, query, sort, maxResults)
	if err != nil {
		return nil, err
	}

	items := nytItems(articles)

	return map[string]any{
		"query":        query,
		"results":      items,
		"result_count": len(items),
		"total_hits":   totalHits,
		"source":       "NYT Article Search API",
		"as_of":        b.timestamp(),
	}, nil
}

// CompanyNews merges recent coverage from both providers. Provider
// failures shrink the merge rather than failing it: no coverage at all
// is still a valid, empty result.
func (b *Basket) CompanyNews(ctx context.Context, ticker, companyName string) map[string]any {
	query := fmt.Sprintf("%s stock news", ticker)
	if companyName != "" {
		query = fmt.Sprintf("%s (%s) stock news", companyName, ticker)
	}

	type webOutcome struct {
		response *tavily.Response
		err      error
	}

	webDone := make(chan webOutcome, 1)

	go func() {
		response, err := b.search(ctx, tavily.Request{
			Query:          query,
			SearchDepth:    tavily.DepthBasic,
			MaxResults:     companyNewsResults,
			ExcludeDomains: socialDomains,
			IncludeAnswer:  true,
		})
		webDone <- webOutcome{response: response, err: err}
	}()

	nytQuery := companyName
	if nytQuery == "" {
		nytQuery = ticker
	}

	var (
		items       []map[string]any
		sourcesUsed []string
		answer      string
	)

	articles, _, nytErr := b.archiveArticles(ctx, nytQuery)

	web := <-webDone
	if web.err != nil {
		b.logger.Warn("tavily search failed", "ticker", ticker, "error", web.err)
	} else if len(web.response.Results) > 0 {
		items = append(items, tavilyItems(web.response)...)
		sourcesUsed = append(sourcesUsed, "Tavily")
		answer = web.response.Answer
	}

	if nytErr != nil {
		b.logger.Warn("nyt search failed", "ticker", ticker, "error", nytErr)
	} else if len(articles) > 0 {
		items = append(items, nytItems(articles)...)
		sourcesUsed = append(sourcesUsed, "NYT")
	}

	source := "None"
	if len(sourcesUsed) > 0 {
		source = strings.Join(sourcesUsed, " + ")
	}

	result := map[string]any{
		"query":        query,
		"answer":       answer,
		"results":      items,
		"result_count": len(items),
		"sources":      sourcesUsed,
		"source":       source,
		"as_of":        b.timestamp(),
	}

	if len(items) > 0 {
		result["swot_hints"] = swotHints(items)
	}

	return result
}

// GoingConcernNews scans coverage for distress language and grades the
// signal density.
func (b *Basket) GoingConcernNews(ctx context.Context, ticker, companyName string) (map[string]any, error) {
	searchTerm := companyName
	if searchTerm == "" {
		searchTerm = ticker
	}

	query := fmt.Sprintf(`%q ("going concern" OR "substantial doubt" OR "bankruptcy" OR "liquidity crisis" OR "financial distress")`, searchTerm)

	response, err := b.search(ctx, tavily.Request{
		Query:          query,
		SearchDepth:    tavily.DepthAdvanced,
		MaxResults:     distressResults,
		ExcludeDomains: socialDomains,
		IncludeAnswer:  true,
	})
	if err != nil {
		return nil, err
	}

	items := tavilyItems(response)

	signals := make([]map[string]any, 0)

	for _, item := range items {
		title := strings.ToLower(asString(item["title"]))
		content := strings.ToLower(asString(item["content"]))
		label := truncate(asString(item["title"]), signalTitleLimit)

		if strings.Contains(content, "going concern") || strings.Contains(title, "going concern") {
			signals = append(signals, map[string]any{"type": "going_concern", "source": label})
		}

		if strings.Contains(content, "bankruptcy") || strings.Contains(title, "bankruptcy") {
			signals = append(signals, map[string]any{"type": "bankruptcy", "source": label})
		}

		if strings.Contains(content, "substantial doubt") {
			signals = append(signals, map[string]any{"type": "substantial_doubt", "source": label})
		}
	}

	riskLevel := "none"

	switch {
	case len(signals) >= highRiskSignalCount:
		riskLevel = "high"
	case len(signals) >= 1:
		riskLevel = "medium"
	}

	reported := signals
	if len(reported) > maxReportedSignals {
		reported = reported[:maxReportedSignals]
	}

	threats := []string{}
	if len(signals) > 0 {
		threats = append(threats, fmt.Sprintf("News coverage of financial distress (%d articles)", len(signals)))
	}

	return map[string]any{
		"query":        query,
		"answer":       response.Answer,
		"results":      items,
		"result_count": len(items),
		"risk_assessment": map[string]any{
			"risk_level":    riskLevel,
			"signals_found": len(signals),
			"signals":       reported,
		},
		"swot_implications": map[string]any{"threats": threats},
		"source":            "Tavily",
		"as_of":             b.timestamp(),
	}, nil
}

// IndustryTrends searches for sector outlook coverage spanning the
// current and next calendar year.
func (b *Basket) IndustryTrends(ctx context.Context, industry string) (map[string]any, error) {
	year := b.now().Year()
	query := fmt.Sprintf("%s industry trends outlook %d %d", industry, year, year+1)

	response, err := b.search(ctx, tavily.Request{
		Query:         query,
		SearchDepth:   tavily.DepthAdvanced,
		MaxResults:    trendResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, err
	}

	items := tavilyItems(response)

	return map[string]any{
		"query":        query,
		"answer":       response.Answer,
		"results":      items,
		"result_count": len(items),
		"source":       "Tavily",
		"as_of":        b.timestamp(),
	}, nil
}

// CompetitorNews searches market coverage across a competitor set.
func (b *Basket) CompetitorNews(ctx context.Context, competitors []string) (map[string]any, error) {
	query := fmt.Sprintf("(%s) stock news market", strings.Join(competitors, " OR "))

	response, err := b.search(ctx, tavily.Request{
		Query:         query,
		SearchDepth:   tavily.DepthBasic,
		MaxResults:    competitorResults,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, err
	}

	items := tavilyItems(response)

	return map[string]any{
		"query":        query,
		"answer":       response.Answer,
		"results":      items,
		"result_count": len(items),
		"source":       "Tavily",
		"as_of":        b.timestamp(),
	}, nil
}

func (b *Basket) search(ctx context.Context, req tavily.Request) (*tavily.Response, error) {
	if b.tavily == nil {
		return nil, tavily.ErrNoKey
	}

	return b.tavily.Search(ctx, req)
}

func (b *Basket) archiveArticles(ctx context.Context, query string) ([]nyt.Article, int, error) {
	if b.nyt == nil {
		return nil, 0, nyt.ErrNoKey
	}

	return b.nyt.ArticleSearch(ctx, query, nyt.SortNewest, nytNewsResults)
}

// swotHints buckets headlines by signal keywords in title or content.
func swotHints(items []map[string]any) map[string]any {
	opportunities := []string{}
	threats := []string{}

	for _, item := range items {
		title := asString(item["title"])
		haystack := strings.ToLower(title + " " + asString(item["content"]))
		label := truncate(title, hintTitleLimit)

		if containsAny(haystack, positiveSignals) {
			opportunities = append(opportunities, label)
		}

		if containsAny(haystack, negativeSignals) {
			threats = append(threats, label)
		}
	}

	return map[string]any{
		"opportunities": opportunities,
		"threats":       threats,
	}
}

func tavilyItems(response *tavily.Response) []map[string]any {
	items := make([]map[string]any, 0, len(response.Results))

	for _, r := range response.Results {
		items = append(items, map[string]any{
			"title":          r.Title,
			"url":            r.URL,
			"content":        r.Content,
			"score":          r.Score,
			"published_date": r.PublishedDate,
		})
	}

	return items
}

func nytItems(articles []nyt.Article) []map[string]any {
	items := make([]map[string]any, 0, len(articles))

	for _, a := range articles {
		items = append(items, map[string]any{
			"title":          a.Title,
			"url":            a.URL,
			"content":        a.Content,
			"published_date": a.PublishedDate,
			"section":        a.Section,
			"source":         "New York Times",
		})
	}

	return items
}

func competitorList(args map[string]any) []string {
	raw, _ := args["competitors"].([]any)

	competitors := make([]string, 0, len(raw))

	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			competitors = append(competitors, s)
		}
	}

	return competitors
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}

	return false
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit]
}

func asString(v any) string {
	s, _ := v.(string)

	return s
}

func (b *Basket) timestamp() string {
	return b.now().Format("2006-01-02T15:04:05Z07:00")
}
