// Package worker hosts the basket tool sets behind the two transports
// the aggregator speaks: an MCP stdio server for child-process workers
// and a load-balanceable HTTP server for the fundamentals basket.
package worker

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/basket/fundamentals"
	"github.com/equityscope/equityscope/internal/basket/macro"
	"github.com/equityscope/equityscope/internal/basket/news"
	"github.com/equityscope/equityscope/internal/basket/sentiment"
	"github.com/equityscope/equityscope/internal/basket/valuation"
	"github.com/equityscope/equityscope/internal/basket/volatility"
	"github.com/equityscope/equityscope/internal/breaker"
	"github.com/equityscope/equityscope/internal/cache"
	"github.com/equityscope/equityscope/internal/config"
	"github.com/equityscope/equityscope/internal/fetch"
	"github.com/equityscope/equityscope/internal/ratelimit"
	"github.com/equityscope/equityscope/internal/sources/alphavantage"
	"github.com/equityscope/equityscope/internal/sources/finnhub"
	"github.com/equityscope/equityscope/internal/sources/fred"
	"github.com/equityscope/equityscope/internal/sources/nyt"
	"github.com/equityscope/equityscope/internal/sources/reddit"
	"github.com/equityscope/equityscope/internal/sources/sec"
	"github.com/equityscope/equityscope/internal/sources/tavily"
	"github.com/equityscope/equityscope/internal/sources/yahoo"
	"github.com/equityscope/equityscope/internal/ticker"
)

// Basket ids in the aggregator's invocation order.
var BasketOrder = []string{
	fundamentals.ServerName,
	valuation.ServerName,
	volatility.ServerName,
	macro.ServerName,
	news.ServerName,
	sentiment.ServerName,
}

// Registry holds the basket tool sets of one worker process, keyed by
// server name. Each basket owns its provider clients; the shared
// fetcher carries the process-wide rate limiters and breakers.
type Registry struct {
	sets     map[string]*basket.Set
	store    *cache.Store
	breakers *breaker.Registry
}

// BuildDeps configures registry construction. Nil HTTPClient and Logger
// get production defaults.
type BuildDeps struct {
	Config     *config.Config
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Build wires every basket from configuration. Providers with missing
// keys stay registered; their baskets advance down the fallback chain
// at call time.
func Build(deps BuildDeps) *Registry {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	breakers := breaker.NewRegistry(breaker.DefaultConfig())

	// Yahoo rate-limits aggressively; trip faster and probe less often.
	breakers.Override(ratelimit.ProviderYahooFinance, breaker.Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		HalfOpenTimeout:  60 * time.Second,
	})

	fetcher := fetch.NewClient(fetch.Deps{
		HTTPClient: deps.HTTPClient,
		Limits:     ratelimit.NewRegistry(),
		Breakers:   breakers,
		Logger:     logger,
	})

	keys := deps.Config.Keys
	store := cache.NewStore()
	pool := fetch.NewCallPool()

	secClient := sec.NewClient(fetcher, keys.SECUserAgent)
	yahooClient := yahoo.NewClient(fetcher, pool)
	avClient := alphavantage.NewClient(fetcher, keys.AlphaVantage)
	fredClient := fred.NewClient(fetcher, keys.FRED)
	finnhubClient := finnhub.NewClient(fetcher, keys.Finnhub)
	redditClient := reddit.NewClient(fetcher)
	tavilyClient := tavily.NewClient(fetcher, keys.Tavily)
	nytClient := nyt.NewClient(fetcher, keys.NYT)

	ciks := ticker.NewCIKResolver(fetcher, store, keys.SECUserAgent)

	sets := map[string]*basket.Set{}

	register := func(set *basket.Set) { sets[set.Server] = set }

	register(fundamentals.New(fundamentals.Deps{
		SEC:    secClient,
		Yahoo:  yahooClient,
		CIKs:   ciks,
		Store:  store,
		Logger: logger,
	}).Tools())

	register(valuation.New(valuation.Deps{
		Yahoo:        yahooClient,
		AlphaVantage: avClient,
		Logger:       logger,
	}).Tools())

	register(volatility.New(volatility.Deps{
		FRED:         fredClient,
		Yahoo:        yahooClient,
		AlphaVantage: avClient,
		Logger:       logger,
	}).Tools())

	register(macro.New(macro.Deps{
		FRED:   fredClient,
		Logger: logger,
	}).Tools())

	register(news.New(news.Deps{
		Tavily: tavilyClient,
		NYT:    nytClient,
		Logger: logger,
	}).Tools())

	register(sentiment.New(sentiment.Deps{
		Finnhub: finnhubClient,
		Reddit:  redditClient,
		Logger:  logger,
	}).Tools())

	return &Registry{sets: sets, store: store, breakers: breakers}
}

// Set returns the tool set for a basket server name.
func (r *Registry) Set(name string) (*basket.Set, bool) {
	set, ok := r.sets[name]

	return set, ok
}

// Names returns the registered basket server names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// CacheStats snapshots the shared cache store for health reporting.
func (r *Registry) CacheStats() map[string]cache.Stats {
	return r.store.Stats()
}

// BreakerStatus snapshots every provider breaker.
func (r *Registry) BreakerStatus() map[string]breaker.Status {
	return r.breakers.Status()
}
