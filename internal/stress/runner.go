package stress

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/equityscope/equityscope/internal/breaker"
	"github.com/equityscope/equityscope/internal/ratelimit"
	"github.com/equityscope/equityscope/internal/transport"
)

// Config tunes one stress run.
type Config struct {
	BatchSize       int
	Strategy        Strategy
	MaxConcurrent   int
	RequestInterval time.Duration
	Timeout         time.Duration
	Seed            int64
	Servers         []string
}

// DefaultConfig mirrors a standard smoke run.
func DefaultConfig() Config {
	return Config{
		BatchSize:       20,
		Strategy:        StrategyUniform,
		MaxConcurrent:   5,
		RequestInterval: 200 * time.Millisecond,
		Timeout:         60 * time.Second,
		Servers:         DefaultServers(),
	}
}

// DefaultServers lists every basket worker.
func DefaultServers() []string {
	return []string{
		"fundamentals-basket",
		"valuation-basket",
		"volatility-basket",
		"macro-basket",
		"news-basket",
		"sentiment-basket",
	}
}

// probeTool maps a server to the tool the stress run exercises and the
// arguments it takes.
type probeTool struct {
	tool        string
	needsTicker bool
	needsName   bool
}

var probeTools = map[string]probeTool{
	"fundamentals-basket": {tool: "get_sec_fundamentals", needsTicker: true},
	"valuation-basket":    {tool: "get_valuation_basket", needsTicker: true},
	"volatility-basket":   {tool: "get_volatility_basket", needsTicker: true},
	"macro-basket":        {tool: "get_macro_basket"},
	"news-basket":         {tool: "search_company_news", needsTicker: true, needsName: true},
	"sentiment-basket":    {tool: "get_sentiment_basket", needsTicker: true, needsName: true},
}

// serverProviders maps a server to the upstream whose rate limit the
// probe respects.
var serverProviders = map[string]string{
	"fundamentals-basket": ratelimit.ProviderSECEdgar,
	"valuation-basket":    ratelimit.ProviderYahooFinance,
	"volatility-basket":   ratelimit.ProviderFRED,
	"macro-basket":        ratelimit.ProviderFRED,
	"news-basket":         ratelimit.ProviderTavily,
	"sentiment-basket":    ratelimit.ProviderFinnhub,
}

// limiterAcquireTimeout bounds the wait for a rate-limit token before
// the probe is recorded as rate limited.
const limiterAcquireTimeout = 10 * time.Second

// Runner orchestrates one stress run over the worker transport.
type Runner struct {
	cfg        Config
	caller     transport.Caller
	sampler    *Sampler
	limits     *ratelimit.Registry
	breakers   *breaker.Registry
	classifier *Classifier
	agg        *Aggregator
	logger     *slog.Logger
}

// NewRunner builds a stress runner. Zero config fields take defaults.
func NewRunner(cfg Config, caller transport.Caller, logger *slog.Logger) (*Runner, error) {
	defaults := DefaultConfig()

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}

	if cfg.Strategy == "" {
		cfg.Strategy = defaults.Strategy
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaults.MaxConcurrent
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	if len(cfg.Servers) == 0 {
		cfg.Servers = defaults.Servers
	}

	for _, server := range cfg.Servers {
		if _, ok := probeTools[server]; !ok {
			return nil, fmt.Errorf("unknown server: %s", server)
		}
	}

	sampler, err := NewSampler()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		cfg:        cfg,
		caller:     caller,
		sampler:    sampler,
		limits:     ratelimit.NewRegistry(),
		breakers:   breaker.NewRegistry(breaker.DefaultConfig()),
		classifier: NewClassifier(),
		agg:        NewAggregator(),
		logger:     logger,
	}, nil
}

// Run executes the full probe matrix (companies × servers) and returns
// the aggregated summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := time.Now().UTC()

	companies := r.sampler.Sample(r.cfg.BatchSize, r.cfg.Strategy, r.cfg.Seed)
	if len(companies) == 0 {
		return Summary{}, fmt.Errorf("sampler returned no companies")
	}

	r.logger.Info("stress run starting",
		slog.Int("companies", len(companies)),
		slog.Int("servers", len(r.cfg.Servers)),
		slog.String("strategy", string(r.cfg.Strategy)),
		slog.Int64("seed", r.cfg.Seed))

	type job struct {
		server  string
		company Company
	}

	jobs := make(chan job)

	var wg sync.WaitGroup

	for range r.cfg.MaxConcurrent {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := range jobs {
				r.agg.Add(r.probe(ctx, j.server, j.company))
			}
		}()
	}

	jitter := rand.New(rand.NewSource(r.cfg.Seed + 1))

dispatch:
	for _, company := range companies {
		for _, server := range r.cfg.Servers {
			select {
			case <-ctx.Done():
				break dispatch
			case jobs <- job{server: server, company: company}:
			}

			if r.cfg.RequestInterval > 0 {
				pause := time.Duration(float64(r.cfg.RequestInterval) * (0.5 + jitter.Float64()))
				time.Sleep(pause)
			}
		}
	}

	close(jobs)
	wg.Wait()

	summary := r.agg.Summarize()
	summary.StartTime = start
	summary.EndTime = time.Now().UTC()
	summary.Config = RunConfig{
		BatchSize:     r.cfg.BatchSize,
		Strategy:      r.cfg.Strategy,
		MaxConcurrent: r.cfg.MaxConcurrent,
		Seed:          r.cfg.Seed,
		Servers:       r.cfg.Servers,
	}
	summary.CircuitBreakerStatus = r.breakers.Status()

	limiters, _ := r.limits.Status()
	summary.RateLimiterStatus = limiters

	return summary, ctx.Err()
}

// Outcomes returns every classified probe of the run.
func (r *Runner) Outcomes() []Outcome {
	return r.agg.Outcomes()
}

// probe runs one server/company pair through the breaker, the rate
// limiter, and the tool call, then classifies what came back.
func (r *Runner) probe(ctx context.Context, server string, company Company) Outcome {
	if !r.breakers.Allow(server) {
		return Outcome{
			Timestamp:    time.Now().UTC(),
			Category:     CategoryHardFailure,
			Server:       server,
			Ticker:       company.Ticker,
			ErrorMessage: "circuit breaker open",
		}
	}

	provider := serverProviders[server]

	err := r.limits.Acquire(ctx, provider, limiterAcquireTimeout)
	if err != nil {
		return Outcome{
			Timestamp:    time.Now().UTC(),
			Category:     CategoryRateLimited,
			Server:       server,
			Ticker:       company.Ticker,
			ErrorMessage: "rate limit wait timeout",
		}
	}

	spec := probeTools[server]

	args := map[string]any{}
	if spec.needsTicker {
		args["ticker"] = company.Ticker
	}

	if spec.needsName {
		args["company_name"] = company.Name
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	startedAt := time.Now()
	payload, callErr := r.caller.CallTool(callCtx, server, spec.tool, args)
	latency := time.Since(startedAt)

	if callErr == nil && callCtx.Err() != nil {
		callErr = fmt.Errorf("timeout after %s", r.cfg.Timeout)
	}

	outcome := r.classifier.Classify(server, company.Ticker, payload, callErr, latency)

	if outcome.Category.Healthy() {
		r.breakers.RecordSuccess(server)
	} else {
		r.breakers.RecordFailure(server)
	}

	return outcome
}
