package stress

import (
	"sync"
	"time"

	"github.com/equityscope/equityscope/internal/breaker"
	"github.com/equityscope/equityscope/internal/ratelimit"
	"github.com/equityscope/equityscope/pkg/alg/stats"
)

// RunConfig echoes the run's knobs into the summary for reproducibility.
type RunConfig struct {
	BatchSize     int      `json:"batch_size"`
	Strategy      Strategy `json:"sampling_strategy"`
	MaxConcurrent int      `json:"max_concurrent"`
	Seed          int64    `json:"seed"`
	Servers       []string `json:"servers"`
}

// Summary is the aggregated result of one stress run.
type Summary struct {
	Total        int     `json:"total"`
	SuccessRate  float64 `json:"success_rate"`
	FallbackRate float64 `json:"fallback_rate"`
	FailureRate  float64 `json:"failure_rate"`

	ByCategory map[Category]int            `json:"by_category"`
	ByServer   map[string]map[Category]int `json:"by_server"`

	LatencyP50      float64 `json:"latency_p50"`
	LatencyP95      float64 `json:"latency_p95"`
	LatencyP99      float64 `json:"latency_p99"`
	LatencyMean     float64 `json:"latency_mean"`
	LatencyStdDev   float64 `json:"latency_stddev"`
	LatencySmoothed float64 `json:"latency_smoothed"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Config               RunConfig                          `json:"test_config"`
	CircuitBreakerStatus map[string]breaker.Status          `json:"circuit_breaker_status"`
	RateLimiterStatus    map[string]ratelimit.LimiterStatus `json:"rate_limiter_status"`
}

// latencyAlpha is the EMA smoothing factor for the running latency
// average; late outcomes dominate, so drift shows up quickly.
const latencyAlpha = 0.2

// Aggregator accumulates classified outcomes across a run.
type Aggregator struct {
	mu        sync.Mutex
	outcomes  []Outcome
	counts    map[Category]int
	byServer  map[string]map[Category]int
	latencies []float64
	smoothed  *stats.EMA
}

// NewAggregator builds an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		counts:   map[Category]int{},
		byServer: map[string]map[Category]int{},
		smoothed: stats.NewEMA(latencyAlpha),
	}
}

// Add records one outcome.
func (a *Aggregator) Add(outcome Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.outcomes = append(a.outcomes, outcome)
	a.counts[outcome.Category]++
	a.latencies = append(a.latencies, outcome.LatencyMS)
	a.smoothed.Update(outcome.LatencyMS)

	server := a.byServer[outcome.Server]
	if server == nil {
		server = map[Category]int{}
		a.byServer[outcome.Server] = server
	}

	server[outcome.Category]++
}

// Outcomes returns a copy of everything recorded, in arrival order.
func (a *Aggregator) Outcomes() []Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]Outcome(nil), a.outcomes...)
}

// Summarize computes the run summary. The effective success rate counts
// SUCCESS, PARTIAL, and FALLBACK; the failure rate counts HARD_FAILURE
// and PERSISTENT.
func (a *Aggregator) Summarize() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := Summary{
		Total:      len(a.outcomes),
		ByCategory: map[Category]int{},
		ByServer:   map[string]map[Category]int{},
	}

	for category, count := range a.counts {
		summary.ByCategory[category] = count
	}

	for server, counts := range a.byServer {
		copied := map[Category]int{}
		for category, count := range counts {
			copied[category] = count
		}

		summary.ByServer[server] = copied
	}

	if summary.Total == 0 {
		return summary
	}

	total := float64(summary.Total)
	healthy := a.counts[CategorySuccess] + a.counts[CategoryPartial] + a.counts[CategoryFallback]
	failed := a.counts[CategoryHardFailure] + a.counts[CategoryPersistent]

	summary.SuccessRate = float64(healthy) / total
	summary.FallbackRate = float64(a.counts[CategoryFallback]) / total
	summary.FailureRate = float64(failed) / total

	summary.LatencyP50 = stats.Percentile(a.latencies, 0.50)
	summary.LatencyP95 = stats.Percentile(a.latencies, 0.95)
	summary.LatencyP99 = stats.Percentile(a.latencies, 0.99)
	summary.LatencyMean, summary.LatencyStdDev = stats.MeanStdDev(a.latencies)
	summary.LatencySmoothed = a.smoothed.Value()

	return summary
}
