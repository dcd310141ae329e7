package stress

import (
	"strings"
	"sync"
	"time"
)

// Category is the reliability classification of one probe.
type Category string

// Probe outcome categories. TRANSIENT upgrades to PERSISTENT after
// three consecutive failures of the same server/ticker pair.
const (
	CategorySuccess     Category = "success"
	CategoryPartial     Category = "partial"
	CategoryFallback    Category = "fallback"
	CategoryTransient   Category = "transient"
	CategoryPersistent  Category = "persistent"
	CategoryHardFailure Category = "hard_failure"
	CategoryRateLimited Category = "rate_limited"
	CategoryTimeout     Category = "timeout"
	CategoryDependency  Category = "hf_dependency"
	CategoryColdStart   Category = "cold_start"
	CategoryUnknown     Category = "unknown"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategorySuccess, CategoryPartial, CategoryFallback,
	CategoryTransient, CategoryPersistent, CategoryHardFailure,
	CategoryRateLimited, CategoryTimeout, CategoryDependency,
	CategoryColdStart, CategoryUnknown,
}

// Healthy reports whether the category counts toward the effective
// success rate.
func (c Category) Healthy() bool {
	return c == CategorySuccess || c == CategoryPartial || c == CategoryFallback
}

// Outcome is one classified probe, the unit of the NDJSON export.
type Outcome struct {
	Timestamp      time.Time `json:"timestamp"`
	Category       Category  `json:"category"`
	Server         string    `json:"server"`
	Ticker         string    `json:"ticker"`
	LatencyMS      float64   `json:"latency_ms"`
	Completeness   float64   `json:"data_completeness"`
	FallbackUsed   bool      `json:"fallback_used"`
	PrimarySource  string    `json:"primary_source,omitempty"`
	FallbackSource string    `json:"fallback_source,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// fieldSchema declares the payload fields a server is expected to
// return. Required fields weigh 70% of completeness, optional 30%.
type fieldSchema struct {
	required []string
	optional []string
}

const (
	requiredWeight = 0.7
	optionalWeight = 0.3

	// partialThreshold separates SUCCESS from PARTIAL.
	partialThreshold = 0.5

	// persistentAfter is the consecutive-failure count that upgrades
	// TRANSIENT to PERSISTENT.
	persistentAfter = 3
)

var expectedFields = map[string]fieldSchema{
	"fundamentals-basket": {
		required: []string{"ticker", "financials"},
		optional: []string{"debt", "cash_flow", "swot_summary"},
	},
	"valuation-basket": {
		required: []string{"metrics"},
		optional: []string{"overall_assessment", "swot_summary"},
	},
	"volatility-basket": {
		required: []string{"metrics"},
		optional: []string{"swot_summary", "generated_at"},
	},
	"macro-basket": {
		required: []string{"metrics"},
		optional: []string{"overall_assessment", "source"},
	},
	"news-basket": {
		required: []string{"results"},
		optional: []string{"query", "source"},
	},
	"sentiment-basket": {
		required: []string{"items"},
		optional: []string{"sources_used", "source"},
	},
}

// Classifier buckets probe results, tracking consecutive failures per
// server/ticker pair to tell transient noise from persistent outages.
type Classifier struct {
	mu       sync.Mutex
	attempts map[string]int
}

// NewClassifier builds a classifier with fresh failure counters.
func NewClassifier() *Classifier {
	return &Classifier{attempts: map[string]int{}}
}

// Classify buckets one probe result.
func (c *Classifier) Classify(server, ticker string, payload map[string]any, err error, latency time.Duration) Outcome {
	outcome := Outcome{
		Timestamp: time.Now().UTC(),
		Server:    server,
		Ticker:    ticker,
		LatencyMS: float64(latency.Milliseconds()),
	}

	if err != nil {
		outcome.Category = c.classifyError(server, ticker, err.Error())
		outcome.ErrorMessage = err.Error()

		return outcome
	}

	if payload == nil {
		outcome.Category = CategoryHardFailure
		outcome.ErrorMessage = "no response received"

		return outcome
	}

	if raw, failed := payload["error"]; failed {
		msg, _ := raw.(string)
		if msg == "" {
			msg = "unknown error"
		}

		outcome.Category = CategoryHardFailure
		outcome.ErrorMessage = msg

		return outcome
	}

	c.resetFailures(server, ticker)

	outcome.Completeness = completeness(server, payload)

	if primary, fallbackSource, used := detectFallback(server, payload); used {
		outcome.Category = CategoryFallback
		outcome.FallbackUsed = true
		outcome.PrimarySource = primary
		outcome.FallbackSource = fallbackSource

		return outcome
	}

	if outcome.Completeness < partialThreshold {
		outcome.Category = CategoryPartial

		return outcome
	}

	outcome.Category = CategorySuccess

	return outcome
}

// Reset clears the consecutive-failure counters.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempts = map[string]int{}
}

func (c *Classifier) classifyError(server, ticker, message string) Category {
	attempts := c.recordFailure(server, ticker)
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "429"), strings.Contains(lower, "rate limit"):
		return CategoryRateLimited
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"),
		strings.Contains(lower, "deadline exceeded"):
		return CategoryTimeout
	case strings.Contains(lower, "huggingface"), strings.Contains(lower, "hf.space"):
		return CategoryDependency
	case strings.Contains(lower, "cold start"):
		return CategoryColdStart
	case strings.Contains(lower, "500"), strings.Contains(lower, "502"),
		strings.Contains(lower, "503"):
		return transientOrPersistent(attempts)
	case strings.Contains(lower, "400"), strings.Contains(lower, "401"),
		strings.Contains(lower, "403"), strings.Contains(lower, "404"):
		return CategoryHardFailure
	default:
		return transientOrPersistent(attempts)
	}
}

func transientOrPersistent(attempts int) Category {
	if attempts < persistentAfter {
		return CategoryTransient
	}

	return CategoryPersistent
}

func (c *Classifier) recordFailure(server, ticker string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := server + ":" + ticker
	c.attempts[key]++

	return c.attempts[key]
}

func (c *Classifier) resetFailures(server, ticker string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempts[server+":"+ticker] = 0
}

// completeness scores a payload against the server's expected fields.
func completeness(server string, payload map[string]any) float64 {
	schema, ok := expectedFields[server]
	if !ok {
		return 1.0
	}

	requiredScore := fieldScore(schema.required, payload)
	optionalScore := fieldScore(schema.optional, payload)

	if len(schema.required) == 0 {
		return optionalScore
	}

	return requiredWeight*requiredScore + optionalWeight*optionalScore
}

func fieldScore(fields []string, payload map[string]any) float64 {
	if len(fields) == 0 {
		return 1.0
	}

	found := 0

	for _, field := range fields {
		if populated(payload[field]) {
			found++
		}
	}

	return float64(found) / float64(len(fields))
}

func populated(v any) bool {
	switch value := v.(type) {
	case nil:
		return false
	case string:
		return value != ""
	case map[string]any:
		return len(value) > 0
	case []any:
		return len(value) > 0
	default:
		return true
	}
}

// detectFallback reports whether the basket served degraded data: the
// explicit fallback flag every basket payload carries, or a news merge
// where the web search contributed nothing and only the archive did.
func detectFallback(server string, payload map[string]any) (primary, fallback string, used bool) {
	if flagged, ok := payload["fallback"].(bool); ok && flagged {
		fallback, _ = payload["source"].(string)
		reason, _ := payload["fallback_reason"].(string)

		return reason, fallback, true
	}

	if server == "news-basket" {
		if sources, ok := payload["sources_used"].([]any); ok {
			hasWeb, hasArchive := false, false

			for _, s := range sources {
				switch s {
				case "Tavily":
					hasWeb = true
				case "NYT":
					hasArchive = true
				}
			}

			if !hasWeb && hasArchive {
				return "Tavily", "NYT", true
			}
		}
	}

	return "", "", false
}
