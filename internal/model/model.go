// Package model defines the canonical data shapes shared by the basket
// workers, the aggregator, and the task manager.
package model

import (
	"time"
)

// Basket identifiers, in the fixed order the aggregator drives them.
const (
	BasketFundamentals = "fundamentals"
	BasketValuation    = "valuation"
	BasketVolatility   = "volatility"
	BasketMacro        = "macro"
	BasketNews         = "news"
	BasketSentiment    = "sentiment"
)

// BasketOrder is the sequence in which baskets are collected.
var BasketOrder = []string{
	BasketFundamentals,
	BasketValuation,
	BasketVolatility,
	BasketMacro,
	BasketNews,
	BasketSentiment,
}

// Data-type tags carried by a TemporalMetric.
const (
	DataTypeFY          = "FY"
	DataTypeQ           = "Q"
	DataTypeTTM         = "TTM"
	DataTypePointInTime = "Point-in-time"
	DataTypeDaily       = "Daily"
	DataTypeMonthly     = "Monthly"
	DataTypeQuarterly   = "Quarterly"
	DataTypeAnnual      = "1Y"
	DataType30D         = "30D"
	DataTypeForward     = "Forward"
)

// TemporalMetric is a scalar value plus the provenance of the filing or
// observation it came from. All fields besides Value may be absent.
type TemporalMetric struct {
	Value      *float64 `json:"value"`
	DataType   string   `json:"data_type,omitempty"`
	EndDate    string   `json:"end_date,omitempty"`
	Filed      string   `json:"filed,omitempty"`
	FiscalYear int      `json:"fiscal_year,omitempty"`
	Form       string   `json:"form,omitempty"`
}

// Float returns the metric value, or 0 and false when the metric or its
// value is absent. Safe on a nil receiver.
func (m *TemporalMetric) Float() (float64, bool) {
	if m == nil || m.Value == nil {
		return 0, false
	}

	return *m.Value, true
}

// Fresher reports whether m has a later EndDate than other. A metric with
// an EndDate always beats one without.
func (m TemporalMetric) Fresher(other TemporalMetric) bool {
	if m.EndDate == "" {
		return false
	}

	if other.EndDate == "" {
		return true
	}

	return m.EndDate > other.EndDate
}

// Metric constructs a TemporalMetric from a plain value.
func Metric(value float64) TemporalMetric {
	return TemporalMetric{Value: &value}
}

// ContentItem is a single news article, post, or headline.
type ContentItem struct {
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	URL       string `json:"url,omitempty"`
	Datetime  string `json:"datetime,omitempty"`
	Source    string `json:"source,omitempty"`
	Subreddit string `json:"subreddit,omitempty"`
}

// Result groups for BasketResult.
const (
	GroupSourceComparison = "source_comparison"
	GroupRawMetrics       = "raw_metrics"
	GroupContentAnalysis  = "content_analysis"
)

// SourceEntry is one provider's contribution to a basket result.
type SourceEntry struct {
	Source string         `json:"source"`
	AsOf   string         `json:"as_of,omitempty"`
	Data   map[string]any `json:"data"`
}

// SWOTSummary buckets threshold-mapped observations by SWOT category.
type SWOTSummary struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// Merge appends the entries of other into s.
func (s *SWOTSummary) Merge(other SWOTSummary) {
	s.Strengths = append(s.Strengths, other.Strengths...)
	s.Weaknesses = append(s.Weaknesses, other.Weaknesses...)
	s.Opportunities = append(s.Opportunities, other.Opportunities...)
	s.Threats = append(s.Threats, other.Threats...)
}

// Empty reports whether the summary carries no observations.
func (s SWOTSummary) Empty() bool {
	return len(s.Strengths) == 0 && len(s.Weaknesses) == 0 &&
		len(s.Opportunities) == 0 && len(s.Threats) == 0
}

// BasketResult is the canonical per-category payload. Every basket result
// carries at least one source entry; when every provider fails the single
// entry is the minimal fallback whose data values are all null.
type BasketResult struct {
	Group      string                 `json:"group"`
	Ticker     string                 `json:"ticker,omitempty"`
	Sources    map[string]SourceEntry `json:"sources"`
	Source     string                 `json:"source"`
	AsOf       string                 `json:"as_of"`
	SWOT       *SWOTSummary           `json:"swot_summary,omitempty"`
	Items      []ContentItem          `json:"items,omitempty"`
	TotalItems int                    `json:"total_items,omitempty"`
	Showing    int                    `json:"showing,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Retried    bool                   `json:"retried,omitempty"`
}

// Minimal-fallback source name prefixes. The always-respond invariant
// guarantees one of these appears when every provider fails.
const (
	MinimalFallbackSource   = "Minimal Fallback"
	HistoricalAverageSource = "Historical Average"
)

// ConflictRecord captures a cross-source disagreement on a single metric.
type ConflictRecord struct {
	Metric         string  `json:"metric"`
	PrimaryValue   float64 `json:"primary_value"`
	SecondaryValue float64 `json:"secondary_value"`
	Used           string  `json:"used"`
}

// Completeness scores the artifact against the declared required fields.
type Completeness struct {
	Pct     float64             `json:"pct"`
	Found   int                 `json:"found"`
	Total   int                 `json:"total"`
	Missing map[string][]string `json:"missing"`
}

// ResearchArtifact is the aggregator's final output for one task.
type ResearchArtifact struct {
	Ticker             string                      `json:"ticker"`
	CompanyName        string                      `json:"company_name"`
	SourcesAvailable   []string                    `json:"sources_available"`
	SourcesFailed      []string                    `json:"sources_failed"`
	Metrics            map[string]*BasketResult    `json:"metrics"`
	MultiSource        map[string]*BasketResult    `json:"multi_source,omitempty"`
	ConflictResolution map[string][]ConflictRecord `json:"conflict_resolution"`
	AggregatedSWOT     SWOTSummary                 `json:"aggregated_swot"`
	Completeness       Completeness                `json:"completeness"`
	GeneratedAt        string                      `json:"generated_at"`
}

// MetricEvent is a streamed progress record emitted while a basket's
// normalized result is projected into user-visible metrics.
type MetricEvent struct {
	Source     string    `json:"source"`
	Metric     string    `json:"metric"`
	Value      any       `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	EndDate    string    `json:"end_date,omitempty"`
	FiscalYear int       `json:"fiscal_year,omitempty"`
	Form       string    `json:"form,omitempty"`
}

// TaskStatus is the lifecycle state of a research task.
type TaskStatus string

// Task lifecycle states. SUBMITTED and WORKING are non-terminal.
const (
	StatusSubmitted TaskStatus = "SUBMITTED"
	StatusWorking   TaskStatus = "WORKING"
	StatusCompleted TaskStatus = "COMPLETED"
	StatusFailed    TaskStatus = "FAILED"
	StatusCanceled  TaskStatus = "CANCELED"
)

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCanceled
}

// Artifact wraps the research artifact for the task envelope.
type Artifact struct {
	Kind string            `json:"kind"`
	Data *ResearchArtifact `json:"data"`
}

// Task is a research request with its progress and eventual artifact.
type Task struct {
	ID             string        `json:"id"`
	Status         TaskStatus    `json:"status"`
	Message        string        `json:"message,omitempty"`
	Artifacts      []Artifact    `json:"artifacts,omitempty"`
	PartialMetrics []MetricEvent `json:"partial_metrics,omitempty"`
	Error          string        `json:"error,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}
