package fundamentals

import (
	"context"
	"fmt"
	"strings"

	"github.com/equityscope/equityscope/internal/sources/sec"
)

const defaultFilingLimit = 20

// High-priority 8-K item codes. Any of these in a filing marks the
// event as worth surfacing in the SWOT threats.
var highPriorityItems = map[string]string{
	"1.02": "Termination of material agreement",
	"1.03": "Bankruptcy or receivership",
	"2.04": "Asset impairment",
	"2.05": "Delisting",
	"2.06": "Material impairment",
	"3.01": "Notice of delisting",
	"4.01": "Changes in auditors",
	"4.02": "Non-reliance on financial statements",
	"5.02": "Executive changes",
}

// ownershipForms are the 5%+ beneficial-ownership filings.
var ownershipForms = []string{"SC 13D", "SC 13D/A", "SC 13G", "SC 13G/A"}

// goingConcernKeywords signal doubt about continuing operations in a
// 10-K body.
var goingConcernKeywords = []string{
	"going concern",
	"substantial doubt",
	"ability to continue",
	"liquidity concerns",
	"material uncertainty",
}

// MaterialEvent is one 8-K filing with its item codes classified.
type MaterialEvent struct {
	Form         string   `json:"form"`
	FilingDate   string   `json:"filing_date"`
	Accession    string   `json:"accession"`
	Items        []string `json:"items"`
	HighPriority bool     `json:"high_priority"`
	Descriptions []string `json:"descriptions"`
}

// MaterialEvents scans recent 8-K filings for high-priority material
// events.
func (b *Basket) MaterialEvents(ctx context.Context, symbol string, limit int) (map[string]any, error) {
	if limit <= 0 {
		limit = defaultFilingLimit
	}

	subs, err := b.submissions(ctx, symbol)
	if err != nil {
		return nil, err
	}

	filings := subs.ByForm(limit, "8-K")
	events := make([]MaterialEvent, 0, len(filings))
	highPriorityCount := 0

	for _, filing := range filings {
		event := MaterialEvent{
			Form:         filing.Form,
			FilingDate:   filing.FilingDate,
			Accession:    filing.AccessionNumber,
			Items:        filing.Items,
			Descriptions: []string{},
		}

		for _, code := range filing.Items {
			if desc, ok := highPriorityItems[code]; ok {
				event.HighPriority = true
				event.Descriptions = append(event.Descriptions, desc)
			}
		}

		if event.HighPriority {
			highPriorityCount++
		}

		events = append(events, event)
	}

	threats := []string{}
	if highPriorityCount > 0 {
		threats = append(threats,
			fmt.Sprintf("Found %d high-priority material events", highPriorityCount))
	}

	return map[string]any{
		"ticker":               symbol,
		"total_8k_filings":     len(events),
		"high_priority_events": highPriorityCount,
		"events":               events,
		"swot_implications":    map[string]any{"threats": threats},
		"source":               "SEC EDGAR",
	}, nil
}

type filingRef struct {
	Form       string `json:"form"`
	FilingDate string `json:"filing_date"`
	Accession  string `json:"accession"`
}

// OwnershipFilings lists recent 13D/13G filings (5%+ owners) and Form 4
// insider transactions.
func (b *Basket) OwnershipFilings(ctx context.Context, symbol string, limit int) (map[string]any, error) {
	if limit <= 0 {
		limit = defaultFilingLimit
	}

	subs, err := b.submissions(ctx, symbol)
	if err != nil {
		return nil, err
	}

	ownership := toRefs(subs.ByForm(limit, ownershipForms...))
	insiders := toRefs(subs.ByForm(limit, "4"))

	opportunities := []string{}
	if len(ownership) > 0 {
		opportunities = append(opportunities,
			fmt.Sprintf("Active institutional interest: %d 13D/13G filings", len(ownership)))
	}

	return map[string]any{
		"ticker": symbol,
		"ownership_5pct_filings": map[string]any{
			"count":   len(ownership),
			"filings": ownership,
		},
		"insider_transactions": map[string]any{
			"count":   len(insiders),
			"filings": insiders,
		},
		"swot_implications": map[string]any{"opportunities": opportunities},
		"source":            "SEC EDGAR",
	}, nil
}

// GoingConcern searches the latest 10-K body for going-concern language
// and grades the risk by keyword count.
func (b *Basket) GoingConcern(ctx context.Context, symbol string) (map[string]any, error) {
	cik, err := b.ciks.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	subs, err := b.sec.Submissions(ctx, cik)
	if err != nil {
		return nil, err
	}

	tenKs := subs.ByForm(1, "10-K", "10-K/A")
	if len(tenKs) == 0 {
		return map[string]any{
			"ticker":              symbol,
			"warning":             "No 10-K filing found",
			"going_concern_found": false,
		}, nil
	}

	url := b.sec.DocumentURL(cik, tenKs[0])

	body, err := b.sec.Document(ctx, url)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(body)
	matches := []string{}

	for _, keyword := range goingConcernKeywords {
		if strings.Contains(lower, keyword) {
			matches = append(matches, keyword)
		}
	}

	riskLevel := "none"

	switch {
	case len(matches) >= 3:
		riskLevel = "high"
	case len(matches) >= 1:
		riskLevel = "medium"
	}

	threats := []string{}
	if len(matches) > 0 {
		threats = append(threats,
			"Going concern warning: "+strings.Join(matches, ", "))
	}

	return map[string]any{
		"ticker":              symbol,
		"going_concern_found": len(matches) > 0,
		"risk_level":          riskLevel,
		"keywords_found":      matches,
		"filing_url":          url,
		"swot_implications":   map[string]any{"threats": threats},
		"source":              "SEC EDGAR 10-K",
	}, nil
}

func toRefs(filings []sec.Filing) []filingRef {
	refs := make([]filingRef, 0, len(filings))

	for _, filing := range filings {
		refs = append(refs, filingRef{
			Form:       filing.Form,
			FilingDate: filing.FilingDate,
			Accession:  filing.AccessionNumber,
		})
	}

	return refs
}

func (b *Basket) submissions(ctx context.Context, symbol string) (*sec.Submissions, error) {
	cik, err := b.ciks.Resolve(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return b.sec.Submissions(ctx, cik)
}
