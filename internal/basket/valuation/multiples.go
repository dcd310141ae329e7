package valuation

import (
	"context"
	"errors"
	"fmt"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/model"
)

// PERatio interprets the P/E multiple, preferring the trailing value.
func (b *Basket) PERatio(ctx context.Context, symbol string) (map[string]any, error) {
	snap, err := b.snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	value := first(snap.TrailingPE, snap.ForwardPE)
	if value == nil {
		return nil, errors.New("P/E data not available (company may have negative earnings)")
	}

	interpretation, category := interpretPE(*value)

	return map[string]any{
		"metric":         "P/E Ratio",
		"ticker":         symbol,
		"trailing_pe":    round2Ptr(snap.TrailingPE),
		"forward_pe":     round2Ptr(snap.ForwardPE),
		"value":          round2(*value),
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceYahoo,
		"as_of":          basket.Date(b.now()),
	}, nil
}

func interpretPE(pe float64) (string, string) {
	switch {
	case pe < 0:
		return "Negative P/E - Company has losses", basket.CategoryWeakness
	case pe < 10:
		return "Low P/E - May be undervalued or facing challenges", basket.CategoryOpportunity
	case pe < 20:
		return "Moderate P/E - Fair valuation", basket.CategoryNeutral
	case pe < 30:
		return "High P/E - Growth expectations priced in", basket.CategoryNeutral
	case pe < 50:
		return "Very high P/E - High growth expectations", basket.CategoryWeakness
	default:
		return "Extremely high P/E - Speculative valuation", basket.CategoryWeakness
	}
}

// PSRatio interprets the Price-to-Sales multiple.
func (b *Basket) PSRatio(ctx context.Context, symbol string) (map[string]any, error) {
	snap, err := b.snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if snap.PSRatio == nil {
		return nil, errors.New("P/S data not available")
	}

	interpretation, category := interpretPS(*snap.PSRatio)

	return map[string]any{
		"metric":         "P/S Ratio",
		"ticker":         symbol,
		"value":          round2(*snap.PSRatio),
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceYahoo,
		"as_of":          basket.Date(b.now()),
	}, nil
}

func interpretPS(ps float64) (string, string) {
	switch {
	case ps < 1:
		return "Low P/S - Trading below 1x sales, potentially undervalued", basket.CategoryOpportunity
	case ps < 3:
		return "Moderate P/S - Reasonable valuation relative to revenue", basket.CategoryNeutral
	case ps < 8:
		return "High P/S - Premium valuation, high growth expected", basket.CategoryNeutral
	case ps < 15:
		return "Very high P/S - Aggressive growth assumptions", basket.CategoryWeakness
	default:
		return "Extremely high P/S - Speculative valuation", basket.CategoryWeakness
	}
}

// PBRatio interprets the Price-to-Book multiple.
func (b *Basket) PBRatio(ctx context.Context, symbol string) (map[string]any, error) {
	snap, err := b.snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if snap.PBRatio == nil {
		return nil, errors.New("P/B data not available")
	}

	interpretation, category := interpretPB(*snap.PBRatio)

	return map[string]any{
		"metric":         "P/B Ratio",
		"ticker":         symbol,
		"value":          round2(*snap.PBRatio),
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceYahoo,
		"as_of":          basket.Date(b.now()),
	}, nil
}

func interpretPB(pb float64) (string, string) {
	switch {
	case pb < 1:
		return "Below book value - May be undervalued or have asset issues", basket.CategoryOpportunity
	case pb < 3:
		return "Moderate P/B - Trading near tangible asset value", basket.CategoryNeutral
	case pb < 5:
		return "High P/B - Intangible assets or growth premium", basket.CategoryNeutral
	default:
		return "Very high P/B - Significant intangible value priced in", basket.CategoryWeakness
	}
}

// EVEBITDA interprets the EV/EBITDA multiple.
func (b *Basket) EVEBITDA(ctx context.Context, symbol string) (map[string]any, error) {
	snap, err := b.snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	if snap.EVEBITDA == nil {
		return nil, errors.New("EV/EBITDA data not available")
	}

	interpretation, category := interpretEVEBITDA(*snap.EVEBITDA)

	return map[string]any{
		"metric":           "EV/EBITDA",
		"ticker":           symbol,
		"enterprise_value": snap.EnterpriseValue,
		"value":            round2(*snap.EVEBITDA),
		"interpretation":   interpretation,
		"swot_category":    category,
		"source":           SourceYahoo,
		"as_of":            basket.Date(b.now()),
	}, nil
}

func interpretEVEBITDA(ev float64) (string, string) {
	switch {
	case ev < 0:
		return "Negative EV/EBITDA - Negative EBITDA or unusual capital structure", basket.CategoryWeakness
	case ev < 8:
		return "Low EV/EBITDA - Potentially undervalued", basket.CategoryOpportunity
	case ev < 12:
		return "Moderate EV/EBITDA - Fair valuation", basket.CategoryNeutral
	case ev < 20:
		return "High EV/EBITDA - Premium valuation", basket.CategoryNeutral
	default:
		return "Very high EV/EBITDA - Expensive relative to cash earnings", basket.CategoryWeakness
	}
}

// PEGRatio interprets the PEG multiple, preferring the trailing value.
func (b *Basket) PEGRatio(ctx context.Context, symbol string) (map[string]any, error) {
	snap, err := b.snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}

	value := first(snap.TrailingPEG, snap.ForwardPEG)
	if value == nil {
		return nil, errors.New("PEG data not available (requires positive earnings and growth)")
	}

	interpretation, category := interpretPEG(*value)

	return map[string]any{
		"metric":              "PEG Ratio",
		"ticker":              symbol,
		"trailing_peg":        round2Ptr(snap.TrailingPEG),
		"forward_peg":         round2Ptr(snap.ForwardPEG),
		"value":               round2(*value),
		"earnings_growth_pct": pctPtr(snap.EarningsGrowth),
		"interpretation":      interpretation,
		"note":                "PEG < 1 often considered undervalued",
		"swot_category":       category,
		"source":              SourceYahoo,
		"as_of":               basket.Date(b.now()),
	}, nil
}

func interpretPEG(peg float64) (string, string) {
	switch {
	case peg < 0:
		return "Negative PEG - Negative earnings or declining growth", basket.CategoryWeakness
	case peg < 1:
		return "Low PEG (<1) - May be undervalued relative to growth", basket.CategoryOpportunity
	case peg < 1.5:
		return "Moderate PEG - Fair value relative to growth", basket.CategoryNeutral
	case peg < 2:
		return "High PEG - Premium to growth rate", basket.CategoryNeutral
	default:
		return "Very high PEG - Overvalued relative to growth", basket.CategoryWeakness
	}
}

// BuildSWOT classifies each available multiple as an opportunity or a
// weakness and summarizes the overall read.
func BuildSWOT(snap *Snapshot) (model.SWOTSummary, string) {
	swot := model.SWOTSummary{
		Strengths:     []string{},
		Weaknesses:    []string{},
		Opportunities: []string{},
		Threats:       []string{},
	}

	if v := snap.TrailingPE; v != nil {
		switch {
		case *v > 0 && *v < 15:
			swot.Opportunities = append(swot.Opportunities,
				fmt.Sprintf("Low P/E (%.1f) - Potentially undervalued", *v))
		case *v > 40:
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("High P/E (%.1f) - Expensive valuation", *v))
		}
	}

	if v := snap.PSRatio; v != nil {
		switch {
		case *v < 1:
			swot.Opportunities = append(swot.Opportunities,
				fmt.Sprintf("Low P/S (%.1f) - Trading below 1x sales", *v))
		case *v > 10:
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("High P/S (%.1f) - Premium to revenue", *v))
		}
	}

	if v := snap.PBRatio; v != nil {
		switch {
		case *v < 1:
			swot.Opportunities = append(swot.Opportunities,
				fmt.Sprintf("Below book value (P/B %.1f)", *v))
		case *v > 8:
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("High P/B (%.1f) - Premium to assets", *v))
		}
	}

	if v := snap.EVEBITDA; v != nil {
		switch {
		case *v > 0 && *v < 8:
			swot.Opportunities = append(swot.Opportunities,
				fmt.Sprintf("Low EV/EBITDA (%.1f)", *v))
		case *v > 20:
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("High EV/EBITDA (%.1f)", *v))
		}
	}

	if v := snap.TrailingPEG; v != nil {
		switch {
		case *v > 0 && *v < 1:
			swot.Opportunities = append(swot.Opportunities,
				fmt.Sprintf("Low Trailing PEG (%.2f) - Undervalued vs growth", *v))
		case *v > 2:
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("High Trailing PEG (%.2f) - Overvalued vs growth", *v))
		}
	}

	if v := snap.ForwardPEG; v != nil {
		switch {
		case *v > 0 && *v < 1:
			swot.Opportunities = append(swot.Opportunities,
				fmt.Sprintf("Low Forward PEG (%.2f) - Attractive forward valuation", *v))
		case *v > 2:
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("High Forward PEG (%.2f) - Expensive vs expected growth", *v))
		}
	}

	return swot, overallAssessment(len(swot.Opportunities), len(swot.Weaknesses))
}

func overallAssessment(opportunities, weaknesses int) string {
	switch {
	case opportunities >= 3:
		return "Potentially undervalued on multiple metrics"
	case weaknesses >= 3:
		return "Premium valuation on multiple metrics"
	case opportunities > weaknesses:
		return "Relatively attractive valuation"
	case weaknesses > opportunities:
		return "Relatively expensive valuation"
	default:
		return "Mixed valuation signals"
	}
}
