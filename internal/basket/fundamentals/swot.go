package fundamentals

import (
	"fmt"

	"github.com/equityscope/equityscope/internal/model"
)

// SWOT thresholds, in percent except the debt-to-equity ratios.
const (
	revenueGrowthStrong    = 15.0
	revenueGrowthPositive  = 5.0
	revenueGrowthDeclining = 0.0

	netMarginHigh         = 15.0
	netMarginThin         = 5.0
	netMarginUnprofitable = 0.0

	operatingMarginStrong = 20.0

	debtToEquityHigh     = 2.0
	debtToEquityElevated = 1.0
	debtToEquityLow      = 0.5

	rdHighInvestment = 10.0
)

// BuildSWOT maps the extracted metrics onto SWOT observations.
func BuildSWOT(fin *Financials, debt *DebtMetrics, cf *CashFlowMetrics) model.SWOTSummary {
	swot := model.SWOTSummary{
		Strengths:     []string{},
		Weaknesses:    []string{},
		Opportunities: []string{},
		Threats:       []string{},
	}

	if growth, ok := fin.RevenueGrowth3Yr.Float(); ok {
		switch {
		case growth > revenueGrowthStrong:
			swot.Strengths = append(swot.Strengths,
				fmt.Sprintf("Strong revenue growth: %.1f%% 3-year CAGR", growth))
		case growth > revenueGrowthPositive:
			swot.Strengths = append(swot.Strengths,
				fmt.Sprintf("Positive revenue growth: %.1f%% 3-year CAGR", growth))
		case growth < revenueGrowthDeclining:
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("Declining revenue: %.1f%% 3-year CAGR", growth))
		}
	}

	if margin, ok := fin.NetMarginPct.Float(); ok {
		switch {
		case margin > netMarginHigh:
			swot.Strengths = append(swot.Strengths,
				fmt.Sprintf("High profitability: %.1f%% net margin", margin))
		case margin < netMarginUnprofitable:
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("Unprofitable: %.1f%% net margin", margin))
		case margin < netMarginThin:
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("Thin margins: %.1f%% net margin", margin))
		}
	}

	if opMargin, ok := fin.OperatingMarginPct.Float(); ok && opMargin > operatingMarginStrong {
		swot.Strengths = append(swot.Strengths,
			fmt.Sprintf("Strong operating efficiency: %.1f%% operating margin", opMargin))
	}

	if ratio, ok := debt.DebtToEquity.Float(); ok {
		switch {
		case ratio > debtToEquityHigh:
			swot.Threats = append(swot.Threats,
				fmt.Sprintf("High leverage: %.2fx debt-to-equity ratio", ratio))
		case ratio > debtToEquityElevated:
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("Elevated debt: %.2fx debt-to-equity ratio", ratio))
		case ratio < debtToEquityLow:
			swot.Strengths = append(swot.Strengths,
				fmt.Sprintf("Low leverage: %.2fx debt-to-equity ratio", ratio))
		}
	}

	if fcf, ok := cf.FreeCashFlow.Float(); ok {
		if fcf > 0 {
			swot.Strengths = append(swot.Strengths,
				fmt.Sprintf("Positive free cash flow: $%.1fB", fcf/1e9))
		} else {
			swot.Weaknesses = append(swot.Weaknesses,
				fmt.Sprintf("Negative free cash flow: $%.1fB", fcf/1e9))
		}
	}

	if rd, ok := cf.RDExpense.Float(); ok && rd > 0 {
		if rev, ok := fin.Revenue.Float(); ok && rev > 0 {
			if pct := rd / rev * 100; pct > rdHighInvestment {
				swot.Opportunities = append(swot.Opportunities,
					fmt.Sprintf("High R&D investment: %.1f%% of revenue", pct))
			}
		}
	}

	return swot
}
