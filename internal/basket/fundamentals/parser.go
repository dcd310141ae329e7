package fundamentals

import (
	"math"
	"sort"
	"time"

	"github.com/equityscope/equityscope/internal/model"
	"github.com/equityscope/equityscope/internal/sources/sec"
	"github.com/equityscope/equityscope/internal/sources/yahoo"
)

// XBRL concept lists, in order of preference. Companies tag the same
// economic quantity under different concepts depending on filing era
// and accounting standard, so extraction falls through the list.
var (
	// ASC 606 concept first; "Revenues" is the legacy tag.
	revenueConcepts = []string{
		"RevenueFromContractWithCustomerExcludingAssessedTax",
		"Revenues",
		"SalesRevenueNet",
		"TotalRevenuesAndOtherIncome",
	}

	netIncomeConcepts = []string{
		"NetIncomeLoss",
		"ProfitLoss",
		"NetIncomeLossAvailableToCommonStockholdersBasic",
	}

	epsConcepts = []string{
		"EarningsPerShareBasic",
		"EarningsPerShareDiluted",
	}

	grossProfitConcepts = []string{"GrossProfit"}

	operatingIncomeConcepts = []string{
		"OperatingIncomeLoss",
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesExtraordinaryItemsNoncontrollingInterest",
	}

	totalAssetsConcepts      = []string{"Assets"}
	totalLiabilitiesConcepts = []string{"Liabilities", "LiabilitiesAndStockholdersEquity"}

	stockholdersEquityConcepts = []string{
		"StockholdersEquity",
		"StockholdersEquityIncludingPortionAttributableToNoncontrollingInterest",
	}

	longTermDebtConcepts = []string{
		"LongTermDebtAndCapitalLeaseObligations",
		"LongTermDebt",
		"LongTermDebtNoncurrent",
	}
	shortTermDebtConcepts = []string{"ShortTermBorrowings", "DebtCurrent"}
	totalDebtConcepts     = []string{
		"DebtAndCapitalLeaseObligations",
		"LongTermDebtAndCapitalLeaseObligations",
		"DebtLongtermAndShorttermCombinedAmount",
	}

	cashConcepts = []string{
		"CashAndCashEquivalentsAtCarryingValue",
		"CashCashEquivalentsAndShortTermInvestments",
		"Cash",
	}

	operatingCFConcepts = []string{"NetCashProvidedByUsedInOperatingActivities"}
	capexConcepts       = []string{
		"PaymentsToAcquirePropertyPlantAndEquipment",
		"CapitalExpendituresIncurredButNotYetPaid",
	}
	rdConcepts = []string{"ResearchAndDevelopmentExpense"}
)

const (
	unitUSD      = "USD"
	unitPerShare = "USD/shares"
	formAnnual   = "10-K"

	growthYears = 3
)

// Source labels carried on every metric set.
const (
	SourceSECEdgar = "SEC EDGAR XBRL"
	SourceYahoo    = "Yahoo Finance"
)

// Financials holds the universal income-statement and balance-sheet
// metrics for one company.
type Financials struct {
	Ticker             string                `json:"ticker"`
	Revenue            *model.TemporalMetric `json:"revenue,omitempty"`
	NetIncome          *model.TemporalMetric `json:"net_income,omitempty"`
	GrossProfit        *model.TemporalMetric `json:"gross_profit,omitempty"`
	OperatingIncome    *model.TemporalMetric `json:"operating_income,omitempty"`
	GrossMarginPct     *model.TemporalMetric `json:"gross_margin_pct,omitempty"`
	OperatingMarginPct *model.TemporalMetric `json:"operating_margin_pct,omitempty"`
	NetMarginPct       *model.TemporalMetric `json:"net_margin_pct,omitempty"`
	RevenueGrowth3Yr   *model.TemporalMetric `json:"revenue_growth_3yr,omitempty"`
	TotalAssets        *model.TemporalMetric `json:"total_assets,omitempty"`
	TotalLiabilities   *model.TemporalMetric `json:"total_liabilities,omitempty"`
	StockholdersEquity *model.TemporalMetric `json:"stockholders_equity,omitempty"`
	EPS                *model.TemporalMetric `json:"eps,omitempty"`
	Source             string                `json:"source"`
}

// DebtMetrics holds leverage metrics for one company.
type DebtMetrics struct {
	Ticker        string                `json:"ticker"`
	LongTermDebt  *model.TemporalMetric `json:"long_term_debt,omitempty"`
	ShortTermDebt *model.TemporalMetric `json:"short_term_debt,omitempty"`
	TotalDebt     *model.TemporalMetric `json:"total_debt,omitempty"`
	Cash          *model.TemporalMetric `json:"cash,omitempty"`
	NetDebt       *model.TemporalMetric `json:"net_debt,omitempty"`
	DebtToEquity  *model.TemporalMetric `json:"debt_to_equity,omitempty"`
	Source        string                `json:"source"`
}

// CashFlowMetrics holds cash-flow metrics for one company.
type CashFlowMetrics struct {
	Ticker             string                `json:"ticker"`
	OperatingCashFlow  *model.TemporalMetric `json:"operating_cash_flow,omitempty"`
	CapitalExpenditure *model.TemporalMetric `json:"capital_expenditure,omitempty"`
	FreeCashFlow       *model.TemporalMetric `json:"free_cash_flow,omitempty"`
	RDExpense          *model.TemporalMetric `json:"rd_expense,omitempty"`
	Source             string                `json:"source"`
}

// latestValue extracts the most recent value for the first concept that
// has data. A non-empty formFilter restricts to that form (10-K for
// annual figures).
func latestValue(facts *sec.CompanyFacts, concepts []string, unit, formFilter string) *model.TemporalMetric {
	gaap := facts.USGAAP()

	for _, concept := range concepts {
		values := gaap[concept].Units[unit]
		if len(values) == 0 {
			continue
		}

		var filtered []sec.Fact

		for _, v := range values {
			if formFilter == "" || v.Form == formFilter {
				filtered = append(filtered, v)
			}
		}

		if len(filtered) == 0 {
			continue
		}

		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].End > filtered[j].End
		})

		latest := filtered[0]

		return &model.TemporalMetric{
			Value:      &latest.Val,
			DataType:   dataTypeForForm(latest.Form),
			EndDate:    latest.End,
			Filed:      latest.Filed,
			FiscalYear: latest.FY,
			Form:       latest.Form,
		}
	}

	return nil
}

func dataTypeForForm(form string) string {
	switch form {
	case "10-K":
		return model.DataTypeFY
	case "10-Q":
		return model.DataTypeQ
	}

	return ""
}

// mostRecentAcross compares the latest value of every concept and
// returns the one with the newest end date. Some companies keep the
// legacy revenue tag current while the ASC 606 one goes stale, so
// first-match extraction is not enough for revenue and debt.
func mostRecentAcross(facts *sec.CompanyFacts, concepts []string, unit, formFilter string) *model.TemporalMetric {
	var best *model.TemporalMetric

	for _, concept := range concepts {
		candidate := latestValue(facts, []string{concept}, unit, formFilter)
		if candidate == nil || candidate.EndDate == "" {
			continue
		}

		if best == nil || candidate.Fresher(*best) {
			best = candidate
		}
	}

	return best
}

// valuesForGrowth collects annual values per fiscal year from the first
// concept that has 10-K data, returning up to years+1 entries sorted by
// year (the extra year anchors the growth calculation).
func valuesForGrowth(facts *sec.CompanyFacts, concepts []string, years int) [][2]float64 {
	gaap := facts.USGAAP()
	byYear := map[int]float64{}

	for _, concept := range concepts {
		for _, v := range gaap[concept].Units[unitUSD] {
			if v.Form != formAnnual || v.FY == 0 || v.Val == 0 {
				continue
			}

			if _, seen := byYear[v.FY]; !seen {
				byYear[v.FY] = v.Val
			}
		}

		if len(byYear) > 0 {
			break
		}
	}

	points := make([][2]float64, 0, len(byYear))
	for fy, val := range byYear {
		points = append(points, [2]float64{float64(fy), val})
	}

	sort.Slice(points, func(i, j int) bool { return points[i][0] < points[j][0] })

	if len(points) > years+1 {
		points = points[len(points)-(years+1):]
	}

	return points
}

// growthCAGR computes the compound annual growth rate over the trailing
// years, as a percentage rounded to two decimals.
func growthCAGR(facts *sec.CompanyFacts, concepts []string, years int) (float64, bool) {
	points := valuesForGrowth(facts, concepts, years)
	if len(points) < 2 {
		return 0, false
	}

	startYear, startVal := points[0][0], points[0][1]
	endYear, endVal := points[len(points)-1][0], points[len(points)-1][1]

	if startVal <= 0 || endVal <= 0 || endYear <= startYear {
		return 0, false
	}

	cagr := (math.Pow(endVal/startVal, 1/(endYear-startYear)) - 1) * 100

	return math.Round(cagr*100) / 100, true
}

// derived builds a metric for a calculated value, inheriting the filing
// context of the metric it was derived from.
func derived(value float64, src *model.TemporalMetric) *model.TemporalMetric {
	metric := &model.TemporalMetric{Value: &value}

	if src != nil {
		metric.DataType = src.DataType
		metric.EndDate = src.EndDate
		metric.Filed = src.Filed
		metric.FiscalYear = src.FiscalYear
		metric.Form = src.Form
	}

	return metric
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// ParseFinancials extracts the universal financial metrics from XBRL
// company facts.
func ParseFinancials(facts *sec.CompanyFacts, symbol string) *Financials {
	revenue := mostRecentAcross(facts, revenueConcepts, unitUSD, formAnnual)

	fin := &Financials{
		Ticker:             symbol,
		Revenue:            revenue,
		NetIncome:          latestValue(facts, netIncomeConcepts, unitUSD, formAnnual),
		GrossProfit:        latestValue(facts, grossProfitConcepts, unitUSD, formAnnual),
		OperatingIncome:    latestValue(facts, operatingIncomeConcepts, unitUSD, formAnnual),
		TotalAssets:        latestValue(facts, totalAssetsConcepts, unitUSD, formAnnual),
		TotalLiabilities:   latestValue(facts, totalLiabilitiesConcepts, unitUSD, formAnnual),
		StockholdersEquity: latestValue(facts, stockholdersEquityConcepts, unitUSD, formAnnual),
		EPS:                latestValue(facts, epsConcepts, unitPerShare, formAnnual),
		Source:             SourceSECEdgar,
	}

	if rev, ok := revenue.Float(); ok && rev > 0 {
		if gp, ok := fin.GrossProfit.Float(); ok {
			fin.GrossMarginPct = derived(round2(gp/rev*100), revenue)
		}

		if oi, ok := fin.OperatingIncome.Float(); ok {
			fin.OperatingMarginPct = derived(round2(oi/rev*100), revenue)
		}

		if ni, ok := fin.NetIncome.Float(); ok {
			fin.NetMarginPct = derived(round2(ni/rev*100), revenue)
		}
	}

	if growth, ok := growthCAGR(facts, revenueConcepts, growthYears); ok {
		fin.RevenueGrowth3Yr = derived(growth, revenue)
	}

	return fin
}

// ParseDebt extracts leverage metrics from XBRL company facts.
func ParseDebt(facts *sec.CompanyFacts, symbol string) *DebtMetrics {
	longTerm := mostRecentAcross(facts, longTermDebtConcepts, unitUSD, formAnnual)
	shortTerm := latestValue(facts, shortTermDebtConcepts, unitUSD, formAnnual)
	cash := latestValue(facts, cashConcepts, unitUSD, formAnnual)
	equity := latestValue(facts, stockholdersEquityConcepts, unitUSD, formAnnual)

	total := mostRecentAcross(facts, totalDebtConcepts, unitUSD, formAnnual)
	if total == nil {
		lt, _ := longTerm.Float()
		st, _ := shortTerm.Float()

		if lt != 0 || st != 0 {
			src := longTerm
			if src == nil {
				src = shortTerm
			}

			total = derived(lt+st, src)
		}
	}

	debt := &DebtMetrics{
		Ticker:        symbol,
		LongTermDebt:  longTerm,
		ShortTermDebt: shortTerm,
		TotalDebt:     total,
		Cash:          cash,
		Source:        SourceSECEdgar,
	}

	if td, ok := total.Float(); ok {
		if c, ok := cash.Float(); ok {
			debt.NetDebt = derived(td-c, total)
		}

		if eq, ok := equity.Float(); ok && eq > 0 && td != 0 {
			debt.DebtToEquity = derived(round2(td/eq), total)
		}
	}

	return debt
}

// ParseCashFlow extracts cash-flow metrics from XBRL company facts.
func ParseCashFlow(facts *sec.CompanyFacts, symbol string) *CashFlowMetrics {
	operating := latestValue(facts, operatingCFConcepts, unitUSD, formAnnual)
	capex := latestValue(facts, capexConcepts, unitUSD, formAnnual)

	cf := &CashFlowMetrics{
		Ticker:             symbol,
		OperatingCashFlow:  operating,
		CapitalExpenditure: capex,
		RDExpense:          latestValue(facts, rdConcepts, unitUSD, formAnnual),
		Source:             SourceSECEdgar,
	}

	if ocf, ok := operating.Float(); ok {
		capexVal, _ := capex.Float()
		cf.FreeCashFlow = derived(ocf-math.Abs(capexVal), operating)
	}

	return cf
}

// ParseYahoo converts a Yahoo Finance summary into the same metric sets
// the XBRL path produces. Income-statement and cash-flow items carry the
// TTM tag; balance-sheet items are point-in-time.
func ParseYahoo(summary *yahoo.Summary, symbol string) (*Financials, *DebtMetrics, *CashFlowMetrics) {
	endDate := unixDate(summary.MostRecentQuarter)
	filed := unixDate(summary.RegularMarketTime)

	ttm := func(n interface{ Float() (float64, bool) }) *model.TemporalMetric {
		return yahooMetric(n, model.DataTypeTTM, endDate, filed)
	}
	point := func(n interface{ Float() (float64, bool) }) *model.TemporalMetric {
		return yahooMetric(n, model.DataTypePointInTime, endDate, filed)
	}

	fin := &Financials{
		Ticker:             symbol,
		Revenue:            ttm(summary.TotalRevenue),
		NetIncome:          ttm(summary.NetIncome),
		GrossProfit:        ttm(summary.GrossProfit),
		OperatingIncome:    ttm(summary.OperatingIncome),
		TotalAssets:        point(summary.TotalAssets),
		TotalLiabilities:   point(summary.TotalLiabilities),
		StockholdersEquity: point(summary.StockholdersEquity),
		Source:             SourceYahoo,
	}

	if rev, ok := fin.Revenue.Float(); ok && rev > 0 {
		if gp, ok := fin.GrossProfit.Float(); ok {
			fin.GrossMarginPct = derived(round2(gp/rev*100), fin.Revenue)
		}

		if oi, ok := fin.OperatingIncome.Float(); ok {
			fin.OperatingMarginPct = derived(round2(oi/rev*100), fin.Revenue)
		}

		if ni, ok := fin.NetIncome.Float(); ok {
			fin.NetMarginPct = derived(round2(ni/rev*100), fin.Revenue)
		}
	}

	debt := &DebtMetrics{
		Ticker:    symbol,
		TotalDebt: point(summary.TotalDebt),
		Cash:      point(summary.TotalCash),
		Source:    SourceYahoo,
	}

	if td, ok := debt.TotalDebt.Float(); ok {
		if c, ok := debt.Cash.Float(); ok {
			debt.NetDebt = derived(td-c, debt.TotalDebt)
		}

		if eq, ok := fin.StockholdersEquity.Float(); ok && eq > 0 {
			debt.DebtToEquity = derived(round2(td/eq), debt.TotalDebt)
		}
	}

	cf := &CashFlowMetrics{
		Ticker:            symbol,
		OperatingCashFlow: ttm(summary.OperatingCashflow),
		FreeCashFlow:      ttm(summary.FreeCashflow),
		Source:            SourceYahoo,
	}

	return fin, debt, cf
}

func yahooMetric(n interface{ Float() (float64, bool) }, dataType, endDate, filed string) *model.TemporalMetric {
	value, ok := n.Float()
	if !ok {
		return nil
	}

	return &model.TemporalMetric{
		Value:    &value,
		DataType: dataType,
		EndDate:  endDate,
		Filed:    filed,
	}
}

func unixDate(n interface{ Float() (float64, bool) }) string {
	ts, ok := n.Float()
	if !ok || ts <= 0 {
		return ""
	}

	return time.Unix(int64(ts), 0).UTC().Format("2006-01-02")
}
