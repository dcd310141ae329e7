package volatility

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/equityscope/equityscope/internal/basket"
	"github.com/equityscope/equityscope/internal/model"
)

const (
	betaBenchmark = "^GSPC"
	// Minimum aligned closes for a meaningful beta regression.
	betaMinCloses = 30
	// Minimum closes for a historical volatility estimate.
	hvMinCloses = 10

	tradingDaysPerYear = 252
)

// Beta computes the 1-year daily beta of symbol against the S&P 500.
// Never fails: calculation problems fall back to the market-average
// beta of 1.0.
func (b *Basket) Beta(ctx context.Context, symbol string) map[string]any {
	stock, err := b.yahoo.Chart(ctx, symbol, "1y")
	if err != nil {
		b.logger.Warn("beta stock chart unavailable", "ticker", symbol, "error", err)

		return b.defaultBeta(symbol)
	}

	market, err := b.yahoo.Chart(ctx, betaBenchmark, "1y")
	if err != nil {
		b.logger.Warn("beta benchmark chart unavailable", "ticker", symbol, "error", err)

		return b.defaultBeta(symbol)
	}

	stockCloses, marketCloses := alignTails(stock.Closes, market.Closes)
	if len(stockCloses) < betaMinCloses {
		b.logger.Warn("insufficient data for beta", "ticker", symbol, "closes", len(stockCloses))

		return b.defaultBeta(symbol)
	}

	stockReturns := dailyReturns(stockCloses)
	marketReturns := dailyReturns(marketCloses)

	variance := sampleVariance(marketReturns)

	beta := 1.0
	if variance != 0 {
		beta = sampleCovariance(stockReturns, marketReturns) / variance
	}

	interpretation, category := interpretBeta(beta)

	asOf, ok := stock.End()
	if !ok {
		asOf = basket.Date(b.now())
	}

	return map[string]any{
		"metric":         "Beta",
		"ticker":         symbol,
		"value":          round3(beta),
		"benchmark":      "S&P 500",
		"period":         "1 year",
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceCalculated,
		"as_of":          asOf,
	}
}

func (b *Basket) defaultBeta(symbol string) map[string]any {
	return map[string]any{
		"metric":          "Beta",
		"ticker":          symbol,
		"value":           1.0,
		"benchmark":       "S&P 500",
		"period":          "1 year",
		"interpretation":  "Market beta - Moves with the market (estimated)",
		"swot_category":   basket.CategoryNeutral,
		"source":          SourceEstimated,
		"fallback":        true,
		"fallback_reason": "Unable to calculate beta from price data",
		"estimated":       true,
		"as_of":           basket.Date(b.now()),
	}
}

func interpretBeta(beta float64) (string, string) {
	switch {
	case beta < 0.8:
		return "Low beta - Defensive stock, less volatile than market", basket.CategoryStrength
	case beta < 1.2:
		return "Market beta - Moves with the market", basket.CategoryNeutral
	case beta < 1.5:
		return "High beta - More volatile than market", basket.CategoryWeakness
	default:
		return "Very high beta - Significantly more volatile", basket.CategoryWeakness
	}
}

// HistoricalVolatility computes the annualized standard deviation of
// daily returns over the trailing periodDays. Never fails: calculation
// problems fall back to the typical equity figure of 25%.
func (b *Basket) HistoricalVolatility(ctx context.Context, symbol string, periodDays int) map[string]any {
	if periodDays <= 0 {
		periodDays = defaultHVPeriodDays
	}

	chart, err := b.yahoo.Chart(ctx, symbol, "3mo")
	if err != nil {
		b.logger.Warn("historical volatility chart unavailable", "ticker", symbol, "error", err)

		return b.defaultHistoricalVolatility(symbol, periodDays)
	}

	closes := chart.Closes
	if len(closes) > periodDays {
		closes = closes[len(closes)-periodDays:]
	}

	if len(closes) < hvMinCloses {
		b.logger.Warn("insufficient data for historical volatility", "ticker", symbol, "closes", len(closes))

		return b.defaultHistoricalVolatility(symbol, periodDays)
	}

	annualVol := sampleStdev(dailyReturns(closes)) * math.Sqrt(tradingDaysPerYear) * 100

	interpretation, category := interpretHV(annualVol)

	asOf, ok := chart.End()
	if !ok {
		asOf = basket.Date(b.now())
	}

	return map[string]any{
		"metric":         "Historical Volatility",
		"ticker":         symbol,
		"value":          round2(annualVol),
		"unit":           "% annualized",
		"period_days":    periodDays,
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceCalculated,
		"as_of":          asOf,
	}
}

func (b *Basket) defaultHistoricalVolatility(symbol string, periodDays int) map[string]any {
	return map[string]any{
		"metric":          "Historical Volatility",
		"ticker":          symbol,
		"value":           25.0,
		"unit":            "% annualized",
		"period_days":     periodDays,
		"interpretation":  "Moderate volatility - Normal for equities (estimated)",
		"swot_category":   basket.CategoryNeutral,
		"source":          SourceEstimated,
		"fallback":        true,
		"fallback_reason": "Unable to calculate historical volatility",
		"estimated":       true,
		"as_of":           basket.Date(b.now()),
	}
}

func interpretHV(vol float64) (string, string) {
	switch {
	case vol < 20:
		return "Low historical volatility - Stable price action", basket.CategoryStrength
	case vol < 35:
		return "Moderate volatility - Normal for equities", basket.CategoryNeutral
	case vol < 50:
		return "High volatility - Significant price swings", basket.CategoryWeakness
	default:
		return "Very high volatility - Extreme price movements", basket.CategoryWeakness
	}
}

// ImpliedVolatility reads the at-the-money call IV from the near-dated
// options chain. Never fails: missing options data falls back to the
// typical 30% figure.
func (b *Basket) ImpliedVolatility(ctx context.Context, symbol string) map[string]any {
	quote, err := b.yahoo.Chart(ctx, symbol, "1d")
	if err != nil {
		b.logger.Warn("implied volatility quote unavailable", "ticker", symbol, "error", err)

		return b.defaultImpliedVolatility(symbol)
	}

	chain, err := b.yahoo.OptionCalls(ctx, symbol)
	if err != nil {
		b.logger.Warn("options chain unavailable", "ticker", symbol, "error", err)

		return b.defaultImpliedVolatility(symbol)
	}

	price := quote.RegularMarketPrice

	atm := chain.Calls[0]
	for _, call := range chain.Calls[1:] {
		if math.Abs(call.Strike-price) < math.Abs(atm.Strike-price) {
			atm = call
		}
	}

	iv := atm.ImpliedVolatility * 100

	interpretation, category := interpretIV(iv)

	asOf, ok := quote.End()
	if !ok {
		asOf = basket.Date(b.now())
	}

	payload := map[string]any{
		"metric":         "Implied Volatility",
		"ticker":         symbol,
		"value":          round2(iv),
		"unit":           "%",
		"strike":         atm.Strike,
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceYahooOptions,
		"as_of":          asOf,
	}

	if chain.Expiration != 0 {
		payload["expiration"] = chain.Expiration
	} else {
		payload["expiration"] = nil
	}

	return payload
}

func (b *Basket) defaultImpliedVolatility(symbol string) map[string]any {
	return map[string]any{
		"metric":          "Implied Volatility",
		"ticker":          symbol,
		"value":           30.0,
		"unit":            "%",
		"strike":          nil,
		"expiration":      nil,
		"interpretation":  "Moderate IV - Normal expected movement (estimated)",
		"swot_category":   basket.CategoryNeutral,
		"source":          SourceEstimated,
		"fallback":        true,
		"fallback_reason": "Options data unavailable",
		"estimated":       true,
		"as_of":           basket.Date(b.now()),
	}
}

func interpretIV(iv float64) (string, string) {
	switch {
	case iv < 25:
		return "Low IV - Market expects limited price movement", basket.CategoryOpportunity
	case iv < 40:
		return "Moderate IV - Normal expected movement", basket.CategoryNeutral
	case iv < 60:
		return "High IV - Market expects significant movement", basket.CategoryThreat
	default:
		return "Very high IV - Extreme movement expected (earnings, event)", basket.CategoryThreat
	}
}

// avBeta reads the published beta from the Alpha Vantage overview, the
// secondary source for the all-sources comparison.
func (b *Basket) avBeta(ctx context.Context, symbol string) (map[string]any, error) {
	overview, err := b.av.CompanyOverview(ctx, symbol)
	if err != nil {
		return nil, err
	}

	beta, ok := overview.Float("Beta")
	if !ok {
		return nil, fmt.Errorf("alphavantage: no beta for %s", symbol)
	}

	interpretation, category := interpretBeta(beta)

	asOf := overview["LatestQuarter"]
	if asOf == "" {
		asOf = basket.Date(b.now())
	}

	return map[string]any{
		"metric":         "Beta",
		"ticker":         symbol,
		"value":          round3(beta),
		"benchmark":      "S&P 500",
		"period":         "5 year monthly",
		"interpretation": interpretation,
		"swot_category":  category,
		"source":         SourceAlphaVantage,
		"as_of":          asOf,
	}, nil
}

// VolatilityBasket assembles VIX, beta, historical and implied
// volatility with an aggregated SWOT summary. Individual metrics carry
// their own fallbacks, so the basket itself never fails.
func (b *Basket) VolatilityBasket(ctx context.Context, symbol string) map[string]any {
	vix := b.VIX(ctx)
	beta := b.Beta(ctx, symbol)
	hv := b.HistoricalVolatility(ctx, symbol, defaultHVPeriodDays)
	iv := b.ImpliedVolatility(ctx, symbol)

	swot := model.SWOTSummary{
		Strengths:     []string{},
		Weaknesses:    []string{},
		Opportunities: []string{},
		Threats:       []string{},
	}

	for _, metric := range []map[string]any{vix, beta, hv, iv} {
		desc := metricDescription(metric)

		switch metric["swot_category"] {
		case basket.CategoryStrength:
			swot.Strengths = append(swot.Strengths, desc)
		case basket.CategoryWeakness:
			swot.Weaknesses = append(swot.Weaknesses, desc)
		case basket.CategoryOpportunity:
			swot.Opportunities = append(swot.Opportunities, desc)
		case basket.CategoryThreat, basket.CategorySevereThreat:
			swot.Threats = append(swot.Threats, desc)
		}
	}

	return map[string]any{
		"ticker": symbol,
		"metrics": map[string]any{
			"vix":                   vix,
			"beta":                  beta,
			"historical_volatility": hv,
			"implied_volatility":    iv,
		},
		"swot_summary": swot,
		"generated_at": b.now().UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// metricDescription renders "Metric: value - interpretation" for the
// SWOT lists.
func metricDescription(metric map[string]any) string {
	value := "N/A"
	if v, ok := metric["value"].(float64); ok {
		value = strconv.FormatFloat(v, 'f', -1, 64)
	}

	return fmt.Sprintf("%v: %s - %v", metric["metric"], value, metric["interpretation"])
}

// AllSources builds the raw_metrics comparison envelope: FRED market
// indices, Yahoo-derived stock metrics, and the Alpha Vantage beta when
// available.
func (b *Basket) AllSources(ctx context.Context, symbol string) *model.BasketResult {
	asOf := basket.Date(b.now())
	sources := map[string]model.SourceEntry{}

	vix := b.VIX(ctx)
	vxn := b.VXN(ctx)

	sources["fred"] = model.SourceEntry{
		Source: asString(vix["source"]),
		AsOf:   asOf,
		Data: map[string]any{
			"vix": rawMetric(vix, model.DataTypeDaily),
			"vxn": rawMetric(vxn, model.DataTypeDaily),
		},
	}

	beta := b.Beta(ctx, symbol)
	hv := b.HistoricalVolatility(ctx, symbol, defaultHVPeriodDays)
	iv := b.ImpliedVolatility(ctx, symbol)

	sources["yahoo_finance"] = model.SourceEntry{
		Source: SourceYahoo,
		AsOf:   asOf,
		Data: map[string]any{
			"beta":                  rawMetric(beta, model.DataTypeAnnual),
			"historical_volatility": rawMetric(hv, model.DataType30D),
			"implied_volatility":    rawMetric(iv, model.DataTypeForward),
		},
	}

	if b.av != nil {
		avBeta, err := b.avBeta(ctx, symbol)
		if err == nil {
			sources["alpha_vantage"] = model.SourceEntry{
				Source: SourceAlphaVantage,
				AsOf:   asOf,
				Data: map[string]any{
					"beta": rawMetric(avBeta, model.DataTypeAnnual),
				},
			}
		} else {
			b.logger.Warn("Alpha Vantage beta leg failed", "ticker", symbol, "error", err)
		}
	}

	return &model.BasketResult{
		Group:   model.GroupRawMetrics,
		Ticker:  symbol,
		Sources: sources,
		Source:  ServerName,
		AsOf:    asOf,
	}
}

// rawMetric projects a metric payload into the normalized raw_metrics
// shape.
func rawMetric(metric map[string]any, dataType string) map[string]any {
	fallback := false
	if v, ok := metric["fallback"].(bool); ok {
		fallback = v
	}

	return map[string]any{
		"value":     metric["value"],
		"data_type": dataType,
		"as_of":     metric["as_of"],
		"source":    metric["source"],
		"fallback":  fallback,
	}
}

func asString(v any) string {
	s, _ := v.(string)

	return s
}

func alignTails(a, b []float64) ([]float64, []float64) {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	return a[len(a)-n:], b[len(b)-n:]
}

func dailyReturns(closes []float64) []float64 {
	returns := make([]float64, 0, len(closes)-1)

	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}

		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}

	return returns
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func sampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	m := mean(values)

	sum := 0.0
	for _, v := range values {
		sum += (v - m) * (v - m)
	}

	return sum / float64(len(values)-1)
}

func sampleStdev(values []float64) float64 {
	return math.Sqrt(sampleVariance(values))
}

func sampleCovariance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}

	meanA := mean(a)
	meanB := mean(b)

	sum := 0.0
	for i := range a {
		sum += (a[i] - meanA) * (b[i] - meanB)
	}

	return sum / float64(len(a)-1)
}
