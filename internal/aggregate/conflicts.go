package aggregate

import (
	"math"

	"github.com/equityscope/equityscope/internal/model"
)

// conflictTolerance is the absolute disagreement above which two
// providers' values for the same metric are recorded as a conflict.
const conflictTolerance = 0.5

// conflictCheck compares one primary/secondary provider pair on a fixed
// metric set within one basket.
type conflictCheck struct {
	primary   string
	secondary string
	metrics   []string
}

var conflictChecks = map[string]conflictCheck{
	model.BasketFundamentals: {
		primary:   "sec_edgar",
		secondary: "yahoo_finance",
		metrics:   []string{"revenue", "net_income", "free_cash_flow"},
	},
	model.BasketValuation: {
		primary:   "yahoo_finance",
		secondary: "alpha_vantage",
		metrics:   []string{"trailing_pe", "forward_pe", "pb_ratio", "ps_ratio"},
	},
}

// DetectConflicts records metrics on which a basket's two providers
// disagree by more than the tolerance. The primary value always wins;
// the record only documents the disagreement.
func DetectConflicts(basketID string, result *model.BasketResult) []model.ConflictRecord {
	check, ok := conflictChecks[basketID]
	if !ok || result == nil {
		return nil
	}

	primary := sourceData(result, check.primary)
	secondary := sourceData(result, check.secondary)

	if primary == nil || secondary == nil {
		return nil
	}

	var records []model.ConflictRecord

	for _, metric := range check.metrics {
		pv, pok := metricScalar(primary[metric])
		sv, sok := metricScalar(secondary[metric])

		if !pok || !sok {
			continue
		}

		if math.Abs(pv-sv) <= conflictTolerance {
			continue
		}

		records = append(records, model.ConflictRecord{
			Metric:         metric,
			PrimaryValue:   pv,
			SecondaryValue: sv,
			Used:           "primary",
		})
	}

	return records
}
