package aggregate

import (
	"github.com/equityscope/equityscope/internal/model"
)

// requiredFields is the completeness contract: the fields each basket
// must surface for the artifact to count as fully populated. Content
// baskets are complete when they carry any items.
var requiredFields = map[string][]string{
	model.BasketFundamentals: {"revenue", "net_income", "eps", "debt_to_equity"},
	model.BasketValuation:    {"trailing_pe", "pb_ratio", "ps_ratio"},
	model.BasketVolatility:   {"beta", "vix"},
	model.BasketMacro:        {"gdp_growth", "interest_rate", "cpi_inflation"},
	model.BasketNews:         {"items"},
	model.BasketSentiment:    {"items"},
}

// ScoreCompleteness checks every required field against the normalized
// results, counting a field found when any source entry carries it with
// usable data.
func ScoreCompleteness(results map[string]*model.BasketResult) model.Completeness {
	score := model.Completeness{Missing: map[string][]string{}}

	for _, basketID := range model.BasketOrder {
		fields := requiredFields[basketID]
		score.Total += len(fields)

		result := results[basketID]

		for _, field := range fields {
			if hasField(result, field) {
				score.Found++

				continue
			}

			score.Missing[basketID] = append(score.Missing[basketID], field)
		}
	}

	if score.Total > 0 {
		score.Pct = 100 * float64(score.Found) / float64(score.Total)
	}

	return score
}

func hasField(result *model.BasketResult, field string) bool {
	if result == nil {
		return false
	}

	if field == "items" {
		return result.TotalItems > 0
	}

	for _, entry := range result.Sources {
		if present(entry.Data[field]) {
			return true
		}
	}

	return false
}
