// Package aggregate drives the basket workers in order, bridges their
// payloads into the canonical sources schema, emits progress events, and
// assembles the final research artifact.
package aggregate

import (
	"encoding/json"

	"github.com/equityscope/equityscope/internal/model"
)

// nested walks a key path through loosely typed JSON, returning nil the
// moment any hop is missing or not an object.
func nested(data map[string]any, keys ...string) any {
	var current any = data

	for _, key := range keys {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}

		current = obj[key]
	}

	return current
}

// nestedMap is nested with a map result, or an empty map.
func nestedMap(data map[string]any, keys ...string) map[string]any {
	obj, ok := nested(data, keys...).(map[string]any)
	if !ok {
		return map[string]any{}
	}

	return obj
}

// metricScalar coerces a metric leaf into its scalar value. Leaves are
// either bare numbers or temporal-metric dicts carrying a "value" key.
func metricScalar(leaf any) (float64, bool) {
	switch v := leaf.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case map[string]any:
		inner, ok := v["value"].(float64)

		return inner, ok
	default:
		return 0, false
	}
}

// metricMeta extracts the temporal provenance of a metric leaf when the
// leaf is a dict. Bare numbers carry no provenance.
func metricMeta(leaf any) (endDate string, fiscalYear int, form string) {
	dict, ok := leaf.(map[string]any)
	if !ok {
		return "", 0, ""
	}

	endDate, _ = dict["end_date"].(string)
	form, _ = dict["form"].(string)

	if fy, ok := dict["fiscal_year"].(float64); ok {
		fiscalYear = int(fy)
	}

	return endDate, fiscalYear, form
}

// present reports whether a metric leaf carries usable data: a non-null
// scalar, a dict with a non-null value, or a non-empty list.
func present(leaf any) bool {
	switch v := leaf.(type) {
	case nil:
		return false
	case map[string]any:
		return v["value"] != nil
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

// decodeBasketResult round-trips a loose payload into the typed basket
// envelope. It fails only on marshal errors, which loose JSON maps do
// not produce in practice.
func decodeBasketResult(payload map[string]any) (*model.BasketResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var result model.BasketResult

	err = json.Unmarshal(data, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// decodeLoose round-trips a typed basket result back into a loose JSON
// object, the shape the schema validator consumes.
func decodeLoose(result *model.BasketResult) (map[string]any, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	var payload map[string]any

	err = json.Unmarshal(data, &payload)
	if err != nil {
		return nil, err
	}

	return payload, nil
}

// sourceData returns one source entry's data map from a typed basket
// result, or nil when the source is absent.
func sourceData(result *model.BasketResult, source string) map[string]any {
	entry, ok := result.Sources[source]
	if !ok {
		return nil
	}

	return entry.Data
}
