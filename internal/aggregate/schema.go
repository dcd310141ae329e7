package aggregate

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed basket-result-schema.json
var basketResultSchema []byte

// ValidateEnvelope checks a normalized basket payload against the
// canonical envelope schema, returning one message per violation.
// Violations are diagnostic; the aggregator logs them and carries on.
func ValidateEnvelope(payload any) ([]string, error) {
	schemaLoader := gojsonschema.NewBytesLoader(basketResultSchema)
	payloadLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, payloadLoader)
	if err != nil {
		return nil, fmt.Errorf("envelope schema: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		issues = append(issues, verr.Field()+": "+verr.Description())
	}

	return issues, nil
}
