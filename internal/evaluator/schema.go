package evaluator

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const (
	fieldExplanation = "explanation"
	fieldScore       = "score"
	fieldSuggestions = "suggestions"
	fieldImprovement = "improvement"
	fieldSuccessRate = "success_rate"

	minCriterionScore = 1
	maxCriterionScore = 10
	minSuccessRate    = 0
	maxSuccessRate    = 100
)

var auxiliaryFields = map[string]struct{}{
	fieldSuggestions: {},
	fieldImprovement: {},
	fieldSuccessRate: {},
}

// responseSchema is the JSON schema the generator must satisfy. The same
// document is embedded in the prompt and compiled for validation.
type responseSchema struct {
	document map[string]any
	text     string
	compiled *gojsonschema.Schema
}

func newResponseSchema(criteria Criteria) (*responseSchema, error) {
	properties := make(map[string]any, len(criteria)+len(auxiliaryFields))
	required := make([]string, 0, len(criteria)+len(auxiliaryFields))

	for _, criterion := range criteria {
		properties[criterion.Key] = map[string]any{
			"type":        "object",
			"description": criterion.Question,
			"properties": map[string]any{
				fieldExplanation: map[string]any{
					"type":        "string",
					"description": "2-3 line justification",
				},
				fieldScore: map[string]any{
					"type":    "integer",
					"minimum": minCriterionScore,
					"maximum": maxCriterionScore,
				},
			},
			"required": []string{fieldExplanation, fieldScore},
		}
		required = append(required, criterion.Key)
	}

	properties[fieldSuggestions] = map[string]any{
		"type":        "array",
		"description": "ordered, actionable suggestions to strengthen the idea",
		"minItems":    1,
		"items":       map[string]any{"type": "string"},
	}
	properties[fieldImprovement] = map[string]any{
		"type":        "string",
		"description": "the single most important improvement",
	}
	properties[fieldSuccessRate] = map[string]any{
		"type":        "integer",
		"description": "estimated probability of success in percent",
		"minimum":     minSuccessRate,
		"maximum":     maxSuccessRate,
	}
	required = append(required, fieldSuggestions, fieldImprovement, fieldSuccessRate)

	document := map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}

	text, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal response schema: %w", err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(text))
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}

	return &responseSchema{document: document, text: string(text), compiled: compiled}, nil
}

// validate returns the list of schema violations, empty when the payload conforms.
func (s *responseSchema) validate(payload map[string]any) ([]string, error) {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("validate response: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}
