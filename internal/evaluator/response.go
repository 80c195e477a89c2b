package evaluator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// CriterionResult is the validated outcome for one criterion.
type CriterionResult struct {
	Question    string `json:"question,omitempty" mapstructure:"-"`
	Explanation string `json:"explanation" mapstructure:"explanation"`
	Score       int    `json:"score" mapstructure:"score"`
}

// payload is the typed view of a schema-valid generator response.
type payload struct {
	Criteria    map[string]CriterionResult `mapstructure:"-"`
	Suggestions []string                   `mapstructure:"suggestions"`
	Improvement string                     `mapstructure:"improvement"`
	SuccessRate int                        `mapstructure:"success_rate"`
}

// parseResponse strips formatting artifacts, parses the JSON object, coerces
// numeric strings, validates against the schema and decodes the result.
func parseResponse(raw string, criteria Criteria, schema *responseSchema) (*payload, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, newError(KindMalformedOutput, 0, errors.New("response contains no JSON object"))
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, newError(KindMalformedOutput, 0, fmt.Errorf("parse generator response: %w", err))
	}
	if data == nil {
		return nil, newError(KindMalformedOutput, 0, errors.New("response is not a JSON object"))
	}

	for _, criterion := range criteria {
		if item, ok := data[criterion.Key].(map[string]any); ok {
			item[fieldScore] = coerceInt(item[fieldScore])
			if explanation, ok := item[fieldExplanation].(string); ok {
				item[fieldExplanation] = strings.TrimSpace(explanation)
			}
		}
	}
	if _, ok := data[fieldSuccessRate]; ok {
		data[fieldSuccessRate] = coerceInt(data[fieldSuccessRate])
	}

	violations, err := schema.validate(data)
	if err != nil {
		return nil, newError(KindSchemaViolation, 0, err)
	}
	if len(violations) > 0 {
		return nil, newError(KindSchemaViolation, 0, errors.New(strings.Join(violations, "; ")))
	}

	out := &payload{Criteria: make(map[string]CriterionResult, len(criteria))}
	if err := mapstructure.Decode(data, out); err != nil {
		return nil, newError(KindSchemaViolation, 0, fmt.Errorf("decode response: %w", err))
	}

	for _, criterion := range criteria {
		var result CriterionResult
		if err := mapstructure.Decode(data[criterion.Key], &result); err != nil {
			return nil, newError(KindSchemaViolation, 0, fmt.Errorf("decode %s: %w", criterion.Key, err))
		}
		result.Question = criterion.Question
		out.Criteria[criterion.Key] = result
	}

	suggestions := out.Suggestions[:0]
	for _, s := range out.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	if len(suggestions) == 0 {
		return nil, newError(KindSchemaViolation, 0, errors.New("suggestions: no non-blank entries"))
	}
	out.Suggestions = suggestions
	out.Improvement = strings.TrimSpace(out.Improvement)

	return out, nil
}

// isUniform reports whether every criterion carries the same score.
func (p *payload) isUniform() bool {
	if len(p.Criteria) < 2 {
		return false
	}

	distinct := make(map[int]struct{}, len(p.Criteria))
	for _, result := range p.Criteria {
		distinct[result.Score] = struct{}{}
	}
	return len(distinct) == 1
}

func (p *payload) scores() map[string]int {
	scores := make(map[string]int, len(p.Criteria))
	for key, result := range p.Criteria {
		scores[key] = result.Score
	}
	return scores
}

// extractJSON removes markdown code fences and any prose around the outermost object.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(strings.Trim(raw, "`"))

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return ""
	}
	return raw[start : end+1]
}

// coerceInt converts integral numbers and numeric strings to int. Anything
// else is returned unchanged so schema validation reports it.
func coerceInt(v any) any {
	switch val := v.(type) {
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return int(val)
		}
		return val
	case string:
		trimmed := strings.TrimSpace(val)
		if n, err := strconv.Atoi(trimmed); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int(f)
		}
		return val
	default:
		return v
	}
}
