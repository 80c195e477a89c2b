package evaluator

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const weightTolerance = 0.001

// Criterion is a named, weighted evaluation axis scored 1-10 by the generator.
type Criterion struct {
	Key      string  `mapstructure:"key" json:"key"`
	Question string  `mapstructure:"question" json:"question"`
	Weight   float64 `mapstructure:"weight" json:"weight"`
}

// Criteria is the ordered criterion set. Order drives the prompt and the
// order of explanations in results.
type Criteria []Criterion

// DefaultCriteria returns the six-criterion set used when nothing is configured.
func DefaultCriteria() Criteria {
	return Criteria{
		{Key: "problem_solved", Question: "What problem does this idea solve?", Weight: 0.15},
		{Key: "target_market_fit", Question: "How well does it fit the target market?", Weight: 0.15},
		{Key: "innovation_uniqueness", Question: "How innovative or unique is it in the industry?", Weight: 0.30},
		{Key: "feasibility", Question: "Is it technically and financially feasible?", Weight: 0.15},
		{Key: "risks_competition", Question: "What are the risks and competition?", Weight: 0.15},
		{Key: "market_presence", Question: "How strong is its market presence potential?", Weight: 0.10},
	}
}

// Validate checks keys are present and unique, weights lie in [0,1] and sum to 1.
func (c Criteria) Validate() error {
	if len(c) == 0 {
		return errors.New("at least one criterion is required")
	}

	seen := make(map[string]struct{}, len(c))
	sum := 0.0
	for i, criterion := range c {
		key := strings.TrimSpace(criterion.Key)
		if key == "" {
			return fmt.Errorf("criterion #%d: key is required", i+1)
		}
		if _, reserved := auxiliaryFields[key]; reserved {
			return fmt.Errorf("criterion %q: key is reserved", key)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("criterion %q: duplicate key", key)
		}
		seen[key] = struct{}{}

		if criterion.Weight < 0 || criterion.Weight > 1 || math.IsNaN(criterion.Weight) {
			return fmt.Errorf("criterion %q: weight %v must be within [0,1]", key, criterion.Weight)
		}
		sum += criterion.Weight
	}

	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("criterion weights sum to %.4f, must sum to 1.0", sum)
	}

	return nil
}

// Keys returns criterion keys in configured order.
func (c Criteria) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, criterion := range c {
		keys = append(keys, criterion.Key)
	}
	return keys
}

// normalized returns a copy with trimmed keys and questions defaulted to the key.
func (c Criteria) normalized() Criteria {
	out := make(Criteria, 0, len(c))
	for _, criterion := range c {
		criterion.Key = strings.TrimSpace(criterion.Key)
		criterion.Question = strings.TrimSpace(criterion.Question)
		if criterion.Question == "" {
			criterion.Question = strings.ReplaceAll(criterion.Key, "_", " ")
		}
		out = append(out, criterion)
	}
	return out
}

// FinalScore computes round(10 * sum(weight * score), 2). Keys missing from
// scores contribute zero.
func (c Criteria) FinalScore(scores map[string]int) float64 {
	total := 0.0
	for _, criterion := range c {
		total += criterion.Weight * float64(scores[criterion.Key])
	}
	return math.Round(total*10*100) / 100
}
