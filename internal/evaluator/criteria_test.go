package evaluator

import (
	"math"
	"math/rand"
	"strings"
	"testing"
)

func TestDefaultCriteriaAreValid(t *testing.T) {
	criteria := DefaultCriteria()
	if err := criteria.Validate(); err != nil {
		t.Fatalf("default criteria invalid: %v", err)
	}

	expected := []string{"problem_solved", "target_market_fit", "innovation_uniqueness", "feasibility", "risks_competition", "market_presence"}
	keys := criteria.Keys()
	for i, key := range expected {
		if keys[i] != key {
			t.Fatalf("criterion %d: expected %s, got %s", i, key, keys[i])
		}
	}
}

func TestCriteriaValidate(t *testing.T) {
	tests := []struct {
		name     string
		criteria Criteria
		errPart  string
	}{
		{name: "empty", criteria: nil, errPart: "at least one"},
		{name: "blank key", criteria: Criteria{{Key: " ", Weight: 1}}, errPart: "key is required"},
		{name: "duplicate", criteria: Criteria{{Key: "a", Weight: 0.5}, {Key: "a", Weight: 0.5}}, errPart: "duplicate"},
		{name: "reserved", criteria: Criteria{{Key: "suggestions", Weight: 1}}, errPart: "reserved"},
		{name: "negative weight", criteria: Criteria{{Key: "a", Weight: -0.2}, {Key: "b", Weight: 1.2}}, errPart: "within [0,1]"},
		{name: "bad sum", criteria: Criteria{{Key: "a", Weight: 0.3}, {Key: "b", Weight: 0.3}}, errPart: "sum to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criteria.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Fatalf("expected error containing %q, got %v", tt.errPart, err)
			}
		})
	}
}

func TestCriteriaValidateAllowsTolerance(t *testing.T) {
	criteria := Criteria{{Key: "a", Weight: 0.3333}, {Key: "b", Weight: 0.3333}, {Key: "c", Weight: 0.3333}}
	if err := criteria.Validate(); err != nil {
		t.Fatalf("expected weights within tolerance to pass: %v", err)
	}
}

func TestFinalScore(t *testing.T) {
	criteria := DefaultCriteria()

	tests := []struct {
		name   string
		scores []int
		want   float64
	}{
		{name: "mixed", scores: []int{3, 7, 5, 9, 4, 6}, want: 55.5},
		{name: "all min", scores: []int{1, 1, 1, 1, 1, 1}, want: 10},
		{name: "all max", scores: []int{10, 10, 10, 10, 10, 10}, want: 100},
		{name: "innovation only", scores: []int{1, 1, 10, 1, 1, 1}, want: 37},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := make(map[string]int, len(criteria))
			for i, key := range criteria.Keys() {
				scores[key] = tt.scores[i]
			}

			if got := criteria.FinalScore(scores); math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFinalScoreStaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(8)
		raw := make([]float64, n)
		total := 0.0
		for j := range raw {
			raw[j] = rng.Float64()
			total += raw[j]
		}

		criteria := make(Criteria, n)
		scores := make(map[string]int, n)
		for j := range raw {
			key := string(rune('a' + j))
			criteria[j] = Criterion{Key: key, Weight: raw[j] / total}
			scores[key] = 1 + rng.Intn(10)
		}

		got := criteria.FinalScore(scores)
		if got < 10-1e-9 || got > 100+1e-9 {
			t.Fatalf("iteration %d: score %v outside [10,100]", i, got)
		}
		if math.Abs(got*100-math.Round(got*100)) > 1e-6 {
			t.Fatalf("iteration %d: score %v not rounded to two decimals", i, got)
		}
	}
}

func TestNormalizedDefaultsQuestion(t *testing.T) {
	criteria := Criteria{{Key: " market_presence ", Weight: 1}}.normalized()
	if criteria[0].Key != "market_presence" || criteria[0].Question != "market presence" {
		t.Fatalf("unexpected normalized criterion: %+v", criteria[0])
	}
}
