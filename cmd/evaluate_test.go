package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/idea-validator/internal/ai"
	"github.com/spigell/idea-validator/internal/cache"
	"github.com/spigell/idea-validator/internal/evaluator"
	"github.com/spigell/idea-validator/internal/metrics"
)

const validReply = `{
  "problem_solved": {"explanation": "clear pain", "score": 3},
  "target_market_fit": {"explanation": "good fit", "score": 7},
  "innovation_uniqueness": {"explanation": "some novelty", "score": 5},
  "feasibility": {"explanation": "cheap to build", "score": 9},
  "risks_competition": {"explanation": "crowded", "score": 4},
  "market_presence": {"explanation": "regional", "score": 6},
  "suggestions": ["Interview farmers"],
  "improvement": "Narrow the market",
  "success_rate": 62
}`

func newEvaluateCommand() *cobra.Command {
	c := &cobra.Command{Use: "evaluate"}
	c.Flags().String("description", "", "")
	c.Flags().String("target-market", "", "")
	c.Flags().String("industry", "", "")
	c.Flags().BoolP("interactive", "i", false, "")
	return c
}

func testCommandConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := decodeConfig(newTestViper(t))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Evaluation.RetryDelay = 0
	return cfg
}

func countingGenerator(calls *int, reply string) ai.Generator {
	return ai.GeneratorFunc(func(context.Context, string, ai.SamplingConfig) (string, error) {
		*calls++
		return reply, nil
	})
}

func TestReadRequestFromFlags(t *testing.T) {
	c := newEvaluateCommand()
	c.Flags().Set("description", "Marketplace for farmers")
	c.Flags().Set("target-market", "Restaurants")
	c.Flags().Set("industry", "AgriTech")

	req, err := readRequest(c, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req != (evaluator.Request{Description: "Marketplace for farmers", TargetMarket: "Restaurants", Industry: "AgriTech"}) {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestReadRequestRequiresDescription(t *testing.T) {
	if _, err := readRequest(newEvaluateCommand(), nil); err == nil {
		t.Fatal("expected error without description")
	}
}

func TestReadRequestInteractive(t *testing.T) {
	c := newEvaluateCommand()
	c.Flags().Set("interactive", "true")

	answers := map[string]string{
		PromptIdea:         "  Drone deliveries for pharmacies ",
		PromptTargetMarket: "Rural clinics",
		PromptIndustry:     "HealthTech",
	}
	var asked []string
	req, err := readRequest(c, func(label string) (string, error) {
		asked = append(asked, label)
		return answers[label], nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(asked) != 3 || asked[0] != PromptIdea || asked[2] != PromptIndustry {
		t.Fatalf("unexpected prompt order: %v", asked)
	}
	if req.Description != "Drone deliveries for pharmacies" || req.Industry != "HealthTech" {
		t.Fatalf("unexpected request: %+v", req)
	}
}

func TestReadRequestInteractiveAborted(t *testing.T) {
	c := newEvaluateCommand()
	c.Flags().Set("interactive", "true")

	_, err := readRequest(c, func(string) (string, error) { return "", errors.New("^C") })
	if err == nil || !strings.Contains(err.Error(), PromptIdea) {
		t.Fatalf("expected prompt error, got %v", err)
	}
}

func TestRunEvaluationPrintsResult(t *testing.T) {
	calls := 0
	var out bytes.Buffer

	err := runEvaluation(context.Background(), evaluationDeps{
		generator: countingGenerator(&calls, validReply),
		recorder:  metrics.New(),
		logger:    zap.NewNop(),
	}, testCommandConfig(t), evaluator.Request{Description: "idea"}, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result evaluator.Result
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if result.FinalScore != 55.5 || result.Attempts != 1 || calls != 1 {
		t.Fatalf("unexpected result: %+v (calls=%d)", result, calls)
	}
}

func TestRunEvaluationPrintsFailure(t *testing.T) {
	calls := 0
	var out bytes.Buffer
	cfg := testCommandConfig(t)
	cfg.Evaluation.MaxRetries = 2

	err := runEvaluation(context.Background(), evaluationDeps{
		generator: countingGenerator(&calls, "not json at all"),
		logger:    zap.NewNop(),
	}, cfg, evaluator.Request{Description: "idea"}, &out)
	if !evaluator.IsKind(err, evaluator.KindRetriesExhausted) {
		t.Fatalf("expected retries exhausted, got %v", err)
	}

	var result evaluator.Result
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if result.FinalScore != 0 || result.Error == "" || calls != 2 {
		t.Fatalf("unexpected failure output: %+v (calls=%d)", result, calls)
	}
}

func TestRunEvaluationUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testCommandConfig(t)
	cfg.Cache.Redis.Address = mr.Addr()

	resultCache, closeCache, err := openResultCache(cfg, false, zap.NewNop())
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer closeCache()
	if resultCache == nil {
		t.Fatal("expected cache to be enabled")
	}

	calls := 0
	deps := evaluationDeps{
		generator: countingGenerator(&calls, validReply),
		cache:     resultCache,
		logger:    zap.NewNop(),
	}
	req := evaluator.Request{Description: "idea", Industry: "AgriTech"}

	var first, second bytes.Buffer
	if err := runEvaluation(context.Background(), deps, cfg, req, &first); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := runEvaluation(context.Background(), deps, cfg, req, &second); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected generator to be called once, got %d", calls)
	}
	if first.String() != second.String() {
		t.Fatalf("cached output differs:\n%s\n%s", first.String(), second.String())
	}
}

func TestOpenResultCacheDisabled(t *testing.T) {
	cfg := testCommandConfig(t)
	cfg.Cache.Redis = cache.Config{Address: "localhost:6379"}

	resultCache, closeCache, err := openResultCache(cfg, true, zap.NewNop())
	if err != nil || resultCache != nil {
		t.Fatalf("expected disabled cache, got %v %v", resultCache, err)
	}
	closeCache()
}

func TestNewGeneratorRejectsUnknownProvider(t *testing.T) {
	cfg := testCommandConfig(t)
	cfg.AI.Provider = "openai"

	if _, err := newGenerator(context.Background(), cfg.AI, zap.NewNop()); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported provider error, got %v", err)
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	t.Setenv(geminiAPIKeyEnv, "")
	cfg := testCommandConfig(t)

	_, err := newGenerator(context.Background(), cfg.AI, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), geminiAPIKeyEnv) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}
