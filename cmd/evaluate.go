package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/idea-validator/internal/ai"
	"github.com/spigell/idea-validator/internal/ai/gemini"
	"github.com/spigell/idea-validator/internal/cache"
	"github.com/spigell/idea-validator/internal/evaluator"
	"github.com/spigell/idea-validator/internal/logger"
	"github.com/spigell/idea-validator/internal/metrics"
	"github.com/spigell/idea-validator/internal/secrets"
)

const geminiAPIKeyEnv = "GEMINI_API_KEY"

const (
	PromptIdea         = "Enter your startup idea"
	PromptTargetMarket = "Enter your target market"
	PromptIndustry     = "Enter the industry"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score a startup idea and print the evaluation as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return evaluate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().String("description", "", "free-text description of the idea")
	evaluateCmd.Flags().String("target-market", "", "target market of the idea")
	evaluateCmd.Flags().String("industry", "", "industry of the idea")
	evaluateCmd.Flags().BoolP("interactive", "i", false, "ask for the idea, target market and industry interactively")
	evaluateCmd.Flags().Bool("no-cache", false, "do not read or write the result cache")
}

// asker returns the user's answer for label.
type asker func(label string) (string, error)

func promptAsker(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("value is required")
			}
			return nil
		},
	}
	return p.Run()
}

func evaluate(cmd *cobra.Command) error {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	req, err := readRequest(cmd, promptAsker)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	recorder := metrics.New()
	defer func() {
		if err := recorder.WriteTextfile(config.MetricsFile); err != nil {
			logger.Warn("writing metrics", zap.Error(err))
		}
	}()

	noCache, _ := cmd.Flags().GetBool("no-cache")
	resultCache, closeCache, err := openResultCache(config, noCache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		return err
	}

	return runEvaluation(ctx, evaluationDeps{
		generator: generator,
		cache:     resultCache,
		recorder:  recorder,
		logger:    logger,
	}, config, req, cmd.OutOrStdout())
}

// readRequest builds the request from flags, or from prompts in interactive mode.
func readRequest(cmd *cobra.Command, ask asker) (evaluator.Request, error) {
	var req evaluator.Request

	interactive, _ := cmd.Flags().GetBool("interactive")
	if interactive {
		answers := make([]string, 0, 3)
		for _, label := range []string{PromptIdea, PromptTargetMarket, PromptIndustry} {
			answer, err := ask(label)
			if err != nil {
				return req, fmt.Errorf("reading %q: %w", label, err)
			}
			answers = append(answers, strings.TrimSpace(answer))
		}
		req = evaluator.Request{Description: answers[0], TargetMarket: answers[1], Industry: answers[2]}
	} else {
		req.Description, _ = cmd.Flags().GetString("description")
		req.TargetMarket, _ = cmd.Flags().GetString("target-market")
		req.Industry, _ = cmd.Flags().GetString("industry")
	}

	if strings.TrimSpace(req.Description) == "" {
		return req, errors.New("idea description is required (use --description or --interactive)")
	}
	return req, nil
}

type evaluationDeps struct {
	generator ai.Generator
	cache     *cache.ResultCache
	recorder  *metrics.Recorder
	logger    *zap.Logger
}

// runEvaluation evaluates req within the configured wall-clock timeout and
// prints the result. A failed evaluation is still printed before its error is
// returned.
func runEvaluation(ctx context.Context, deps evaluationDeps, config *Config, req evaluator.Request, out io.Writer) error {
	ev, err := evaluator.New(deps.generator, config.evaluatorConfig(), deps.logger, evaluator.WithObserver(deps.recorder))
	if err != nil {
		return err
	}

	if config.Evaluation.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Evaluation.Timeout)
		defer cancel()
	}

	if deps.cache != nil {
		cached, ok, err := deps.cache.Get(ctx, req)
		if err != nil {
			deps.logger.Warn("reading evaluation cache", zap.Error(err))
		}
		if ok {
			deps.recorder.ObserveCacheHit()
			deps.logger.Info("serving cached evaluation", zap.String(logger.FieldEvaluationID, cached.ID))
			return printJSON(out, cached)
		}
	}

	result, evalErr := ev.Evaluate(ctx, req)
	if err := printJSON(out, result); err != nil {
		return err
	}
	if evalErr != nil {
		return evalErr
	}

	if deps.cache != nil {
		if err := deps.cache.Put(ctx, req, result); err != nil {
			deps.logger.Warn("writing evaluation cache", zap.Error(err))
		}
	}
	return nil
}

func openResultCache(config *Config, disabled bool, log *zap.Logger) (*cache.ResultCache, func(), error) {
	noop := func() {}
	if disabled || !config.Cache.Redis.Enabled() {
		return nil, noop, nil
	}

	criteria := evaluator.Criteria(config.Evaluation.Criteria)
	if len(criteria) == 0 {
		criteria = evaluator.DefaultCriteria()
	}

	client := cache.NewClient(config.Cache.Redis)
	resultCache, err := cache.New(client, config.Cache.Redis.TTL, criteria, log)
	if err != nil {
		client.Close()
		return nil, noop, err
	}

	return resultCache, func() { client.Close() }, nil
}

func newGenerator(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Generator, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != gemini.Provider {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Value: cfg.Gemini.APIKey,
		Env:   geminiAPIKeyEnv,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, ai.gemini.api-key or %s)", err, geminiAPIKeyEnv)
	}

	generator, err := gemini.NewGenerator(ctx, gemini.Config{
		APIKey:            apiKey,
		Model:             cfg.Gemini.Model,
		RequestsPerMinute: cfg.Gemini.RequestsPerMinute,
		MaxLogLength:      cfg.Gemini.MaxLogLength,
	}, logger)
	if err != nil {
		return nil, err
	}

	return generator, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
