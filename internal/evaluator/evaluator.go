// Package evaluator scores startup ideas with an external text generator.
//
// The generator is unreliable: it may fail, wrap its JSON in markdown, drift
// from the requested schema or return the same score for every criterion.
// Evaluate retries on all of these with increasing sampling temperature and
// always hands back a well-formed Result.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/idea-validator/internal/ai"
	"github.com/spigell/idea-validator/internal/logger"
	"github.com/spigell/idea-validator/internal/utils"
)

const (
	DefaultMaxRetries      = 3
	DefaultBaseTemperature = 0.3
	DefaultTemperatureStep = 0.2
	DefaultMaxTemperature  = 1.0
	DefaultRetryDelay      = time.Second

	defaultMaxLogLength        = 200
	defaultSuggestionSeparator = "\n"
)

// Config controls the evaluator. Zero counts fall back to the defaults above.
// Temperatures and RetryDelay are taken as given unless negative, so a zero
// Config samples at temperature 0 with no delay and keeps the uniform-score
// guard on.
type Config struct {
	Criteria            Criteria
	MaxRetries          int
	BaseTemperature     float64
	TemperatureStep     float64
	MaxTemperature      float64
	RetryDelay          time.Duration
	AllowUniformScores  bool
	SuggestionSeparator string
	MaxLogLength        int
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Criteria:            DefaultCriteria(),
		MaxRetries:          DefaultMaxRetries,
		BaseTemperature:     DefaultBaseTemperature,
		TemperatureStep:     DefaultTemperatureStep,
		MaxTemperature:      DefaultMaxTemperature,
		RetryDelay:          DefaultRetryDelay,
		SuggestionSeparator: defaultSuggestionSeparator,
		MaxLogLength:        defaultMaxLogLength,
	}
}

// Result is the outcome of one evaluation. On terminal failure FinalScore is
// zero and Error carries the last diagnostic.
type Result struct {
	ID              string                     `json:"id"`
	FinalScore      float64                    `json:"final_score"`
	PerCriterion    map[string]CriterionResult `json:"per_criterion,omitempty"`
	Suggestions     []string                   `json:"suggestions,omitempty"`
	SuggestionsText string                     `json:"suggestions_text,omitempty"`
	Improvement     string                     `json:"improvement,omitempty"`
	SuccessRate     int                        `json:"success_rate"`
	Attempts        int                        `json:"attempts"`
	Error           string                     `json:"error,omitempty"`
	Raw             string                     `json:"-"`
}

// Failed reports whether the result describes a terminal failure.
func (r *Result) Failed() bool {
	return r == nil || r.Error != ""
}

// Observer receives per-attempt and per-evaluation outcomes. Implementations
// must be safe for concurrent use.
type Observer interface {
	ObserveAttempt(kind Kind)
	ObserveEvaluation(kind Kind, attempts int, duration time.Duration)
}

// Option customises an Evaluator.
type Option func(*Evaluator)

// WithObserver reports attempt outcomes to o.
func WithObserver(o Observer) Option {
	return func(e *Evaluator) {
		e.observer = o
	}
}

// Evaluator runs the scoring protocol. It holds no per-call state and is safe
// for concurrent use.
type Evaluator struct {
	generator ai.Generator
	cfg       Config
	schema    *responseSchema
	logger    *zap.Logger
	observer  Observer
	newID     func() string
}

// New validates cfg and builds an Evaluator around generator.
func New(generator ai.Generator, cfg Config, log *zap.Logger, opts ...Option) (*Evaluator, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}

	cfg = withDefaults(cfg)
	if err := cfg.Criteria.Validate(); err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}
	cfg.Criteria = cfg.Criteria.normalized()

	schema, err := newResponseSchema(cfg.Criteria)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		generator: generator,
		cfg:       cfg,
		schema:    schema,
		logger:    logger.WithFields(log),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

func withDefaults(cfg Config) Config {
	if len(cfg.Criteria) == 0 {
		cfg.Criteria = DefaultCriteria()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseTemperature < 0 {
		cfg.BaseTemperature = DefaultBaseTemperature
	}
	if cfg.TemperatureStep < 0 {
		cfg.TemperatureStep = 0
	}
	if cfg.MaxTemperature < 0 {
		cfg.MaxTemperature = DefaultMaxTemperature
	}
	if cfg.MaxTemperature < cfg.BaseTemperature {
		cfg.MaxTemperature = cfg.BaseTemperature
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.SuggestionSeparator == "" {
		cfg.SuggestionSeparator = defaultSuggestionSeparator
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaultMaxLogLength
	}
	return cfg
}

// Criteria returns the normalized criterion set in configured order.
func (e *Evaluator) Criteria() Criteria {
	out := make(Criteria, len(e.cfg.Criteria))
	copy(out, e.cfg.Criteria)
	return out
}

// Prompt renders the prompt that would be sent for req.
func (e *Evaluator) Prompt(req Request) string {
	return buildPrompt(req, e.cfg.Criteria, e.schema)
}

// Evaluate scores req. The returned Result is never nil. The error is non-nil
// only for terminal failures and is an *Error of kind KindRetriesExhausted or
// KindCanceled wrapping the last attempt's failure.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	id := e.newID()
	log := logger.WithEvaluation(e.logger, id)
	prompt := e.Prompt(req)

	log.Debug("evaluating idea",
		zap.String("industry", req.Industry),
		zap.String("target_market", req.TargetMarket),
		zap.Int("max_retries", e.cfg.MaxRetries),
	)

	var lastErr error
	var lastRaw string
	attempts := 0

	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := utils.WaitFor(ctx, e.cfg.RetryDelay); err != nil {
				return e.fail(log, id, newError(KindCanceled, 0, errors.Join(err, lastErr)), lastRaw, attempts, started)
			}
		}
		if err := ctx.Err(); err != nil {
			return e.fail(log, id, newError(KindCanceled, 0, errors.Join(err, lastErr)), lastRaw, attempts, started)
		}

		attempts = attempt
		temperature := e.temperature(attempt)
		result, raw, err := e.attempt(ctx, log, prompt, attempt, temperature)
		if err == nil {
			result.ID = id
			result.Attempts = attempt
			e.observeAttempt("")
			e.observeEvaluation("", attempt, time.Since(started))
			log.Info("idea evaluated",
				zap.Float64("final_score", result.FinalScore),
				zap.Int("attempts", attempt),
			)
			return result, nil
		}

		lastErr = err
		lastRaw = raw
		e.observeAttempt(err.Kind)
		log.Warn("evaluation attempt failed",
			zap.Int(logger.FieldAttempt, attempt),
			zap.String("kind", string(err.Kind)),
			zap.Float64("temperature", temperature),
			zap.Error(err.Err),
		)

		if !err.Retryable() {
			return e.fail(log, id, err, lastRaw, attempts, started)
		}
	}

	return e.fail(log, id, newError(KindRetriesExhausted, 0, lastErr), lastRaw, attempts, started)
}

func (e *Evaluator) attempt(ctx context.Context, log *zap.Logger, prompt string, attempt int, temperature float64) (*Result, string, *Error) {
	raw, err := e.generator.Generate(ctx, prompt, ai.SamplingConfig{
		Temperature:           temperature,
		ForceStructuredOutput: true,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", newError(KindCanceled, attempt, errors.Join(ctxErr, err))
		}
		return nil, "", newError(KindGeneratorUnavailable, attempt, err)
	}

	log.Debug("generator response",
		zap.Int(logger.FieldAttempt, attempt),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.cfg.MaxLogLength)),
	)

	parsed, err := parseResponse(raw, e.cfg.Criteria, e.schema)
	if err != nil {
		var typed *Error
		if errors.As(err, &typed) {
			typed.Attempt = attempt
			return nil, raw, typed
		}
		return nil, raw, newError(KindMalformedOutput, attempt, err)
	}

	if !e.cfg.AllowUniformScores && parsed.isUniform() {
		return nil, raw, newError(KindDegenerateResponse, attempt,
			fmt.Errorf("all %d criteria scored %d", len(parsed.Criteria), parsed.Criteria[e.cfg.Criteria[0].Key].Score))
	}

	return &Result{
		FinalScore:      e.cfg.Criteria.FinalScore(parsed.scores()),
		PerCriterion:    parsed.Criteria,
		Suggestions:     parsed.Suggestions,
		SuggestionsText: strings.Join(parsed.Suggestions, e.cfg.SuggestionSeparator),
		Improvement:     parsed.Improvement,
		SuccessRate:     parsed.SuccessRate,
		Raw:             raw,
	}, raw, nil
}

func (e *Evaluator) fail(log *zap.Logger, id string, err *Error, raw string, attempts int, started time.Time) (*Result, error) {
	e.observeEvaluation(err.Kind, attempts, time.Since(started))
	log.Error("idea evaluation failed",
		zap.String("kind", string(err.Kind)),
		zap.Int("attempts", attempts),
		zap.String("raw_preview", utils.TruncateForLog(raw, e.cfg.MaxLogLength)),
		zap.Error(err.Err),
	)

	return &Result{
		ID:         id,
		FinalScore: 0,
		Attempts:   attempts,
		Error:      err.Error(),
		Raw:        raw,
	}, err
}

// temperature widens exploration on every retry, capped at MaxTemperature.
func (e *Evaluator) temperature(attempt int) float64 {
	t := e.cfg.BaseTemperature + e.cfg.TemperatureStep*float64(attempt-1)
	t = math.Min(t, e.cfg.MaxTemperature)
	return math.Round(t*100) / 100
}

func (e *Evaluator) observeAttempt(kind Kind) {
	if e.observer != nil {
		e.observer.ObserveAttempt(kind)
	}
}

func (e *Evaluator) observeEvaluation(kind Kind, attempts int, d time.Duration) {
	if e.observer != nil {
		e.observer.ObserveEvaluation(kind, attempts, d)
	}
}
