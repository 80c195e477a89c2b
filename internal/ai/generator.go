// Package ai describes the text generation capability the evaluator depends on.
package ai

import "context"

// SamplingConfig tunes a single generation request.
type SamplingConfig struct {
	// Temperature controls sampling randomness.
	Temperature float64
	// ForceStructuredOutput asks the provider for a machine-parseable (JSON) response.
	ForceStructuredOutput bool
}

// Generator turns a prompt into text. Implementations may fail for transport,
// quota or response-shape reasons; callers treat every failure as retryable.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg SamplingConfig) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, cfg SamplingConfig) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, cfg SamplingConfig) (string, error) {
	return f(ctx, prompt, cfg)
}
