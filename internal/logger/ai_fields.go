package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the generator provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the generator model identifier.
	FieldModel = "ai_model"
	// FieldEvaluationID correlates every log line of a single evaluation.
	FieldEvaluationID = "evaluation_id"
	// FieldAttempt is the 1-based attempt number inside the evaluation retry loop.
	FieldAttempt = "attempt"
	// FieldStrategy names the matching strategy.
	FieldStrategy = "strategy"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the provided fields to the logger, falling back to a
// no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// GeneratorFields returns the provider and model fields. Empty values are dropped.
func GeneratorFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithGenerator attaches the provider and model fields to the logger.
func WithGenerator(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, GeneratorFields(provider, model)...)
}

// WithEvaluation scopes the logger to one evaluation.
func WithEvaluation(logger *zap.Logger, evaluationID string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldEvaluationID, Value: evaluationID})...)
}
