package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/idea-validator/internal/cache"
	"github.com/spigell/idea-validator/internal/evaluator"
	"github.com/spigell/idea-validator/internal/matching"
)

const (
	app       = "idea-validator"
	envPrefix = "IDEA_VALIDATOR"
)

type Config struct {
	Evaluation  *EvaluationConfig `mapstructure:"evaluation"`
	Matching    *MatchingConfig   `mapstructure:"matching"`
	Mentors     *MentorsConfig    `mapstructure:"mentors"`
	AI          *AIConfig         `mapstructure:"ai"`
	Cache       *CacheConfig      `mapstructure:"cache"`
	MetricsFile string            `mapstructure:"metrics-file"`
}

type EvaluationConfig struct {
	MaxRetries          int                   `mapstructure:"max-retries"`
	BaseTemperature     float64               `mapstructure:"base-temperature"`
	TemperatureStep     float64               `mapstructure:"temperature-step"`
	MaxTemperature      float64               `mapstructure:"max-temperature"`
	RetryDelay          time.Duration         `mapstructure:"retry-delay"`
	RejectUniformScores bool                  `mapstructure:"reject-uniform-scores"`
	SuggestionSeparator string                `mapstructure:"suggestion-separator"`
	Timeout             time.Duration         `mapstructure:"timeout"`
	Criteria            []evaluator.Criterion `mapstructure:"criteria"`
}

type MatchingConfig struct {
	Strategy      string `mapstructure:"strategy"`
	TopN          int    `mapstructure:"top-n"`
	FilterByStage bool   `mapstructure:"filter-by-stage"`
}

type MentorsConfig struct {
	CSV      string          `mapstructure:"csv"`
	Postgres *PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Query string `mapstructure:"query"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey            string `mapstructure:"api-key"`
	APIKeyFile        string `mapstructure:"api-key-file"`
	Model             string `mapstructure:"model"`
	RequestsPerMinute int    `mapstructure:"requests-per-minute"`
	MaxLogLength      int    `mapstructure:"max-log-length"`
}

type CacheConfig struct {
	Redis cache.Config `mapstructure:"redis"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "idea-validator scores startup ideas with Gemini and matches them with mentors",
		SilenceUsage: true,
	}
)

// Execute executes the root command. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is idea-validator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every known key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("evaluation.max-retries", evaluator.DefaultMaxRetries)
	v.SetDefault("evaluation.base-temperature", evaluator.DefaultBaseTemperature)
	v.SetDefault("evaluation.temperature-step", evaluator.DefaultTemperatureStep)
	v.SetDefault("evaluation.max-temperature", evaluator.DefaultMaxTemperature)
	v.SetDefault("evaluation.retry-delay", evaluator.DefaultRetryDelay)
	v.SetDefault("evaluation.reject-uniform-scores", true)
	v.SetDefault("evaluation.suggestion-separator", "\n")
	v.SetDefault("evaluation.timeout", 2*time.Minute)

	v.SetDefault("matching.strategy", string(matching.StrategySimilarity))
	v.SetDefault("matching.top-n", matching.DefaultTopN)
	v.SetDefault("matching.filter-by-stage", true)

	v.SetDefault("mentors.csv", "mentors.csv")
	v.SetDefault("mentors.postgres.dsn", "")
	v.SetDefault("mentors.postgres.query", "")

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-1.5-flash-latest")
	v.SetDefault("ai.gemini.requests-per-minute", 0)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("cache.redis.address", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.ttl", cache.DefaultTTL)

	v.SetDefault("metrics-file", "")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	// .env is optional; it only seeds the process environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		log.Fatal(err)
	}
}

// readConfig loads the explicit config file or, when none is given, an
// optional idea-validator.yaml from the working directory.
func readConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		return v.ReadInConfig()
	}

	v.AddConfigPath(".")
	v.SetConfigName(app)

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}

	if config.Evaluation == nil {
		config.Evaluation = &EvaluationConfig{}
	}
	if config.Matching == nil {
		config.Matching = &MatchingConfig{}
	}
	if config.Mentors == nil {
		config.Mentors = &MentorsConfig{}
	}
	if config.Mentors.Postgres == nil {
		config.Mentors.Postgres = &PostgresConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.AI.Gemini == nil {
		config.AI.Gemini = &GeminiConfig{}
	}
	if config.Cache == nil {
		config.Cache = &CacheConfig{}
	}

	return config, nil
}

func (c *Config) evaluatorConfig() evaluator.Config {
	e := c.Evaluation
	return evaluator.Config{
		Criteria:            evaluator.Criteria(e.Criteria),
		MaxRetries:          e.MaxRetries,
		BaseTemperature:     e.BaseTemperature,
		TemperatureStep:     e.TemperatureStep,
		MaxTemperature:      e.MaxTemperature,
		RetryDelay:          e.RetryDelay,
		AllowUniformScores:  !e.RejectUniformScores,
		SuggestionSeparator: e.SuggestionSeparator,
		MaxLogLength:        c.AI.Gemini.MaxLogLength,
	}
}

func (c *Config) matcherOptions() matching.Options {
	return matching.Options{
		Strategy:      matching.Strategy(c.Matching.Strategy),
		TopN:          c.Matching.TopN,
		FilterByStage: c.Matching.FilterByStage,
	}
}
