package cmd

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/idea-validator/internal/logger"
	"github.com/spigell/idea-validator/internal/matching"
	"github.com/spigell/idea-validator/internal/mentors"
	"github.com/spigell/idea-validator/internal/metrics"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Rank mentors and investors for an idea's tags and stage",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("tags", "t", "", "comma separated idea tags")
	matchCmd.Flags().StringP("stage", "s", "", "idea stage or industry used to pre-filter candidates")
	matchCmd.Flags().String("strategy", string(matching.StrategySimilarity), "ranking strategy: similarity or exact-overlap")
	matchCmd.Flags().IntP("top-n", "n", matching.DefaultTopN, "number of candidates returned by the similarity strategy")
	matchCmd.Flags().String("mentors-csv", "mentors.csv", "path to the mentors CSV file")

	viper.BindPFlag("matching.strategy", matchCmd.Flags().Lookup("strategy"))
	viper.BindPFlag("matching.top-n", matchCmd.Flags().Lookup("top-n"))
	viper.BindPFlag("mentors.csv", matchCmd.Flags().Lookup("mentors-csv"))
}

type matchOutput struct {
	Strategy matching.Strategy `json:"strategy"`
	Matches  []matching.Match  `json:"matches"`
}

func match(cmd *cobra.Command) error {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		return fmt.Errorf("getting a config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	source, closeSource, err := newMentorSource(ctx, config.Mentors, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	recorder := metrics.New()
	defer func() {
		if err := recorder.WriteTextfile(config.MetricsFile); err != nil {
			logger.Warn("writing metrics", zap.Error(err))
		}
	}()

	tags, _ := cmd.Flags().GetString("tags")
	stage, _ := cmd.Flags().GetString("stage")
	query := matching.Query{Tags: matching.ParseTags(tags), Stage: stage}

	return runMatch(ctx, source, config, query, recorder, logger, cmd.OutOrStdout())
}

func runMatch(ctx context.Context, source mentors.Source, config *Config, query matching.Query, recorder *metrics.Recorder, logger *zap.Logger, out io.Writer) error {
	matcher, err := matching.New(config.matcherOptions(), logger)
	if err != nil {
		return err
	}

	candidates, err := source.List(ctx)
	if err != nil {
		return fmt.Errorf("loading mentors: %w", err)
	}

	matches := matcher.Match(query, candidates, 0)
	recorder.ObserveMatch(string(matcher.Strategy()), len(matches))

	logger.Info("mentors matched",
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)),
	)

	return printJSON(out, matchOutput{Strategy: matcher.Strategy(), Matches: matches})
}

// newMentorSource prefers PostgreSQL when a DSN is configured and falls back to the CSV file.
func newMentorSource(ctx context.Context, cfg *MentorsConfig, logger *zap.Logger) (mentors.Source, func(), error) {
	if cfg.Postgres != nil && cfg.Postgres.DSN != "" {
		db, err := mentors.OpenPostgres(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		return mentors.NewPostgresSource(db, cfg.Postgres.Query, logger), func() { db.Close() }, nil
	}

	return mentors.NewCSVSource(cfg.CSV, logger), func() {}, nil
}
