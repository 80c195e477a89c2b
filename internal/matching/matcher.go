// Package matching ranks a mentor and investor pool against an idea's tags.
//
// Matching is a pure function of its inputs. The candidate slice is only read,
// so callers may share one snapshot across concurrent Match calls.
package matching

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/idea-validator/internal/logger"
)

// Strategy selects how candidates are ranked.
type Strategy string

const (
	// StrategySimilarity ranks by TF-IDF cosine similarity and keeps the top N.
	StrategySimilarity Strategy = "similarity"
	// StrategyExactOverlap returns every stage-matching candidate sharing a tag.
	StrategyExactOverlap Strategy = "exact-overlap"

	DefaultTopN = 3
)

// ParseStrategy resolves a configured strategy name. Empty means similarity.
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(name))) {
	case "", StrategySimilarity:
		return StrategySimilarity, nil
	case StrategyExactOverlap:
		return StrategyExactOverlap, nil
	default:
		return "", fmt.Errorf("unknown matching strategy %q", name)
	}
}

// Candidate is a mentor or investor record.
type Candidate struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Expertise string `json:"expertise,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Location  string `json:"location,omitempty"`
	Tags      TagSet `json:"tags"`
}

// Query is the profile derived from a submitted idea.
type Query struct {
	Tags  TagSet
	Stage string
}

// Match is a ranked candidate. Score is the cosine similarity for the
// similarity strategy and the number of shared tags for exact overlap.
type Match struct {
	Candidate Candidate `json:"candidate"`
	Score     float64   `json:"score"`
}

// Options configure a Matcher.
type Options struct {
	Strategy      Strategy
	TopN          int
	FilterByStage bool
}

// Matcher ranks candidates. It is safe for concurrent use.
type Matcher struct {
	opts   Options
	logger *zap.Logger
}

// New validates opts and returns a Matcher.
func New(opts Options, log *zap.Logger) (*Matcher, error) {
	strategy, err := ParseStrategy(string(opts.Strategy))
	if err != nil {
		return nil, err
	}
	opts.Strategy = strategy
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}

	return &Matcher{
		opts:   opts,
		logger: logger.WithFields(log, zap.String(logger.FieldStrategy, string(strategy))),
	}, nil
}

// Strategy returns the configured strategy.
func (m *Matcher) Strategy() Strategy {
	return m.opts.Strategy
}

// Match ranks candidates against q. topN <= 0 uses the configured default and
// is ignored by the exact-overlap strategy. An empty pool yields an empty
// result, never an error.
func (m *Matcher) Match(q Query, candidates []Candidate, topN int) []Match {
	if topN <= 0 {
		topN = m.opts.TopN
	}
	q.Tags = NewTagSet(q.Tags...)

	var matches []Match
	switch m.opts.Strategy {
	case StrategyExactOverlap:
		matches = m.exactOverlap(q, candidates)
	default:
		matches = m.similarity(q, candidates, topN)
	}

	m.logger.Debug("candidates matched",
		zap.Int("pool", len(candidates)),
		zap.Int("matched", len(matches)),
		zap.Strings("tags", q.Tags),
		zap.String("stage", q.Stage),
	)
	return matches
}

func (m *Matcher) exactOverlap(q Query, candidates []Candidate) []Match {
	pool := runFilters(m.logger, []Filter{NewStageFilter(), NewOverlapFilter()}, q, candidates)

	matches := make([]Match, 0, len(pool))
	for _, c := range pool {
		matches = append(matches, Match{Candidate: c, Score: float64(c.Tags.Overlap(q.Tags))})
	}
	return matches
}

func (m *Matcher) similarity(q Query, candidates []Candidate, topN int) []Match {
	pool := candidates
	if m.opts.FilterByStage {
		pool = runFilters(m.logger, []Filter{NewStageFilter()}, q, candidates)
	}
	if len(pool) == 0 {
		return []Match{}
	}

	docs := make([][]string, 0, len(pool)+1)
	for _, c := range pool {
		docs = append(docs, tokenize(NewTagSet(c.Tags...).Document()))
	}
	queryTokens := tokenize(q.Tags.Document())
	vec := fitVectorizer(append(docs, queryTokens))
	queryVec := vec.transform(queryTokens)

	matches := make([]Match, len(pool))
	for i, c := range pool {
		matches[i] = Match{Candidate: c, Score: cosine(queryVec, vec.transform(docs[i]))}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches
}
