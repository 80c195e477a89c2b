package matching

import (
	"strings"

	"go.uber.org/zap"
)

// Filter narrows the candidate pool before ranking.
type Filter interface {
	Name() string
	Apply(q Query, candidates []Candidate) []Candidate
}

// step describes the result of executing a filter.
type step struct {
	Initial int
	Dropped int
	Left    int
}

type stageFilter struct{}

// NewStageFilter keeps candidates whose stage equals the query stage, ignoring
// case. A query without a stage keeps everyone.
func NewStageFilter() Filter {
	return stageFilter{}
}

func (stageFilter) Name() string { return "stage" }

func (stageFilter) Apply(q Query, candidates []Candidate) []Candidate {
	stage := strings.TrimSpace(q.Stage)
	if stage == "" {
		return candidates
	}

	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if strings.EqualFold(strings.TrimSpace(c.Stage), stage) {
			kept = append(kept, c)
		}
	}
	return kept
}

type overlapFilter struct{}

// NewOverlapFilter keeps candidates sharing at least one tag with the query.
func NewOverlapFilter() Filter {
	return overlapFilter{}
}

func (overlapFilter) Name() string { return "tag_overlap" }

func (overlapFilter) Apply(q Query, candidates []Candidate) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Tags.Overlap(q.Tags) > 0 {
			kept = append(kept, c)
		}
	}
	return kept
}

// runFilters applies filters in order and stops early once the pool is empty.
func runFilters(log *zap.Logger, filters []Filter, q Query, candidates []Candidate) []Candidate {
	for _, filter := range filters {
		initial := len(candidates)
		candidates = filter.Apply(q, candidates)
		info := step{Initial: initial, Dropped: initial - len(candidates), Left: len(candidates)}

		log.Debug("filter step",
			zap.String("name", filter.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		if len(candidates) == 0 {
			break
		}
	}
	return candidates
}
