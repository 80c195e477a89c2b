// Package mentors loads the candidate pool consumed by the matcher.
package mentors

import (
	"context"

	"github.com/spigell/idea-validator/internal/matching"
)

// Source returns a fresh snapshot of the candidate pool on every call.
type Source interface {
	List(ctx context.Context) ([]matching.Candidate, error)
}

// record is the flat representation shared by every source.
type record struct {
	ID        string `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Expertise string `mapstructure:"expertise"`
	Stage     string `mapstructure:"stage"`
	Location  string `mapstructure:"location"`
	Tags      string `mapstructure:"tags"`
}

func (r record) candidate() matching.Candidate {
	return matching.Candidate{
		ID:        r.ID,
		Name:      r.Name,
		Expertise: r.Expertise,
		Stage:     r.Stage,
		Location:  r.Location,
		Tags:      matching.ParseTags(r.Tags),
	}
}
