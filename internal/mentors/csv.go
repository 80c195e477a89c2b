package mentors

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/idea-validator/internal/logger"
	"github.com/spigell/idea-validator/internal/matching"
)

// CSVSource reads mentors from a CSV file with a header row. The file is
// re-read on every List so edits are picked up without a restart.
type CSVSource struct {
	path   string
	logger *zap.Logger
}

// NewCSVSource returns a source backed by the file at path.
func NewCSVSource(path string, log *zap.Logger) *CSVSource {
	return &CSVSource{path: path, logger: logger.WithFields(log, zap.String("mentors_csv", path))}
}

// List parses the whole file. Rows without an id are skipped; a missing tags
// column yields candidates with empty tag sets.
func (s *CSVSource) List(ctx context.Context) ([]matching.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open mentors file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []matching.Candidate{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read mentors header: %w", err)
	}
	for i, column := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(column, "\ufeff")))
	}

	candidates := make([]matching.Candidate, 0)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read mentors row %d: %w", line, err)
		}

		fields := make(map[string]string, len(header))
		for i, column := range header {
			if i < len(row) {
				fields[column] = strings.TrimSpace(row[i])
			}
		}

		var rec record
		if err := mapstructure.Decode(fields, &rec); err != nil {
			return nil, fmt.Errorf("decode mentors row %d: %w", line, err)
		}
		if rec.ID == "" {
			s.logger.Warn("skipping mentor without id", zap.Int("line", line))
			continue
		}

		candidates = append(candidates, rec.candidate())
	}

	s.logger.Debug("mentors loaded", zap.Int("count", len(candidates)))
	return candidates, nil
}
