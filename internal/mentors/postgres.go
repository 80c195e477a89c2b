package mentors

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/spigell/idea-validator/internal/logger"
	"github.com/spigell/idea-validator/internal/matching"
)

// DefaultQuery selects the columns expected by PostgresSource, in order.
const DefaultQuery = `SELECT id::text, name, expertise, stage, location, tags FROM mentors ORDER BY id`

// OpenPostgres opens a connection pool using the lib/pq driver.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PostgresSource reads mentors with a configurable query returning
// id, name, expertise, stage, location and tags. Only id is required to be
// non-null.
type PostgresSource struct {
	db     *sql.DB
	query  string
	logger *zap.Logger
}

// NewPostgresSource wraps db. An empty query uses DefaultQuery.
func NewPostgresSource(db *sql.DB, query string, log *zap.Logger) *PostgresSource {
	if query == "" {
		query = DefaultQuery
	}
	return &PostgresSource{db: db, query: query, logger: logger.WithFields(log)}
}

func (s *PostgresSource) List(ctx context.Context) ([]matching.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query mentors: %w", err)
	}
	defer rows.Close()

	candidates := make([]matching.Candidate, 0)
	for rows.Next() {
		var (
			rec                                       record
			name, expertise, stage, location, tagList sql.NullString
		)
		if err := rows.Scan(&rec.ID, &name, &expertise, &stage, &location, &tagList); err != nil {
			return nil, fmt.Errorf("scan mentor: %w", err)
		}
		rec.Name = name.String
		rec.Expertise = expertise.String
		rec.Stage = stage.String
		rec.Location = location.String
		rec.Tags = tagList.String

		candidates = append(candidates, rec.candidate())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentors: %w", err)
	}

	s.logger.Debug("mentors loaded", zap.Int("count", len(candidates)))
	return candidates, nil
}
