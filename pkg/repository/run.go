package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/eventscope/pkg/domain"
)

// RunRepository stores crawl run statistics
type RunRepository struct {
	db *sqlx.DB
}

// runSQL represents a crawl run for SQL operations
type runSQL struct {
	ID         string      `db:"id"`
	SourceID   int64       `db:"source_id"`
	Strategy   string      `db:"strategy"`
	Pages      int         `db:"pages"`
	Candidates int         `db:"candidates"`
	Extracted  int         `db:"extracted"`
	Accepted   int         `db:"accepted"`
	Rejected   rejectedSQL `db:"rejected"`
	Inserted   int         `db:"inserted"`
	Updated    int         `db:"updated"`
	Unchanged  int         `db:"unchanged"`
	Skipped    int         `db:"skipped"`
	Warnings   warningsSQL `db:"warnings"`
	Failed     bool        `db:"failed"`
	Error      string      `db:"error"`
	StartedAt  time.Time   `db:"started_at"`
	FinishedAt time.Time   `db:"finished_at"`
}

// rejectedSQL is a JSON object of rejection counters
type rejectedSQL map[string]int

// Value implements driver.Valuer for database storage
func (r rejectedSQL) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	b, err := json.Marshal(r)
	return string(b), err
}

// Scan implements sql.Scanner for database retrieval
func (r *rejectedSQL) Scan(value any) error {
	*r = rejectedSQL{}
	data, ok := scanBytes(value)
	if !ok {
		return nil
	}
	return json.Unmarshal(data, r)
}

// warningsSQL is a JSON array of run warnings
type warningsSQL []string

// Value implements driver.Valuer for database storage
func (w warningsSQL) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	b, err := json.Marshal(w)
	return string(b), err
}

// Scan implements sql.Scanner for database retrieval
func (w *warningsSQL) Scan(value any) error {
	*w = warningsSQL{}
	data, ok := scanBytes(value)
	if !ok {
		return nil
	}
	return json.Unmarshal(data, w)
}

func scanBytes(value any) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, len(v) > 0
	case string:
		return []byte(v), v != ""
	}
	return nil, false
}

// NewRunRepository creates a new run repository
func NewRunRepository(database *sqlx.DB) *RunRepository {
	return &RunRepository{db: database}
}

// SaveRun stores statistics of a finished run
func (r *RunRepository) SaveRun(ctx context.Context, s *domain.RunStats) error {
	row := &runSQL{
		ID: s.RunID, SourceID: s.SourceID, Strategy: s.Strategy, Pages: s.Pages, Candidates: s.Candidates,
		Extracted: s.Extracted, Accepted: s.Accepted, Rejected: rejectedSQL(s.Rejected), Inserted: s.Inserted,
		Updated: s.Updated, Unchanged: s.Unchanged, Skipped: s.Skipped, Warnings: warningsSQL(s.Warnings),
		Failed: s.Failed, Error: s.Error, StartedAt: s.StartedAt.UTC(), FinishedAt: s.FinishedAt.UTC(),
	}
	query := `
		INSERT INTO crawl_runs (id, source_id, strategy, pages, candidates, extracted, accepted, rejected,
			inserted, updated, unchanged, skipped, warnings, failed, error, started_at, finished_at)
		VALUES (:id, :source_id, :strategy, :pages, :candidates, :extracted, :accepted, :rejected,
			:inserted, :updated, :unchanged, :skipped, :warnings, :failed, :error, :started_at, :finished_at)
	`
	err := withLockRetry(ctx, func() error {
		_, err := r.db.NamedExecContext(ctx, query, row)
		return err
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", s.RunID, err)
	}
	return nil
}

// GetRuns returns the latest runs of a source, newest first
func (r *RunRepository) GetRuns(ctx context.Context, sourceID int64, limit int) ([]*domain.RunStats, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runSQL
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM crawl_runs WHERE source_id = ? ORDER BY started_at DESC LIMIT ?", sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("get runs: %w", err)
	}
	res := make([]*domain.RunStats, len(rows))
	for i, row := range rows {
		res[i] = &domain.RunStats{
			RunID: row.ID, SourceID: row.SourceID, Strategy: row.Strategy, Pages: row.Pages,
			Candidates: row.Candidates, Extracted: row.Extracted, Accepted: row.Accepted,
			Rejected: map[string]int(row.Rejected), Inserted: row.Inserted, Updated: row.Updated,
			Unchanged: row.Unchanged, Skipped: row.Skipped, Warnings: []string(row.Warnings),
			Failed: row.Failed, Error: row.Error, StartedAt: row.StartedAt, FinishedAt: row.FinishedAt,
		}
	}
	return res, nil
}
