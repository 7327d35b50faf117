package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/eventscope/pkg/domain"
)

// SourceRepository handles source-related database operations
type SourceRepository struct {
	db *sqlx.DB
}

// sourceSQL represents a source for SQL operations
type sourceSQL struct {
	ID                  int64      `db:"id"`
	Name                string     `db:"name"`
	URL                 string     `db:"url"`
	Kind                string     `db:"kind"`
	StrategyHint        string     `db:"strategy_hint"`
	PollInterval        int64      `db:"poll_interval"`
	Active              bool       `db:"active"`
	ConsecutiveFailures int        `db:"consecutive_failures"`
	LastSuccessAt       *time.Time `db:"last_success_at"`
	LastAttemptAt       *time.Time `db:"last_attempt_at"`
	LastEventsFound     int        `db:"last_events_found"`
	LastError           string     `db:"last_error"`
	CreatedAt           time.Time  `db:"created_at"`
}

// NewSourceRepository creates a new source repository
func NewSourceRepository(database *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: database}
}

// UpsertSource inserts a source or updates configuration of the existing one with the same url.
// Health columns are never touched here. Sets src.ID.
func (r *SourceRepository) UpsertSource(ctx context.Context, src *domain.Source) error {
	if src.Kind == "" {
		src.Kind = domain.SourcePage
	}
	row := &sourceSQL{
		Name:         src.Name,
		URL:          src.URL,
		Kind:         string(src.Kind),
		StrategyHint: string(src.StrategyHint),
		PollInterval: int64(src.PollInterval / time.Second),
		Active:       src.Active,
	}
	query := `
		INSERT INTO sources (name, url, kind, strategy_hint, poll_interval, active)
		VALUES (:name, :url, :kind, :strategy_hint, :poll_interval, :active)
		ON CONFLICT(url) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			strategy_hint = excluded.strategy_hint,
			poll_interval = excluded.poll_interval,
			active = excluded.active
	`
	err := withLockRetry(ctx, func() error {
		_, err := r.db.NamedExecContext(ctx, query, row)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert source %s: %w", src.URL, err)
	}

	// last insert id is not reliable for the update branch of an upsert
	if err := r.db.GetContext(ctx, &src.ID, "SELECT id FROM sources WHERE url = ?", src.URL); err != nil {
		return fmt.Errorf("get source id: %w", err)
	}
	return nil
}

// GetSource retrieves a source by ID, domain.ErrNotFound if missing
func (r *SourceRepository) GetSource(ctx context.Context, id int64) (*domain.Source, error) {
	var row sourceSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM sources WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	return row.toDomain(), nil
}

// GetSources retrieves sources ordered by id, optionally active only
func (r *SourceRepository) GetSources(ctx context.Context, activeOnly bool) ([]*domain.Source, error) {
	query := "SELECT * FROM sources"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY id"

	var rows []sourceSQL
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("get sources: %w", err)
	}
	res := make([]*domain.Source, len(rows))
	for i := range rows {
		res[i] = rows[i].toDomain()
	}
	return res, nil
}

// UpdateHealth persists a health snapshot computed by the caller
func (r *SourceRepository) UpdateHealth(ctx context.Context, id int64, h domain.SourceHealth) error {
	query := `
		UPDATE sources
		SET consecutive_failures = ?,
		    last_success_at = ?,
		    last_attempt_at = ?,
		    last_events_found = ?,
		    last_error = ?
		WHERE id = ?
	`
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, query, h.ConsecutiveFailures, h.LastSuccessAt, h.LastAttemptAt,
			h.LastEventsFound, h.LastError, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("update source health: %w", err)
	}
	return nil
}

// SetActive activates or deactivates a source, sources are never deleted by the engine
func (r *SourceRepository) SetActive(ctx context.Context, id int64, active bool) error {
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, "UPDATE sources SET active = ? WHERE id = ?", active, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("set source active: %w", err)
	}
	return nil
}

func (s *sourceSQL) toDomain() *domain.Source {
	return &domain.Source{
		ID:           s.ID,
		Name:         s.Name,
		URL:          s.URL,
		Kind:         domain.SourceKind(s.Kind),
		StrategyHint: domain.StrategyKind(s.StrategyHint),
		PollInterval: time.Duration(s.PollInterval) * time.Second,
		Active:       s.Active,
		Health: domain.SourceHealth{
			ConsecutiveFailures: s.ConsecutiveFailures,
			LastSuccessAt:       s.LastSuccessAt,
			LastAttemptAt:       s.LastAttemptAt,
			LastEventsFound:     s.LastEventsFound,
			LastError:           s.LastError,
		},
		CreatedAt: s.CreatedAt,
	}
}
