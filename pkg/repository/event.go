package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/umputun/eventscope/pkg/domain"
)

// ContentColumns lists event columns the ingestion gate may change
var ContentColumns = []string{"title", "start_at", "end_at", "location", "description", "price", "url",
	"confidence", "date_confidence"}

// EventRepository handles pending-review event rows
type EventRepository struct {
	db *sqlx.DB
}

// eventSQL represents an event for SQL operations
type eventSQL struct {
	ID             int64      `db:"id"`
	Fingerprint    string     `db:"fingerprint"`
	SourceID       int64      `db:"source_id"`
	Title          string     `db:"title"`
	StartAt        time.Time  `db:"start_at"`
	EndAt          *time.Time `db:"end_at"`
	Location       string     `db:"location"`
	Description    string     `db:"description"`
	Price          string     `db:"price"`
	URL            string     `db:"url"`
	Confidence     int        `db:"confidence"`
	DateConfidence string     `db:"date_confidence"`
	ApprovalStatus string     `db:"approval_status"`
	ManualOverride bool       `db:"manual_override"`
	Version        int        `db:"version"`
	LastSeenAt     *time.Time `db:"last_seen_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// EventFilter selects events for listing
type EventFilter struct {
	Status   domain.ApprovalStatus // empty for any
	SourceID int64                 // zero for any
	Limit    int
}

// NewEventRepository creates a new event repository
func NewEventRepository(database *sqlx.DB) *EventRepository {
	return &EventRepository{db: database}
}

// GetByFingerprint retrieves the event with the fingerprint, domain.ErrNotFound if missing
func (r *EventRepository) GetByFingerprint(ctx context.Context, fingerprint string) (*domain.StoredEvent, error) {
	var row eventSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM events WHERE fingerprint = ?", fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %s: %w", fingerprint, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event by fingerprint: %w", err)
	}
	return row.toDomain(), nil
}

// GetEvent retrieves an event by ID, domain.ErrNotFound if missing
func (r *EventRepository) GetEvent(ctx context.Context, id int64) (*domain.StoredEvent, error) {
	var row eventSQL
	err := r.db.GetContext(ctx, &row, "SELECT * FROM events WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("event %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return row.toDomain(), nil
}

// InsertEvent creates a pending event row and sets ev.ID and ev.Version.
// A row with the same fingerprint already present is reported as domain.ErrStorageConflict.
func (r *EventRepository) InsertEvent(ctx context.Context, ev *domain.StoredEvent) error {
	now := time.Now().UTC()
	if ev.ApprovalStatus == "" {
		ev.ApprovalStatus = domain.ApprovalPending
	}
	row := fromDomainEvent(ev)
	row.Version = 1
	row.CreatedAt, row.UpdatedAt = now, now
	if row.LastSeenAt == nil {
		row.LastSeenAt = &now
	}

	query := `
		INSERT INTO events (fingerprint, source_id, title, start_at, end_at, location, description, price, url,
			confidence, date_confidence, approval_status, manual_override, version, last_seen_at, created_at, updated_at)
		VALUES (:fingerprint, :source_id, :title, :start_at, :end_at, :location, :description, :price, :url,
			:confidence, :date_confidence, :approval_status, :manual_override, :version, :last_seen_at, :created_at, :updated_at)
	`
	var id int64
	err := withLockRetry(ctx, func() error {
		res, err := r.db.NamedExecContext(ctx, query, row)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("insert event %s: %w", ev.Fingerprint, domain.ErrStorageConflict)
	}
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	ev.ID, ev.Version = id, 1
	ev.CreatedAt, ev.UpdatedAt, ev.LastSeenAt = now, now, row.LastSeenAt
	return nil
}

// UpdateEvent changes content columns of a row if it is still at the expected version and not
// manually overridden. Otherwise nothing is written and domain.ErrStorageConflict is returned.
func (r *EventRepository) UpdateEvent(ctx context.Context, id int64, version int, changes map[string]any, seenAt time.Time) error {
	if len(changes) == 0 {
		return nil
	}
	cols := make([]string, 0, len(changes))
	for col := range changes {
		if !isContentColumn(col) {
			return fmt.Errorf("update event: column %q is not updatable", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+3)
	args := make([]any, 0, len(cols)+5)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, changes[col])
	}
	sets = append(sets, "version = version + 1", "updated_at = ?", "last_seen_at = ?")
	args = append(args, time.Now().UTC(), seenAt.UTC(), id, version)
	query := "UPDATE events SET " + strings.Join(sets, ", ") + " WHERE id = ? AND version = ? AND manual_override = 0"

	var affected int64
	err := withLockRetry(ctx, func() error {
		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update event %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update event %d at version %d: %w", id, version, domain.ErrStorageConflict)
	}
	return nil
}

// TouchEvent records that a source still reports the event, content is left alone
func (r *EventRepository) TouchEvent(ctx context.Context, id int64, seenAt time.Time) error {
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, "UPDATE events SET last_seen_at = ? WHERE id = ?", seenAt.UTC(), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("touch event %d: %w", id, err)
	}
	return nil
}

// ListEvents returns events ordered by start time
func (r *EventRepository) ListEvents(ctx context.Context, f EventFilter) ([]*domain.StoredEvent, error) {
	var where []string
	var args []any
	if f.Status != "" {
		where = append(where, "approval_status = ?")
		args = append(args, string(f.Status))
	}
	if f.SourceID != 0 {
		where = append(where, "source_id = ?")
		args = append(args, f.SourceID)
	}
	query := "SELECT * FROM events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_at, id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	var rows []eventSQL
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	res := make([]*domain.StoredEvent, len(rows))
	for i := range rows {
		res[i] = rows[i].toDomain()
	}
	return res, nil
}

// SetApprovalStatus is called by the review workflow, it never bumps the content version
func (r *EventRepository) SetApprovalStatus(ctx context.Context, id int64, status domain.ApprovalStatus) error {
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, "UPDATE events SET approval_status = ? WHERE id = ?", string(status), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("set approval status: %w", err)
	}
	return nil
}

// SetManualOverride marks an event as edited by a human
func (r *EventRepository) SetManualOverride(ctx context.Context, id int64, override bool) error {
	err := withLockRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, "UPDATE events SET manual_override = ? WHERE id = ?", override, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("set manual override: %w", err)
	}
	return nil
}

// CountEvents returns number of events per approval status
func (r *EventRepository) CountEvents(ctx context.Context) (map[domain.ApprovalStatus]int, error) {
	var rows []struct {
		Status string `db:"approval_status"`
		Count  int    `db:"cnt"`
	}
	if err := r.db.SelectContext(ctx, &rows, "SELECT approval_status, COUNT(*) AS cnt FROM events GROUP BY approval_status"); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	res := make(map[domain.ApprovalStatus]int, len(rows))
	for _, row := range rows {
		res[domain.ApprovalStatus(row.Status)] = row.Count
	}
	return res, nil
}

func isContentColumn(col string) bool {
	for _, c := range ContentColumns {
		if c == col {
			return true
		}
	}
	return false
}

func fromDomainEvent(ev *domain.StoredEvent) *eventSQL {
	row := &eventSQL{
		ID:             ev.ID,
		Fingerprint:    ev.Fingerprint,
		SourceID:       ev.SourceID,
		Title:          ev.Title,
		StartAt:        ev.Start.UTC(),
		Location:       ev.Location,
		Description:    ev.Description,
		Price:          ev.Price,
		URL:            ev.URL,
		Confidence:     ev.Confidence,
		DateConfidence: string(ev.DateConfidence),
		ApprovalStatus: string(ev.ApprovalStatus),
		ManualOverride: ev.ManualOverride,
		Version:        ev.Version,
		LastSeenAt:     ev.LastSeenAt,
	}
	if ev.End != nil {
		end := ev.End.UTC()
		row.EndAt = &end
	}
	return row
}

func (e *eventSQL) toDomain() *domain.StoredEvent {
	return &domain.StoredEvent{
		ID:             e.ID,
		Fingerprint:    e.Fingerprint,
		SourceID:       e.SourceID,
		Title:          e.Title,
		Start:          e.StartAt,
		End:            e.EndAt,
		Location:       e.Location,
		Description:    e.Description,
		Price:          e.Price,
		URL:            e.URL,
		Confidence:     e.Confidence,
		DateConfidence: domain.DateConfidence(e.DateConfidence),
		ApprovalStatus: domain.ApprovalStatus(e.ApprovalStatus),
		ManualOverride: e.ManualOverride,
		Version:        e.Version,
		LastSeenAt:     e.LastSeenAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}
