// Package ingest writes accepted events into the pending-review store. Every event is keyed by a
// fingerprint, writes for one fingerprint are serialized and manually edited rows are never changed.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/quality"
)

//go:generate moq -out mocks/store.go -pkg mocks -skip-ensure -fmt goimports . Store

// Store is the event storage used by the gate
type Store interface {
	GetByFingerprint(ctx context.Context, fingerprint string) (*domain.StoredEvent, error)
	InsertEvent(ctx context.Context, ev *domain.StoredEvent) error
	UpdateEvent(ctx context.Context, id int64, version int, changes map[string]any, seenAt time.Time) error
	TouchEvent(ctx context.Context, id int64, seenAt time.Time) error
}

// Gate performs idempotent upserts of extracted events
type Gate struct {
	store Store
	loc   *time.Location
	now   func() time.Time
	locks *keyedMutex
}

// New makes a Gate. Fingerprint days are taken in loc, UTC if nil.
func New(store Store, loc *time.Location) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{store: store, loc: loc, now: time.Now, locks: newKeyedMutex()}
}

// Fingerprint returns a stable hash of normalized title, start day in loc and normalized location
func Fingerprint(title string, start time.Time, location string, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	key := strings.Join([]string{quality.NormalizeTitle(title), start.In(loc).Format("2006-01-02"),
		quality.NormalizeTitle(location)}, "|")
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Ingest stores the event. A storage conflict is retried once after re-reading the row, a second
// conflict is returned wrapped in domain.ErrStorageConflict.
func (g *Gate) Ingest(ctx context.Context, ev domain.ExtractedEvent) (domain.IngestOutcome, error) {
	switch {
	case strings.TrimSpace(ev.Title) == "":
		return domain.IngestOutcome{Kind: domain.IngestSkipped, Reason: "empty title"}, nil
	case ev.Start.IsZero():
		return domain.IngestOutcome{Kind: domain.IngestSkipped, Reason: "unresolved start"}, nil
	}

	fp := Fingerprint(ev.Title, ev.Start, ev.Location, g.loc)
	unlock := g.locks.Lock(fp)
	defer unlock()

	res, err := g.upsert(ctx, fp, ev)
	if errors.Is(err, domain.ErrStorageConflict) {
		lgr.Printf("[DEBUG] storage conflict on %q, retrying once", ev.Title)
		res, err = g.upsert(ctx, fp, ev)
	}
	if err != nil {
		return domain.IngestOutcome{}, fmt.Errorf("ingest %q: %w", ev.Title, err)
	}
	return res, nil
}

func (g *Gate) upsert(ctx context.Context, fp string, ev domain.ExtractedEvent) (domain.IngestOutcome, error) {
	now := g.now().UTC()
	stored, err := g.store.GetByFingerprint(ctx, fp)
	if errors.Is(err, domain.ErrNotFound) {
		row := &domain.StoredEvent{
			Fingerprint:    fp,
			SourceID:       ev.SourceID,
			Title:          ev.Title,
			Start:          ev.Start,
			End:            ev.End,
			Location:       ev.Location,
			Description:    ev.Description,
			Price:          ev.Price,
			URL:            ev.CanonicalURL,
			Confidence:     ev.Confidence,
			DateConfidence: ev.DateConfidence,
			ApprovalStatus: domain.ApprovalPending,
			LastSeenAt:     &now,
		}
		if err := g.store.InsertEvent(ctx, row); err != nil {
			return domain.IngestOutcome{}, err
		}
		return domain.IngestOutcome{Kind: domain.IngestInserted, EventID: row.ID}, nil
	}
	if err != nil {
		return domain.IngestOutcome{}, err
	}

	if stored.ManualOverride {
		if err := g.store.TouchEvent(ctx, stored.ID, now); err != nil {
			return domain.IngestOutcome{}, err
		}
		return domain.IngestOutcome{Kind: domain.IngestUnchanged, EventID: stored.ID, Reason: "manual override"}, nil
	}

	changes := Diff(stored, ev)
	if len(changes) == 0 {
		if err := g.store.TouchEvent(ctx, stored.ID, now); err != nil {
			return domain.IngestOutcome{}, err
		}
		return domain.IngestOutcome{Kind: domain.IngestUnchanged, EventID: stored.ID}, nil
	}
	if err := g.store.UpdateEvent(ctx, stored.ID, stored.Version, changes, now); err != nil {
		return domain.IngestOutcome{}, err
	}
	cols := make([]string, 0, len(changes))
	for _, c := range []string{"title", "start_at", "end_at", "location", "description", "price", "url",
		"confidence", "date_confidence"} {
		if _, ok := changes[c]; ok {
			cols = append(cols, c)
		}
	}
	return domain.IngestOutcome{Kind: domain.IngestUpdated, EventID: stored.ID, Changed: cols}, nil
}

// Diff returns content columns of stored that differ from ev. Empty values never replace stored
// ones and a placeholder date never replaces a confirmed one.
func Diff(stored *domain.StoredEvent, ev domain.ExtractedEvent) map[string]any {
	changes := map[string]any{}
	setText := func(col, old, val string) {
		if val != "" && val != old {
			changes[col] = val
		}
	}
	setText("title", stored.Title, ev.Title)
	setText("location", stored.Location, ev.Location)
	setText("description", stored.Description, ev.Description)
	setText("price", stored.Price, ev.Price)
	setText("url", stored.URL, ev.CanonicalURL)

	downgrade := stored.DateConfidence.Confirmed() && !ev.DateConfidence.Confirmed()
	if !downgrade {
		if !ev.Start.Equal(stored.Start) {
			changes["start_at"] = ev.Start.UTC()
		}
		if ev.DateConfidence != "" && ev.DateConfidence != stored.DateConfidence {
			changes["date_confidence"] = string(ev.DateConfidence)
		}
		if ev.Confidence != stored.Confidence {
			changes["confidence"] = ev.Confidence
		}
	}
	if ev.End != nil && (stored.End == nil || !ev.End.Equal(*stored.End)) {
		changes["end_at"] = ev.End.UTC()
	}
	return changes
}

// keyedMutex serializes work per key, entries are dropped when unused
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*refMutex{}}
}

// Lock locks the key and returns the unlock func
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
