package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/eventscope/pkg/domain"
)

func setupTestDB(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewRepositories(context.Background(), Config{DSN: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, repos.Close()) })
	return repos
}

func createSource(t *testing.T, repos *Repositories, url string) *domain.Source {
	t.Helper()
	src := &domain.Source{Name: "test", URL: url, Kind: domain.SourcePage, PollInterval: time.Hour, Active: true}
	require.NoError(t, repos.Source.UpsertSource(context.Background(), src))
	require.NotZero(t, src.ID)
	return src
}

func TestRepositories_Integration(t *testing.T) {
	repos := setupTestDB(t)
	require.NoError(t, repos.Ping(context.Background()))

	var tables int
	err := repos.DB.Get(&tables, `SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('sources','events','crawl_runs')`)
	require.NoError(t, err)
	assert.Equal(t, 3, tables)
}

func TestSourceRepository(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()

	src := createSource(t, repos, "https://example.com/events")

	t.Run("upsert keeps id and health", func(t *testing.T) {
		at := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, repos.Source.UpdateHealth(ctx, src.ID, domain.SourceHealth{}.RecordSuccess(at, 7)))

		again := &domain.Source{Name: "renamed", URL: src.URL, StrategyHint: domain.StrategyPaginated,
			PollInterval: 30 * time.Minute, Active: true}
		require.NoError(t, repos.Source.UpsertSource(ctx, again))
		assert.Equal(t, src.ID, again.ID)

		got, err := repos.Source.GetSource(ctx, src.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.Equal(t, domain.StrategyPaginated, got.StrategyHint)
		assert.Equal(t, 30*time.Minute, got.PollInterval)
		assert.Equal(t, domain.SourcePage, got.Kind)
		assert.Equal(t, 7, got.Health.LastEventsFound)
		require.NotNil(t, got.Health.LastSuccessAt)
		assert.True(t, at.Equal(*got.Health.LastSuccessAt))
	})

	t.Run("failures accumulate", func(t *testing.T) {
		got, err := repos.Source.GetSource(ctx, src.ID)
		require.NoError(t, err)
		h := got.Health.RecordFailure(time.Now(), errors.New("timeout"))
		require.NoError(t, repos.Source.UpdateHealth(ctx, src.ID, h))
		h = h.RecordFailure(time.Now(), errors.New("timeout again"))
		require.NoError(t, repos.Source.UpdateHealth(ctx, src.ID, h))

		got, err = repos.Source.GetSource(ctx, src.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Health.ConsecutiveFailures)
		assert.Equal(t, "timeout again", got.Health.LastError)
		assert.NotNil(t, got.Health.LastSuccessAt, "success time survives failures")
	})

	t.Run("deactivate", func(t *testing.T) {
		other := createSource(t, repos, "https://example.org/feed.xml")
		require.NoError(t, repos.Source.SetActive(ctx, other.ID, false))

		all, err := repos.Source.GetSources(ctx, false)
		require.NoError(t, err)
		assert.Len(t, all, 2)
		active, err := repos.Source.GetSources(ctx, true)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, src.ID, active[0].ID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repos.Source.GetSource(ctx, 9999)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func newStored(sourceID int64, fp string) *domain.StoredEvent {
	return &domain.StoredEvent{Fingerprint: fp, SourceID: sourceID, Title: "Jazz Night",
		Start: time.Date(2025, 9, 24, 20, 0, 0, 0, time.UTC), Location: "Blue Room", Confidence: 80,
		DateConfidence: domain.DateExplicit, URL: "https://example.com/e/jazz"}
}

func TestEventRepository_InsertAndGet(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()
	src := createSource(t, repos, "https://example.com/events")

	ev := newStored(src.ID, "fp1")
	require.NoError(t, repos.Event.InsertEvent(ctx, ev))
	assert.NotZero(t, ev.ID)
	assert.Equal(t, 1, ev.Version)

	got, err := repos.Event.GetByFingerprint(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "Jazz Night", got.Title)
	assert.True(t, ev.Start.Equal(got.Start))
	assert.Nil(t, got.End)
	assert.Equal(t, domain.ApprovalPending, got.ApprovalStatus)
	assert.Equal(t, domain.DateExplicit, got.DateConfidence)
	assert.NotNil(t, got.LastSeenAt)

	t.Run("duplicate fingerprint is a conflict", func(t *testing.T) {
		err := repos.Event.InsertEvent(ctx, newStored(src.ID, "fp1"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrStorageConflict))

		var count int
		require.NoError(t, repos.DB.Get(&count, "SELECT COUNT(*) FROM events WHERE fingerprint = 'fp1'"))
		assert.Equal(t, 1, count)
	})

	t.Run("missing fingerprint", func(t *testing.T) {
		_, err := repos.Event.GetByFingerprint(ctx, "nope")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestEventRepository_UpdateEvent(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()
	src := createSource(t, repos, "https://example.com/events")
	ev := newStored(src.ID, "fp1")
	require.NoError(t, repos.Event.InsertEvent(ctx, ev))
	seen := time.Date(2025, 9, 2, 8, 0, 0, 0, time.UTC)

	t.Run("version match updates and bumps version", func(t *testing.T) {
		err := repos.Event.UpdateEvent(ctx, ev.ID, 1, map[string]any{"price": "$15", "location": "Blue Room, Main St"}, seen)
		require.NoError(t, err)
		got, err := repos.Event.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "$15", got.Price)
		assert.Equal(t, "Blue Room, Main St", got.Location)
		assert.Equal(t, 2, got.Version)
		require.NotNil(t, got.LastSeenAt)
		assert.True(t, seen.Equal(*got.LastSeenAt))
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		err := repos.Event.UpdateEvent(ctx, ev.ID, 1, map[string]any{"price": "$20"}, seen)
		assert.True(t, errors.Is(err, domain.ErrStorageConflict))
	})

	t.Run("non-content column rejected", func(t *testing.T) {
		err := repos.Event.UpdateEvent(ctx, ev.ID, 2, map[string]any{"approval_status": "approved"}, seen)
		require.Error(t, err)
		assert.False(t, errors.Is(err, domain.ErrStorageConflict))
	})

	t.Run("manual override row never changes", func(t *testing.T) {
		require.NoError(t, repos.Event.SetManualOverride(ctx, ev.ID, true))
		err := repos.Event.UpdateEvent(ctx, ev.ID, 2, map[string]any{"title": "Something else"}, seen)
		assert.True(t, errors.Is(err, domain.ErrStorageConflict))
		got, err := repos.Event.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "Jazz Night", got.Title)
		assert.True(t, got.ManualOverride)
	})

	t.Run("touch only moves last seen", func(t *testing.T) {
		later := seen.Add(24 * time.Hour)
		require.NoError(t, repos.Event.TouchEvent(ctx, ev.ID, later))
		got, err := repos.Event.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.True(t, later.Equal(*got.LastSeenAt))
		assert.Equal(t, 2, got.Version)
	})
}

func TestEventRepository_ListAndCount(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()
	src := createSource(t, repos, "https://example.com/events")

	for i, fp := range []string{"a", "b", "c"} {
		ev := newStored(src.ID, fp)
		ev.Start = ev.Start.AddDate(0, 0, 3-i)
		require.NoError(t, repos.Event.InsertEvent(ctx, ev))
	}
	first, err := repos.Event.GetByFingerprint(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, repos.Event.SetApprovalStatus(ctx, first.ID, domain.ApprovalApproved))

	pending, err := repos.Event.ListEvents(ctx, EventFilter{Status: domain.ApprovalPending})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "c", pending[0].Fingerprint, "ordered by start")

	limited, err := repos.Event.ListEvents(ctx, EventFilter{SourceID: src.ID, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	counts, err := repos.Event.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.ApprovalPending])
	assert.Equal(t, 1, counts[domain.ApprovalApproved])
}

func TestEventRepository_ConcurrentInsertSameFingerprint(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()
	src := createSource(t, repos, "https://example.com/events")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repos.Event.InsertEvent(ctx, newStored(src.ID, "same"))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrStorageConflict), "%v", err)
	}
	assert.Equal(t, 1, ok)
}

func TestRunRepository(t *testing.T) {
	repos := setupTestDB(t)
	ctx := context.Background()
	src := createSource(t, repos, "https://example.com/events")

	start := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2"} {
		s := domain.NewRunStats(id, src.ID, start.Add(time.Duration(i)*time.Hour))
		s.Strategy = "paginated"
		s.Pages = 3
		s.Reject(domain.RejectStale, 2)
		s.Warn("strategy paginated yielded nothing")
		s.Inserted = i + 1
		s.FinishedAt = s.StartedAt.Add(time.Minute)
		require.NoError(t, repos.Run.SaveRun(ctx, s))
	}

	runs, err := repos.Run.GetRuns(ctx, src.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID, "newest first")
	assert.Equal(t, 2, runs[0].Rejected[domain.RejectStale])
	assert.Equal(t, []string{"strategy paginated yielded nothing"}, runs[0].Warnings)
	assert.Equal(t, 2, runs[0].Inserted)
	assert.Equal(t, time.Minute, runs[0].FinishedAt.Sub(runs[0].StartedAt))
}
