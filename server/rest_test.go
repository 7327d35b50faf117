package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/repository"
	"github.com/umputun/eventscope/server/mocks"
)

func doRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, http.NoBody)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func sourcesDB(srcs ...*domain.Source) *mocks.DatabaseMock {
	return &mocks.DatabaseMock{
		GetSourcesFunc: func(ctx context.Context, activeOnly bool) ([]*domain.Source, error) {
			return srcs, nil
		},
		GetSourceFunc: func(ctx context.Context, id int64) (*domain.Source, error) {
			for _, s := range srcs {
				if s.ID == id {
					return s, nil
				}
			}
			return nil, fmt.Errorf("source %d: %w", id, domain.ErrNotFound)
		},
	}
}

func TestServer_sourcesHandler(t *testing.T) {
	success := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	db := sourcesDB(
		&domain.Source{ID: 1, Name: "club", URL: "https://club.example.com/events", Kind: domain.SourcePage,
			PollInterval: 6 * time.Hour, Active: true,
			Health: domain.SourceHealth{LastSuccessAt: &success, LastAttemptAt: &success, LastEventsFound: 7}},
		&domain.Source{ID: 2, Name: "feed", URL: "https://example.com/feed.xml", Kind: domain.SourceFeed,
			StrategyHint: domain.StrategyStatic, PollInterval: time.Hour,
			Health: domain.SourceHealth{ConsecutiveFailures: 3, LastError: "fetch failed"}},
	)
	crawler := &mocks.CrawlerMock{InProgressFunc: func(id int64) bool { return id == 2 }}
	srv := New(testConfig(":8080"), db, crawler, nil, "test", false)

	w := doRequest(t, srv, http.MethodGet, "/api/v1/sources")
	require.Equal(t, http.StatusOK, w.Code)

	var resp []sourceView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	assert.Equal(t, "club", resp[0].Name)
	assert.Equal(t, "page", resp[0].Kind)
	assert.Equal(t, "6h0m0s", resp[0].PollInterval)
	assert.True(t, resp[0].Active)
	assert.False(t, resp[0].InProgress)
	assert.Equal(t, 7, resp[0].Health.LastEventsFound)
	require.NotNil(t, resp[0].Health.LastSuccessAt)
	assert.True(t, success.Equal(*resp[0].Health.LastSuccessAt))

	assert.Equal(t, "feed", resp[1].Kind)
	assert.Equal(t, "static", resp[1].StrategyHint)
	assert.True(t, resp[1].InProgress)
	assert.Equal(t, 3, resp[1].Health.ConsecutiveFailures)
	assert.Equal(t, "fetch failed", resp[1].Health.LastError)
	assert.Nil(t, resp[1].Health.LastSuccessAt)

	require.Len(t, db.GetSourcesCalls(), 1)
	assert.False(t, db.GetSourcesCalls()[0].ActiveOnly)
}

func TestServer_sourceHandler(t *testing.T) {
	db := sourcesDB(&domain.Source{ID: 5, Name: "club", URL: "https://club.example.com", Active: true})
	srv := New(testConfig(":8080"), db, idleCrawler(), nil, "test", false)

	tests := []struct {
		name string
		path string
		code int
	}{
		{"found", "/api/v1/sources/5", http.StatusOK},
		{"not found", "/api/v1/sources/6", http.StatusNotFound},
		{"bad id", "/api/v1/sources/abc", http.StatusBadRequest},
		{"negative id", "/api/v1/sources/-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv, http.MethodGet, tt.path)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestServer_crawlHandler(t *testing.T) {
	started := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		path    string
		stats   *domain.RunStats
		err     error
		code    int
		errText string
		calls   int
	}{
		{
			name: "success",
			path: "/api/v1/sources/1/crawl",
			stats: &domain.RunStats{RunID: "run-1", SourceID: 1, Strategy: "paginated", Pages: 3, Accepted: 5,
				Inserted: 5, Rejected: map[string]int{"quality": 1}, StartedAt: started, FinishedAt: started.Add(time.Second)},
			code:  http.StatusOK,
			calls: 1,
		},
		{
			name:  "failed run still reports stats",
			path:  "/api/v1/sources/1/crawl",
			stats: &domain.RunStats{RunID: "run-2", SourceID: 1, Failed: true, Error: "fetch failed"},
			err:   errors.New("crawl club: fetch failed"),
			code:  http.StatusOK,
			calls: 1,
		},
		{
			name:    "in progress",
			path:    "/api/v1/sources/1/crawl",
			err:     fmt.Errorf("source 1: %w", domain.ErrCrawlInProgress),
			code:    http.StatusConflict,
			errText: "crawl already in progress",
			calls:   1,
		},
		{
			name:  "inactive",
			path:  "/api/v1/sources/1/crawl",
			err:   fmt.Errorf("source club: %w", domain.ErrSourceInactive),
			code:  http.StatusConflict,
			calls: 1,
		},
		{
			name:  "unknown source",
			path:  "/api/v1/sources/9/crawl",
			err:   fmt.Errorf("get source 9: %w", domain.ErrNotFound),
			code:  http.StatusNotFound,
			calls: 1,
		},
		{
			name:  "bad id",
			path:  "/api/v1/sources/x/crawl",
			code:  http.StatusBadRequest,
			calls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crawler := &mocks.CrawlerMock{
				RunCrawlFunc: func(ctx context.Context, sourceID int64) (*domain.RunStats, error) {
					return tt.stats, tt.err
				},
			}
			srv := New(testConfig(":8080"), &mocks.DatabaseMock{}, crawler, nil, "test", false)
			w := doRequest(t, srv, http.MethodPost, tt.path)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			require.Len(t, crawler.RunCrawlCalls(), tt.calls)
			if tt.errText != "" {
				assert.Contains(t, w.Body.String(), tt.errText)
			}
			if tt.code == http.StatusOK {
				var resp runView
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.stats.RunID, resp.RunID)
				assert.Equal(t, tt.stats.Failed, resp.Failed)
				assert.Equal(t, tt.stats.Pages, resp.Pages)
				assert.Equal(t, tt.stats.Rejected, resp.Rejected)
			}
		})
	}

	t.Run("get is not allowed", func(t *testing.T) {
		crawler := &mocks.CrawlerMock{}
		srv := New(testConfig(":8080"), &mocks.DatabaseMock{}, crawler, nil, "test", false)
		w := doRequest(t, srv, http.MethodGet, "/api/v1/sources/1/crawl")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
		assert.Contains(t, w.Body.String(), "method GET not allowed")
		assert.Empty(t, crawler.RunCrawlCalls())

		w = doRequest(t, srv, http.MethodGet, "/api/v1/sources/1/nothing")
		assert.Equal(t, http.StatusNotFound, w.Code, "unknown paths stay 404")
	})
}

func TestServer_runsHandler(t *testing.T) {
	db := sourcesDB(&domain.Source{ID: 1, Name: "club", URL: "https://club.example.com", Active: true})
	db.GetRunsFunc = func(ctx context.Context, sourceID int64, limit int) ([]*domain.RunStats, error) {
		return []*domain.RunStats{
			{RunID: "b", SourceID: sourceID, Strategy: "static", Warnings: []string{"w1"}},
			{RunID: "a", SourceID: sourceID, Strategy: "static", Failed: true, Error: "boom"},
		}, nil
	}
	srv := New(testConfig(":8080"), db, idleCrawler(), nil, "test", false)

	t.Run("default limit", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/api/v1/sources/1/runs")
		require.Equal(t, http.StatusOK, w.Code)
		var resp []runView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp, 2)
		assert.Equal(t, "b", resp[0].RunID)
		assert.Equal(t, []string{"w1"}, resp[0].Warnings)
		assert.True(t, resp[1].Failed)
		assert.Equal(t, defaultRunsLimit, db.GetRunsCalls()[0].Limit)
	})

	t.Run("explicit limit capped", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/api/v1/sources/1/runs?limit=5000")
		require.Equal(t, http.StatusOK, w.Code)
		calls := db.GetRunsCalls()
		assert.Equal(t, maxLimit, calls[len(calls)-1].Limit)
	})

	t.Run("bad limit", func(t *testing.T) {
		w := doRequest(t, srv, http.MethodGet, "/api/v1/sources/1/runs?limit=zero")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown source", func(t *testing.T) {
		before := len(db.GetRunsCalls())
		w := doRequest(t, srv, http.MethodGet, "/api/v1/sources/2/runs")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Len(t, db.GetRunsCalls(), before)
	})
}

func TestServer_eventsHandler(t *testing.T) {
	start := time.Date(2025, 10, 5, 20, 0, 0, 0, time.UTC)
	db := &mocks.DatabaseMock{
		ListEventsFunc: func(ctx context.Context, f repository.EventFilter) ([]*domain.StoredEvent, error) {
			return []*domain.StoredEvent{
				{ID: 1, SourceID: 2, Fingerprint: "fp1", Title: "Jazz Night", Start: start, Location: "Blue Room",
					Confidence: 80, DateConfidence: domain.DateExplicit, ApprovalStatus: domain.ApprovalPending},
			}, nil
		},
	}
	srv := New(testConfig(":8080"), db, idleCrawler(), nil, "test", false)

	tests := []struct {
		name   string
		query  string
		code   int
		filter repository.EventFilter
	}{
		{"defaults", "", http.StatusOK, repository.EventFilter{Limit: defaultEventsLimit}},
		{"pending", "?status=pending&limit=10", http.StatusOK,
			repository.EventFilter{Status: domain.ApprovalPending, Limit: 10}},
		{"by source", "?source=2&status=approved", http.StatusOK,
			repository.EventFilter{Status: domain.ApprovalApproved, SourceID: 2, Limit: defaultEventsLimit}},
		{"bad status", "?status=maybe", http.StatusBadRequest, repository.EventFilter{}},
		{"bad source", "?source=abc", http.StatusBadRequest, repository.EventFilter{}},
		{"bad limit", "?limit=-3", http.StatusBadRequest, repository.EventFilter{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(db.ListEventsCalls())
			w := doRequest(t, srv, http.MethodGet, "/api/v1/events"+tt.query)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.code != http.StatusOK {
				assert.Len(t, db.ListEventsCalls(), before)
				return
			}
			calls := db.ListEventsCalls()
			require.Len(t, calls, before+1)
			assert.Equal(t, tt.filter, calls[before].F)

			var resp []eventView
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Len(t, resp, 1)
			assert.Equal(t, "Jazz Night", resp[0].Title)
			assert.Equal(t, "explicit", resp[0].DateConfidence)
			assert.Equal(t, "pending", resp[0].ApprovalStatus)
			assert.True(t, start.Equal(resp[0].Start))
		})
	}

	t.Run("storage error", func(t *testing.T) {
		failing := &mocks.DatabaseMock{
			ListEventsFunc: func(ctx context.Context, f repository.EventFilter) ([]*domain.StoredEvent, error) {
				return nil, errors.New("locked")
			},
		}
		srv := New(testConfig(":8080"), failing, idleCrawler(), nil, "test", false)
		w := doRequest(t, srv, http.MethodGet, "/api/v1/events")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, errorCode(fmt.Errorf("x: %w", domain.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, errorCode(fmt.Errorf("x: %w", domain.ErrCrawlInProgress)))
	assert.Equal(t, http.StatusConflict, errorCode(domain.ErrSourceInactive))
	assert.Equal(t, http.StatusInternalServerError, errorCode(errors.New("other")))
}
