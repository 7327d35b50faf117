package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/eventscope/pkg/crawler/mocks"
	"github.com/umputun/eventscope/pkg/dates"
	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/fetcher"
	"github.com/umputun/eventscope/pkg/ingest"
	"github.com/umputun/eventscope/pkg/locator"
	"github.com/umputun/eventscope/pkg/quality"
	"github.com/umputun/eventscope/pkg/repository"
	"github.com/umputun/eventscope/pkg/resolver"
	"github.com/umputun/eventscope/pkg/strategy"
)

var testNow = time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)

const threeEvents = `<html><body><main>
<div class="event-card"><h3 class="event-title"><a href="/e/jazz">Jazz Night</a></h3>
  <span class="event-date">September 24, 2025 @ 8:00 pm</span>
  <span class="event-venue">Blue Room</span>
  <p>Live quartet playing standards from the great american songbook.</p><span class="price">$15</span></div>
<div class="event-card"><h3 class="event-title"><a href="/e/poetry">Poetry Slam</a></h3>
  <span class="event-date">Friday, September 26th, 2025 7:00 pm</span>
  <span class="event-venue">City Library</span>
  <p>Open stage for local poets, sign up at the door before the show.</p><span class="price">Free</span></div>
<div class="event-card"><h3 class="event-title"><a href="https://tickets.example.org/market">Farmers &amp; Makers Market</a></h3>
  <span class="event-date">Sep 27, 2025 9:00 am - 1:00 pm</span>
  <span class="event-venue">Town Square</span>
  <p>Local produce, crafts and food trucks every last Saturday of the month.</p></div>
<div class="event-card"><h3 class="event-title">Categories</h3><span class="event-date">Sep 28, 2025</span><span>Browse all categories of events</span></div>
</main></body></html>`

// noSleep is a fetcher clock without politeness waits
type noSleep struct{}

func (noSleep) Now() time.Time                                 { return testNow }
func (noSleep) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestCrawler(t *testing.T, cfg Config, deps Deps) *Crawler {
	t.Helper()
	if deps.Fetcher == nil {
		f, err := fetcher.New(fetcher.Config{Timeout: 5 * time.Second}, fetcher.WithClock(noSleep{}))
		require.NoError(t, err)
		deps.Fetcher = f
	}
	if deps.Runs == nil {
		deps.Runs = &mocks.RunStoreMock{SaveRunFunc: func(context.Context, *domain.RunStats) error { return nil }}
	}
	engine := dates.New(dates.Config{Location: time.UTC, AllowFallback: true}, dates.WithNow(func() time.Time { return testNow }))
	deps.Locator = locator.New(locator.Config{})
	deps.Resolver = resolver.New(resolver.Config{}, engine)
	deps.Filter = quality.NewFilter(quality.Config{Floor: 30})
	deps.Metrics = NewMetrics(prometheus.NewRegistry())
	c := New(cfg, deps)
	c.now = func() time.Time { return testNow }
	return c
}

// sourceStore keeps sources in memory and records health updates on them
func sourceStore(srcs ...*domain.Source) *mocks.SourceStoreMock {
	var mu sync.Mutex
	byID := map[int64]*domain.Source{}
	for _, s := range srcs {
		byID[s.ID] = s
	}
	return &mocks.SourceStoreMock{
		GetSourceFunc: func(_ context.Context, id int64) (*domain.Source, error) {
			mu.Lock()
			defer mu.Unlock()
			s, ok := byID[id]
			if !ok {
				return nil, domain.ErrNotFound
			}
			cp := *s
			return &cp, nil
		},
		GetSourcesFunc: func(context.Context, bool) ([]*domain.Source, error) {
			mu.Lock()
			defer mu.Unlock()
			res := make([]*domain.Source, 0, len(srcs))
			for _, s := range srcs {
				cp := *s
				res = append(res, &cp)
			}
			return res, nil
		},
		UpdateHealthFunc: func(_ context.Context, id int64, h domain.SourceHealth) error {
			mu.Lock()
			defer mu.Unlock()
			byID[id].Health = h
			return nil
		},
	}
}

func insertingGate() *mocks.GateMock {
	var id atomic.Int64
	return &mocks.GateMock{IngestFunc: func(context.Context, domain.ExtractedEvent) (domain.IngestOutcome, error) {
		return domain.IngestOutcome{Kind: domain.IngestInserted, EventID: id.Add(1)}, nil
	}}
}

func card(title, date, venue string) string {
	return fmt.Sprintf(`<div class="event-card"><h3 class="event-title">%s</h3><span class="event-date">%s</span>`+
		`<span class="event-venue">%s</span><p>Details about %s for the whole family.</p></div>`, title, date, venue, title)
}

func titles(gate *mocks.GateMock) []string {
	var res []string
	for _, c := range gate.IngestCalls() {
		res = append(res, c.Ev.Title)
	}
	return res
}

func TestCrawler_StaticPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(threeEvents))
	}))
	defer ts.Close()

	src := &domain.Source{ID: 1, Name: "city", URL: ts.URL + "/events", Active: true}
	sources, gate := sourceStore(src), insertingGate()
	runs := &mocks.RunStoreMock{SaveRunFunc: func(context.Context, *domain.RunStats) error { return nil }}
	c := newTestCrawler(t, Config{}, Deps{Sources: sources, Gate: gate, Runs: runs})

	stats, err := c.RunCrawl(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "static", stats.Strategy)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 4, stats.Candidates)
	assert.Equal(t, 3, stats.Extracted)
	assert.Equal(t, 1, stats.Rejected[domain.RejectFieldResolution])
	assert.Equal(t, 3, stats.Accepted)
	assert.Equal(t, 3, stats.Inserted)
	assert.False(t, stats.Failed)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, []string{"Jazz Night", "Poetry Slam", "Farmers & Makers Market"}, titles(gate))

	require.Len(t, sources.UpdateHealthCalls(), 1)
	h := sources.UpdateHealthCalls()[0].H
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.Equal(t, 3, h.LastEventsFound)
	require.NotNil(t, h.LastSuccessAt)
	require.Len(t, runs.SaveRunCalls(), 1)
	assert.Equal(t, stats.RunID, runs.SaveRunCalls()[0].S.RunID)
	assert.False(t, c.InProgress(1))
}

func TestCrawler_PaginatedByLinks(t *testing.T) {
	var requested sync.Map
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		requested.Store(page, true)
		switch page {
		case "":
			fmt.Fprintf(w, `<html><body><main>%s%s</main><a rel="next" href="/events?page=2">Next</a></body></html>`,
				card("Jazz Night", "September 24, 2025 8:00 pm", "Blue Room"),
				card("Poetry Slam", "September 26, 2025 7:00 pm", "City Library"))
		case "2":
			fmt.Fprintf(w, `<html><body><main>%s%s</main><a rel="next" href="/events?page=3">Next</a></body></html>`,
				card("Pottery Class", "October 2, 2025 6:00 pm", "Art Studio"),
				card("Chess Club", "October 3, 2025 5:00 pm", "Community Hall"))
		case "3":
			fmt.Fprintf(w, `<html><body><main>%s%s</main></body></html>`,
				card("Film Screening", "October 8, 2025 9:00 pm", "Old Cinema"),
				card("Salsa Lessons", "October 9, 2025 7:30 pm", "Dance Hall"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	gate := insertingGate()
	c := newTestCrawler(t, Config{}, Deps{Sources: sourceStore(&domain.Source{ID: 1, URL: ts.URL + "/events", Active: true}), Gate: gate})
	stats, err := c.RunCrawl(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "paginated", stats.Strategy)
	assert.Equal(t, 3, stats.Pages)
	assert.Equal(t, 6, stats.Inserted)
	assert.Len(t, gate.IngestCalls(), 6)
	_, fourth := requested.Load("4")
	assert.False(t, fourth, "page 4 is never requested")
}

func TestCrawler_PaginatedByTemplate(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.RequestURI())
		mu.Unlock()
		nav := `<nav class="pagination"><a href="/events?page=2">2</a><a href="/events?page=3">3</a></nav>`
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprintf(w, `<html><body><main>%s%s</main>%s</body></html>`,
				card("Jazz Night", "September 24, 2025 8:00 pm", "Blue Room"),
				card("Poetry Slam", "September 26, 2025 7:00 pm", "City Library"), nav)
		case "2":
			fmt.Fprintf(w, `<html><body><main>%s%s</main>%s</body></html>`,
				card("Pottery Class", "October 2, 2025 6:00 pm", "Art Studio"),
				card("Chess Club", "October 3, 2025 5:00 pm", "Community Hall"), nav)
		case "3":
			fmt.Fprintf(w, `<html><body><main>%s</main>%s</body></html>`,
				card("Film Screening", "October 8, 2025 9:00 pm", "Old Cinema"), nav)
		default:
			fmt.Fprint(w, `<html><body><main><p>No more events.</p></main></body></html>`)
		}
	}))
	defer ts.Close()

	gate := insertingGate()
	c := newTestCrawler(t, Config{}, Deps{Sources: sourceStore(&domain.Source{ID: 1, URL: ts.URL + "/events", Active: true}), Gate: gate})
	stats, err := c.RunCrawl(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "paginated", stats.Strategy)
	assert.Equal(t, 5, stats.Inserted)
	assert.Equal(t, 4, stats.Pages)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/events", "/events?page=2", "/events?page=3", "/events?page=4"}, paths,
		"page query template locked after it worked, paging stops on the first page without new blocks")
}

func TestCrawler_InfiniteScroll(t *testing.T) {
	var batches atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("batch") {
		case "":
			fmt.Fprintf(w, `<html><body><main>%s%s</main><a class="load-more" href="/events?batch=2">Load more</a></body></html>`,
				card("Jazz Night", "September 24, 2025 8:00 pm", "Blue Room"),
				card("Poetry Slam", "September 26, 2025 7:00 pm", "City Library"))
		case "2":
			batches.Add(1)
			fmt.Fprintf(w, `<html><body><main>%s%s</main><a class="load-more" href="/events?batch=3">Load more</a></body></html>`,
				card("Pottery Class", "October 2, 2025 6:00 pm", "Art Studio"),
				card("Chess Club", "October 3, 2025 5:00 pm", "Community Hall"))
		default: // repeats the previous batch
			batches.Add(1)
			fmt.Fprintf(w, `<html><body><main>%s%s</main><a class="load-more" href="/events?batch=4">Load more</a></body></html>`,
				card("Pottery Class", "October 2, 2025 6:00 pm", "Art Studio"),
				card("Chess Club", "October 3, 2025 5:00 pm", "Community Hall"))
		}
	}))
	defer ts.Close()

	gate := insertingGate()
	c := newTestCrawler(t, Config{}, Deps{Sources: sourceStore(&domain.Source{ID: 1, URL: ts.URL + "/events", Active: true}), Gate: gate})
	stats, err := c.RunCrawl(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "infinite_scroll", stats.Strategy)
	assert.Equal(t, 4, stats.Inserted)
	assert.Equal(t, int32(2), batches.Load(), "stops on a batch without new blocks")
}

func TestCrawler_ScriptRenderedUsesAPI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/events":
			fmt.Fprint(w, `<html><body><div id="app">Loading</div>`+
				`<script>fetch("/api/events.json").then(r => r.json()).then(render)</script></body></html>`)
		case "/api/events.json":
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"events":[
				{"title":"Jazz Night","startDate":"2025-09-24T20:00:00Z","location":"Blue Room","url":"https://example.com/e/jazz"},
				{"title":"Poetry Slam","startDate":"2025-09-26T19:00:00Z","location":"City Library","description":"Open stage for local poets."}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	gate := insertingGate()
	enricher := &mocks.EnricherMock{ExtractFunc: func(_ context.Context, rawURL string) (string, error) {
		return "Live quartet playing   standards\n from the great american songbook.", nil
	}}
	c := newTestCrawler(t, Config{Enrich: true}, Deps{
		Sources: sourceStore(&domain.Source{ID: 1, URL: ts.URL + "/events", Active: true}), Gate: gate, Enricher: enricher})
	stats, err := c.RunCrawl(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "dynamic_render", stats.Strategy)
	assert.Empty(t, stats.Warnings)
	require.Len(t, gate.IngestCalls(), 2)

	jazz := gate.IngestCalls()[0].Ev
	assert.Equal(t, "Jazz Night", jazz.Title)
	assert.Equal(t, time.Date(2025, 9, 24, 20, 0, 0, 0, time.UTC), jazz.Start.UTC())
	assert.Equal(t, domain.DateStructured, jazz.DateConfidence)
	assert.True(t, jazz.Structured)
	assert.Equal(t, "Live quartet playing standards from the great american songbook.", jazz.Description)

	require.Len(t, enricher.ExtractCalls(), 1, "only events with own detail page and no description are enriched")
	assert.Equal(t, "https://example.com/e/jazz", enricher.ExtractCalls()[0].RawURL)
}

func TestCrawler_StrategyMismatchFallsBackToStatic(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events" || r.URL.RawQuery != "" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, strings.Replace(threeEvents, "</main>", `</main><script>var feed = "/api/events.json";</script>`, 1))
	}))
	defer ts.Close()

	gate := insertingGate()
	c := newTestCrawler(t, Config{}, Deps{Sources: sourceStore(&domain.Source{ID: 1, URL: ts.URL + "/events", Active: true}), Gate: gate})
	stats, err := c.RunCrawl(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "api_discovery", stats.Strategy)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0], "falling back to static")
	assert.Equal(t, 3, stats.Inserted)
}

func TestCrawler_Profile(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><table class="agenda">
<tr class="row"><td class="when">05-10-25 h20</td><td class="what">Concert d'orgue</td><td class="where">Cathédrale</td></tr>
<tr class="row"><td class="when">12-10-25 h18</td><td class="what">Récital de piano</td><td class="where">Conservatoire</td></tr>
</table></body></html>`)
	}))
	defer ts.Close()

	profile := &strategy.SelectorProfile{Name: "agenda", Domains: []string{"127.0.0.1"}, Strategy: domain.StrategyStatic,
		Blocks: "tr.row", DateLayouts: []string{"02-01-06 h15"},
		Fields: strategy.Selectors{Title: []string{"td.what"}, Date: []string{"td.when"}, Location: []string{"td.where"}}}
	gate := insertingGate()
	c := newTestCrawler(t, Config{}, Deps{Sources: sourceStore(&domain.Source{ID: 1, URL: ts.URL + "/agenda", Active: true}),
		Gate: gate, Registry: strategy.NewRegistry(profile)})
	stats, err := c.RunCrawl(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "source_specific(agenda)", stats.Strategy)
	require.Len(t, gate.IngestCalls(), 2)
	ev := gate.IngestCalls()[0].Ev
	assert.Equal(t, "Concert d'orgue", ev.Title)
	assert.Equal(t, "Cathédrale", ev.Location)
	assert.Equal(t, time.Date(2025, 10, 5, 20, 0, 0, 0, time.UTC), ev.Start)
	assert.Equal(t, domain.DateMapped, ev.DateConfidence)
}

func TestCrawler_Feed(t *testing.T) {
	const rss = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:ev="http://purl.org/rss/1.0/modules/event/">
<channel><title>City events</title><link>https://example.com</link><description>events</description>
<item><title>Jazz Night</title><link>https://example.com/e/jazz</link>
  <description>Live quartet playing standards from the great american songbook.</description>
  <pubDate>Mon, 01 Sep 2025 08:00:00 +0000</pubDate>
  <ev:startdate>2025-09-24T20:00:00Z</ev:startdate><ev:location>Blue Room</ev:location></item>
<item><title>Poetry Slam</title><link>https://example.com/e/poetry</link>
  <description>Friday, September 26, 2025 7:00 pm. Open stage for local poets, sign up at the door.</description>
  <pubDate>Mon, 01 Sep 2025 08:00:00 +0000</pubDate></item>
</channel></rss>`

	t.Run("rss with event module", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprint(w, rss)
		}))
		defer ts.Close()

		gate := insertingGate()
		c := newTestCrawler(t, Config{}, Deps{Gate: gate,
			Sources: sourceStore(&domain.Source{ID: 1, URL: ts.URL + "/rss", Kind: domain.SourceFeed, Active: true})})
		stats, err := c.RunCrawl(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "feed", stats.Strategy)
		require.Len(t, gate.IngestCalls(), 2)

		jazz := gate.IngestCalls()[0].Ev
		assert.Equal(t, time.Date(2025, 9, 24, 20, 0, 0, 0, time.UTC), jazz.Start.UTC())
		assert.Equal(t, domain.DateStructured, jazz.DateConfidence)
		assert.Equal(t, "Blue Room", jazz.Location)
		assert.Equal(t, "https://example.com/e/jazz", jazz.CanonicalURL)

		poetry := gate.IngestCalls()[1].Ev
		assert.Equal(t, time.Date(2025, 9, 26, 19, 0, 0, 0, time.UTC), poetry.Start.UTC(), "publication date is not the event date")
		assert.True(t, poetry.DateConfidence.Confirmed())
	})

	t.Run("page behind a feed source", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, threeEvents)
		}))
		defer ts.Close()

		gate := insertingGate()
		c := newTestCrawler(t, Config{}, Deps{Gate: gate,
			Sources: sourceStore(&domain.Source{ID: 1, URL: ts.URL + "/rss", Kind: domain.SourceFeed, Active: true})})
		stats, err := c.RunCrawl(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, stats.Warnings, 1)
		assert.Contains(t, stats.Warnings[0], "not a parseable feed")
		assert.Equal(t, 3, stats.Inserted)
	})
}

func TestCrawler_FetchFailure(t *testing.T) {
	fm := &mocks.FetcherMock{FetchFunc: func(_ context.Context, rawURL string, _ fetcher.Options) (*fetcher.Document, error) {
		return nil, &domain.FetchError{URL: rawURL, StatusCode: http.StatusForbidden}
	}}
	prev := testNow.Add(-time.Hour)
	src := &domain.Source{ID: 1, URL: "https://example.com/events", Active: true,
		Health: domain.SourceHealth{ConsecutiveFailures: 2, LastSuccessAt: &prev, LastEventsFound: 7}}
	sources := sourceStore(src)
	gate := insertingGate()
	runs := &mocks.RunStoreMock{SaveRunFunc: func(context.Context, *domain.RunStats) error { return nil }}
	c := newTestCrawler(t, Config{}, Deps{Fetcher: fm, Sources: sources, Gate: gate, Runs: runs})

	stats, err := c.RunCrawl(context.Background(), 1)
	require.Error(t, err)
	var fe *domain.FetchError
	assert.True(t, errors.As(err, &fe))
	require.NotNil(t, stats)
	assert.True(t, stats.Failed)
	assert.Contains(t, stats.Error, "status 403")
	assert.Empty(t, gate.IngestCalls())

	require.Len(t, sources.UpdateHealthCalls(), 1)
	h := sources.UpdateHealthCalls()[0].H
	assert.Equal(t, 3, h.ConsecutiveFailures)
	assert.Equal(t, 7, h.LastEventsFound)
	assert.Equal(t, prev, *h.LastSuccessAt)
	assert.Contains(t, h.LastError, "403")
	require.Len(t, runs.SaveRunCalls(), 1)
	assert.True(t, runs.SaveRunCalls()[0].S.Failed)
}

func TestCrawler_InactiveSource(t *testing.T) {
	fm := &mocks.FetcherMock{}
	c := newTestCrawler(t, Config{}, Deps{Fetcher: fm, Gate: insertingGate(),
		Sources: sourceStore(&domain.Source{ID: 1, URL: "https://example.com/events"})})
	_, err := c.RunCrawl(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrSourceInactive)
	assert.Empty(t, fm.FetchCalls())

	_, err = c.RunCrawl(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCrawler_InProgressExclusion(t *testing.T) {
	entered, release := make(chan struct{}), make(chan struct{})
	var once sync.Once
	fm := &mocks.FetcherMock{FetchFunc: func(ctx context.Context, rawURL string, _ fetcher.Options) (*fetcher.Document, error) {
		once.Do(func() { close(entered) })
		<-release
		return &fetcher.Document{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(threeEvents)}, nil
	}}
	c := newTestCrawler(t, Config{}, Deps{Fetcher: fm, Gate: insertingGate(),
		Sources: sourceStore(&domain.Source{ID: 1, URL: "https://example.com/events", Active: true})})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = c.RunCrawl(context.Background(), 1)
	}()
	<-entered
	assert.True(t, c.InProgress(1))

	_, err := c.RunCrawl(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCrawlInProgress))
	assert.Len(t, fm.FetchCalls(), 1, "second crawl never fetched")

	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.False(t, c.InProgress(1))
}

func TestCrawler_IngestConflictIsWarning(t *testing.T) {
	fm := &mocks.FetcherMock{FetchFunc: func(_ context.Context, rawURL string, _ fetcher.Options) (*fetcher.Document, error) {
		return &fetcher.Document{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(threeEvents)}, nil
	}}
	gate := &mocks.GateMock{IngestFunc: func(_ context.Context, ev domain.ExtractedEvent) (domain.IngestOutcome, error) {
		if ev.Title == "Poetry Slam" {
			return domain.IngestOutcome{}, fmt.Errorf("ingest: %w", domain.ErrStorageConflict)
		}
		return domain.IngestOutcome{Kind: domain.IngestUnchanged}, nil
	}}
	c := newTestCrawler(t, Config{}, Deps{Fetcher: fm, Gate: gate,
		Sources: sourceStore(&domain.Source{ID: 1, URL: "https://example.com/events", Active: true})})
	stats, err := c.RunCrawl(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Unchanged)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0], "storage conflict")
}

func TestCrawler_RunDue(t *testing.T) {
	recent, old := testNow.Add(-10*time.Minute), testNow.Add(-2*time.Hour)
	srcs := []*domain.Source{
		{ID: 1, URL: "https://a.example.com/events", Active: true, PollInterval: time.Hour},
		{ID: 2, URL: "https://b.example.com/events", Active: true, PollInterval: time.Hour,
			Health: domain.SourceHealth{LastAttemptAt: &recent}},
		{ID: 3, URL: "https://c.example.com/events", Active: true, PollInterval: time.Hour,
			Health: domain.SourceHealth{LastAttemptAt: &old}},
	}
	fm := &mocks.FetcherMock{FetchFunc: func(_ context.Context, rawURL string, _ fetcher.Options) (*fetcher.Document, error) {
		return &fetcher.Document{URL: rawURL, StatusCode: http.StatusOK, Body: []byte(threeEvents)}, nil
	}}
	c := newTestCrawler(t, Config{Workers: 2}, Deps{Fetcher: fm, Gate: insertingGate(), Sources: sourceStore(srcs...)})

	res, err := c.RunDue(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 2)

	var fetched []string
	for _, call := range fm.FetchCalls() {
		fetched = append(fetched, call.RawURL)
	}
	assert.ElementsMatch(t, []string{"https://a.example.com/events", "https://c.example.com/events"}, fetched)

	all, err := c.RunAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCrawler_EndToEndWithStorage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, threeEvents)
	}))
	defer ts.Close()

	ctx := context.Background()
	repos, err := repository.NewRepositories(ctx, repository.Config{DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	defer repos.Close()
	src := &domain.Source{Name: "city", URL: ts.URL + "/events", Kind: domain.SourcePage, Active: true, PollInterval: time.Hour}
	require.NoError(t, repos.Source.UpsertSource(ctx, src))

	c := newTestCrawler(t, Config{}, Deps{Sources: repos.Source, Gate: ingest.New(repos.Event, time.UTC), Runs: repos.Run})

	stats, err := c.RunCrawl(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Inserted)

	stats, err = c.RunCrawl(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 3, stats.Unchanged)

	counts, err := repos.Event.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[domain.ApprovalPending])

	runs, err := repos.Run.GetRuns(ctx, src.ID, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	got, err := repos.Source.GetSource(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Health.LastEventsFound)
	assert.Equal(t, 0, got.Health.ConsecutiveFailures)
}

func TestPageTemplates(t *testing.T) {
	assert.Equal(t, []string{
		"https://example.com/events?cat=music&page=3",
		"https://example.com/events/page/3/?cat=music",
		"https://example.com/events?cat=music&offset=40",
	}, pageTemplates("https://example.com/events?cat=music", 3, 20))
	assert.Equal(t, "https://example.com/events/page/3/", pageTemplates("https://example.com/events/page/2/", 3, 20)[1])
}

func TestAPIVariants(t *testing.T) {
	assert.Equal(t, []string{
		"https://example.com/events/api",
		"https://example.com/events?format=json",
		"https://example.com/events?all=true",
		"https://example.com/events.json",
		"https://example.com/wp-json/tribe/events/v1/events",
	}, apiVariants("https://example.com/events"))
	assert.Nil(t, apiVariants("not a url"))
}
