// Package crawler runs one crawl attempt per source: fetch, detect strategy, locate candidate blocks,
// resolve fields, filter and ingest. Sources run concurrently in a bounded pool while a single source
// never has two crawls at once.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/fetcher"
	"github.com/umputun/eventscope/pkg/locator"
	"github.com/umputun/eventscope/pkg/quality"
	"github.com/umputun/eventscope/pkg/resolver"
	"github.com/umputun/eventscope/pkg/strategy"
)

//go:generate moq -out mocks/fetcher.go -pkg mocks -skip-ensure -fmt goimports . Fetcher
//go:generate moq -out mocks/sources.go -pkg mocks -skip-ensure -fmt goimports . SourceStore
//go:generate moq -out mocks/gate.go -pkg mocks -skip-ensure -fmt goimports . Gate
//go:generate moq -out mocks/runs.go -pkg mocks -skip-ensure -fmt goimports . RunStore
//go:generate moq -out mocks/enricher.go -pkg mocks -skip-ensure -fmt goimports . Enricher

// Fetcher retrieves documents
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetcher.Options) (*fetcher.Document, error)
}

// SourceStore reads sources and persists their health
type SourceStore interface {
	GetSource(ctx context.Context, id int64) (*domain.Source, error)
	GetSources(ctx context.Context, activeOnly bool) ([]*domain.Source, error)
	UpdateHealth(ctx context.Context, id int64, h domain.SourceHealth) error
}

// Gate ingests accepted events
type Gate interface {
	Ingest(ctx context.Context, ev domain.ExtractedEvent) (domain.IngestOutcome, error)
}

// RunStore persists run statistics
type RunStore interface {
	SaveRun(ctx context.Context, s *domain.RunStats) error
}

// Enricher extracts main text of an event detail page
type Enricher interface {
	Extract(ctx context.Context, rawURL string) (string, error)
}

// Config holds crawl settings
type Config struct {
	Workers      int           // concurrent source crawls
	Timeout      time.Duration // whole crawl of one source
	MaxPages     int           // paginated strategy cap, first page included
	MaxHops      int           // infinite scroll cap
	PageSize     int           // assumed listing size for offset pagination
	Enrich       bool          // fetch detail pages for events without description
	EnrichLimit  int           // max detail pages per run
	EnrichMaxLen int           // max description length taken from a detail page
	Weights      quality.Weights
}

// Deps are collaborators of the crawler, Enricher, Registry and Metrics are optional
type Deps struct {
	Fetcher  Fetcher
	Sources  SourceStore
	Gate     Gate
	Runs     RunStore
	Enricher Enricher
	Registry *strategy.Registry
	Locator  *locator.Locator
	Resolver *resolver.Resolver
	Filter   *quality.Filter
	Metrics  *Metrics
}

// Crawler runs crawl pipelines
type Crawler struct {
	Deps
	cfg      Config
	detector *strategy.Detector
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[int64]bool
}

// New makes a Crawler, filling zero settings with defaults
func New(cfg Config, deps Deps) *Crawler {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 5
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.EnrichLimit <= 0 {
		cfg.EnrichLimit = 10
	}
	if cfg.EnrichMaxLen <= 0 {
		cfg.EnrichMaxLen = 1000
	}
	if cfg.Weights == (quality.Weights{}) {
		cfg.Weights = quality.DefaultWeights()
	}
	return &Crawler{
		Deps:     deps,
		cfg:      cfg,
		detector: strategy.NewDetector(deps.Registry),
		now:      time.Now,
		inFlight: map[int64]bool{},
	}
}

// RunCrawl performs one crawl attempt of the source. A crawl already running for the same source
// makes it return domain.ErrCrawlInProgress right away. Stats are returned for failed runs as well.
func (c *Crawler) RunCrawl(ctx context.Context, sourceID int64) (*domain.RunStats, error) {
	if !c.acquire(sourceID) {
		return nil, fmt.Errorf("source %d: %w", sourceID, domain.ErrCrawlInProgress)
	}
	defer c.release(sourceID)

	src, err := c.Sources.GetSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get source %d: %w", sourceID, err)
	}
	if !src.Active {
		return nil, fmt.Errorf("source %s: %w", src.Identifier(), domain.ErrSourceInactive)
	}

	c.Metrics.started()
	defer c.Metrics.finished()

	stats := domain.NewRunStats(uuid.NewString(), src.ID, c.now())
	lgr.Printf("[INFO] crawling %s (%s), run %s", src.Identifier(), src.URL, stats.RunID)

	crawlCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	runErr := c.crawl(crawlCtx, src, stats)
	cancel()
	if runErr == nil && errors.Is(crawlCtx.Err(), context.DeadlineExceeded) {
		runErr = fmt.Errorf("crawl timed out after %v", c.cfg.Timeout)
	}

	stats.FinishedAt = c.now()
	if runErr != nil {
		stats.Failed, stats.Error = true, runErr.Error()
		src.Health = src.Health.RecordFailure(stats.FinishedAt, runErr)
		lgr.Printf("[ERROR] crawl of %s failed: %v", src.Identifier(), runErr)
	} else {
		src.Health = src.Health.RecordSuccess(stats.FinishedAt, stats.Accepted)
	}

	// bookkeeping must survive a canceled or timed out crawl context
	saveCtx := context.WithoutCancel(ctx)
	if err := c.Sources.UpdateHealth(saveCtx, src.ID, src.Health); err != nil {
		lgr.Printf("[WARN] can't update health of %s: %v", src.Identifier(), err)
	}
	if c.Runs != nil {
		if err := c.Runs.SaveRun(saveCtx, stats); err != nil {
			lgr.Printf("[WARN] can't save run %s: %v", stats.RunID, err)
		}
	}
	c.Metrics.observe(stats)

	lgr.Printf("[INFO] crawled %s in %v: strategy %s, pages %d, candidates %d, extracted %d, accepted %d, "+
		"inserted %d, updated %d, unchanged %d, rejected %v, warnings %d", src.Identifier(), elapsed(stats),
		stats.Strategy, stats.Pages, stats.Candidates, stats.Extracted, stats.Accepted, stats.Inserted, stats.Updated,
		stats.Unchanged, stats.Rejected, len(stats.Warnings))

	if runErr != nil {
		return stats, fmt.Errorf("crawl %s: %w", src.Identifier(), runErr)
	}
	return stats, nil
}

// RunAll crawls all active sources through the bounded pool
func (c *Crawler) RunAll(ctx context.Context) ([]*domain.RunStats, error) {
	return c.runMany(ctx, func(*domain.Source) bool { return true })
}

// RunDue crawls active sources whose poll interval has elapsed
func (c *Crawler) RunDue(ctx context.Context) ([]*domain.RunStats, error) {
	now := c.now()
	return c.runMany(ctx, func(s *domain.Source) bool { return s.Due(now) })
}

func (c *Crawler) runMany(ctx context.Context, pick func(*domain.Source) bool) ([]*domain.RunStats, error) {
	sources, err := c.Sources.GetSources(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("get sources: %w", err)
	}

	var mu sync.Mutex
	var res []*domain.RunStats
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for _, src := range sources {
		if !pick(src) {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			stats, err := c.RunCrawl(gctx, src.ID)
			if err != nil && errors.Is(err, domain.ErrCrawlInProgress) {
				lgr.Printf("[DEBUG] skip %s: %v", src.Identifier(), err)
				return nil
			}
			if stats != nil {
				mu.Lock()
				res = append(res, stats)
				mu.Unlock()
			}
			return nil // a failed source never stops the others
		})
	}
	_ = g.Wait()
	return res, nil
}

// InProgress reports whether a crawl of the source is running
func (c *Crawler) InProgress(sourceID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight[sourceID]
}

func (c *Crawler) acquire(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight[id] {
		return false
	}
	c.inFlight[id] = true
	return true
}

func (c *Crawler) release(id int64) {
	c.mu.Lock()
	delete(c.inFlight, id)
	c.mu.Unlock()
}

// crawl runs the pipeline for one source. Only a failure to retrieve anything is returned as error,
// problems with single candidates are counted in stats.
func (c *Crawler) crawl(ctx context.Context, src *domain.Source, stats *domain.RunStats) error {
	cands, profile, err := c.collect(ctx, src, stats)
	if err != nil {
		return err
	}
	stats.Candidates = len(cands)

	events := make([]domain.ExtractedEvent, 0, len(cands))
	for _, cand := range cands {
		ev, err := c.Resolver.Resolve(cand, profile)
		if err != nil {
			reason := rejectReason(err)
			stats.Reject(reason, 1)
			lgr.Printf("[DEBUG] %s: candidate rejected (%s): %v", src.Identifier(), reason, err)
			continue
		}
		events = append(events, ev)
	}
	stats.Extracted = len(events)

	if c.cfg.Enrich && c.Enricher != nil {
		c.enrich(ctx, src, events)
	}

	accepted, fstats := c.Filter.Apply(events)
	stats.Reject(domain.RejectDuplicate, fstats.Duplicates)
	stats.Reject(domain.RejectQuality, fstats.BelowFloor)
	stats.Accepted = len(accepted)

	for _, ev := range accepted {
		if ctx.Err() != nil {
			stats.Warn(fmt.Sprintf("ingest interrupted: %v", ctx.Err()))
			break
		}
		out, err := c.Gate.Ingest(ctx, ev)
		if err != nil {
			msg := fmt.Sprintf("ingest %q: %v", ev.Title, err)
			if errors.Is(err, domain.ErrStorageConflict) {
				msg = fmt.Sprintf("storage conflict on %q, skipped", ev.Title)
			}
			stats.Warn(msg)
			lgr.Printf("[WARN] %s: %s", src.Identifier(), msg)
			continue
		}
		stats.Count(out)
	}
	return nil
}

// enrich fills empty descriptions from event detail pages and rescores the events
func (c *Crawler) enrich(ctx context.Context, src *domain.Source, events []domain.ExtractedEvent) {
	done := 0
	for i := range events {
		ev := &events[i]
		if done >= c.cfg.EnrichLimit || ctx.Err() != nil {
			return
		}
		if ev.Description != "" || ev.CanonicalURL == "" || ev.CanonicalURL == src.URL {
			continue
		}
		done++
		text, err := c.Enricher.Extract(ctx, ev.CanonicalURL)
		if err != nil {
			lgr.Printf("[DEBUG] enrich %s: %v", ev.CanonicalURL, err)
			continue
		}
		text = strings.Join(strings.Fields(text), " ")
		if r := []rune(text); len(r) > c.cfg.EnrichMaxLen {
			text = strings.TrimSpace(string(r[:c.cfg.EnrichMaxLen]))
		}
		ev.Description = text
		ev.Confidence = quality.Score(*ev, c.cfg.Weights)
	}
}

// rejectReason maps resolver errors to run stats keys
func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrStaleEvent):
		return domain.RejectStale
	case errors.Is(err, domain.ErrDateUnresolvable):
		return domain.RejectDateUnresolvable
	case errors.Is(err, domain.ErrQualityRejected):
		return domain.RejectQuality
	default:
		return domain.RejectFieldResolution
	}
}
