package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/umputun/eventscope/pkg/config"
	"github.com/umputun/eventscope/pkg/content"
	"github.com/umputun/eventscope/pkg/crawler"
	"github.com/umputun/eventscope/pkg/dates"
	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/fetcher"
	"github.com/umputun/eventscope/pkg/ingest"
	"github.com/umputun/eventscope/pkg/locator"
	"github.com/umputun/eventscope/pkg/quality"
	"github.com/umputun/eventscope/pkg/repository"
	"github.com/umputun/eventscope/pkg/resolver"
	"github.com/umputun/eventscope/pkg/scheduler"
	"github.com/umputun/eventscope/pkg/strategy"
	"github.com/umputun/eventscope/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"eventscope.yml" description:"configuration file"`
	Once   bool   `long:"once" description:"crawl all active sources once and exit"`
	Source string `long:"source" description:"crawl a single source by name or url and exit"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	setupLog(opts.Debug, opts.NoColor)

	log.Printf("[INFO] starting eventscope version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()

	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	log.Print("[INFO] shutdown complete")
}

// app holds wired components
type app struct {
	cfg     *config.Config
	repos   *repository.Repositories
	crawler *crawler.Crawler
	reg     *prometheus.Registry
}

func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.repos.Close(); err != nil {
			log.Printf("[WARN] failed to close database: %v", err)
		}
	}()

	if err := syncSources(ctx, a.repos.Source, cfg.DomainSources()); err != nil {
		return fmt.Errorf("failed to sync sources: %w", err)
	}

	switch {
	case opts.Source != "":
		return crawlOne(ctx, a, opts.Source)
	case opts.Once:
		return crawlAll(ctx, a)
	}

	if cfg.Schedule.Enabled {
		sched := scheduler.NewScheduler(scheduler.Params{Runner: a.crawler, Interval: cfg.Schedule.Interval})
		sched.Start(ctx)
		defer sched.Stop()
	} else {
		log.Printf("[INFO] scheduler disabled, crawls run on demand only")
	}

	srv := server.New(cfg, server.NewRepositoryAdapter(a.repos), a.crawler, a.reg, revision, opts.Debug)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// newApp opens storage and wires the crawl pipeline
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dc, err := cfg.DatesConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to setup dates: %w", err)
	}

	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	f, err := fetcher.New(cfg.FetcherConfig())
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("failed to setup fetcher: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	weights := cfg.Weights()
	engine := dates.New(dc)
	deps := crawler.Deps{
		Fetcher:  f,
		Sources:  repos.Source,
		Gate:     ingest.New(repos.Event, dc.Location),
		Runs:     repos.Run,
		Registry: strategy.NewRegistry(cfg.Profiles()...),
		Locator:  locator.New(locator.Config{MinText: cfg.Crawl.MinBlockText, MaxText: cfg.Crawl.MaxBlockText}),
		Resolver: resolver.New(resolver.Config{Denylist: cfg.Resolver.Denylist, Gazetteer: cfg.Resolver.Gazetteer,
			MaxDescription: cfg.Resolver.MaxDescription, Weights: weights}, engine),
		Filter: quality.NewFilter(quality.Config{Floor: cfg.Quality.Floor, Similarity: cfg.Quality.DedupSimilarity,
			Window: cfg.Quality.DedupWindow, Weights: weights}),
		Metrics: crawler.NewMetrics(reg),
	}
	if cfg.Crawl.EnrichDescriptions {
		deps.Enricher = content.NewDetailExtractor(f, cfg.Fetch.Timeout)
	}

	c := crawler.New(crawler.Config{
		Workers:      cfg.Crawl.Workers,
		Timeout:      cfg.Crawl.Timeout,
		MaxPages:     cfg.Crawl.MaxPages,
		MaxHops:      cfg.Crawl.MaxHops,
		PageSize:     cfg.Crawl.PageSize,
		Enrich:       cfg.Crawl.EnrichDescriptions,
		EnrichLimit:  cfg.Crawl.EnrichLimit,
		EnrichMaxLen: cfg.Crawl.EnrichMaxLength,
		Weights:      weights,
	}, deps)

	return &app{cfg: cfg, repos: repos, crawler: c, reg: reg}, nil
}

// sourceSyncer is the part of source storage used to mirror configured sources
type sourceSyncer interface {
	UpsertSource(ctx context.Context, src *domain.Source) error
	GetSources(ctx context.Context, activeOnly bool) ([]*domain.Source, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// syncSources stores configured sources and deactivates stored ones no longer configured.
// Health and history of removed sources are kept.
func syncSources(ctx context.Context, store sourceSyncer, srcs []*domain.Source) error {
	configured := make(map[string]bool, len(srcs))
	for _, src := range srcs {
		if err := store.UpsertSource(ctx, src); err != nil {
			return err
		}
		configured[src.URL] = true
	}

	stored, err := store.GetSources(ctx, true)
	if err != nil {
		return fmt.Errorf("get sources: %w", err)
	}
	for _, src := range stored {
		if configured[src.URL] {
			continue
		}
		log.Printf("[INFO] source %s removed from config, deactivating", src.Identifier())
		if err := store.SetActive(ctx, src.ID, false); err != nil {
			return fmt.Errorf("deactivate source %s: %w", src.Identifier(), err)
		}
	}
	log.Printf("[INFO] %d sources configured", len(srcs))
	return nil
}

// crawlOne runs a single source found by name or url
func crawlOne(ctx context.Context, a *app, ref string) error {
	srcs, err := a.repos.Source.GetSources(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to get sources: %w", err)
	}
	for _, src := range srcs {
		if src.Name != ref && src.URL != ref {
			continue
		}
		stats, err := a.crawler.RunCrawl(ctx, src.ID)
		if err != nil {
			return fmt.Errorf("failed to crawl %s: %w", ref, err)
		}
		log.Printf("[INFO] %s: %d accepted, %d inserted, %d updated", src.Identifier(), stats.Accepted,
			stats.Inserted, stats.Updated)
		return nil
	}
	return fmt.Errorf("source %q: %w", ref, domain.ErrNotFound)
}

// crawlAll runs every active source once, failing only if all of them failed
func crawlAll(ctx context.Context, a *app) error {
	all, err := a.crawler.RunAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to crawl sources: %w", err)
	}
	failed := 0
	for _, s := range all {
		if s.Failed {
			failed++
		}
	}
	log.Printf("[INFO] crawled %d sources, %d failed", len(all), failed)
	if len(all) > 0 && failed == len(all) {
		return errors.New("all crawls failed")
	}
	return nil
}

func setupLog(dbg, noColor bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	if !noColor {
		colorizer := lgr.Mapper{
			ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
			WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
			InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
			DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
			CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
			TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
		}
		logOpts = append(logOpts, lgr.Map(colorizer))
	}
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
