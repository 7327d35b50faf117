// Package scheduler triggers crawls of due sources periodically. It stands in for an external
// trigger, the crawl decisions stay with the crawler.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/eventscope/pkg/domain"
)

//go:generate moq -out mocks/runner.go -pkg mocks -skip-ensure -fmt goimports . Runner

// Runner crawls sources whose poll interval has elapsed
type Runner interface {
	RunDue(ctx context.Context) ([]*domain.RunStats, error)
}

// Params holds scheduler dependencies and settings
type Params struct {
	Runner   Runner
	Interval time.Duration // how often due sources are checked
}

// Scheduler runs due crawls on a ticker
type Scheduler struct {
	runner   Runner
	interval time.Duration
	trigger  chan struct{}

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler instance
func NewScheduler(params Params) *Scheduler {
	if params.Interval <= 0 {
		params.Interval = 5 * time.Minute
	}
	return &Scheduler{runner: params.Runner, interval: params.Interval, trigger: make(chan struct{}, 1)}
}

// Start begins the scheduler, the first check runs right away
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.worker(ctx)
	lgr.Printf("[INFO] scheduler started with interval %v", s.interval)
}

// Stop gracefully stops the scheduler, waiting for a running check
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// TriggerNow requests an immediate check without waiting for the ticker, a pending request is not doubled
func (s *Scheduler) TriggerNow() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		case <-s.trigger:
			s.runDue(ctx)
		}
	}
}

func (s *Scheduler) runDue(ctx context.Context) {
	res, err := s.runner.RunDue(ctx)
	if err != nil {
		lgr.Printf("[ERROR] failed to run due crawls: %v", err)
		return
	}
	if len(res) == 0 {
		lgr.Printf("[DEBUG] no sources due")
		return
	}
	failed, accepted := 0, 0
	for _, r := range res {
		if r.Failed {
			failed++
		}
		accepted += r.Accepted
	}
	lgr.Printf("[INFO] crawled %d due sources, %d failed, %d events accepted", len(res), failed, accepted)
}
