package domain

import "time"

// SourceKind is the kind of configured origin
type SourceKind string

// source kinds
const (
	SourceFeed SourceKind = "feed"
	SourcePage SourceKind = "page"
)

// Source represents a configured event listing origin
type Source struct {
	ID           int64
	Name         string
	URL          string
	Kind         SourceKind
	StrategyHint StrategyKind // empty means detect on every crawl
	PollInterval time.Duration
	Active       bool
	Health       SourceHealth
	CreatedAt    time.Time
}

// SourceHealth is an immutable snapshot of per-source crawl health.
// Methods return an updated copy, the caller persists it.
type SourceHealth struct {
	ConsecutiveFailures int
	LastSuccessAt       *time.Time
	LastAttemptAt       *time.Time
	LastEventsFound     int
	LastError           string
}

// RecordSuccess returns health after a successful crawl attempt
func (h SourceHealth) RecordSuccess(at time.Time, eventsFound int) SourceHealth {
	at = at.UTC()
	return SourceHealth{
		ConsecutiveFailures: 0,
		LastSuccessAt:       &at,
		LastAttemptAt:       &at,
		LastEventsFound:     eventsFound,
		LastError:           "",
	}
}

// RecordFailure returns health after a failed crawl attempt
func (h SourceHealth) RecordFailure(at time.Time, err error) SourceHealth {
	at = at.UTC()
	res := SourceHealth{
		ConsecutiveFailures: h.ConsecutiveFailures + 1,
		LastSuccessAt:       h.LastSuccessAt,
		LastAttemptAt:       &at,
		LastEventsFound:     h.LastEventsFound,
	}
	if err != nil {
		res.LastError = err.Error()
	}
	return res
}

// Due reports whether the source should be crawled at the given time
func (s *Source) Due(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.Health.LastAttemptAt == nil || s.PollInterval <= 0 {
		return true
	}
	return !now.Before(s.Health.LastAttemptAt.Add(s.PollInterval))
}

// Identifier returns a human-readable identifier for logs
func (s *Source) Identifier() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}
