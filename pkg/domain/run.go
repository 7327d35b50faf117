package domain

import "time"

// rejection reasons used as RunStats.Rejected keys
const (
	RejectFieldResolution  = "field_resolution"
	RejectDateUnresolvable = "date_unresolvable"
	RejectStale            = "stale"
	RejectQuality          = "quality"
	RejectDuplicate        = "duplicate"
)

// RunStats collects counters of one crawl run for one source
type RunStats struct {
	RunID      string
	SourceID   int64
	Strategy   string
	Pages      int
	Candidates int
	Extracted  int
	Accepted   int
	Rejected   map[string]int
	Inserted   int
	Updated    int
	Unchanged  int
	Skipped    int
	Warnings   []string
	Failed     bool
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunStats makes empty stats for a source run
func NewRunStats(runID string, sourceID int64, startedAt time.Time) *RunStats {
	return &RunStats{RunID: runID, SourceID: sourceID, StartedAt: startedAt, Rejected: map[string]int{}}
}

// Reject increments rejection counter for the reason
func (s *RunStats) Reject(reason string, n int) {
	if n <= 0 {
		return
	}
	if s.Rejected == nil {
		s.Rejected = map[string]int{}
	}
	s.Rejected[reason] += n
}

// Warn appends a run-level warning
func (s *RunStats) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Count records one ingest outcome
func (s *RunStats) Count(o IngestOutcome) {
	switch o.Kind {
	case IngestInserted:
		s.Inserted++
	case IngestUpdated:
		s.Updated++
	case IngestUnchanged:
		s.Unchanged++
	case IngestSkipped:
		s.Skipped++
	}
}

// TotalRejected returns sum of all rejections
func (s *RunStats) TotalRejected() int {
	total := 0
	for _, n := range s.Rejected {
		total += n
	}
	return total
}
