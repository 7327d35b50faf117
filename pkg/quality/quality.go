// Package quality scores extracted events, collapses near-identical events of one crawl run
// and drops events below the confidence floor.
package quality

import (
	"strings"
	"time"
	"unicode"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/go-pkgz/lgr"

	"github.com/umputun/eventscope/pkg/domain"
)

// Weights are additive score components
type Weights struct {
	Title         int
	Description   int
	DateConfirmed int
	DateFallback  int
	Location      int
	URL           int
	Price         int
	Structured    int
}

// DefaultWeights returns weights used when nothing is configured
func DefaultWeights() Weights {
	return Weights{Title: 20, Description: 15, DateConfirmed: 30, DateFallback: 5, Location: 15, URL: 10, Price: 5, Structured: 10}
}

// Score computes event confidence in [0,100]
func Score(ev domain.ExtractedEvent, w Weights) int {
	score := 0
	switch l := len([]rune(ev.Title)); {
	case l >= 5 && l <= 150:
		score += w.Title
	case l > 0:
		score += w.Title / 2
	}
	switch l := len([]rune(ev.Description)); {
	case l >= 40:
		score += w.Description
	case l > 0:
		score += w.Description / 3
	}
	switch {
	case ev.DateConfidence.Confirmed():
		score += w.DateConfirmed
	case ev.DateConfidence == domain.DateFallback:
		score += w.DateFallback
	}
	if ev.Location != "" {
		score += w.Location
	}
	// a url falling back to the listing page says nothing about the event
	if ev.CanonicalURL != "" && ev.CanonicalURL != ev.ListingURL {
		score += w.URL
	}
	if ev.Price != "" {
		score += w.Price
	}
	if ev.Structured {
		score += w.Structured
	}
	return max(0, min(score, 100))
}

// Config holds filter settings
type Config struct {
	Floor      int           // events scoring below are dropped
	Similarity float64       // normalized title similarity to treat events as duplicates, 0..1
	Window     time.Duration // max distance between starts of duplicates
	Weights    Weights
}

// Stats counts what the filter removed
type Stats struct {
	Duplicates int
	BelowFloor int
}

// Filter deduplicates and gates events of a single run
type Filter struct {
	cfg    Config
	metric strutil.StringMetric
}

// NewFilter makes a Filter, filling zero settings with defaults
func NewFilter(cfg Config) *Filter {
	if cfg.Similarity <= 0 || cfg.Similarity > 1 {
		cfg.Similarity = 0.92
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights()
	}
	return &Filter{cfg: cfg, metric: metrics.NewJaroWinkler()}
}

// Apply merges duplicates, keeping the higher confidence record enriched with fields only
// the other one has, then drops events below the floor. Input order is preserved.
func (f *Filter) Apply(events []domain.ExtractedEvent) ([]domain.ExtractedEvent, Stats) {
	var stats Stats
	kept := make([]domain.ExtractedEvent, 0, len(events))
	titles := make([]string, 0, len(events))

	for _, ev := range events {
		norm := NormalizeTitle(ev.Title)
		dup := -1
		for i := range kept {
			if f.duplicate(norm, titles[i], ev.Start, kept[i].Start) {
				dup = i
				break
			}
		}
		if dup < 0 {
			kept = append(kept, ev)
			titles = append(titles, norm)
			continue
		}
		stats.Duplicates++
		lgr.Printf("[DEBUG] duplicate %q merged into %q", ev.Title, kept[dup].Title)
		kept[dup] = f.merge(kept[dup], ev)
		titles[dup] = NormalizeTitle(kept[dup].Title)
	}

	res := kept[:0]
	for _, ev := range kept {
		if ev.Confidence < f.cfg.Floor {
			stats.BelowFloor++
			lgr.Printf("[DEBUG] %q rejected, confidence %d below %d", ev.Title, ev.Confidence, f.cfg.Floor)
			continue
		}
		res = append(res, ev)
	}
	return res, stats
}

// Similarity returns similarity of normalized titles
func (f *Filter) Similarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == nb {
		return 1
	}
	return strutil.Similarity(na, nb, f.metric)
}

func (f *Filter) duplicate(normA, normB string, startA, startB time.Time) bool {
	if normA == "" || normB == "" {
		return false
	}
	d := startA.Sub(startB)
	if d < 0 {
		d = -d
	}
	if d > f.cfg.Window {
		return false
	}
	if normA == normB {
		return true
	}
	return strutil.Similarity(normA, normB, f.metric) >= f.cfg.Similarity
}

// merge keeps the higher confidence event and fills its empty fields from the other one
func (f *Filter) merge(a, b domain.ExtractedEvent) domain.ExtractedEvent {
	winner, loser := a, b
	if b.Confidence > a.Confidence {
		winner, loser = b, a
	}
	if winner.Description == "" {
		winner.Description = loser.Description
	}
	if winner.Location == "" {
		winner.Location = loser.Location
	}
	if winner.Price == "" {
		winner.Price = loser.Price
	}
	if winner.End == nil {
		winner.End = loser.End
	}
	if winner.CanonicalURL == "" {
		winner.CanonicalURL = loser.CanonicalURL
	}
	if !winner.DateConfidence.Confirmed() && loser.DateConfidence.Confirmed() {
		winner.Start, winner.DateConfidence = loser.Start, loser.DateConfidence
	}
	winner.Structured = winner.Structured || loser.Structured
	winner.Confidence = Score(winner, f.cfg.Weights)
	return winner
}

// NormalizeTitle case-folds, strips punctuation and symbols and collapses whitespace
func NormalizeTitle(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			return ' '
		default:
			return unicode.ToLower(r)
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
