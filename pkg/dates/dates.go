// Package dates turns free-text event date expressions into instants. Resolution is strictly
// ordered: structured data, explicit date elements, pattern extraction from block text,
// source-specific mapping and finally a low-confidence fallback. Resolved dates pass a staleness
// gate which also honors textual "past event" and "ongoing" markers.
package dates

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/umputun/eventscope/pkg/domain"
)

// Config holds date resolution settings
type Config struct {
	Location       *time.Location
	PastThreshold  time.Duration // events starting earlier than now-PastThreshold are stale
	DefaultHorizon time.Duration // fallback distance from now when nothing else is known
	AllowFallback  bool
}

// MapFunc is a source-specific date mapping, configured per site profile.
// A zero year marks a date without one.
type MapFunc func(text string, loc *time.Location) (time.Time, bool)

// Input carries everything known about a candidate's date
type Input struct {
	Structured    string   // start date from machine-readable data
	StructuredEnd string   // end date from machine-readable data
	Explicit      []string // texts/attributes of dedicated date elements, best first
	ExplicitEnd   []string // texts/attributes of dedicated end-date elements
	Text          string   // whole block text
	Title         string
	Description   string
	Mapper        MapFunc // nil unless the source has a profile with a date mapping
}

// Resolved is a resolved start with optional end
type Resolved struct {
	Start      time.Time
	End        *time.Time
	Confidence domain.DateConfidence
}

// Engine resolves dates
type Engine struct {
	cfg Config
	now func() time.Time
}

// Option customizes Engine
type Option func(e *Engine)

// WithNow sets the clock used for year rollover, fallback and staleness
func WithNow(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

var (
	staleMarkers   = regexp.MustCompile(`(?i)\b(archived|has ended|event ended|event is over|past event|this event has passed|event has passed)\b`)
	ongoingMarkers = regexp.MustCompile(`(?i)\b(ongoing|now showing|on view|runs through|running through|open until|on now)\b`)
)

// New makes an Engine, filling zero settings with defaults
func New(cfg Config, opts ...Option) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PastThreshold <= 0 {
		cfg.PastThreshold = 24 * time.Hour
	}
	if cfg.DefaultHorizon <= 0 {
		cfg.DefaultHorizon = 14 * 24 * time.Hour
	}
	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns configured time zone
func (e *Engine) Location() *time.Location { return e.cfg.Location }

// Resolve finds the event start (and end when known) and applies the staleness gate.
// Returns domain.ErrDateUnresolvable when nothing applies and fallback is disabled,
// domain.ErrStaleEvent when the event is in the past.
func (e *Engine) Resolve(in Input) (Resolved, error) {
	res, err := e.resolve(in)
	if err != nil {
		return Resolved{}, err
	}
	if err := e.checkStale(res, in); err != nil {
		return Resolved{}, err
	}
	return res, nil
}

func (e *Engine) resolve(in Input) (Resolved, error) {
	loc := e.cfg.Location

	// structured data is trusted as-is
	if in.Structured != "" {
		if t, ok := parseFlexible(in.Structured, loc); ok && e.plausible(t) {
			res := Resolved{Start: t, Confidence: domain.DateStructured}
			if in.StructuredEnd != "" {
				if end, ok := parseFlexible(in.StructuredEnd, loc); ok && !end.Before(t) {
					res.End = &end
				}
			}
			return res, nil
		}
	}

	// dedicated date element: exact layouts, a date shape inside it, then the flexible parser
	for _, txt := range in.Explicit {
		if strings.TrimSpace(txt) == "" {
			continue
		}
		if t, ok := parseExact(txt, loc); ok && e.plausible(t) {
			return Resolved{Start: t, End: e.explicitEnd(in.ExplicitEnd, t), Confidence: domain.DateExplicit}, nil
		}
		if m, ok := findDate(txt, loc); ok {
			if res, ok := e.fromMatch(m, domain.DateExplicit); ok {
				if res.End == nil {
					res.End = e.explicitEnd(in.ExplicitEnd, res.Start)
				}
				return res, nil
			}
		}
		if t, ok := parseFlexible(txt, loc); ok && e.plausible(t) {
			return Resolved{Start: t, End: e.explicitEnd(in.ExplicitEnd, t), Confidence: domain.DateExplicit}, nil
		}
	}

	// ranked date shapes in the block text
	if m, ok := findDate(in.Text, loc); ok {
		if res, ok := e.fromMatch(m, domain.DatePattern); ok {
			if res.End == nil {
				res.End = e.explicitEnd(in.ExplicitEnd, res.Start)
			}
			return res, nil
		}
	}

	// source-specific mapping, only when configured for the source
	if in.Mapper != nil {
		for _, txt := range append(append([]string{}, in.Explicit...), in.Text) {
			t, ok := in.Mapper(txt, loc)
			if !ok {
				continue
			}
			if t.Year() == 0 {
				// year-less layout, placed against the engine clock like a year-less pattern
				if res, ok := e.fromMatch(match{start: t}, domain.DateMapped); ok {
					return res, nil
				}
				continue
			}
			if e.plausible(t) {
				return Resolved{Start: t, Confidence: domain.DateMapped}, nil
			}
		}
	}

	if !e.cfg.AllowFallback {
		return Resolved{}, domain.ErrDateUnresolvable
	}
	return Resolved{Start: e.fallback(in), Confidence: domain.DateFallback}, nil
}

// fromMatch applies year rollover to year-less matches. A year-less date goes to the
// current year, or to the next year it exists in and is not stale (feb 29 waits for a leap year).
func (e *Engine) fromMatch(m match, conf domain.DateConfidence) (Resolved, bool) {
	start, end := m.start, m.end
	if !m.hasYear {
		now := e.now().In(e.cfg.Location)
		cutoff := now.Add(-e.cfg.PastThreshold)
		placed := false
		for y := now.Year(); y <= now.Year()+4; y++ {
			s, en, ok := inYear(m, y)
			if ok && !s.Before(cutoff) {
				start, end, placed = s, en, true
				break
			}
		}
		if !placed {
			return Resolved{}, false
		}
	}
	if !e.plausible(start) {
		return Resolved{}, false
	}
	return Resolved{Start: start, End: end, Confidence: conf}, true
}

// inYear moves a year-less match into the year, false if the day doesn't exist there
func inYear(m match, year int) (start time.Time, end *time.Time, ok bool) {
	start = time.Date(year, m.start.Month(), m.start.Day(), m.start.Hour(), m.start.Minute(), m.start.Second(), 0,
		m.start.Location())
	if start.Day() != m.start.Day() {
		return time.Time{}, nil, false
	}
	if m.end != nil {
		en := start.Add(m.end.Sub(m.start))
		end = &en
	}
	return start, end, true
}

// explicitEnd parses the first usable end element
func (e *Engine) explicitEnd(texts []string, start time.Time) *time.Time {
	for _, txt := range texts {
		t, ok := parseFlexible(txt, e.cfg.Location)
		if !ok {
			m, found := findDate(txt, e.cfg.Location)
			if !found || !m.hasYear {
				continue
			}
			t = m.start
		}
		if !t.Before(start) {
			return &t
		}
	}
	return nil
}

// fallback synthesizes a placeholder from month and/or year found in the surrounding text,
// or now+horizon if none
func (e *Engine) fallback(in Input) time.Time {
	loc := e.cfg.Location
	now := e.now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	horizon := today.Add(e.cfg.DefaultHorizon)

	texts := append(append([]string{}, in.Explicit...), in.Title, in.Description, in.Text)
	mon, year := findMonthYear(strings.Join(texts, " "))
	switch {
	case mon != 0 && year != 0:
		return clampToday(time.Date(year, mon, 15, 0, 0, 0, 0, loc), today)
	case mon != 0:
		y := now.Year()
		if mon < now.Month() {
			y++
		}
		return clampToday(time.Date(y, mon, 15, 0, 0, 0, 0, loc), today)
	case year > now.Year():
		return time.Date(year, time.January, 15, 0, 0, 0, 0, loc)
	case year != 0 && year < now.Year():
		// past year only, left to the stale gate
		return time.Date(year, time.January, 15, 0, 0, 0, 0, loc)
	}
	return horizon
}

// clampToday keeps a placeholder within the current month from landing in the past
func clampToday(t, today time.Time) time.Time {
	if t.Year() == today.Year() && t.Month() == today.Month() && t.Before(today) {
		return today
	}
	return t
}

// checkStale rejects past events. Textual stale markers win over date arithmetic,
// ongoing markers or a live end date keep an event that started long ago.
func (e *Engine) checkStale(res Resolved, in Input) error {
	text := strings.Join([]string{in.Title, in.Description, in.Text}, " ")
	if staleMarkers.MatchString(text) {
		return fmt.Errorf("stale marker in text: %w", domain.ErrStaleEvent)
	}
	cutoff := e.now().Add(-e.cfg.PastThreshold)
	if !res.Start.Before(cutoff) {
		return nil
	}
	if res.End != nil && !res.End.Before(cutoff) {
		return nil
	}
	if ongoingMarkers.MatchString(text) {
		return nil
	}
	return fmt.Errorf("start %s is older than %v: %w", res.Start.Format(time.RFC3339), e.cfg.PastThreshold, domain.ErrStaleEvent)
}

// plausible rejects parse results far away from now, usually misread numbers
func (e *Engine) plausible(t time.Time) bool {
	y := e.now().Year()
	return t.Year() >= y-5 && t.Year() <= y+5
}
