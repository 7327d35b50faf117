package strategy

import (
	"net/url"
	"strings"
	"time"

	"github.com/umputun/eventscope/pkg/dates"
	"github.com/umputun/eventscope/pkg/domain"
)

// Selectors lists css selectors per field, tried in order
type Selectors struct {
	Title       []string
	Date        []string
	EndDate     []string
	Location    []string
	Description []string
	Price       []string
	URL         []string
}

// Profile is a source-specific recipe for sites generic heuristics get wrong
type Profile interface {
	ID() string
	Match(host string) bool
	Retrieval() domain.StrategyKind // underlying retrieval, never source_specific
	BlockSelector() string          // empty to use generic block location
	Selectors() Selectors
	MapDate(text string, loc *time.Location) (time.Time, bool)
}

// SelectorProfile is a Profile defined entirely by configuration
type SelectorProfile struct {
	Name        string
	Domains     []string // host substrings
	Strategy    domain.StrategyKind
	Blocks      string
	Fields      Selectors
	DateLayouts []string // go time layouts for date text generic parsing can't handle
}

// ID returns profile name
func (p *SelectorProfile) ID() string { return p.Name }

// Match checks if host contains any of profile domains
func (p *SelectorProfile) Match(host string) bool {
	host = strings.ToLower(host)
	for _, d := range p.Domains {
		if d != "" && strings.Contains(host, strings.ToLower(d)) {
			return true
		}
	}
	return false
}

// Retrieval returns underlying retrieval strategy, static by default
func (p *SelectorProfile) Retrieval() domain.StrategyKind {
	if p.Strategy == "" || p.Strategy == domain.StrategySourceSpecific || !p.Strategy.Valid() {
		return domain.StrategyStatic
	}
	return p.Strategy
}

// BlockSelector returns css selector of event blocks
func (p *SelectorProfile) BlockSelector() string { return p.Blocks }

// Selectors returns field selectors
func (p *SelectorProfile) Selectors() Selectors { return p.Fields }

// MapDate parses text with the profile's layouts, both raw and normalized.
// Layouts without a year leave it zero, the date engine places such dates against its clock.
func (p *SelectorProfile) MapDate(text string, loc *time.Location) (time.Time, bool) {
	if len(p.DateLayouts) == 0 {
		return time.Time{}, false
	}
	candidates := []string{strings.TrimSpace(text), dates.Normalize(text)}
	for _, layout := range p.DateLayouts {
		for _, c := range candidates {
			t, err := time.ParseInLocation(layout, c, loc)
			if err != nil {
				continue
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// Registry maps domain patterns to profiles, first registered match wins
type Registry struct {
	profiles []Profile
}

// NewRegistry makes a registry with the given profiles
func NewRegistry(profiles ...Profile) *Registry {
	return &Registry{profiles: profiles}
}

// Lookup finds the profile for url's host
func (r *Registry) Lookup(rawURL string) (Profile, bool) {
	if r == nil {
		return nil, false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, false
	}
	for _, p := range r.profiles {
		if p.Match(u.Hostname()) {
			return p, true
		}
	}
	return nil, false
}

// Get returns profile by id
func (r *Registry) Get(id string) (Profile, bool) {
	if r == nil {
		return nil, false
	}
	for _, p := range r.profiles {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// Len returns number of registered profiles
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.profiles)
}
