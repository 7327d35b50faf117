// Package locator finds content blocks likely to represent individual events in a document.
// Stages are tried in order over the whole document and the first one producing a plausible
// block wins: site profile selector, structured data (json-ld, microdata), ranked generic
// selectors and finally grouping around date-like text.
package locator

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"
	"golang.org/x/net/html"

	"github.com/umputun/eventscope/pkg/dates"
	"github.com/umputun/eventscope/pkg/domain"
)

// DefaultSelectors is the ranked list of generic block selectors
var DefaultSelectors = []string{
	`[class*="event"]`,
	`[class*="card"]`,
	`[class*="listing"]`,
	`[class*="item"]`,
	`article`,
	`li`,
}

// Config holds locator settings
type Config struct {
	MinText   int      // plausible block needs at least this many characters
	MaxText   int      // longer blocks are containers, not events
	Selectors []string // ranked generic selectors, DefaultSelectors if empty
}

// Page describes the document to search
type Page struct {
	SourceID      int64
	URL           string
	BlockSelector string // from a site profile, tried first
}

// Locator finds candidate blocks
type Locator struct {
	cfg Config
}

// New makes a Locator, filling zero settings with defaults
func New(cfg Config) *Locator {
	if cfg.MinText <= 0 {
		cfg.MinText = 30
	}
	if cfg.MaxText <= 0 {
		cfg.MaxText = 4000
	}
	if len(cfg.Selectors) == 0 {
		cfg.Selectors = DefaultSelectors
	}
	return &Locator{cfg: cfg}
}

// Locate returns candidates found by the first successful stage, empty if none
func (l *Locator) Locate(page Page, body []byte) ([]domain.RawCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", page.URL, err)
	}

	if page.BlockSelector != "" {
		if res := l.fromProfile(page, doc); len(res) > 0 {
			lgr.Printf("[DEBUG] %d blocks by profile selector on %s", len(res), page.URL)
			return res, nil
		}
	}

	if res := l.fromStructured(page, doc); len(res) > 0 {
		lgr.Printf("[DEBUG] %d structured events on %s", len(res), page.URL)
		return res, nil
	}

	for _, sel := range l.cfg.Selectors {
		if res := l.fromSelector(page, doc, sel); len(res) > 0 {
			lgr.Printf("[DEBUG] %d blocks by selector %q on %s", len(res), sel, page.URL)
			return res, nil
		}
	}

	res := l.fromProximity(page, doc)
	lgr.Printf("[DEBUG] %d blocks by date proximity on %s", len(res), page.URL)
	return res, nil
}

// Plausible checks block text length and presence of a date or time fragment
func (l *Locator) Plausible(text string) bool {
	if len(text) < l.cfg.MinText || len(text) > l.cfg.MaxText {
		return false
	}
	return dates.HasDateFragment(text) || dates.HasTimeFragment(text)
}

// fromProfile trusts the profile selector, date text there may be in a site-specific form
func (l *Locator) fromProfile(page Page, doc *goquery.Document) []domain.RawCandidate {
	var res []domain.RawCandidate
	doc.Find(page.BlockSelector).Each(func(_ int, s *goquery.Selection) {
		text := NodeText(s)
		if text == "" || len(text) > l.cfg.MaxText {
			return
		}
		res = append(res, l.candidate(page, s, text, domain.OriginProfile))
	})
	return res
}

func (l *Locator) fromStructured(page Page, doc *goquery.Document) []domain.RawCandidate {
	events := jsonLDEvents(doc)
	if len(events) == 0 {
		events = microdataEvents(doc)
	}
	res := make([]domain.RawCandidate, 0, len(events))
	for i := range events {
		ev := events[i]
		res = append(res, domain.RawCandidate{
			SourceID:   page.SourceID,
			SourceURL:  page.URL,
			Text:       collapse(ev.Name + " " + ev.StartDate + " " + ev.Location + " " + ev.Description),
			Origin:     domain.OriginStructured,
			Structured: &ev,
		})
	}
	return res
}

// fromSelector keeps the outermost plausible matches, descending into matches holding
// several plausible matches themselves (list containers)
func (l *Locator) fromSelector(page Page, doc *goquery.Document, sel string) []domain.RawCandidate {
	var plausible []*goquery.Selection
	texts := map[*html.Node]string{}
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		text := NodeText(s)
		if l.Plausible(text) {
			plausible = append(plausible, s)
			texts[s.Get(0)] = text
		}
	})
	if len(plausible) == 0 {
		return nil
	}

	isContainer := func(s *goquery.Selection) bool {
		inner := 0
		for _, other := range plausible {
			if other.Get(0) != s.Get(0) && s.Contains(other.Get(0)) {
				inner++
			}
		}
		return inner >= 2
	}

	var kept []*goquery.Selection
	for _, s := range plausible {
		if isContainer(s) {
			continue
		}
		nested := false
		for _, k := range kept {
			if k.Contains(s.Get(0)) {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, s)
		}
	}

	res := make([]domain.RawCandidate, 0, len(kept))
	for _, s := range kept {
		res = append(res, l.candidate(page, s, texts[s.Get(0)], domain.OriginSelector))
	}
	return res
}

// fromProximity anchors on elements carrying date or time text and climbs to the widest
// ancestor that still holds a single anchor
func (l *Locator) fromProximity(page Page, doc *goquery.Document) []domain.RawCandidate {
	// time-only anchors are used when there are no date anchors, otherwise a separate
	// clock element would split an event block in two
	var dateAnchors, timeAnchors []*html.Node
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "script" || goquery.NodeName(s) == "style" {
			return
		}
		own := ownText(s)
		_, hasDatetime := s.Attr("datetime")
		switch {
		case hasDatetime || (own != "" && dates.HasDateFragment(own)):
			dateAnchors = append(dateAnchors, s.Get(0))
		case own != "" && dates.HasTimeFragment(own):
			timeAnchors = append(timeAnchors, s.Get(0))
		}
	})
	anchors := dateAnchors
	if len(anchors) == 0 {
		anchors = timeAnchors
	}

	anchorsIn := func(s *goquery.Selection) int {
		n := 0
		for _, a := range anchors {
			if s.Get(0) == a || s.Contains(a) {
				n++
			}
		}
		return n
	}

	seen := map[*html.Node]bool{}
	var blocks []*goquery.Selection
	for _, a := range anchors {
		cur := doc.FindNodes(a)
		for {
			parent := cur.Parent()
			if parent.Length() == 0 || goquery.NodeName(parent) == "body" || goquery.NodeName(parent) == "html" {
				break
			}
			if anchorsIn(parent) > 1 || len(NodeText(parent)) > l.cfg.MaxText {
				break
			}
			cur = parent
		}
		if seen[cur.Get(0)] {
			continue
		}
		seen[cur.Get(0)] = true
		blocks = append(blocks, cur)
	}

	var res []domain.RawCandidate
	for _, s := range blocks {
		nested := false
		for _, other := range blocks {
			if other.Get(0) != s.Get(0) && other.Contains(s.Get(0)) {
				nested = true
				break
			}
		}
		text := NodeText(s)
		if nested || !l.Plausible(text) {
			continue
		}
		res = append(res, l.candidate(page, s, text, domain.OriginProximity))
	}
	return res
}

func (l *Locator) candidate(page Page, s *goquery.Selection, text string, origin domain.CandidateOrigin) domain.RawCandidate {
	markup, err := goquery.OuterHtml(s)
	if err != nil {
		markup = ""
	}
	return domain.RawCandidate{SourceID: page.SourceID, SourceURL: page.URL, Markup: markup, Text: text, Origin: origin}
}
