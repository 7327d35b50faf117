// Package resolver extracts event fields from candidate blocks. Every field is read by an ordered
// chain of extraction functions, the first non-empty sane value wins and whole-block heuristics
// come last.
package resolver

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/umputun/eventscope/pkg/dates"
	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/quality"
	"github.com/umputun/eventscope/pkg/strategy"
)

// DefaultDenylist holds non-title boilerplate: navigation labels, categories and disclaimers
var DefaultDenylist = []string{
	"home", "events", "event", "all events", "upcoming events", "past events", "calendar", "event calendar",
	"what's on", "whats on", "more", "read more", "learn more", "more info", "details", "view details",
	"view event", "buy tickets", "get tickets", "tickets", "register", "rsvp", "load more", "show more",
	"next", "previous", "prev", "back", "menu", "search", "share", "subscribe", "filter", "categories",
	"category", "tags", "news", "blog", "about", "about us", "contact", "contact us", "location", "venue",
	"online", "free", "sold out", "cancelled", "postponed", "today", "this week", "this weekend",
	"music", "arts", "art", "sports", "family", "community", "workshops", "theatre", "theater", "film",
	"kids", "education", "festivals", "nightlife", "disclaimer", "privacy policy", "terms of use",
	"all rights reserved", "cookie policy",
}

var disclaimerPrefixes = []string{"copyright", "©", "disclaimer", "all rights reserved", "terms", "privacy"}

var (
	rePrice     = regexp.MustCompile(`(?i)(free admission|free entry|\bfree\b|[$€£]\s?\d+(?:[.,]\d{1,2})?(?:\s?(?:-|–|to)\s?[$€£]?\s?\d+(?:[.,]\d{1,2})?)?|\d+(?:[.,]\d{1,2})?\s?(?:usd|eur|gbp))`)
	reDateStart = regexp.MustCompile(`(?i)\b((jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec|mon|tue|wed|thu|fri|sat|sun)[a-z]*\.?,?\s+\d|\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4})`)
	reDateWords = regexp.MustCompile(`(?i)\b(jan(uary)?|feb(ruary)?|mar(ch)?|apr(il)?|may|june?|july?|aug(ust)?|sep(t(ember)?)?|oct(ober)?|nov(ember)?|dec(ember)?|mon(day)?|tue(s(day)?)?|wed(nesday)?|thu(r(s(day)?)?)?|fri(day)?|sat(urday)?|sun(day)?|am|pm|at|from|to|until|noon)\b`)
)

// Config holds resolver settings
type Config struct {
	Denylist       []string // extra title denylist entries, added to DefaultDenylist
	Gazetteer      []string // known venue names for "at <Place>" detection
	MaxDescription int
	Weights        quality.Weights
}

// Resolver turns raw candidates into extracted events
type Resolver struct {
	cfg      Config
	dates    *dates.Engine
	denylist map[string]bool
	venues   []*regexp.Regexp
}

// New makes a Resolver using the date engine for the date field
func New(cfg Config, engine *dates.Engine) *Resolver {
	if cfg.MaxDescription <= 0 {
		cfg.MaxDescription = 1000
	}
	if cfg.Weights == (quality.Weights{}) {
		cfg.Weights = quality.DefaultWeights()
	}
	r := &Resolver{cfg: cfg, dates: engine, denylist: map[string]bool{}}
	for _, d := range append(append([]string{}, DefaultDenylist...), cfg.Denylist...) {
		r.denylist[quality.NormalizeTitle(d)] = true
	}
	for _, v := range cfg.Gazetteer {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		r.denylist[quality.NormalizeTitle(v)] = true // bare venue names are not titles
		r.venues = append(r.venues, regexp.MustCompile(`(?i)(?:\bat|@)\s+(?:the\s+)?(`+regexp.QuoteMeta(v)+`)\b`))
	}
	return r
}

// Resolve extracts an event from the candidate. Profile may be nil.
// Errors wrap domain.ErrFieldResolution, domain.ErrDateUnresolvable or domain.ErrStaleEvent.
func (r *Resolver) Resolve(c domain.RawCandidate, p strategy.Profile) (domain.ExtractedEvent, error) {
	b := &Block{Candidate: c}
	b.Base, _ = url.Parse(c.SourceURL)
	if c.Markup != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(wrapMarkup(c.Markup)))
		if err != nil {
			return domain.ExtractedEvent{}, fmt.Errorf("parse block: %w", domain.ErrFieldResolution)
		}
		b.Sel = doc.Selection
	}
	var sel strategy.Selectors
	if p != nil {
		sel = p.Selectors()
	}

	title := first(b, r.titleChain(sel), r.saneTitle)
	if title == "" {
		return domain.ExtractedEvent{}, fmt.Errorf("no usable title in %q: %w", truncate(c.Text, 60), domain.ErrFieldResolution)
	}

	description := first(b, r.descriptionChain(sel, title), func(v string) bool {
		return !strings.EqualFold(v, title) && len(v) >= 10
	})
	description = strings.TrimSpace(strings.TrimPrefix(description, title))
	description = truncate(description, r.cfg.MaxDescription)

	in := dates.Input{
		Explicit:    append(allTexts(b, sel.Date...), allTexts(b, "time[datetime]", `[itemprop="startDate"]`, `[class*="date"]`, `[class*="when"]`, `[class*="time"]`)...),
		ExplicitEnd: allTexts(b, append(append([]string{}, sel.EndDate...), `[itemprop="endDate"]`, `[class*="end-date"]`, `[class*="enddate"]`)...),
		Text:        c.Text,
		Title:       title,
		Description: description,
	}
	if c.Structured != nil {
		in.Structured, in.StructuredEnd = c.Structured.StartDate, c.Structured.EndDate
	}
	if b.Sel != nil {
		if times := b.Sel.Find("time[datetime]"); times.Length() > 1 && len(in.ExplicitEnd) == 0 {
			in.ExplicitEnd = []string{times.Eq(1).AttrOr("datetime", "")}
		}
	}
	if p != nil {
		in.Mapper = p.MapDate
	}
	resolved, err := r.dates.Resolve(in)
	if err != nil {
		return domain.ExtractedEvent{}, fmt.Errorf("date of %q: %w", title, err)
	}

	location := first(b, r.locationChain(sel), func(v string) bool { return len(v) <= 200 && !strings.EqualFold(v, title) })
	if location == "" {
		location = r.venueFromText(description + " " + c.Text)
	}

	ev := domain.ExtractedEvent{
		SourceID:       c.SourceID,
		Title:          title,
		Start:          resolved.Start,
		End:            resolved.End,
		DateConfidence: resolved.Confidence,
		Location:       location,
		Description:    description,
		Price:          first(b, r.priceChain(sel), func(v string) bool { return len(v) <= 60 }),
		CanonicalURL:   r.canonicalURL(b, sel),
		ListingURL:     c.SourceURL,
		Structured:     c.Structured != nil && (c.Origin == domain.OriginStructured || c.Structured.StartDate != ""),
	}
	ev.Confidence = quality.Score(ev, r.cfg.Weights)
	return ev, nil
}

func (r *Resolver) titleChain(sel strategy.Selectors) []Extraction {
	return []Extraction{
		structured(func(s *domain.StructuredEvent) string { return s.Name }),
		profileText(sel.Title),
		textOf(`[itemprop="name"]`, `[class*="title"]`, `[class*="name"]`, "h1", "h2", "h3", "h4", "h5"),
		textOf("a[href]", "strong", "b"),
		firstLine,
	}
}

func (r *Resolver) descriptionChain(sel strategy.Selectors, title string) []Extraction {
	return []Extraction{
		structured(func(s *domain.StructuredEvent) string { return s.Description }),
		profileText(sel.Description),
		textOf(`[itemprop="description"]`, `[class*="description"]`, `[class*="summary"]`, `[class*="excerpt"]`, `[class*="desc"]`, "p"),
		func(b *Block) (string, bool) {
			// whole block text without the title
			rest := strings.TrimSpace(strings.Replace(b.Candidate.Text, title, "", 1))
			return rest, rest != "" && b.Candidate.Structured == nil
		},
	}
}

func (r *Resolver) locationChain(sel strategy.Selectors) []Extraction {
	return []Extraction{
		structured(func(s *domain.StructuredEvent) string { return s.Location }),
		profileText(sel.Location),
		textOf(`[itemprop="location"] [itemprop="name"]`, `[itemprop="location"]`, `[class*="location"]`, `[class*="venue"]`,
			`[class*="place"]`, "address"),
	}
}

func (r *Resolver) priceChain(sel strategy.Selectors) []Extraction {
	return []Extraction{
		structured(func(s *domain.StructuredEvent) string { return s.Price }),
		profileText(sel.Price),
		textOf(`[itemprop="price"]`, `[class*="price"]`, `[class*="cost"]`, `[class*="fee"]`),
		matchOf(rePrice, 1),
	}
}

// canonicalURL prefers structured and title links, falls back to source page url
func (r *Resolver) canonicalURL(b *Block, sel strategy.Selectors) string {
	chain := []Extraction{
		structured(func(s *domain.StructuredEvent) string { return s.URL }),
	}
	for _, s := range sel.URL {
		chain = append(chain, attrOf(s, "href"))
	}
	chain = append(chain,
		attrOf(`[itemprop="url"]`, "href"),
		attrOf(`[class*="title"] a[href], h1 a[href], h2 a[href], h3 a[href], h4 a[href]`, "href"),
		attrOf(`a[href]`, "href"),
	)
	for _, ex := range chain {
		v, ok := ex(b)
		if !ok {
			continue
		}
		if u := resolveURL(b.Base, v); u != "" {
			return u
		}
	}
	return b.Candidate.SourceURL
}

// venueFromText finds "at <Place>" or "@ <Place>" for a known venue
func (r *Resolver) venueFromText(text string) string {
	for _, re := range r.venues {
		if m := re.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	return ""
}

// saneTitle rejects boilerplate, dates and overly long text
func (r *Resolver) saneTitle(v string) bool {
	if len([]rune(v)) < 3 || len([]rune(v)) > 200 {
		return false
	}
	norm := quality.NormalizeTitle(v)
	if r.denylist[norm] {
		return false
	}
	for _, p := range disclaimerPrefixes {
		if strings.HasPrefix(norm, p) || strings.HasPrefix(strings.ToLower(v), p) {
			return false
		}
	}
	return !dateOnly(v)
}

// dateOnly reports whether text has no letters besides date words
func dateOnly(v string) bool {
	rest := reDateWords.ReplaceAllString(v, "")
	letters := 0
	for _, ch := range rest {
		if unicode.IsLetter(ch) {
			letters++
		}
	}
	return letters < 3
}

// firstLine takes the leading text of the block up to the first date fragment or separator
func firstLine(b *Block) (string, bool) {
	text := b.Candidate.Text
	if loc := reDateStart.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	for _, sep := range []string{" - ", " | ", ". ", ": "} {
		if i := strings.Index(text, sep); i > 0 {
			text = text[:i]
			break
		}
	}
	text = strings.TrimSpace(truncate(text, 120))
	return text, text != ""
}

// wrapMarkup puts table parts back into a table, the html parser drops stray rows and cells
func wrapMarkup(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	switch {
	case strings.HasPrefix(lower, "<tr"), strings.HasPrefix(lower, "<tbody"), strings.HasPrefix(lower, "<thead"):
		return "<table>" + m + "</table>"
	case strings.HasPrefix(lower, "<td"), strings.HasPrefix(lower, "<th"):
		return "<table><tr>" + m + "</tr></table>"
	}
	return m
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
