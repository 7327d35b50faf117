// Package strategy picks the retrieval strategy for a source. Known sites are matched against a
// registry of profiles, everything else is scored against indicator sets found in a sample document.
package strategy

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"github.com/umputun/eventscope/pkg/domain"
)

// tieOrder resolves equal scores
var tieOrder = []domain.StrategyKind{
	domain.StrategyPaginated,
	domain.StrategyInfiniteScroll,
	domain.StrategyAPIDiscovery,
	domain.StrategyDynamicRender,
}

// Detector selects a strategy for a url and its sample document
type Detector struct {
	registry *Registry
}

// NewDetector makes a Detector with the given profile registry, nil registry allowed
func NewDetector(registry *Registry) *Detector {
	return &Detector{registry: registry}
}

// Detect returns the profile strategy when url matches a registered profile, otherwise the highest
// scoring heuristic strategy, or static when nothing scores. Detection is advisory.
func (d *Detector) Detect(rawURL string, body []byte) domain.Strategy {
	if p, ok := d.registry.Lookup(rawURL); ok {
		return domain.Strategy{Kind: domain.StrategySourceSpecific, ProfileID: p.ID()}
	}

	scores := Score(rawURL, body)
	best, bestScore := domain.StrategyStatic, 0
	for _, k := range tieOrder {
		if scores[k] > bestScore {
			best, bestScore = k, scores[k]
		}
	}
	lgr.Printf("[DEBUG] strategy scores for %s: %v, picked %s", rawURL, scores, best)
	return domain.Strategy{Kind: best}
}

// Score evaluates indicator sets for each non-static strategy
func Score(rawURL string, body []byte) map[domain.StrategyKind]int {
	scores := map[domain.StrategyKind]int{}
	if len(bytes.TrimSpace(body)) == 0 {
		return scores
	}
	base, _ := url.Parse(rawURL)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scores
	}

	scores[domain.StrategyPaginated] = paginationScore(doc)
	scores[domain.StrategyInfiniteScroll] = loadMoreScore(doc, base)
	scores[domain.StrategyAPIDiscovery] = min(len(ScriptEndpoints(doc, base))*2, 6)
	scores[domain.StrategyDynamicRender] = dynamicScore(doc, string(body))
	return scores
}

func paginationScore(doc *goquery.Document) int {
	score := 0
	if doc.Find(`link[rel~="next"], a[rel~="next"]`).Length() > 0 {
		score += 3
	}
	if doc.Find(`.pagination, .pager, .page-numbers, nav[aria-label*="agination"]`).Length() > 0 {
		score += 2
	}
	pages := 0
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if pageHref.MatchString(s.AttrOr("href", "")) {
			pages++
		}
	})
	return score + min(pages, 3)
}

func loadMoreScore(doc *goquery.Document, base *url.URL) int {
	score := 0
	if LoadMoreURL(doc, base) != "" {
		score += 3
	}
	doc.Find("button, a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if loadMoreText.MatchString(s.Text()) || loadMoreClass.MatchString(s.AttrOr("class", "")) {
			score += 2
			return false
		}
		return true
	})
	if doc.Find(`[class*="infinite"], [data-infinite-scroll]`).Length() > 0 {
		score++
	}
	return score
}

func dynamicScore(doc *goquery.Document, body string) int {
	score := 0
	if scriptDensityHigh(body) {
		score += 3
	}
	lower := strings.ToLower(body)
	for _, m := range spaMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			score += 2
			break
		}
	}
	if score == 0 {
		return 0
	}
	// near-empty visible text backs up the other signals, never counts alone
	visible := doc.Find("body").Clone()
	visible.Find("script, style, noscript").Remove()
	if len(strings.Join(strings.Fields(visible.Text()), " ")) < 200 {
		score += 2
	}
	return score
}
