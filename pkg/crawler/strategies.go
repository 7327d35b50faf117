package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/fetcher"
	"github.com/umputun/eventscope/pkg/locator"
	"github.com/umputun/eventscope/pkg/strategy"
)

var rePagePath = regexp.MustCompile(`/page/\d+/?$`)

// apiPaths are conventional endpoint shapes probed by api discovery
var apiPaths = []string{"/api", "?format=json", "?all=true", ".json", "/wp-json/tribe/events/v1/events"}

// collect retrieves the source with the chosen strategy and returns candidate blocks.
// The error is returned only when the first document could not be retrieved.
func (c *Crawler) collect(ctx context.Context, src *domain.Source, stats *domain.RunStats) ([]domain.RawCandidate, strategy.Profile, error) {
	accept := fetcher.AcceptHTML
	if src.Kind == domain.SourceFeed {
		accept = fetcher.AcceptFeed
	}
	first, err := c.Fetcher.Fetch(ctx, src.URL, fetcher.Options{Accept: accept})
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s: %w", src.URL, err)
	}
	stats.Pages = 1

	if src.Kind == domain.SourceFeed {
		cands, ferr := feedCandidates(src, first.Body)
		if ferr == nil {
			stats.Strategy = "feed"
			return cands, nil, nil
		}
		stats.Warn(fmt.Sprintf("not a parseable feed, processed as page: %v", ferr))
		lgr.Printf("[WARN] %s is not a parseable feed, processing as page: %v", src.Identifier(), ferr)
		stats.Strategy = string(domain.StrategyStatic)
		return c.locate(src, first, nil), nil, nil
	}

	strat, profile := c.chooseStrategy(src, first)
	stats.Strategy = strat.String()
	kind := strat.Kind
	if profile != nil {
		kind = profile.Retrieval()
	}
	lgr.Printf("[DEBUG] %s: strategy %s, retrieval %s", src.Identifier(), strat, kind)

	var cands []domain.RawCandidate
	switch kind {
	case domain.StrategyPaginated:
		cands = c.paginate(ctx, src, first, profile, stats)
	case domain.StrategyInfiniteScroll:
		cands = c.scroll(ctx, src, first, profile, stats)
	case domain.StrategyAPIDiscovery:
		cands = c.discoverAPI(ctx, src, first, stats)
	case domain.StrategyDynamicRender:
		// no script execution, try the data api behind the page, the static markup comes next
		cands = c.discoverAPI(ctx, src, first, stats)
	default:
		kind = domain.StrategyStatic
		cands = c.locate(src, first, profile)
	}

	if len(cands) == 0 && kind != domain.StrategyStatic {
		msg := fmt.Sprintf("%v: %s, falling back to %s", domain.ErrStrategyMismatch, kind, domain.StrategyStatic)
		stats.Warn(msg)
		lgr.Printf("[WARN] %s: %s", src.Identifier(), msg)
		cands = c.locate(src, first, profile)
	}
	return cands, profile, nil
}

// chooseStrategy picks a registry profile, the configured hint or the detected strategy, in this order
func (c *Crawler) chooseStrategy(src *domain.Source, first *fetcher.Document) (domain.Strategy, strategy.Profile) {
	if p, ok := c.Registry.Lookup(src.URL); ok {
		return domain.Strategy{Kind: domain.StrategySourceSpecific, ProfileID: p.ID()}, p
	}
	if src.StrategyHint.Valid() && src.StrategyHint != domain.StrategySourceSpecific {
		return domain.Strategy{Kind: src.StrategyHint}, nil
	}
	if first.IsJSON() {
		return domain.Strategy{Kind: domain.StrategyAPIDiscovery}, nil
	}
	return c.detector.Detect(src.URL, first.Body), nil
}

// locate runs the content locator over a fetched document, json bodies go through the api mapping
func (c *Crawler) locate(src *domain.Source, doc *fetcher.Document, profile strategy.Profile) []domain.RawCandidate {
	if doc.IsJSON() {
		cands, err := locator.FromJSON(src.ID, src.URL, doc.Body)
		if err != nil {
			lgr.Printf("[DEBUG] %s: %v", doc.URL, err)
		}
		return cands
	}
	page := locator.Page{SourceID: src.ID, URL: pageURL(doc)}
	if profile != nil {
		page.BlockSelector = profile.BlockSelector()
	}
	cands, err := c.Locator.Locate(page, doc.Body)
	if err != nil {
		lgr.Printf("[WARN] locate on %s: %v", doc.URL, err)
		return nil
	}
	return cands
}

// paginate follows rel=next links or url templates until a page adds no new blocks
func (c *Crawler) paginate(ctx context.Context, src *domain.Source, first *fetcher.Document,
	profile strategy.Profile, stats *domain.RunStats) []domain.RawCandidate {
	seen := newCandidateSet()
	all := seen.addNew(c.locate(src, first, profile))
	visited := map[string]bool{first.URL: true, pageURL(first): true}
	prev := first
	locked := -1    // index of the template that worked
	linked := false // pages were reached by rel=next links

	for n := 2; n <= c.cfg.MaxPages; n++ {
		if ctx.Err() != nil {
			break
		}
		var urls []string
		templated := false
		next := nextLink(prev)
		switch {
		case next != "" && !visited[next]:
			urls, linked = []string{next}, true
		case linked:
			lgr.Printf("[DEBUG] no next link on page %d of %s, stop paging", n-1, src.Identifier())
			return all
		default:
			templated = true
			urls = pageTemplates(src.URL, n, c.cfg.PageSize)
			if locked >= 0 {
				urls = []string{urls[locked]}
			}
		}

		found := false
		for i, u := range urls {
			if visited[u] {
				continue
			}
			visited[u] = true
			doc, err := c.Fetcher.Fetch(ctx, u, fetcher.Options{Referer: prev.URL})
			if err != nil {
				lgr.Printf("[DEBUG] page %d of %s: %v", n, src.Identifier(), err)
				continue
			}
			stats.Pages++
			fresh := seen.addNew(c.locate(src, doc, profile))
			if len(fresh) == 0 {
				continue
			}
			if templated && locked < 0 {
				locked = i
			}
			all = append(all, fresh...)
			prev, found = doc, true
			break
		}
		if !found {
			lgr.Printf("[DEBUG] page %d of %s has no new blocks, stop paging", n, src.Identifier())
			break
		}
	}
	return all
}

// scroll follows "load more" targets up to the hop limit
func (c *Crawler) scroll(ctx context.Context, src *domain.Source, first *fetcher.Document,
	profile strategy.Profile, stats *domain.RunStats) []domain.RawCandidate {
	seen := newCandidateSet()
	all := seen.addNew(c.locate(src, first, profile))
	visited := map[string]bool{first.URL: true, pageURL(first): true}
	prev := first

	for hop := 1; hop <= c.cfg.MaxHops; hop++ {
		if ctx.Err() != nil {
			break
		}
		next := loadMoreLink(prev)
		if next == "" || visited[next] {
			break
		}
		visited[next] = true
		doc, err := c.Fetcher.Fetch(ctx, next, fetcher.Options{Referer: prev.URL})
		if err != nil {
			lgr.Printf("[DEBUG] load more hop %d of %s: %v", hop, src.Identifier(), err)
			break
		}
		stats.Pages++
		fresh := seen.addNew(c.locate(src, doc, profile))
		if len(fresh) == 0 {
			break
		}
		all = append(all, fresh...)
		prev = doc
	}
	return all
}

// discoverAPI probes endpoint variants and script references, the variant with most entries wins
func (c *Crawler) discoverAPI(ctx context.Context, src *domain.Source, first *fetcher.Document,
	stats *domain.RunStats) []domain.RawCandidate {
	if first.IsJSON() {
		if cands, err := locator.FromJSON(src.ID, src.URL, first.Body); err == nil && len(cands) > 0 {
			return cands
		}
	}

	variants := apiVariants(src.URL)
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(first.Body)); err == nil {
		base, _ := url.Parse(pageURL(first))
		variants = append(variants, strategy.ScriptEndpoints(doc, base)...)
	}

	var best []domain.RawCandidate
	bestURL := ""
	tried := map[string]bool{}
	for _, u := range variants {
		if tried[u] || ctx.Err() != nil {
			continue
		}
		tried[u] = true
		doc, err := c.Fetcher.Fetch(ctx, u, fetcher.Options{Accept: fetcher.AcceptJSON, Referer: src.URL})
		if err != nil {
			lgr.Printf("[DEBUG] api probe %s: %v", u, err)
			continue
		}
		stats.Pages++
		if !doc.IsJSON() {
			continue
		}
		cands, err := locator.FromJSON(src.ID, src.URL, doc.Body)
		if err != nil {
			continue
		}
		if len(cands) > len(best) {
			best, bestURL = cands, u
		}
	}
	if bestURL != "" {
		lgr.Printf("[DEBUG] %s: api endpoint %s with %d entries", src.Identifier(), bestURL, len(best))
	}
	return best
}

// apiVariants builds conventional api urls for a page url
func apiVariants(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}
	res := make([]string, 0, len(apiPaths))
	for _, p := range apiPaths {
		v := *u
		v.Fragment = ""
		switch {
		case strings.HasPrefix(p, "?"):
			q := v.Query()
			kv := strings.SplitN(strings.TrimPrefix(p, "?"), "=", 2)
			q.Set(kv[0], kv[1])
			v.RawQuery = q.Encode()
		case strings.HasPrefix(p, "/wp-json"):
			v.Path, v.RawQuery = p, ""
		case p == ".json":
			trimmed := strings.TrimSuffix(v.Path, "/")
			if trimmed == "" {
				continue
			}
			v.Path, v.RawQuery = trimmed+p, ""
		default:
			v.Path = strings.TrimSuffix(v.Path, "/") + p
		}
		res = append(res, v.String())
	}
	return res
}

// pageTemplates returns urls of page n: page query, page path segment and offset query
func pageTemplates(rawURL string, n, pageSize int) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	byQuery := *u
	q := byQuery.Query()
	q.Set("page", strconv.Itoa(n))
	byQuery.RawQuery = q.Encode()

	byPath := *u
	byPath.Path = strings.TrimSuffix(rePagePath.ReplaceAllString(byPath.Path, ""), "/") + "/page/" + strconv.Itoa(n) + "/"

	byOffset := *u
	q = byOffset.Query()
	q.Set("offset", strconv.Itoa((n-1)*pageSize))
	byOffset.RawQuery = q.Encode()

	return []string{byQuery.String(), byPath.String(), byOffset.String()}
}

func nextLink(doc *fetcher.Document) string {
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return ""
	}
	base, _ := url.Parse(pageURL(doc))
	return strategy.NextPageURL(d, base)
}

func loadMoreLink(doc *fetcher.Document) string {
	if doc.IsJSON() {
		return ""
	}
	d, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return ""
	}
	base, _ := url.Parse(pageURL(doc))
	return strategy.LoadMoreURL(d, base)
}

func pageURL(doc *fetcher.Document) string {
	if doc.FinalURL != "" {
		return doc.FinalURL
	}
	return doc.URL
}

// candidateSet tracks blocks already seen on previous pages
type candidateSet map[string]bool

func newCandidateSet() candidateSet { return candidateSet{} }

// addNew returns candidates not seen before and remembers them
func (s candidateSet) addNew(cands []domain.RawCandidate) []domain.RawCandidate {
	var res []domain.RawCandidate
	for _, c := range cands {
		key := c.Text
		if c.Structured != nil {
			key = c.Structured.Name + "|" + c.Structured.StartDate + "|" + c.Structured.URL
		}
		if s[key] {
			continue
		}
		s[key] = true
		res = append(res, c)
	}
	return res
}
