package strategy

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	loadMoreAttrs = []string{"data-next-url", "data-next", "data-url", "data-href", "data-load-more"}
	loadMoreText  = regexp.MustCompile(`(?i)\b(load|show|view|see)\s+more\b`)
	loadMoreClass = regexp.MustCompile(`(?i)(load-?more|show-?more|infinite-?scroll)`)
	pageHref      = regexp.MustCompile(`(?i)([?&](page|paged|p)=\d+|/page/\d+)`)
	scriptAPIRef  = regexp.MustCompile(`(?i)["'` + "`" + `]((?:https?://[^"'` + "`" + `\s]+|/[^"'` + "`" + `\s]*)(?:/api/|/wp-json/|\.json|format=json)[^"'` + "`" + `\s]*)["'` + "`" + `]`)
)

var spaMarkers = []string{`id="__next"`, `__next_data__`, `id="root"`, `id="app"`, `data-reactroot`, `ng-app`, `data-v-app`}

// NextPageURL returns absolute url of a rel=next link, if any
func NextPageURL(doc *goquery.Document, base *url.URL) string {
	href, ok := doc.Find(`link[rel~="next"], a[rel~="next"]`).First().Attr("href")
	if !ok {
		return ""
	}
	return absURL(base, href)
}

// LoadMoreURL returns absolute target url of a "load more" control, from a data attribute
// or a hyperlink whose class or text says so
func LoadMoreURL(doc *goquery.Document, base *url.URL) string {
	for _, attr := range loadMoreAttrs {
		var found string
		doc.Find("[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v := strings.TrimSpace(s.AttrOr(attr, ""))
			if v == "" || v == "true" || v == "false" || strings.HasPrefix(v, "#") {
				return true
			}
			found = absURL(base, v)
			return found == ""
		})
		if found != "" {
			return found
		}
	}

	var found string
	doc.Find("a[href], button[data-href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !loadMoreText.MatchString(s.Text()) && !loadMoreClass.MatchString(s.AttrOr("class", "")) {
			return true
		}
		href := s.AttrOr("href", s.AttrOr("data-href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return true
		}
		found = absURL(base, href)
		return found == ""
	})
	return found
}

// ScriptEndpoints returns distinct api/json endpoints referenced by inline scripts
// and json alternate links, resolved against base
func ScriptEndpoints(doc *goquery.Document, base *url.URL) []string {
	seen := map[string]bool{}
	var res []string
	add := func(ref string) {
		abs := absURL(base, ref)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		res = append(res, abs)
	}

	doc.Find(`link[rel="alternate"][type*="json"]`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr("src"); ok {
			return
		}
		if strings.Contains(s.AttrOr("type", ""), "ld+json") {
			return
		}
		for _, m := range scriptAPIRef.FindAllStringSubmatch(s.Text(), -1) {
			add(m[1])
		}
	})
	return res
}

// scriptDensityHigh reports whether scripts take at least a quarter of the markup
func scriptDensityHigh(body string) bool {
	lower := strings.ToLower(body)
	total := len(lower)
	if total == 0 {
		return false
	}
	coverage, pos := 0, 0
	for {
		rel := strings.Index(lower[pos:], "<script")
		if rel == -1 {
			break
		}
		start := pos + rel
		end := strings.Index(lower[start:], "</script>")
		if end == -1 {
			coverage += total - start
			break
		}
		next := start + end + len("</script>")
		coverage += next - start
		pos = next
	}
	return coverage*100/total >= 25
}

func absURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
