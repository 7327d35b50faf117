package resolver

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/locator"
)

// Block is a candidate prepared for field extraction
type Block struct {
	Candidate domain.RawCandidate
	Sel       *goquery.Selection // parsed candidate markup, empty for structured and feed candidates
	Base      *url.URL
}

// Extraction reads one field from a block, reporting whether it found a value
type Extraction func(b *Block) (string, bool)

var strict = bluemonday.StrictPolicy()

// Clean decodes character entities, strips tags and collapses whitespace
func Clean(s string) string {
	s = strict.Sanitize(html.UnescapeString(s))
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// first runs extractions in order and returns the first value accepted by check
func first(b *Block, chain []Extraction, check func(string) bool) string {
	for _, ex := range chain {
		v, ok := ex(b)
		if !ok {
			continue
		}
		v = Clean(v)
		if v != "" && (check == nil || check(v)) {
			return v
		}
	}
	return ""
}

// structured returns an extraction reading a field of structured data
func structured(field func(*domain.StructuredEvent) string) Extraction {
	return func(b *Block) (string, bool) {
		if b.Candidate.Structured == nil {
			return "", false
		}
		v := field(b.Candidate.Structured)
		return v, v != ""
	}
}

// textOf returns an extraction reading text of the first element matching any selector
func textOf(selectors ...string) Extraction {
	return func(b *Block) (string, bool) {
		for _, sel := range selectors {
			if v := selText(b, sel); v != "" {
				return v, true
			}
		}
		return "", false
	}
}

// attrOf returns an extraction reading an attribute of the first element matching selector
func attrOf(sel, attr string) Extraction {
	return func(b *Block) (string, bool) {
		if b.Sel == nil || sel == "" {
			return "", false
		}
		v, ok := b.Sel.Find(sel).First().Attr(attr)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

// matchOf returns an extraction applying a regexp to the block text
func matchOf(re *regexp.Regexp, group int) Extraction {
	return func(b *Block) (string, bool) {
		m := re.FindStringSubmatch(b.Candidate.Text)
		if m == nil || len(m) <= group {
			return "", false
		}
		return m[group], true
	}
}

func selText(b *Block, sel string) string {
	if b.Sel == nil || sel == "" {
		return ""
	}
	s := b.Sel.Find(sel).First()
	if s.Length() == 0 {
		return ""
	}
	if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return locator.NodeText(s)
}

// profileText turns profile selectors into an extraction, none if no selectors configured
func profileText(selectors []string) Extraction {
	return func(b *Block) (string, bool) {
		for _, sel := range selectors {
			if v := selText(b, sel); v != "" {
				return v, true
			}
		}
		return "", false
	}
}

// allTexts collects texts and date attributes of all elements matching selectors, used for
// explicit date candidates
func allTexts(b *Block, selectors ...string) []string {
	if b.Sel == nil {
		return nil
	}
	var res []string
	seen := map[string]bool{}
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			res = append(res, v)
		}
	}
	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		b.Sel.Find(sel).Each(func(_ int, s *goquery.Selection) {
			for _, attr := range []string{"datetime", "content"} {
				if v, ok := s.Attr(attr); ok {
					add(v)
				}
			}
			add(locator.NodeText(s))
		})
	}
	return res
}

// resolveURL makes href absolute against base, rejecting non-http targets
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, p := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, p) {
			return ""
		}
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
