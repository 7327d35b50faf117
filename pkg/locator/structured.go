package locator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/umputun/eventscope/pkg/domain"
)

// jsonLDEvents collects schema.org Event objects from json-ld scripts, including @graph
// containers and arrays
func jsonLDEvents(doc *goquery.Document) []domain.StructuredEvent {
	var res []domain.StructuredEvent
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return
		}
		walkJSONLD(v, func(obj map[string]any) {
			if ev, ok := structuredFromSchema(obj); ok {
				res = append(res, ev)
			}
		})
	})
	return res
}

func walkJSONLD(v any, fn func(map[string]any)) {
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			walkJSONLD(item, fn)
		}
	case map[string]any:
		if isEventType(val["@type"]) {
			fn(val)
			return
		}
		if graph, ok := val["@graph"]; ok {
			walkJSONLD(graph, fn)
		}
		if items, ok := val["itemListElement"]; ok {
			walkJSONLD(items, fn)
		}
		if item, ok := val["item"]; ok {
			walkJSONLD(item, fn)
		}
	}
}

// isEventType matches "Event" and its subtypes like "MusicEvent", as string or array
func isEventType(t any) bool {
	switch val := t.(type) {
	case string:
		return strings.HasSuffix(val, "Event")
	case []any:
		for _, item := range val {
			if isEventType(item) {
				return true
			}
		}
	}
	return false
}

func structuredFromSchema(obj map[string]any) (domain.StructuredEvent, bool) {
	ev := domain.StructuredEvent{
		Name:        str(obj["name"]),
		StartDate:   str(obj["startDate"]),
		EndDate:     str(obj["endDate"]),
		Location:    place(obj["location"]),
		Description: str(obj["description"]),
		URL:         str(obj["url"]),
		Price:       offer(obj["offers"]),
	}
	if ev.Name == "" || ev.StartDate == "" {
		return ev, false
	}
	return ev, true
}

// microdataEvents reads itemscope elements typed as schema.org events
func microdataEvents(doc *goquery.Document) []domain.StructuredEvent {
	var res []domain.StructuredEvent
	doc.Find(`[itemscope][itemtype*="schema.org"]`).Each(func(_ int, s *goquery.Selection) {
		if !strings.HasSuffix(strings.TrimRight(s.AttrOr("itemtype", ""), "/ "), "Event") {
			return
		}
		prop := func(name string) string {
			p := s.Find(`[itemprop="` + name + `"]`).First()
			if p.Length() == 0 {
				return ""
			}
			for _, attr := range []string{"content", "datetime", "href"} {
				if v, ok := p.Attr(attr); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v)
				}
			}
			return NodeText(p)
		}
		ev := domain.StructuredEvent{
			Name:        prop("name"),
			StartDate:   prop("startDate"),
			EndDate:     prop("endDate"),
			Description: prop("description"),
			URL:         prop("url"),
			Price:       prop("price"),
		}
		if loc := s.Find(`[itemprop="location"]`).First(); loc.Length() > 0 {
			if name := loc.Find(`[itemprop="name"]`).First(); name.Length() > 0 {
				ev.Location = NodeText(name)
			} else {
				ev.Location = NodeText(loc)
			}
		}
		if ev.Name != "" && ev.StartDate != "" {
			res = append(res, ev)
		}
	})
	return res
}

// FromJSON maps the largest array of objects found in a json document to structured candidates.
// Keys are matched loosely, as api payloads of event plugins differ in naming.
func FromJSON(sourceID int64, pageURL string, body []byte) ([]domain.RawCandidate, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	items := largestObjectArray(v)
	res := make([]domain.RawCandidate, 0, len(items))
	for _, obj := range items {
		ev := domain.StructuredEvent{
			Name:        firstStr(obj, "title", "name", "event_name", "eventName", "summary"),
			StartDate:   firstStr(obj, "startDate", "start_date", "start", "start_time", "startTime", "date", "datetime", "event_date"),
			EndDate:     firstStr(obj, "endDate", "end_date", "end", "end_time", "endTime"),
			Location:    firstPlace(obj, "location", "venue", "place", "address"),
			Description: firstStr(obj, "description", "excerpt", "summary_text", "body", "content"),
			URL:         firstStr(obj, "url", "link", "permalink", "website"),
			Price:       firstStr(obj, "price", "cost", "ticket_price"),
		}
		if ev.Price == "" {
			ev.Price = offer(obj["offers"])
		}
		if ev.Name == "" {
			continue
		}
		res = append(res, domain.RawCandidate{
			SourceID:   sourceID,
			SourceURL:  pageURL,
			Text:       strings.Join(strings.Fields(ev.Name+" "+ev.StartDate+" "+ev.Location+" "+ev.Description), " "),
			Origin:     domain.OriginStructured,
			Structured: &ev,
		})
	}
	return res, nil
}

// largestObjectArray returns the longest array whose elements are all objects, searched recursively
func largestObjectArray(v any) []map[string]any {
	var best []map[string]any
	var walk func(v any)
	walk = func(v any) {
		switch val := v.(type) {
		case []any:
			objs := make([]map[string]any, 0, len(val))
			for _, item := range val {
				if obj, ok := item.(map[string]any); ok {
					objs = append(objs, obj)
				}
			}
			if len(objs) == len(val) && len(objs) > len(best) {
				best = objs
			}
			for _, item := range val {
				walk(item)
			}
		case map[string]any:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(v)
	return best
}

func firstStr(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstPlace(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := place(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

// str renders scalars and "rendered" wrappers (as used by wordpress) to text
func str(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	case map[string]any:
		if r, ok := val["rendered"]; ok {
			return str(r)
		}
	case []any:
		if len(val) > 0 {
			return str(val[0])
		}
	}
	return ""
}

// place renders a location given as text, a Place object or a venue object
func place(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case []any:
		if len(val) > 0 {
			return place(val[0])
		}
	case map[string]any:
		name := firstStr(val, "name", "venue", "title")
		addr := ""
		switch a := val["address"].(type) {
		case string:
			addr = strings.TrimSpace(a)
		case map[string]any:
			parts := []string{}
			for _, k := range []string{"streetAddress", "addressLocality"} {
				if s := str(a[k]); s != "" {
					parts = append(parts, s)
				}
			}
			addr = strings.Join(parts, ", ")
		}
		if addr == "" {
			addr = firstStr(val, "city", "addressLocality")
		}
		switch {
		case name != "" && addr != "" && !strings.Contains(addr, name):
			return name + ", " + addr
		case name != "":
			return name
		default:
			return addr
		}
	}
	return ""
}

// offer renders schema.org offers (object or array) to a price text
func offer(v any) string {
	switch val := v.(type) {
	case []any:
		if len(val) > 0 {
			return offer(val[0])
		}
	case map[string]any:
		price := str(val["price"])
		if price == "" {
			price = str(val["lowPrice"])
		}
		if price == "" {
			return ""
		}
		if cur := str(val["priceCurrency"]); cur != "" {
			return price + " " + cur
		}
		return price
	}
	return ""
}
