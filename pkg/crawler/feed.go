package crawler

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/resolver"
)

// feedCandidates turns rss/atom items into candidates. The publication date of an item is never
// taken as event date, only the "ev" (rss event module) extension gives structured dates.
func feedCandidates(src *domain.Source, body []byte) ([]domain.RawCandidate, error) {
	parser := gofeed.NewParser()
	feed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if len(feed.Items) == 0 && feed.Title == "" {
		return nil, errors.New("parse feed: no items")
	}

	res := make([]domain.RawCandidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil || item.Title == "" {
			continue
		}
		content := item.Content
		if content == "" {
			content = item.Description
		}
		se := &domain.StructuredEvent{
			Name:        resolver.Clean(item.Title),
			Description: resolver.Clean(content),
			URL:         item.Link,
			StartDate:   evExtension(item.Extensions, "startdate"),
			EndDate:     evExtension(item.Extensions, "enddate"),
			Location:    evExtension(item.Extensions, "location"),
		}
		res = append(res, domain.RawCandidate{
			SourceID:   src.ID,
			SourceURL:  src.URL,
			Markup:     "<div>" + content + "</div>",
			Text:       resolver.Clean(item.Title + " " + content),
			Origin:     domain.OriginFeed,
			Structured: se,
		})
	}
	return res, nil
}

// evExtension reads a field of the rss event module, empty if absent
func evExtension(exts ext.Extensions, field string) string {
	if exts == nil {
		return ""
	}
	fields, ok := exts["ev"]
	if !ok {
		return ""
	}
	vals := fields[field]
	if len(vals) == 0 {
		return ""
	}
	return resolver.Clean(vals[0].Value)
}
