// Package content extracts the main text of event detail pages. It is used to fill descriptions
// of events whose listing block carries none.
package content

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"

	"github.com/umputun/eventscope/pkg/fetcher"
)

// Fetcher retrieves documents
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, opts fetcher.Options) (*fetcher.Document, error)
}

// DetailExtractor extracts main text of detail pages using trafilatura
type DetailExtractor struct {
	fetcher Fetcher
	timeout time.Duration
}

// NewDetailExtractor makes an extractor retrieving pages with f, timeout limits a single page fetch
func NewDetailExtractor(f Fetcher, timeout time.Duration) *DetailExtractor {
	return &DetailExtractor{fetcher: f, timeout: timeout}
}

// Extract retrieves the page and returns its main text
func (e *DetailExtractor) Extract(ctx context.Context, rawURL string) (string, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", rawURL)
	}

	doc, err := e.fetcher.Fetch(ctx, rawURL, fetcher.Options{Accept: fetcher.AcceptHTML, Timeout: e.timeout})
	if err != nil {
		return "", fmt.Errorf("fetch detail page: %w", err)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		ExcludeTables:   false,
		IncludeImages:   false,
		IncludeLinks:    false,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}
	result, err := trafilatura.Extract(bytes.NewReader(doc.Body), opts)
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", rawURL, err)
	}
	if result == nil {
		return "", fmt.Errorf("no content extracted from %s", rawURL)
	}

	text := strings.TrimSpace(result.ContentText)
	if text == "" {
		return "", fmt.Errorf("no text content extracted from %s", rawURL)
	}
	return text, nil
}
