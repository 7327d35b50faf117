package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// error taxonomy of the crawl pipeline
var (
	ErrStrategyMismatch = errors.New("strategy yielded no candidates")
	ErrFieldResolution  = errors.New("required field not resolved")
	ErrDateUnresolvable = errors.New("date unresolvable")
	ErrStaleEvent       = errors.New("event is in the past")
	ErrQualityRejected  = errors.New("quality below floor")
	ErrStorageConflict  = errors.New("concurrent write to the same fingerprint")
	ErrCrawlInProgress  = errors.New("crawl already in progress")
	ErrNotFound         = errors.New("not found")
	ErrSourceInactive   = errors.New("source is inactive")
)

// FetchError describes a failed retrieval, StatusCode is zero for network errors
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns underlying error
func (e *FetchError) Unwrap() error { return e.Err }

// Temporary reports whether the failure is transient: network errors, timeouts, 5xx and 429
func (e *FetchError) Temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
