package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/umputun/eventscope/pkg/domain"
	"github.com/umputun/eventscope/pkg/repository"
)

const (
	defaultRunsLimit   = 20
	defaultEventsLimit = 100
	maxLimit           = 1000
)

type sourceView struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Kind         string     `json:"kind"`
	StrategyHint string     `json:"strategy_hint,omitempty"`
	PollInterval string     `json:"poll_interval"`
	Active       bool       `json:"active"`
	InProgress   bool       `json:"in_progress"`
	Health       healthView `json:"health"`
}

type healthView struct {
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastAttemptAt       *time.Time `json:"last_attempt_at,omitempty"`
	LastEventsFound     int        `json:"last_events_found"`
	LastError           string     `json:"last_error,omitempty"`
}

type runView struct {
	RunID      string         `json:"run_id"`
	SourceID   int64          `json:"source_id"`
	Strategy   string         `json:"strategy"`
	Pages      int            `json:"pages"`
	Candidates int            `json:"candidates"`
	Extracted  int            `json:"extracted"`
	Accepted   int            `json:"accepted"`
	Rejected   map[string]int `json:"rejected"`
	Inserted   int            `json:"inserted"`
	Updated    int            `json:"updated"`
	Unchanged  int            `json:"unchanged"`
	Skipped    int            `json:"skipped"`
	Warnings   []string       `json:"warnings,omitempty"`
	Failed     bool           `json:"failed"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

type eventView struct {
	ID             int64      `json:"id"`
	SourceID       int64      `json:"source_id"`
	Fingerprint    string     `json:"fingerprint"`
	Title          string     `json:"title"`
	Start          time.Time  `json:"start"`
	End            *time.Time `json:"end,omitempty"`
	Location       string     `json:"location,omitempty"`
	Description    string     `json:"description,omitempty"`
	Price          string     `json:"price,omitempty"`
	URL            string     `json:"url,omitempty"`
	Confidence     int        `json:"confidence"`
	DateConfidence string     `json:"date_confidence"`
	ApprovalStatus string     `json:"approval_status"`
	ManualOverride bool       `json:"manual_override"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty"`
}

// statusHandler returns server status with event counts per approval status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	counts, err := s.db.CountEvents(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to count events: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	events := make(map[string]int, len(counts))
	for k, v := range counts {
		events[string(k)] = v
	}
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
		"events":  events,
	}
	renderJSON(w, r, http.StatusOK, status)
}

// sourcesHandler lists all configured sources with health
func (s *Server) sourcesHandler(w http.ResponseWriter, r *http.Request) {
	srcs, err := s.db.GetSources(r.Context(), false)
	if err != nil {
		log.Printf("[ERROR] failed to get sources: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	res := make([]sourceView, 0, len(srcs))
	for _, src := range srcs {
		res = append(res, s.toSourceView(src))
	}
	renderJSON(w, r, http.StatusOK, res)
}

// sourceHandler returns a single source with health
func (s *Server) sourceHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	src, err := s.db.GetSource(r.Context(), id)
	if err != nil {
		renderError(w, r, err, errorCode(err))
		return
	}
	renderJSON(w, r, http.StatusOK, s.toSourceView(src))
}

// crawlHandler runs a crawl of the source and returns its stats.
// A failed crawl is still a 200 response with "failed" set in stats.
func (s *Server) crawlHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	stats, err := s.crawler.RunCrawl(r.Context(), id)
	if err != nil && stats == nil {
		log.Printf("[WARN] manual crawl of source %d rejected: %v", id, err)
		renderError(w, r, err, errorCode(err))
		return
	}
	renderJSON(w, r, http.StatusOK, toRunView(stats))
}

// runsHandler returns recent runs of the source, newest first
func (s *Server) runsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, err := queryLimit(r, defaultRunsLimit)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}
	if _, err = s.db.GetSource(r.Context(), id); err != nil {
		renderError(w, r, err, errorCode(err))
		return
	}
	runs, err := s.db.GetRuns(r.Context(), id, limit)
	if err != nil {
		log.Printf("[ERROR] failed to get runs of source %d: %v", id, err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	res := make([]runView, 0, len(runs))
	for _, run := range runs {
		res = append(res, toRunView(run))
	}
	renderJSON(w, r, http.StatusOK, res)
}

// eventsHandler lists stored events, filtered by ?status=, ?source= and ?limit=
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := eventFilter(r, defaultEventsLimit)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}
	events, err := s.db.ListEvents(r.Context(), filter)
	if err != nil {
		log.Printf("[ERROR] failed to list events: %v", err)
		renderError(w, r, err, http.StatusInternalServerError)
		return
	}
	res := make([]eventView, 0, len(events))
	for _, ev := range events {
		res = append(res, toEventView(ev))
	}
	renderJSON(w, r, http.StatusOK, res)
}

func (s *Server) toSourceView(src *domain.Source) sourceView {
	return sourceView{
		ID:           src.ID,
		Name:         src.Name,
		URL:          src.URL,
		Kind:         string(src.Kind),
		StrategyHint: string(src.StrategyHint),
		PollInterval: src.PollInterval.String(),
		Active:       src.Active,
		InProgress:   s.crawler.InProgress(src.ID),
		Health: healthView{
			ConsecutiveFailures: src.Health.ConsecutiveFailures,
			LastSuccessAt:       src.Health.LastSuccessAt,
			LastAttemptAt:       src.Health.LastAttemptAt,
			LastEventsFound:     src.Health.LastEventsFound,
			LastError:           src.Health.LastError,
		},
	}
}

func toRunView(s *domain.RunStats) runView {
	return runView{RunID: s.RunID, SourceID: s.SourceID, Strategy: s.Strategy, Pages: s.Pages, Candidates: s.Candidates,
		Extracted: s.Extracted, Accepted: s.Accepted, Rejected: s.Rejected, Inserted: s.Inserted, Updated: s.Updated,
		Unchanged: s.Unchanged, Skipped: s.Skipped, Warnings: s.Warnings, Failed: s.Failed, Error: s.Error,
		StartedAt: s.StartedAt, FinishedAt: s.FinishedAt}
}

func toEventView(ev *domain.StoredEvent) eventView {
	return eventView{ID: ev.ID, SourceID: ev.SourceID, Fingerprint: ev.Fingerprint, Title: ev.Title, Start: ev.Start,
		End: ev.End, Location: ev.Location, Description: ev.Description, Price: ev.Price, URL: ev.URL,
		Confidence: ev.Confidence, DateConfidence: string(ev.DateConfidence), ApprovalStatus: string(ev.ApprovalStatus),
		ManualOverride: ev.ManualOverride, LastSeenAt: ev.LastSeenAt}
}

// eventFilter makes a repository filter from query params
func eventFilter(r *http.Request, defLimit int) (repository.EventFilter, error) {
	limit, err := queryLimit(r, defLimit)
	if err != nil {
		return repository.EventFilter{}, err
	}
	f := repository.EventFilter{Limit: limit}

	switch status := domain.ApprovalStatus(r.URL.Query().Get("status")); status {
	case "":
	case domain.ApprovalPending, domain.ApprovalApproved, domain.ApprovalRejected:
		f.Status = status
	default:
		return f, fmt.Errorf("invalid status %q", status)
	}

	if src := r.URL.Query().Get("source"); src != "" {
		id, err := strconv.ParseInt(src, 10, 64)
		if err != nil || id <= 0 {
			return f, fmt.Errorf("invalid source %q", src)
		}
		f.SourceID = id
	}
	return f, nil
}

func queryLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", v)
	}
	return min(limit, maxLimit), nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		renderError(w, r, fmt.Errorf("invalid source ID"), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// errorCode maps domain errors to http status codes
func errorCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCrawlInProgress), errors.Is(err, domain.ErrSourceInactive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
