package domain

import "time"

// CandidateOrigin tells which locator stage produced a candidate
type CandidateOrigin string

// candidate origins
const (
	OriginStructured CandidateOrigin = "structured" // json-ld, microdata or api json
	OriginFeed       CandidateOrigin = "feed"
	OriginProfile    CandidateOrigin = "profile"
	OriginSelector   CandidateOrigin = "selector"
	OriginProximity  CandidateOrigin = "proximity"
)

// StructuredEvent holds machine-readable event fields found in the document
type StructuredEvent struct {
	Name        string
	StartDate   string
	EndDate     string
	Location    string
	Description string
	URL         string
	Price       string
}

// RawCandidate is a content block suspected to describe one event.
// It lives only within one crawl run.
type RawCandidate struct {
	SourceID   int64
	SourceURL  string // url of the page the block came from
	Markup     string // outer html of the block, empty for structured/feed candidates
	Text       string // normalized block text
	Origin     CandidateOrigin
	Structured *StructuredEvent
}

// DateConfidence describes how the start date was resolved
type DateConfidence string

// date confidence levels, strongest first
const (
	DateStructured DateConfidence = "structured"
	DateExplicit   DateConfidence = "explicit"
	DatePattern    DateConfidence = "pattern"
	DateMapped     DateConfidence = "mapped"
	DateFallback   DateConfidence = "fallback"
	DateUnresolved DateConfidence = "unresolved"
)

// Confirmed reports whether the date came from the source rather than a placeholder
func (c DateConfidence) Confirmed() bool {
	switch c {
	case DateStructured, DateExplicit, DatePattern, DateMapped:
		return true
	}
	return false
}

// ExtractedEvent is the structured output of field resolution
type ExtractedEvent struct {
	SourceID       int64
	Title          string
	Start          time.Time
	DateConfidence DateConfidence
	End            *time.Time
	Location       string
	Description    string
	Price          string
	CanonicalURL   string
	ListingURL     string // page the event was listed on
	Structured     bool   // produced from machine-readable data
	Confidence     int    // 0-100
}

// ApprovalStatus is owned by the external review workflow
type ApprovalStatus string

// approval statuses
const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// StoredEvent is the durable pending-review row keyed by fingerprint
type StoredEvent struct {
	ID             int64
	Fingerprint    string
	SourceID       int64
	Title          string
	Start          time.Time
	End            *time.Time
	Location       string
	Description    string
	Price          string
	URL            string
	Confidence     int
	DateConfidence DateConfidence
	ApprovalStatus ApprovalStatus
	ManualOverride bool // set by human editors, read-only for the engine
	Version        int
	LastSeenAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IngestKind is the result kind of an ingestion attempt
type IngestKind string

// ingest result kinds
const (
	IngestInserted  IngestKind = "inserted"
	IngestUpdated   IngestKind = "updated"
	IngestUnchanged IngestKind = "unchanged"
	IngestSkipped   IngestKind = "skipped"
)

// IngestOutcome is returned by the ingestion gate
type IngestOutcome struct {
	Kind    IngestKind
	Reason  string   // set for skipped
	EventID int64    // stored row id, zero for skipped
	Changed []string // columns touched on update
}
