// Package pipeline defines the core types shared across the harvest subsystems
// and the orchestrator that wires them into a run.
package pipeline

import "time"

// Field names the logical article fields a selector profile can target.
type Field string

// Logical fields extracted from an article page.
const (
	FieldHeadline    Field = "headline"
	FieldSubheadline Field = "subheadline"
	FieldDate        Field = "date"
	FieldAuthor      Field = "author"
	FieldContent     Field = "content"
	FieldDateAgency  Field = "date_agency"
)

// GapReason explains why an extracted field is absent from a RawArticle.
type GapReason string

// Gap reasons recorded per missing field.
const (
	GapSelectorNoMatch GapReason = "selector_no_match"
	GapEmptyAfterClean GapReason = "empty_after_clean"
	GapUnparseableDoc  GapReason = "unparseable_document"
)

// Candidate is an article link discovered on a listing page. Candidates are
// transient: each one is fetched at most once per run and then discarded.
type Candidate struct {
	URL          string
	Title        string
	Section      string
	DiscoveredAt time.Time
}

// Document is a fetched page.
type Document struct {
	URL        string
	Body       []byte
	StatusCode int
	FetchedAt  time.Time
	Rendered   bool
	Duration   time.Duration
}

// RawArticle is the possibly-partial output of field extraction. Every field
// except URL is optional; a missing field carries a reason in Gaps instead of
// failing the record.
type RawArticle struct {
	URL         string
	Headline    string
	Subheadline string
	DateText    string
	Author      string
	Content     string
	Related     string
	DateAgency  string
	Gaps        map[Field]GapReason
}

// Empty reports whether extraction produced nothing beyond the URL.
func (r RawArticle) Empty() bool {
	return r.Headline == "" && r.Subheadline == "" && r.DateText == "" &&
		r.Author == "" && r.Content == "" && r.DateAgency == ""
}

// Article is the canonical record persisted once per URL.
type Article struct {
	URL         string
	Headline    string
	Subheadline string
	Author      string
	Content     string
	// Related holds the trailing related-links block split off the body,
	// empty when the source has no boilerplate marker.
	Related string
	// PublishedAt is nil rather than wrong when the raw date text does not
	// match any known grammar.
	PublishedAt  *time.Time
	Section      string
	Source       string
	City         string
	Agency       string
	SnapshotDate time.Time
}

// PlanResult is what the crawl planner hands to the orchestrator.
type PlanResult struct {
	Candidates             []Candidate
	PagesFetched           int
	SectionsVisited        int
	SectionsStoppedOnError int
}

// Summary reports the outcome of one pipeline run for one source.
type Summary struct {
	RunID                  string    `json:"run_id"`
	Source                 string    `json:"source"`
	Candidates             int       `json:"candidates"`
	New                    int       `json:"new"`
	Duplicates             int       `json:"duplicates"`
	Failed                 int       `json:"failed"`
	PagesFetched           int       `json:"pages_fetched"`
	SectionsVisited        int       `json:"sections_visited"`
	SectionsStoppedOnError int       `json:"sections_stopped_on_error"`
	StartedAt              time.Time `json:"started_at"`
	FinishedAt             time.Time `json:"finished_at"`
}
