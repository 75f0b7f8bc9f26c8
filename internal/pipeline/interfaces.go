package pipeline

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable marks connection-class store failures. The orchestrator
// aborts the remaining run on it; record-level store errors only fail the one
// record.
var ErrStoreUnavailable = errors.New("article store unavailable")

// Fetcher retrieves a single URL. One attempt per call; retry policy belongs
// to the caller or to an external scheduler re-running the whole pipeline.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Document, error)
}

// Planner enumerates article candidates for a source, deduplicated against
// the existing-key snapshot and an in-run seen set.
type Planner interface {
	Plan(ctx context.Context, existing map[string]struct{}) (PlanResult, error)
}

// Extractor turns a fetched document into a possibly-partial raw record.
type Extractor interface {
	Extract(doc Document) RawArticle
}

// Normalizer converts a raw record into a canonical one. Implementations are
// pure: every input yields a record, malformed fields become zero values.
type Normalizer interface {
	Normalize(raw RawArticle, snapshot time.Time) Article
}

// ArticleStore is the narrow persistence surface the pipeline consumes.
type ArticleStore interface {
	// ListExistingURLs snapshots the URLs already present for a source table.
	ListExistingURLs(ctx context.Context, table string) (map[string]struct{}, error)
	// Upsert inserts the record unless its URL already exists. The bool is
	// true on insert, false on duplicate; each call is independently atomic.
	Upsert(ctx context.Context, table string, art Article) (bool, error)
}

// Archiver persists raw page snapshots and returns a URI.
type Archiver interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes events to downstream consumers (dashboard generation).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}
