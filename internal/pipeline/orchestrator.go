package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bolpress/newsharvest/internal/metrics"
)

// OrchestratorConfig holds the run-level knobs for one source.
type OrchestratorConfig struct {
	Source string
	Table  string
	// Concurrency is the number of candidates processed in parallel.
	// 1 keeps the sequential baseline.
	Concurrency int
	// Topic receives per-article and run-summary events when a publisher
	// is configured.
	Topic string
}

// Orchestrator wires one source's planner, fetcher, extractor, normalizer
// and sink into a single run.
type Orchestrator struct {
	cfg        OrchestratorConfig
	planner    Planner
	fetcher    Fetcher
	extractor  Extractor
	normalizer Normalizer
	store      ArticleStore
	archiver   Archiver  // optional
	publisher  Publisher // optional
	clock      Clock
	logger     *zap.Logger
}

// NewOrchestrator constructs an Orchestrator. Archiver and publisher may be
// nil; the corresponding steps are skipped.
func NewOrchestrator(
	cfg OrchestratorConfig,
	planner Planner,
	fetcher Fetcher,
	extractor Extractor,
	normalizer Normalizer,
	store ArticleStore,
	archiver Archiver,
	publisher Publisher,
	clock Clock,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Orchestrator{
		cfg:        cfg,
		planner:    planner,
		fetcher:    fetcher,
		extractor:  extractor,
		normalizer: normalizer,
		store:      store,
		archiver:   archiver,
		publisher:  publisher,
		clock:      clock,
		logger:     logger,
	}
}

// runState accumulates counters across workers under one lock.
type runState struct {
	mu         sync.Mutex
	new        int
	duplicates int
	failed     int
	fatal      error
}

func (s *runState) recordFatal(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fatal == nil {
		s.fatal = err
	}
}

// Run executes one full pipeline pass: load existing keys, plan candidates,
// then fetch, extract, normalize and upsert each one. A candidate failing at
// any stage is logged and skipped; only store unavailability aborts the rest
// of the run, and records committed before the abort stay committed.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		RunID:     uuid.NewString(),
		Source:    o.cfg.Source,
		StartedAt: o.clock.Now(),
	}

	existing, err := o.store.ListExistingURLs(ctx, o.cfg.Table)
	if err != nil {
		return summary, fmt.Errorf("load existing keys: %w", err)
	}
	o.logger.Info("existing keys loaded",
		zap.String("source", o.cfg.Source),
		zap.String("run_id", summary.RunID),
		zap.Int("count", len(existing)),
	)

	plan, err := o.planner.Plan(ctx, existing)
	summary.Candidates = len(plan.Candidates)
	summary.PagesFetched = plan.PagesFetched
	summary.SectionsVisited = plan.SectionsVisited
	summary.SectionsStoppedOnError = plan.SectionsStoppedOnError
	if err != nil {
		summary.FinishedAt = o.clock.Now()
		return summary, fmt.Errorf("plan candidates: %w", err)
	}

	state := &runState{}
	o.processCandidates(ctx, summary.RunID, plan.Candidates, state)

	summary.New = state.new
	summary.Duplicates = state.duplicates
	summary.Failed = state.failed
	summary.FinishedAt = o.clock.Now()

	o.publishSummary(ctx, summary)
	o.logger.Info("run finished",
		zap.String("source", o.cfg.Source),
		zap.String("run_id", summary.RunID),
		zap.Int("candidates", summary.Candidates),
		zap.Int("new", summary.New),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("failed", summary.Failed),
		zap.Int("sections_visited", summary.SectionsVisited),
		zap.Int("sections_stopped_on_error", summary.SectionsStoppedOnError),
	)
	return summary, state.fatal
}

func (o *Orchestrator) processCandidates(ctx context.Context, runID string, candidates []Candidate, state *runState) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan Candidate)
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				o.processOne(runCtx, runID, cand, state, cancel)
			}
		}()
	}

feed:
	for _, cand := range candidates {
		select {
		case <-runCtx.Done():
			break feed
		case jobs <- cand:
		}
	}
	close(jobs)
	wg.Wait()
}

func (o *Orchestrator) processOne(ctx context.Context, runID string, cand Candidate, state *runState, abort context.CancelFunc) {
	doc, err := o.fetcher.Fetch(ctx, cand.URL)
	if err != nil {
		metrics.CountFetchFailure(o.cfg.Source, "article")
		metrics.CountArticle(o.cfg.Source, "failed")
		o.logger.Warn("article fetch failed",
			zap.String("source", o.cfg.Source),
			zap.String("url", cand.URL),
			zap.Error(err),
		)
		state.mu.Lock()
		state.failed++
		state.mu.Unlock()
		return
	}
	metrics.CountPageFetched(o.cfg.Source, "article")
	metrics.ObserveFetchDuration(o.cfg.Source, doc.Duration)

	o.archiveSnapshot(ctx, doc)

	raw := o.extractor.Extract(doc)
	// The fetch may have followed redirects; the candidate URL is the
	// canonical dedup key the planner filtered on, so the record keeps it.
	raw.URL = cand.URL
	if raw.Empty() {
		metrics.CountArticle(o.cfg.Source, "failed")
		o.logger.Warn("extraction produced no usable content",
			zap.String("source", o.cfg.Source),
			zap.String("url", cand.URL),
			zap.Any("gaps", raw.Gaps),
		)
		state.mu.Lock()
		state.failed++
		state.mu.Unlock()
		return
	}

	art := o.normalizer.Normalize(raw, o.clock.Now())
	if raw.DateText != "" && art.PublishedAt == nil {
		metrics.CountParseFailure(o.cfg.Source, "published_at")
		o.logger.Warn("date text did not match any grammar",
			zap.String("source", o.cfg.Source),
			zap.String("url", cand.URL),
			zap.String("date_text", raw.DateText),
		)
	}

	inserted, err := o.store.Upsert(ctx, o.cfg.Table, art)
	if err != nil {
		state.mu.Lock()
		state.failed++
		state.mu.Unlock()
		if !errors.Is(err, ErrStoreUnavailable) {
			metrics.CountArticle(o.cfg.Source, "failed")
			o.logger.Warn("article upsert failed",
				zap.String("source", o.cfg.Source),
				zap.String("url", cand.URL),
				zap.Error(err),
			)
			return
		}
		state.recordFatal(err)
		o.logger.Error("store unavailable, aborting remaining candidates",
			zap.String("source", o.cfg.Source),
			zap.String("url", cand.URL),
			zap.Error(err),
		)
		abort()
		return
	}

	state.mu.Lock()
	if inserted {
		state.new++
	} else {
		state.duplicates++
	}
	state.mu.Unlock()

	if inserted {
		metrics.CountArticle(o.cfg.Source, "new")
		o.publishArticle(ctx, runID, art)
	} else {
		metrics.CountArticle(o.cfg.Source, "duplicate")
	}
}

func (o *Orchestrator) archiveSnapshot(ctx context.Context, doc Document) {
	if o.archiver == nil {
		return
	}
	uri, err := o.archiver.Put(ctx, snapshotPath(doc.URL, doc.FetchedAt), "text/html; charset=utf-8", doc.Body)
	if err != nil {
		// Snapshots are best effort; the record still flows through.
		o.logger.Warn("snapshot archive failed",
			zap.String("source", o.cfg.Source),
			zap.String("url", doc.URL),
			zap.Error(err),
		)
		return
	}
	o.logger.Debug("snapshot archived",
		zap.String("url", doc.URL),
		zap.String("uri", uri),
	)
}

func (o *Orchestrator) publishArticle(ctx context.Context, runID string, art Article) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"type":     "article",
		"run_id":   runID,
		"source":   art.Source,
		"url":      art.URL,
		"headline": art.Headline,
		"section":  art.Section,
	}
	if art.PublishedAt != nil {
		payload["published_at"] = art.PublishedAt.Format(time.RFC3339)
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		o.logger.Warn("article event publish failed",
			zap.String("url", art.URL),
			zap.Error(err),
		)
	}
}

func (o *Orchestrator) publishSummary(ctx context.Context, summary Summary) {
	if o.publisher == nil || o.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"type":    "run_summary",
		"summary": summary,
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		o.logger.Warn("summary publish failed",
			zap.String("run_id", summary.RunID),
			zap.Error(err),
		)
	}
}

func snapshotPath(url string, fetchedAt time.Time) string {
	sum := sha256.Sum256([]byte(url))
	return path.Join(
		"pages",
		fetchedAt.Format("2006-01-02"),
		hex.EncodeToString(sum[:])+".html",
	)
}
