// Package pipeline orchestrates the extraction run: paginated discovery,
// fetch, clean, embed, and the ordered dual load into the relational and
// vector stores, with every advance recorded in the checkpoint.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/bull/legis-etl/internal/checkpoint"
	"github.com/bull/legis-etl/internal/clean"
	"github.com/bull/legis-etl/internal/document"
	"github.com/bull/legis-etl/internal/extract"
)

// Source discovers and fetches legislation pages.
type Source interface {
	ListDocuments(ctx context.Context, category, period, cursor string) ([]extract.Listing, string, error)
	FetchDocument(ctx context.Context, url string) ([]byte, string, error)
}

// Embedder turns cleaned text into a document vector plus its chunk count.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, int, error)
}

// RelationalStore is the authoritative document sink.
type RelationalStore interface {
	Upsert(ctx context.Context, doc *document.Document) error
	Get(ctx context.Context, id string) (*document.Document, error)
}

// VectorStore is the derived similarity-search sink.
type VectorStore interface {
	Upsert(ctx context.Context, doc *document.Document) error
}

// RunResult contains statistics about a pipeline run.
type RunResult struct {
	Pages      int
	Discovered int
	Skipped    int
	Completed  int
	Repaired   int
	Failed     int
	FailedDocs []FailedDoc
	Duration   time.Duration
}

// FailedDoc represents a document that was parked as failed this run.
type FailedDoc struct {
	URL    string
	Reason string
}

// Pipeline drives documents through the staged flow. Documents on one
// listing page are processed concurrently; the pagination cursor advances
// only once every document on the page has reached a terminal state.
type Pipeline struct {
	source     Source
	embedder   Embedder
	relational RelationalStore
	vector     VectorStore
	cp         *checkpoint.Manager

	category   string
	timePeriod string

	pool   *ants.Pool
	logger *slog.Logger

	mu     sync.Mutex
	result *RunResult
	runErr error
}

// Option configures a Pipeline.
type Option func(p *Pipeline) error

// WithWorkers sets the per-page worker pool size. Default is half the
// CPU count, minimum 1.
func WithWorkers(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline for one extraction scope.
func NewPipeline(
	source Source,
	embedder Embedder,
	relational RelationalStore,
	vector VectorStore,
	cp *checkpoint.Manager,
	category, timePeriod string,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil || embedder == nil || relational == nil || vector == nil || cp == nil {
		return nil, ErrMissingComponent
	}

	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		source:     source,
		embedder:   embedder,
		relational: relational,
		vector:     vector,
		cp:         cp,
		category:   category,
		timePeriod: timePeriod,
		pool:       pool,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Release frees the worker pool.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Run executes one pipeline run: repair stranded documents, retry parked
// failures, then crawl listing pages from the stored cursor. Returns
// partial statistics alongside the error when interrupted.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	p.mu.Lock()
	p.result = &RunResult{}
	p.runErr = nil
	p.mu.Unlock()

	p.logger.Info("starting run",
		"run_id", p.cp.RunID(),
		"category", p.category,
		"time_period", p.timePeriod,
	)

	if err := p.Repair(ctx); err != nil {
		return p.snapshotResult(start), err
	}
	if err := p.retryFailed(ctx); err != nil {
		return p.snapshotResult(start), err
	}
	if err := p.crawl(ctx); err != nil {
		return p.snapshotResult(start), err
	}

	result := p.snapshotResult(start)

	if err := p.cp.AddStats(checkpoint.Stats{
		Discovered: result.Discovered,
		Skipped:    result.Skipped,
		Completed:  result.Completed,
		Failed:     result.Failed,
		Repaired:   result.Repaired,
	}); err != nil {
		return result, err
	}

	p.logger.Info("run complete",
		"pages", result.Pages,
		"discovered", result.Discovered,
		"completed", result.Completed,
		"skipped", result.Skipped,
		"repaired", result.Repaired,
		"failed", result.Failed,
		"duration", result.Duration.Round(time.Millisecond),
	)

	return result, nil
}

// Repair finishes documents stranded between the two sinks: anything
// recorded as relationally loaded but not complete gets its vector write
// replayed from the stored row, without refetching or re-embedding.
func (p *Pipeline) Repair(ctx context.Context) error {
	for id, state := range p.cp.Documents() {
		if state.Stage != document.StageSQLLoaded {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		doc, err := p.relational.Get(ctx, id)
		if err != nil {
			p.recordFailure(state.SourceURL, fmt.Sprintf("repair: %v", err))
			if ferr := p.cp.Fail(id, state.Stage, state.Listing(), state.ContentHash, err.Error()); ferr != nil {
				return ferr
			}
			continue
		}

		if err := p.vector.Upsert(ctx, doc); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.recordFailure(state.SourceURL, fmt.Sprintf("repair: %v", err))
			if ferr := p.cp.Fail(id, state.Stage, state.Listing(), state.ContentHash, err.Error()); ferr != nil {
				return ferr
			}
			continue
		}

		if err := p.cp.Commit(id, document.StageComplete, state.Listing(), state.ContentHash); err != nil {
			return err
		}

		p.mu.Lock()
		p.result.Repaired++
		p.mu.Unlock()
		p.logger.Info("repaired vector load", "id", id, "url", state.SourceURL)
	}
	return nil
}

// retryFailed reprocesses documents parked as failed before the
// relational load. Their source URL is in the checkpoint, so no listing
// crawl is needed.
func (p *Pipeline) retryFailed(ctx context.Context) error {
	for id, state := range p.cp.Documents() {
		if !state.Failed || state.Stage == document.StageSQLLoaded {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		p.logger.Info("retrying failed document", "id", id, "url", state.SourceURL, "last_stage", state.Stage)
		p.processListing(ctx, state.Listing())

		if err := p.checkpointErr(); err != nil {
			return err
		}
	}
	return nil
}

// crawl walks listing pages from the stored cursor. Each page's documents
// run concurrently; the cursor is committed only after the whole page has
// settled, so an interrupted run resumes at the unfinished page.
func (p *Pipeline) crawl(ctx context.Context) error {
	cursor := p.cp.Cursor()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		listings, next, err := p.source.ListDocuments(ctx, p.category, p.timePeriod, cursor)
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		if len(listings) == 0 {
			// Reset the cursor so the next run re-crawls from the first
			// page; unchanged documents cost one cache read each.
			p.logger.Info("listing exhausted")
			if cursor != "" {
				return p.cp.SetCursor("")
			}
			return nil
		}

		p.mu.Lock()
		p.result.Pages++
		p.result.Discovered += len(listings)
		p.mu.Unlock()
		p.logger.Info("processing listing page", "documents", len(listings))

		var wg sync.WaitGroup
		for _, listing := range listings {
			wg.Add(1)
			l := listing
			submitErr := p.pool.Submit(func() {
				defer wg.Done()
				p.processListing(ctx, l)
			})
			if submitErr != nil {
				wg.Done()
				return fmt.Errorf("submitting document: %w", submitErr)
			}
		}
		wg.Wait()

		if err := p.checkpointErr(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			// Page did not settle cleanly; leave the cursor so the next
			// run replays it.
			return ctx.Err()
		}

		if err := p.cp.SetCursor(next); err != nil {
			return err
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

// processListing drives one document through the staged flow, recording
// the outcome in the run result and the checkpoint.
func (p *Pipeline) processListing(ctx context.Context, listing extract.Listing) {
	id := document.NewID(listing.URL)
	state, known := p.cp.State(id)

	raw, hash, err := p.source.FetchDocument(ctx, listing.URL)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.parkFailed(id, listing, lastStage(state, known), state.ContentHash,
			fmt.Errorf("fetch: %w", err))
		return
	}

	if known && state.ContentHash == hash && !state.Failed {
		if state.Stage.Terminal() {
			p.mu.Lock()
			p.result.Skipped++
			p.mu.Unlock()
			p.logger.Debug("unchanged, skipping", "id", id, "url", listing.URL)
			return
		}
		if state.Stage == document.StageSQLLoaded {
			p.repairOne(ctx, id, state)
			return
		}
	}

	if err := p.commit(id, document.StageFetched, listing, hash); err != nil {
		return
	}

	cleaned, err := clean.Clean(raw, listing)
	if err != nil {
		p.parkFailed(id, listing, document.StageFetched, hash, fmt.Errorf("clean: %w", err))
		return
	}
	if err := p.commit(id, document.StageCleaned, listing, hash); err != nil {
		return
	}

	vectorData, chunks, err := p.embedder.EmbedDocument(ctx, cleaned.Text)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.parkFailed(id, listing, document.StageCleaned, hash, fmt.Errorf("embed: %w", err))
		return
	}
	if err := p.commit(id, document.StageEmbedded, listing, hash); err != nil {
		return
	}

	doc := &document.Document{
		ID:          id,
		SourceURL:   listing.URL,
		Category:    p.category,
		TimePeriod:  p.timePeriod,
		ContentHash: hash,
		CleanText:   cleaned.Text,
		Metadata:    cleaned.Metadata,
		Embedding:   vectorData,
		Chunks:      chunks,
		LowQuality:  chunks == 0,
	}

	// Relational first: it is authoritative and the vector load can be
	// replayed from it.
	if err := p.relational.Upsert(ctx, doc); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.parkFailed(id, listing, document.StageEmbedded, hash, fmt.Errorf("relational load: %w", err))
		return
	}
	if err := p.commit(id, document.StageSQLLoaded, listing, hash); err != nil {
		return
	}

	if err := p.vector.Upsert(ctx, doc); err != nil {
		if ctx.Err() != nil {
			return
		}
		// Stage stays at the relational load; the repair pass finishes
		// the vector write without re-embedding.
		p.parkFailed(id, listing, document.StageSQLLoaded, hash, fmt.Errorf("vector load: %w", err))
		return
	}
	if err := p.commit(id, document.StageComplete, listing, hash); err != nil {
		return
	}

	p.mu.Lock()
	p.result.Completed++
	p.mu.Unlock()
	p.logger.Info("document complete", "id", id, "url", listing.URL, "chunks", chunks)
}

// repairOne replays the vector write for one document during the crawl.
func (p *Pipeline) repairOne(ctx context.Context, id string, state checkpoint.DocumentState) {
	doc, err := p.relational.Get(ctx, id)
	if err != nil {
		p.parkFailed(id, state.Listing(), state.Stage, state.ContentHash,
			fmt.Errorf("repair: %w", err))
		return
	}
	if err := p.vector.Upsert(ctx, doc); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.parkFailed(id, state.Listing(), state.Stage, state.ContentHash,
			fmt.Errorf("repair: %w", err))
		return
	}
	if err := p.commit(id, document.StageComplete, state.Listing(), state.ContentHash); err != nil {
		return
	}

	p.mu.Lock()
	p.result.Repaired++
	p.mu.Unlock()
}

// commit records stage progress, capturing checkpoint write failures as a
// run-level error.
func (p *Pipeline) commit(id string, stage document.Stage, listing extract.Listing, hash string) error {
	if err := p.cp.Commit(id, stage, listing, hash); err != nil {
		p.setCheckpointErr(err)
		return err
	}
	return nil
}

// parkFailed records a document failure and keeps the run going.
func (p *Pipeline) parkFailed(id string, listing extract.Listing, lastGood document.Stage, hash string, cause error) {
	p.logger.Warn("document failed", "id", id, "url", listing.URL, "last_stage", lastGood, "error", cause)
	p.recordFailure(listing.URL, cause.Error())
	if err := p.cp.Fail(id, lastGood, listing, hash, cause.Error()); err != nil {
		p.setCheckpointErr(err)
	}
}

func (p *Pipeline) recordFailure(url, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result.Failed++
	p.result.FailedDocs = append(p.result.FailedDocs, FailedDoc{URL: url, Reason: reason})
}

func (p *Pipeline) setCheckpointErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runErr == nil {
		p.runErr = fmt.Errorf("%w: %v", ErrCheckpointWrite, err)
	}
}

func (p *Pipeline) checkpointErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runErr
}

func (p *Pipeline) snapshotResult(start time.Time) *RunResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	result := *p.result
	result.FailedDocs = append([]FailedDoc(nil), p.result.FailedDocs...)
	result.Duration = time.Since(start)
	return &result
}

// lastStage returns the last completed stage for failure records; unknown
// documents were only discovered.
func lastStage(state checkpoint.DocumentState, known bool) document.Stage {
	if !known {
		return document.StageDiscovered
	}
	return state.Stage
}
