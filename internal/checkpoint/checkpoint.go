// Package checkpoint persists pipeline progress so interrupted runs
// resume instead of restarting. State is committed only after the
// corresponding durable side effect, so replaying after a crash is
// always safe.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bull/legis-etl/internal/document"
	"github.com/bull/legis-etl/internal/extract"
)

// DocumentState records the last durably completed stage for one
// document, plus the listing row it was discovered from so retries keep
// the crawl-time metadata. Failed states keep the stage the document had
// reached so a retry resumes from there.
type DocumentState struct {
	Stage       document.Stage `json:"stage"`
	SourceURL   string         `json:"source_url"`
	Title       string         `json:"title,omitempty"`
	Year        string         `json:"year,omitempty"`
	Number      string         `json:"number,omitempty"`
	DocType     string         `json:"doc_type,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"`
	Failed      bool           `json:"failed,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Listing rebuilds the discovery-time listing row for the document.
func (s DocumentState) Listing() extract.Listing {
	return extract.Listing{
		Title:   s.Title,
		URL:     s.SourceURL,
		Year:    s.Year,
		Number:  s.Number,
		DocType: s.DocType,
	}
}

// Stats accumulates per-run counters for the final summary.
type Stats struct {
	Discovered int `json:"discovered"`
	Fetched    int `json:"fetched"`
	Skipped    int `json:"skipped"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Repaired   int `json:"repaired"`
}

// Checkpoint is the on-disk state for one extraction scope (category +
// time period).
type Checkpoint struct {
	RunID        string                   `json:"run_id"`
	RunStartedAt time.Time                `json:"run_started_at"`
	Category     string                   `json:"category"`
	TimePeriod   string                   `json:"time_period"`
	Cursor       string                   `json:"cursor,omitempty"`
	Documents    map[string]DocumentState `json:"documents"`
	Stats        Stats                    `json:"stats"`
}

// Manager guards a checkpoint file. Every mutation is written through to
// disk with a temp-file rename so a crash never leaves a torn file.
type Manager struct {
	mu   sync.Mutex
	path string
	cp   *Checkpoint
}

// Load opens the checkpoint at path, creating a fresh one for the given
// scope if none exists. A checkpoint written for a different scope is
// rejected rather than silently mixed.
func Load(path, category, timePeriod string) (*Manager, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Manager{
			path: path,
			cp: &Checkpoint{
				RunID:        uuid.New().String(),
				RunStartedAt: time.Now().UTC(),
				Category:     category,
				TimePeriod:   timePeriod,
				Documents:    make(map[string]DocumentState),
			},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCheckpoint, err)
	}
	if cp.Documents == nil {
		cp.Documents = make(map[string]DocumentState)
	}
	if cp.Category != category || cp.TimePeriod != timePeriod {
		return nil, fmt.Errorf("%w: checkpoint is for %s/%s, requested %s/%s",
			ErrScopeMismatch, cp.Category, cp.TimePeriod, category, timePeriod)
	}

	// A resumed run keeps its document states but gets a new run ID.
	cp.RunID = uuid.New().String()
	cp.RunStartedAt = time.Now().UTC()

	return &Manager{path: path, cp: &cp}, nil
}

// save writes the checkpoint atomically. Callers hold the mutex.
func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.cp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}

// RunID returns the current run identifier.
func (m *Manager) RunID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cp.RunID
}

// Cursor returns the stored pagination cursor, empty for a fresh scope.
func (m *Manager) Cursor() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cp.Cursor
}

// SetCursor durably advances the pagination cursor. Called only after
// every document on the page has reached a terminal state.
func (m *Manager) SetCursor(cursor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cp.Cursor = cursor
	return m.save()
}

// State returns the recorded state for a document ID.
func (m *Manager) State(id string) (DocumentState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.cp.Documents[id]
	return state, ok
}

// Commit records that a document durably reached a stage. It clears any
// prior failure for the document. Within one lifecycle (same content
// hash, no failure) a stage may only advance one step at a time;
// replaying an earlier stage is an idempotent recovery and is allowed, a
// forward skip is a logic error and rejected.
func (m *Manager) Commit(id string, stage document.Stage, listing extract.Listing, contentHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.cp.Documents[id]; ok &&
		!prev.Failed && prev.ContentHash == contentHash &&
		stage.Rank() > prev.Stage.Rank() && !prev.Stage.CanAdvance(stage) {
		return fmt.Errorf("%w: %s cannot reach %s, next is %s",
			ErrStageViolation, prev.Stage, stage, prev.Stage.Next())
	}

	m.cp.Documents[id] = DocumentState{
		Stage:       stage,
		SourceURL:   listing.URL,
		Title:       listing.Title,
		Year:        listing.Year,
		Number:      listing.Number,
		DocType:     listing.DocType,
		ContentHash: contentHash,
		UpdatedAt:   time.Now().UTC(),
	}
	return m.save()
}

// Fail parks a document as failed, keeping the last stage it completed
// so a later run retries from there.
func (m *Manager) Fail(id string, lastStage document.Stage, listing extract.Listing, contentHash, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cp.Documents[id] = DocumentState{
		Stage:       lastStage,
		SourceURL:   listing.URL,
		Title:       listing.Title,
		Year:        listing.Year,
		Number:      listing.Number,
		DocType:     listing.DocType,
		ContentHash: contentHash,
		Failed:      true,
		Reason:      reason,
		UpdatedAt:   time.Now().UTC(),
	}
	return m.save()
}

// Documents returns a copy of all recorded document states.
func (m *Manager) Documents() map[string]DocumentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]DocumentState, len(m.cp.Documents))
	for id, state := range m.cp.Documents {
		out[id] = state
	}
	return out
}

// AddStats folds delta into the run counters.
func (m *Manager) AddStats(delta Stats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cp.Stats.Discovered += delta.Discovered
	m.cp.Stats.Fetched += delta.Fetched
	m.cp.Stats.Skipped += delta.Skipped
	m.cp.Stats.Completed += delta.Completed
	m.cp.Stats.Failed += delta.Failed
	m.cp.Stats.Repaired += delta.Repaired
	return m.save()
}

// Stats returns a copy of the run counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cp.Stats
}

// Snapshot returns a deep copy of the checkpoint for reporting.
func (m *Manager) Snapshot() Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.cp
	cp.Documents = make(map[string]DocumentState, len(m.cp.Documents))
	for id, state := range m.cp.Documents {
		cp.Documents[id] = state
	}
	return cp
}
