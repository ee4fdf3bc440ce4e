package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/legis-etl/internal/document"
	"github.com/bull/legis-etl/internal/extract"
)

func testListing() extract.Listing {
	return extract.Listing{
		Title:   "Planning Act 2024",
		URL:     "https://www.legislation.gov.uk/ukpga/2024/12",
		Year:    "2024",
		Number:  "12",
		DocType: "ukpga",
	}
}

func TestLoadFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	m, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)

	assert.NotEmpty(t, m.RunID())
	assert.Empty(t, m.Cursor())
	assert.Empty(t, m.Documents())
}

func TestCommitSurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	m, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)

	l := testListing()
	id := document.NewID(l.URL)
	require.NoError(t, m.Commit(id, document.StageSQLLoaded, l, "abc123"))
	require.NoError(t, m.SetCursor("cursor-page-2"))

	reloaded, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)

	state, ok := reloaded.State(id)
	require.True(t, ok)
	assert.Equal(t, document.StageSQLLoaded, state.Stage)
	assert.Equal(t, "abc123", state.ContentHash)
	assert.False(t, state.Failed)
	assert.Equal(t, "cursor-page-2", reloaded.Cursor())
}

func TestStateKeepsListingMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	m, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)

	l := testListing()
	id := document.NewID(l.URL)
	require.NoError(t, m.Fail(id, document.StageDiscovered, l, "", "connection reset"))

	reloaded, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)

	state, ok := reloaded.State(id)
	require.True(t, ok)
	assert.Equal(t, l, state.Listing(),
		"a retry must see the same listing row as the first attempt")
}

func TestReloadGetsNewRunID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	m, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)
	first := m.RunID()
	require.NoError(t, m.SetCursor("c1"))

	reloaded, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)
	assert.NotEqual(t, first, reloaded.RunID())
}

func TestFailKeepsLastStage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	m, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)

	l := testListing()
	id := document.NewID(l.URL)
	require.NoError(t, m.Fail(id, document.StageCleaned, l, "h1", "embedding retries exhausted"))

	state, ok := m.State(id)
	require.True(t, ok)
	assert.True(t, state.Failed)
	assert.Equal(t, document.StageCleaned, state.Stage)
	assert.Equal(t, "embedding retries exhausted", state.Reason)

	// A later commit clears the failure.
	require.NoError(t, m.Commit(id, document.StageEmbedded, l, "h1"))
	state, _ = m.State(id)
	assert.False(t, state.Failed)
	assert.Empty(t, state.Reason)
}

func TestCommitRejectsForwardSkip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	m, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)

	l := testListing()
	id := document.NewID(l.URL)
	require.NoError(t, m.Commit(id, document.StageFetched, l, "h1"))

	err = m.Commit(id, document.StageEmbedded, l, "h1")
	assert.ErrorIs(t, err, ErrStageViolation)

	// The recorded state is untouched.
	state, _ := m.State(id)
	assert.Equal(t, document.StageFetched, state.Stage)
}

func TestCommitAllowsReplayAndNewContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	m, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)

	l := testListing()
	id := document.NewID(l.URL)
	require.NoError(t, m.Commit(id, document.StageFetched, l, "h1"))
	require.NoError(t, m.Commit(id, document.StageCleaned, l, "h1"))

	// Replaying an earlier stage after a crash is idempotent recovery.
	require.NoError(t, m.Commit(id, document.StageFetched, l, "h1"))

	// Changed content starts a new lifecycle from any prior stage.
	require.NoError(t, m.Commit(id, document.StageCleaned, l, "h1"))
	require.NoError(t, m.Commit(id, document.StageEmbedded, l, "h1"))
	require.NoError(t, m.Commit(id, document.StageSQLLoaded, l, "h1"))
	require.NoError(t, m.Commit(id, document.StageComplete, l, "h1"))
	require.NoError(t, m.Commit(id, document.StageFetched, l, "h2"))
}

func TestScopeMismatchRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	m, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)
	require.NoError(t, m.SetCursor("c1"))

	_, err = Load(path, "energy", "August/2024")
	assert.ErrorIs(t, err, ErrScopeMismatch)

	_, err = Load(path, "planning", "July/2024")
	assert.ErrorIs(t, err, ErrScopeMismatch)
}

func TestCorruptFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path, "planning", "August/2024")
	assert.ErrorIs(t, err, ErrCorruptCheckpoint)
}

func TestNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")

	m, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)
	require.NoError(t, m.SetCursor("c1"))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStatsAccumulate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	m, err := Load(path, "planning", "August/2024")
	require.NoError(t, err)

	require.NoError(t, m.AddStats(Stats{Discovered: 10, Fetched: 8, Skipped: 2}))
	require.NoError(t, m.AddStats(Stats{Completed: 7, Failed: 1}))

	stats := m.Stats()
	assert.Equal(t, 10, stats.Discovered)
	assert.Equal(t, 8, stats.Fetched)
	assert.Equal(t, 2, stats.Skipped)
	assert.Equal(t, 7, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
}
