package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/legis-etl/internal/document"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "etl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func testDocument() *document.Document {
	return &document.Document{
		ID:          document.NewID("https://www.legislation.gov.uk/ukpga/2024/12"),
		SourceURL:   "https://www.legislation.gov.uk/ukpga/2024/12",
		Category:    "planning",
		TimePeriod:  "August/2024",
		ContentHash: "abc123",
		CleanText:   "An Act to make provision about planning.",
		Metadata: map[string]string{
			"title":         "Planning Act 2024",
			"document_type": "ukpga",
		},
		Embedding:  []float32{0.1, -0.25, 0.5},
		Chunks:     3,
		LowQuality: false,
	}
}

func TestUpsertAndGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument()
	require.NoError(t, store.Upsert(ctx, doc))

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, doc.SourceURL, got.SourceURL)
	assert.Equal(t, doc.Category, got.Category)
	assert.Equal(t, doc.TimePeriod, got.TimePeriod)
	assert.Equal(t, doc.ContentHash, got.ContentHash)
	assert.Equal(t, doc.CleanText, got.CleanText)
	assert.Equal(t, doc.Metadata, got.Metadata)
	assert.Equal(t, doc.Embedding, got.Embedding)
	assert.Equal(t, doc.Chunks, got.Chunks)
	assert.False(t, got.LowQuality)
}

func TestGetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument()
	require.NoError(t, store.Upsert(ctx, doc))
	require.NoError(t, store.Upsert(ctx, doc))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertReplacesChangedContent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument()
	require.NoError(t, store.Upsert(ctx, doc))

	doc.ContentHash = "def456"
	doc.CleanText = "An Act to make different provision."
	doc.Embedding = []float32{0.9, 0.8, 0.7}
	require.NoError(t, store.Upsert(ctx, doc))

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "def456", got.ContentHash)
	assert.Equal(t, doc.Embedding, got.Embedding)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEmbeddingBlobRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument()
	doc.Embedding = make([]float32, 1536)
	for i := range doc.Embedding {
		doc.Embedding[i] = float32(i) * 0.001
	}
	require.NoError(t, store.Upsert(ctx, doc))

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Embedding, got.Embedding)
}

func TestLowQualityFlag(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	doc := testDocument()
	doc.LowQuality = true
	doc.Chunks = 0
	doc.Embedding = make([]float32, 4)
	require.NoError(t, store.Upsert(ctx, doc))

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.LowQuality)
	assert.Zero(t, got.Chunks)
}
