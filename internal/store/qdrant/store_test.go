// +build integration

package qdrant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/legis-etl/internal/document"
)

// setupTestStore connects to a local Qdrant and ensures the collection
// exists. Skips the test if Qdrant is not running.
func setupTestStore(t *testing.T) *Store {
	store, err := NewStore("localhost", 6334)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = store.EnsureCollection(context.Background())
	require.NoError(t, err, "Failed to ensure collection")

	return store
}

func TestUpsertAndHas(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	doc := &document.Document{
		ID:          document.NewID("https://www.legislation.gov.uk/uksi/2024/999"),
		SourceURL:   "https://www.legislation.gov.uk/uksi/2024/999",
		Category:    "planning",
		TimePeriod:  "August/2024",
		ContentHash: "deadbeef",
		Metadata: map[string]string{
			"title":         "Test Regulations 2024",
			"document_type": "uksi",
		},
		Embedding: make([]float32, VectorDimension),
	}
	doc.Embedding[0] = 0.5

	require.NoError(t, store.Upsert(ctx, doc))

	found, err := store.Has(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, found)

	// Replaying the same point is safe.
	require.NoError(t, store.Upsert(ctx, doc))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, uint64(1))
}

func TestHasMissing(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	found, err := store.Has(context.Background(), document.NewID("https://example.com/never-loaded"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	doc := &document.Document{
		ID:        document.NewID("https://www.legislation.gov.uk/uksi/2024/1000"),
		Embedding: []float32{0.1, 0.2},
		Metadata:  map[string]string{},
	}

	err := store.Upsert(context.Background(), doc)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
