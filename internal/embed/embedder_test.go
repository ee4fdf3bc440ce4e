package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDocumentEmptyText(t *testing.T) {
	e := NewEmbedder(nil, NewChunker(0, 0), nil, 0)

	vec, chunks, err := e.EmbedDocument(context.Background(), "")
	require.NoError(t, err)

	assert.Zero(t, chunks)
	require.Len(t, vec, EmbeddingDimension)
	for _, x := range vec {
		assert.Zero(t, x)
	}
}

func TestNewClientMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewClient()
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
