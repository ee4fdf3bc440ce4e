// Package embed chunks cleaned document text and produces one fixed
// dimension vector per document via the OpenAI embeddings API.
package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// EmbeddingModel is the OpenAI model used for generating embeddings.
	EmbeddingModel = "text-embedding-3-small"

	// EmbeddingDimension is the vector dimension for text-embedding-3-small.
	EmbeddingDimension = 1536

	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute
	// rate limits.
	DefaultBatchSize = 500
)

// Aggregator folds per-chunk vectors into a single document vector. It must
// be deterministic and order-independent.
type Aggregator func(vectors [][]float32) []float32

// Embedder turns cleaned text into a single document-level vector. Chunk
// vectors are aggregated with a pluggable policy (element-wise mean by
// default), and API calls are batched with bounded backoff on rate limits.
type Embedder struct {
	client    *Client
	chunker   *Chunker
	aggregate Aggregator
	batchSize int
}

// NewEmbedder creates an Embedder. A nil aggregator uses MeanAggregate; a
// batchSize of 0 uses DefaultBatchSize.
func NewEmbedder(client *Client, chunker *Chunker, aggregate Aggregator, batchSize int) *Embedder {
	if chunker == nil {
		chunker = NewChunker(0, 0)
	}
	if aggregate == nil {
		aggregate = MeanAggregate
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		client:    client,
		chunker:   chunker,
		aggregate: aggregate,
		batchSize: batchSize,
	}
}

// EmbedDocument embeds cleaned text and returns the aggregated document
// vector plus the number of chunks it was built from. Empty text yields
// the zero-vector sentinel with zero chunks; the document is still
// loadable but should be flagged low-quality by the caller.
func (e *Embedder) EmbedDocument(ctx context.Context, text string) ([]float32, int, error) {
	chunks := e.chunker.Split(text)
	if len(chunks) == 0 {
		return make([]float32, EmbeddingDimension), 0, nil
	}

	vectors, err := e.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, 0, err
	}

	return e.aggregate(vectors), len(chunks), nil
}

// EmbedChunks generates one vector per chunk, batching requests and
// retrying rate-limited batches with exponential backoff.
func (e *Embedder) EmbedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch := texts[i:end]

		vectors, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// embedBatchWithRetry generates embeddings for a single batch with retry
// logic. Rate limit errors (HTTP 429) retry with exponential backoff;
// other errors are permanent. Exhausted retries surface as
// ErrEmbeddingExhausted so the document is parked as failed.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: EmbeddingModel,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err // Will retry with backoff
			}
			return backoff.Permanent(err)
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingExhausted, err)
	}
	return vectors, nil
}

// MeanAggregate folds chunk vectors by element-wise mean. Addition order
// cannot change the result beyond floating-point rounding, so aggregation
// is order-independent.
func MeanAggregate(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return make([]float32, EmbeddingDimension)
	}

	dim := len(vectors[0])
	sums := make([]float64, dim)
	for _, v := range vectors {
		for i, x := range v {
			sums[i] += float64(x)
		}
	}

	mean := make([]float32, dim)
	n := float64(len(vectors))
	for i, s := range sums {
		mean[i] = float32(s / n)
	}
	return mean
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 converts []float64 to []float32. The API returns float64 but
// the stores keep float32.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
