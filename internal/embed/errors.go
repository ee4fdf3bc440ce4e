package embed

import "errors"

var (
	// ErrEmbeddingExhausted indicates the embeddings API kept rate
	// limiting past the retry budget.
	ErrEmbeddingExhausted = errors.New("embedding retries exhausted")

	// ErrMissingAPIKey indicates OPENAI_API_KEY is not set.
	ErrMissingAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)
