package qdrant

import "errors"

var (
	// ErrQdrantUnreachable indicates Qdrant did not answer health checks
	// within the startup retry budget.
	ErrQdrantUnreachable = errors.New("qdrant unreachable")

	// ErrDimensionMismatch indicates an embedding with the wrong vector
	// dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
