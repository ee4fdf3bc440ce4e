// Package qdrant wraps the Qdrant vector store holding one point per
// document. The relational store stays authoritative; points here are
// derived and safe to rebuild.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	qc "github.com/qdrant/go-client/qdrant"

	"github.com/bull/legis-etl/internal/document"
)

const (
	// CollectionName is the Qdrant collection for legislation embeddings.
	CollectionName = "legislation_embeddings"

	// VectorDimension matches text-embedding-3-small.
	VectorDimension = 1536
)

// Store wraps the Qdrant client with connection management and health checks.
type Store struct {
	client *qc.Client
	host   string
	port   int
}

// NewStore creates a Qdrant client and validates connectivity. It performs
// a health check with retry on startup and fails fast if Qdrant is
// unreachable.
func NewStore(host string, port int) (*Store, error) {
	client, err := qc.NewClient(&qc.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	store := &Store{
		client: client,
		host:   host,
		port:   port,
	}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return store, nil
}

// healthCheckWithRetry performs health check with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(exponentialBackoff, ctx))
}

// Health performs a single health check against Qdrant.
func (s *Store) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// EnsureCollection ensures the legislation collection exists with proper
// configuration: 1536-dimension cosine vectors plus payload indexes for
// the filterable fields. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qc.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qc.NewVectorsConfig(&qc.VectorParams{
			Size:     VectorDimension,
			Distance: qc.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	if err := s.createPayloadIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	return nil
}

// createPayloadIndexes creates indexes for the filterable fields. Without
// these, filtered queries fall back to full scans.
func (s *Store) createPayloadIndexes(ctx context.Context) error {
	fields := []string{
		"category",
		"time_period",
		"document_type",
	}

	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qc.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qc.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field, err)
		}
	}

	return nil
}

// Upsert stores one point for the document, replaying safely over an
// existing point with the same ID.
func (s *Store) Upsert(ctx context.Context, doc *document.Document) error {
	if len(doc.Embedding) != VectorDimension {
		return fmt.Errorf("%w: document %s has %d dimensions, expected %d",
			ErrDimensionMismatch, doc.ID, len(doc.Embedding), VectorDimension)
	}

	point := &qc.PointStruct{
		Id:      qc.NewIDUUID(doc.ID),
		Vectors: qc.NewVectors(doc.Embedding...),
		Payload: qc.NewValueMap(map[string]any{
			"source_url":    doc.SourceURL,
			"category":      doc.Category,
			"time_period":   doc.TimePeriod,
			"content_hash":  doc.ContentHash,
			"title":         doc.Metadata["title"],
			"document_type": doc.Metadata["document_type"],
			"low_quality":   doc.LowQuality,
		}),
	}

	return s.upsertWithRetry(ctx, []*qc.PointStruct{point})
}

// upsertWithRetry performs an upsert with exponential backoff retry.
func (s *Store) upsertWithRetry(ctx context.Context, points []*qc.PointStruct) error {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = 500 * time.Millisecond
	exponentialBackoff.MaxInterval = 10 * time.Second
	exponentialBackoff.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qc.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(exponentialBackoff, ctx))
}

// Has reports whether a point exists for the given document ID.
func (s *Store) Has(ctx context.Context, id string) (bool, error) {
	result, err := s.client.Get(ctx, &qc.GetPoints{
		CollectionName: CollectionName,
		Ids:            []*qc.PointId{qc.NewIDUUID(id)},
	})
	if err != nil {
		return false, fmt.Errorf("failed to get point %s: %w", id, err)
	}

	return len(result) > 0, nil
}

// Count returns the number of points in the collection.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	info, err := s.client.GetCollectionInfo(ctx, CollectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection info: %w", err)
	}

	return info.GetPointsCount(), nil
}

// Close closes the Qdrant client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
