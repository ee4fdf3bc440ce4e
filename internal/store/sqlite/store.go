// Package sqlite persists documents in the authoritative relational
// store. The embedding travels with the row as a binary blob so vector
// sink repairs never re-embed.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bull/legis-etl/internal/document"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	source_url   TEXT NOT NULL,
	category     TEXT NOT NULL,
	time_period  TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	title        TEXT NOT NULL,
	clean_text   TEXT NOT NULL,
	metadata     TEXT NOT NULL,
	embedding    BLOB,
	chunks       INTEGER NOT NULL DEFAULT 0,
	low_quality  INTEGER NOT NULL DEFAULT 0,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
CREATE INDEX IF NOT EXISTS idx_documents_period ON documents(time_period);
`

// Store wraps the SQLite database holding loaded documents.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists. WAL keeps readers unblocked during loads.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces a document row keyed by ID. Replaying the
// same document is a no-op beyond refreshing updated_at.
func (s *Store) Upsert(ctx context.Context, doc *document.Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, source_url, category, time_period, content_hash,
			title, clean_text, metadata, embedding, chunks, low_quality, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_url = excluded.source_url,
			category = excluded.category,
			time_period = excluded.time_period,
			content_hash = excluded.content_hash,
			title = excluded.title,
			clean_text = excluded.clean_text,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			chunks = excluded.chunks,
			low_quality = excluded.low_quality,
			updated_at = excluded.updated_at`,
		doc.ID, doc.SourceURL, doc.Category, doc.TimePeriod, doc.ContentHash,
		doc.Metadata["title"], doc.CleanText, string(meta), encodeVector(doc.Embedding),
		doc.Chunks, boolToInt(doc.LowQuality), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	return nil
}

// Get loads a document row by ID. Returns ErrNotFound when no row exists.
func (s *Store) Get(ctx context.Context, id string) (*document.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_url, category, time_period, content_hash,
			clean_text, metadata, embedding, chunks, low_quality
		FROM documents WHERE id = ?`, id)

	var doc document.Document
	var meta string
	var blob []byte
	var lowQuality int

	err := row.Scan(&doc.ID, &doc.SourceURL, &doc.Category, &doc.TimePeriod,
		&doc.ContentHash, &doc.CleanText, &meta, &blob, &doc.Chunks, &lowQuality)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading document %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(meta), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
	}
	doc.Embedding = decodeVector(blob)
	doc.LowQuality = lowQuality != 0

	return &doc, nil
}

// Count returns the number of loaded documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// encodeVector packs float32 values little-endian for blob storage.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

// decodeVector unpacks a little-endian float32 blob.
func decodeVector(buf []byte) []float32 {
	if len(buf) == 0 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
