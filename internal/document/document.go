package document

import (
	"github.com/google/uuid"
)

// idNamespace is the UUID namespace for deriving document IDs from source URLs.
// Changing it would orphan every previously loaded record, so it is fixed.
var idNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8") // uuid.NameSpaceURL

// Document is one legislation record tracked end-to-end through the pipeline.
type Document struct {
	ID          string            // Deterministic UUID derived from SourceURL
	SourceURL   string            // Page the document was fetched from
	Category    string            // Crawl-time category filter ("planning", ...)
	TimePeriod  string            // Crawl-time period filter ("August/2024")
	ContentHash string            // SHA-256 of raw fetched bytes
	CleanText   string            // Normalized plain text
	Metadata    map[string]string // Extracted fields; every known key is present
	Embedding   []float32         // Document-level vector (mean of chunk vectors)
	Chunks      int               // Number of chunks that produced the embedding
	LowQuality  bool              // True when the document embedded with zero chunks
	Stage       Stage             // Last completed stage
	FailReason  string            // Set when the document is parked as failed
}

// NewID derives the stable document identifier from a source URL.
// The same URL always yields the same ID across runs and processes.
func NewID(sourceURL string) string {
	return uuid.NewSHA1(idNamespace, []byte(sourceURL)).String()
}
