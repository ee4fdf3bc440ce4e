package extract

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// CursorVersion is the current cursor schema version.
const CursorVersion = 1

// Cursor is the opaque resume token for paginated listing crawls. It is
// stored in the checkpoint between runs; calling ListDocuments twice with
// the same cursor yields the same continuation.
type Cursor struct {
	// Version is the schema version for future migrations.
	Version int `json:"v"`

	// Year is the legislation year the listing is scoped to.
	Year int `json:"year"`

	// Category is the title filter the listing is scoped to.
	Category string `json:"category"`

	// Page is the next listing page to fetch (1-based).
	Page int `json:"page"`
}

// NewCursor creates a cursor positioned at the first listing page.
func NewCursor(year int, category string) *Cursor {
	return &Cursor{
		Version:  CursorVersion,
		Year:     year,
		Category: category,
		Page:     1,
	}
}

// Encode serializes the cursor to a base64-encoded JSON string.
func (c *Cursor) Encode() string {
	if c == nil {
		return ""
	}
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor deserializes a cursor from a base64-encoded JSON string.
// An empty input returns nil (start from the beginning).
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var cursor Cursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, ErrInvalidCursor
	}

	return &cursor, nil
}

// ParseTimePeriod parses a "Month/Year" period such as "August/2024" and
// returns the year component used to scope listing pages.
func ParseTimePeriod(period string) (int, error) {
	t, err := time.Parse("January/2006", period)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimePeriod, period)
	}
	return t.Year(), nil
}
