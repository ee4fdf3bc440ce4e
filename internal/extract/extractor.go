// Package extract implements the paginated crawl of the legislation source
// site: listing discovery with opaque resume cursors, and cached, rate
// limited page fetches.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/bull/legis-etl/internal/cache"
)

// DefaultBaseURL is the public legislation source site.
const DefaultBaseURL = "https://www.legislation.gov.uk"

// Extractor discovers and fetches legislation pages, consulting the content
// cache before touching the network.
type Extractor struct {
	client  *Client
	cache   *cache.Cache
	baseURL string
	logger  *slog.Logger
}

// NewExtractor creates an extractor. baseURL defaults to the public site
// when empty.
func NewExtractor(client *Client, pageCache *cache.Cache, baseURL string, logger *slog.Logger) *Extractor {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client:  client,
		cache:   pageCache,
		baseURL: baseURL,
		logger:  logger,
	}
}

// ListDocuments fetches one listing page of documents for the category and
// time period, starting at the given cursor (empty means the first page).
// It returns the listings and the cursor for the next page; an empty next
// cursor means the listing is exhausted. Calling it again with the same
// cursor returns the same continuation.
func (e *Extractor) ListDocuments(ctx context.Context, category, period, cursorStr string) ([]Listing, string, error) {
	cursor, err := DecodeCursor(cursorStr)
	if err != nil {
		return nil, "", err
	}
	if cursor == nil {
		year, err := ParseTimePeriod(period)
		if err != nil {
			return nil, "", err
		}
		cursor = NewCursor(year, category)
	}

	pageURL := fmt.Sprintf("%s/all/%d?title=%s&page=%d",
		e.baseURL, cursor.Year, url.QueryEscape(cursor.Category), cursor.Page)

	raw, _, err := e.fetchWithCache(ctx, pageURL)
	if err != nil {
		return nil, "", fmt.Errorf("listing page %d: %w", cursor.Page, err)
	}

	listings := ParseListingPage(raw, e.baseURL)
	e.logger.Debug("parsed listing page", "page", cursor.Page, "rows", len(listings))

	if len(listings) == 0 {
		return nil, "", nil
	}

	next := &Cursor{
		Version:  CursorVersion,
		Year:     cursor.Year,
		Category: cursor.Category,
		Page:     cursor.Page + 1,
	}
	return listings, next.Encode(), nil
}

// FetchDocument retrieves the raw bytes of a document page and their
// content hash, serving from the cache when possible.
func (e *Extractor) FetchDocument(ctx context.Context, pageURL string) ([]byte, string, error) {
	return e.fetchWithCache(ctx, pageURL)
}

// fetchWithCache checks the cache first and falls through to the network on
// a miss. Cache write failures are logged and swallowed; the pipeline
// continues with the freshly fetched bytes.
func (e *Extractor) fetchWithCache(ctx context.Context, pageURL string) ([]byte, string, error) {
	raw, hash, err := e.cache.Get(ctx, pageURL)
	if err == nil {
		e.logger.Debug("cache hit", "url", pageURL)
		return raw, hash, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		e.logger.Warn("cache read failed, fetching", "url", pageURL, "error", err)
	}

	raw, err = e.client.Fetch(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}

	hash, err = e.cache.Put(ctx, pageURL, raw)
	if err != nil {
		e.logger.Warn("cache write failed", "url", pageURL, "error", err)
	}

	return raw, hash, nil
}
