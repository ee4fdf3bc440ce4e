package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent identifies the crawler to the source site.
	DefaultUserAgent = "legis-etl/1.0 (+https://github.com/bull/legis-etl)"

	// DefaultMinInterval is the minimum delay between requests, enforced
	// globally across all workers, not per document.
	DefaultMinInterval = 500 * time.Millisecond

	// DefaultFetchTimeout bounds a single HTTP request.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultMaxRetries bounds retry attempts for a single fetch before the
	// document is marked failed.
	DefaultMaxRetries = 4
)

// Client issues rate-limited, retried HTTP fetches against the source site.
// The politeness limiter is a single token bucket shared by every caller.
type Client struct {
	http       *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries uint64
}

// NewClient creates a fetch client. minInterval is the global politeness
// delay between requests; zero values fall back to defaults.
func NewClient(timeout, minInterval time.Duration, maxRetries int) *Client {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Client{
		http:       &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Every(minInterval), 1),
		userAgent:  DefaultUserAgent,
		maxRetries: uint64(maxRetries),
	}
}

// Fetch retrieves the body of a URL. Transient failures (network errors,
// 5xx, 429) are retried with exponential backoff and jitter up to the
// configured attempt count; other HTTP errors fail immediately.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			// Network-level errors are transient.
			return err
		}
		defer resp.Body.Close()

		if !isSuccess(resp.StatusCode) {
			err := fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
			if isTransientStatus(resp.StatusCode) {
				return err
			}
			return backoff.Permanent(err)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 0 // bounded by retry count, not wall clock

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrFetchExhausted, err)
	}

	return body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// isTransientStatus reports whether an HTTP status is worth retrying.
func isTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
