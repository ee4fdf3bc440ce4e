package extract

import "errors"

var (
	// ErrFetchExhausted is returned when a fetch fails after every retry
	// attempt; the document is parked as failed and retried on the next run.
	ErrFetchExhausted = errors.New("fetch retries exhausted")

	// ErrInvalidCursor is returned when a resume cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid listing cursor")

	// ErrInvalidTimePeriod is returned when a time period is not in
	// "Month/Year" form.
	ErrInvalidTimePeriod = errors.New("invalid time period, expected Month/Year")
)
