package cache

import "errors"

// ErrCacheMiss is returned by Get when no entry exists for the URL.
var ErrCacheMiss = errors.New("cache miss")
