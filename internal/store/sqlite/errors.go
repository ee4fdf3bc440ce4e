package sqlite

import "errors"

// ErrNotFound indicates no document row exists for the given ID.
var ErrNotFound = errors.New("document not found")
