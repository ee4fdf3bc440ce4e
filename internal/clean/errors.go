package clean

import "errors"

// ErrCleaningFailed is returned when raw input yields no usable text at
// all. The document is parked as failed; its raw bytes remain cached.
var ErrCleaningFailed = errors.New("cleaning failed: no text content")
