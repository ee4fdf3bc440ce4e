package pipeline

import "errors"

var (
	// ErrMissingComponent indicates the pipeline was built without one of
	// its required components.
	ErrMissingComponent = errors.New("missing pipeline component")

	// ErrCheckpointWrite indicates progress could not be recorded; the
	// run aborts rather than lose track of completed work.
	ErrCheckpointWrite = errors.New("checkpoint write failed")
)
