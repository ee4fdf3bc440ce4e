package checkpoint

import "errors"

var (
	// ErrCorruptCheckpoint indicates the checkpoint file exists but
	// cannot be decoded.
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint file")

	// ErrScopeMismatch indicates the checkpoint was written for a
	// different category or time period.
	ErrScopeMismatch = errors.New("checkpoint scope mismatch")

	// ErrStageViolation indicates an attempt to record a stage that skips
	// ahead of the document's recorded progress.
	ErrStageViolation = errors.New("illegal stage transition")
)
