package models

import "errors"

// Sentinel errors shared across stores and handlers. Stores wrap these with
// fmt.Errorf("...: %w", ...) so handlers can map them with errors.Is.
var (
	// ErrInvalidStage rejects a stage name outside the configured
	// enumeration, before any write happens.
	ErrInvalidStage = errors.New("unknown funnel stage")

	// ErrNotFound signals a direct lookup against a missing entity.
	// Metrics queries never return it; they degrade to empty results.
	ErrNotFound = errors.New("not found")

	// ErrConflict signals a lost conditional update. Retried once by the
	// caller before surfacing.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrTransient marks storage failures (timeouts, dropped connections)
	// that are safe to retry on read paths.
	ErrTransient = errors.New("transient storage error")
)
