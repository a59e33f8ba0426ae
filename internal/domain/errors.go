package domain

import "errors"

// Domain errors represent error conditions in the merge and derivation engines.
// They are always wrapped with the offending store path and counts; check them
// with errors.Is.
var (
	// ErrNotFound is returned when a store or source path does not exist.
	ErrNotFound = errors.New("fahmunge: not found")

	// ErrSchemaMismatch is returned when a store lacks a recognised Ledger
	// container, or when its topology disagrees with the data being appended.
	ErrSchemaMismatch = errors.New("fahmunge: schema mismatch")

	// ErrInvariantViolation is returned when a derived store has drifted ahead
	// of its source store or the two have left lockstep.
	ErrInvariantViolation = errors.New("fahmunge: invariant violation")

	// ErrFragmentLoad is returned when a single source unit cannot be loaded.
	ErrFragmentLoad = errors.New("fahmunge: fragment load failure")

	// ErrCountMismatch is returned when a store's frame count disagrees with the
	// frame spans recorded in its own Ledger.
	ErrCountMismatch = errors.New("fahmunge: count mismatch")

	// ErrInvalidSelection is returned when atom indices fall outside the topology.
	ErrInvalidSelection = errors.New("fahmunge: invalid atom selection")

	// ErrStoreLocked is returned when another process holds a store open for writing.
	ErrStoreLocked = errors.New("fahmunge: store locked by another writer")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("fahmunge: invalid configuration")
)
