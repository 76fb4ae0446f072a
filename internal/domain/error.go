package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("could not read database row")

	// Job engine errors
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStaleState        = errors.New("stale job state")
	ErrNotRetryable      = errors.New("only failed jobs may be retried")
	ErrNotCancellable    = errors.New("job is not cancellable")
	ErrStoreUnavailable  = errors.New("job store unavailable")
)
