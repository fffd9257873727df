package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound          = errors.New("not found")
	ErrPersistence       = errors.New("persistence failure")
	ErrInvalidGrouping   = errors.New("invalid statistics grouping")
	ErrInvalidLimit      = errors.New("invalid statistics limit")
	ErrNoPendingRollover = errors.New("no pending rollover choice")
	ErrNotifyDisabled    = errors.New("notifications are disabled")
	ErrNoTransport       = errors.New("no notification transport configured")
)
