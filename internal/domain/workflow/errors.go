package workflow

import "errors"

// Lifecycle errors. Fire wraps them with the states involved.
var (
	ErrInvalidTransition = errors.New("status change not allowed")
	ErrInvalidState      = errors.New("unknown task status")
	ErrGuardFailed       = errors.New("transition guard refused")
)
