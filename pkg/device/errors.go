package device

import "errors"

var (
	// ErrNotFound indicates a peer was not found
	ErrNotFound = errors.New("peer not found")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrNotConnected indicates no discovery engine is attached
	ErrNotConnected = errors.New("discovery engine not connected")

	// ErrValidation indicates a payload failed schema validation
	ErrValidation = errors.New("validation error")
)
