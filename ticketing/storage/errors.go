package storage

import "errors"

var (
	// ErrNotFound is returned when a lookup by id finds nothing.
	ErrNotFound = errors.New("storage: not found")

	// ErrAgentAtCapacity is returned by AssignTicket when the target agent's
	// current_load reached max_load between candidate selection and commit.
	ErrAgentAtCapacity = errors.New("storage: agent at capacity")
)
