package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrLockHeld occurs when another command holds the entity lock.
	ErrLockHeld = errors.New("entity locked by concurrent command")
)
