package scheduler

import "errors"

var (
	// ErrAlreadyRunning means Start was called on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")

	// ErrDuplicateTimer means a timer with that name already exists.
	ErrDuplicateTimer = errors.New("duplicate timer name")

	// ErrInvalidTimer means a timer was added with an empty name, a
	// non-positive interval or a nil task.
	ErrInvalidTimer = errors.New("invalid timer")
)
