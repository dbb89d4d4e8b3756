package sync

import "errors"

var (
	// ErrUnknownDevice means no synchronizer exists for that device id.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrInvalidValue means a field mutation carried a value of the
	// wrong type or outside the field's domain.
	ErrInvalidValue = errors.New("invalid field value")

	// ErrNoState means a command was attempted before the device's
	// state was ever read successfully.
	ErrNoState = errors.New("no state available")
)
