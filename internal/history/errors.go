package history

import "errors"

// Sentinel errors for history operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, history.ErrDisabled) {
//	    // History is turned off in config, skip wiring
//	}
var (
	// ErrDisabled indicates history recording is disabled in config.
	ErrDisabled = errors.New("history: disabled in configuration")

	// ErrClosed indicates the recorder has been closed.
	ErrClosed = errors.New("history: recorder closed")

	// ErrNotRecordable indicates the event carries no device state.
	ErrNotRecordable = errors.New("history: event carries no state")
)
