package device

import "errors"

// Sentinel errors for device parsing and command encoding.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrUnknownFamily indicates a device type id outside the supported
	// families (air-to-air 0, air-to-water 1, energy recovery 3).
	ErrUnknownFamily = errors.New("device: unknown device family")

	// ErrIncompleteState indicates a runtime state blob with a required
	// field missing or null. Such a state is transient and must not be
	// emitted or cached.
	ErrIncompleteState = errors.New("device: incomplete state")

	// ErrUnsupportedField indicates a field name with no effective flag in
	// the family's table. This is a programming error in the caller.
	ErrUnsupportedField = errors.New("device: unsupported command field")
)
