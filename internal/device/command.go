package device

// Command is a family-specific set request body ready for the cloud API.
// The transport marks it pending immediately before sending so the server
// treats it as an explicit write rather than a state echo.
type Command interface {
	// Family identifies which Set endpoint the command targets.
	Family() Family

	// TargetDevice returns the cloud device identifier.
	TargetDevice() int

	// Flags returns the combined effective flags of the mutated fields.
	Flags() uint64

	// MarkPending sets HasPendingCommand on the request body.
	MarkPending()
}
