package melcloud

import "errors"

// Sentinel errors for cloud API failures. Callers branch with errors.Is;
// the wrapped message carries the detail.
var (
	// ErrAuth means the cloud rejected the credentials. Retrying with
	// the same credentials will not help.
	ErrAuth = errors.New("authentication rejected")

	// ErrSessionExpired means the context key is no longer accepted.
	// A fresh Connect establishes a new one.
	ErrSessionExpired = errors.New("session expired")

	// ErrNotConnected means an operation needing a context key ran
	// before Connect succeeded.
	ErrNotConnected = errors.New("not connected")

	// ErrTransport wraps network-level failures (DNS, TLS, timeouts).
	ErrTransport = errors.New("transport failure")

	// ErrRemote wraps unexpected responses from the cloud service.
	ErrRemote = errors.New("remote service error")

	// ErrDiscovery means the device list could not be fetched or read.
	ErrDiscovery = errors.New("device discovery failed")

	// ErrNoDevices means discovery succeeded but the account has no
	// devices attached.
	ErrNoDevices = errors.New("no devices found")
)
