// Package melcloud speaks the MELCloud cloud API: session login, device
// discovery and command submission.
//
// A Session owns one account's credentials and context key. Connect is
// idempotent; an established session is reused until the cloud reports it
// expired, at which point callers see ErrSessionExpired and are expected
// to Connect again on their next cycle. The Registry layers discovery on
// top of a Session: it fetches the building tree, flattens it into a
// deduplicated device list and persists every layer through the store so
// synchronizers read state from disk rather than hitting the cloud per
// device.
//
// The MELCloud endpoint presents a certificate chain that fails strict
// verification, so certificate checks default to off and can be
// re-enabled per account. Payloads containing account identity must pass
// RedactAccountInfo before they reach a log or event.
package melcloud
