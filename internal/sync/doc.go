// Package sync drives the cloud-to-consumer state pipeline.
//
// A Synchronizer owns one device. On every tick it re-reads the device's
// persisted descriptor, normalizes the family state and decides what to
// publish: identity once per process lifetime, state only when it
// differs from the last published snapshot. A descriptor with required
// fields still null publishes nothing and keeps the previous snapshot,
// so a half-populated cloud response never emits a bogus state.
//
// A Coordinator owns one account: its session, discovery timer and the
// per-device synchronizers it spawns as devices appear. Session expiry
// is handled lazily; the failing cycle reports it, resets the session
// and the next discovery tick logs in again.
//
// Commands flow the other way through SetFields, which rebuilds the
// current snapshot, applies the requested mutations, encodes their
// effective flags into a single request and submits it. Failed commands
// are not retried; the next read cycle shows what the device actually
// accepted.
package sync
