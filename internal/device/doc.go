// Package device models the three MELCloud device families and the command
// encoding contract shared with the cloud service.
//
// A Descriptor is the flattened ListDevices entry for one unit: identity,
// location, capability flags and the raw family-specific runtime blob. Each
// family (air-to-air, air-to-water, energy-recovery ventilator) has its own
// snapshot type produced by a Parse function that validates every required
// field at the deserialization boundary; a blob with any required field
// missing yields ErrIncompleteState and no snapshot.
//
// Snapshots are plain value types. Consumers receive copies and must route
// all mutation through the command path: build a family command from a
// snapshot, OR the effective flags of every changed field into one bitmask
// with EncodeFlags, and hand the command to the synchronizer. The flag
// tables are a wire-protocol contract with MELCloud and must not be
// altered.
package device
