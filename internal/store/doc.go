// Package store persists JSON snapshots of cloud-side state to disk.
//
// The store is a flat key→blob cache: one file per account-info blob, one
// per building tree, one per device descriptor. Files are pretty-printed
// JSON, created empty before first use and replaced wholesale on every
// save via an atomic temp-file rename. There is no field-level merging;
// the cloud response is always authoritative for the whole file.
//
// Layout under the configured root:
//
//	<account>/account.json      last account-info blob (full, unredacted)
//	<account>/buildings.json    last discovered building tree
//	<account>/device_<id>.json  last descriptor+state for one device
package store
