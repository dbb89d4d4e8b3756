// Package history records device state changes in a local SQLite database.
//
// It subscribes to the event bus and appends one row per stateChanged
// event, keeping an audit trail of what each device reported over time.
// The trail survives restarts and is queryable through the status API.
//
// # Usage
//
//	rec, err := history.Open(cfg.History)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rec.Close()
//
//	rec.Attach(bus)
//
// # Retention
//
// When retention_days is set, a background sweep deletes rows older
// than the configured window. A value of 0 keeps rows forever.
//
// # Thread Safety
//
// All methods are safe for concurrent use. SQLite is opened with a
// single writer connection and WAL mode for concurrent reads.
package history
