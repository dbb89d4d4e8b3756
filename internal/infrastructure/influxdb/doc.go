// Package influxdb ships device state changes to InfluxDB as time-series
// points.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health monitoring, and
// subscribes to the event bus so every stateChanged event becomes one
// point in the configured bucket.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Attach(bus)
//
// # Data Model
//
// Each point uses the device_state measurement, tagged with account,
// device_id and family. Numeric and boolean snapshot fields become
// point fields (booleans as they are, numbers as float64), so Flux
// queries can chart room_temperature or count power flips per device.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write errors surface asynchronously through SetOnError. Connection
// and health check errors are returned directly.
package influxdb
