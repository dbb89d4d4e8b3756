// Package bridge republishes the synchronization engine's events onto
// MQTT and feeds set commands from MQTT back into it.
//
// Identity and state go out retained, one topic per device, so a
// consumer subscribing late immediately sees the current picture.
// Lifecycle events (connected, warnings, errors, scheduler state) go out
// non-retained under the account's event topic. Inbound set payloads are
// flat JSON objects keyed by field name:
//
//	melcloudd/home/ata/1001/set   {"Power": true, "SetTemperature": 22.5}
//
// The bridge validates the topic against the device's actual family and
// hands the mutation to the device's synchronizer, which encodes and
// submits it as one command.
package bridge
