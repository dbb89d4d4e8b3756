package influxdb

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/skra72/melcloudd/internal/device"
	"github.com/skra72/melcloudd/internal/events"
)

// deviceStateMeasurement is the measurement name for snapshot points.
const deviceStateMeasurement = "device_state"

// Attach subscribes the client to the bus so every state change is
// written as one point. Other event kinds are ignored.
func (c *Client) Attach(bus *events.Bus) {
	bus.Subscribe(func(ev events.Event) {
		if ev.Kind != events.KindStateChanged || ev.State == nil {
			return
		}
		c.WriteDeviceState(ev.Account, ev.DeviceID, ev.Family, ev.State, ev.Time)
	})
}

// WriteDeviceState writes one device snapshot as a point.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Snapshots with no usable fields are dropped.
//
// Parameters:
//   - account: Account name the device belongs to
//   - deviceID: MELCloud device identifier
//   - family: Device family (used as a tag)
//   - state: Family snapshot struct; flattened to numeric and boolean fields
//   - at: Point timestamp; zero means now
func (c *Client) WriteDeviceState(account string, deviceID int, family device.Family, state any, at time.Time) {
	if !c.IsConnected() {
		return
	}

	fields := flattenState(state)
	if len(fields) == 0 {
		return
	}
	if at.IsZero() {
		at = time.Now()
	}

	point := write.NewPoint(
		deviceStateMeasurement,
		map[string]string{
			"account":   account,
			"device_id": strconv.Itoa(deviceID),
			"family":    family.String(),
		},
		fields,
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the snapshot helper, such as
// process level statistics.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// flattenState reduces a snapshot struct to point fields, keyed by the
// snapshot's JSON field names. Numbers become float64, booleans pass
// through, everything else (strings, nested values) is dropped since
// string fields have no place in a numeric series.
func flattenState(state any) map[string]interface{} {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}

	fields := make(map[string]interface{}, len(decoded))
	for k, v := range decoded {
		switch val := v.(type) {
		case float64:
			fields[k] = val
		case bool:
			fields[k] = val
		}
	}
	return fields
}
