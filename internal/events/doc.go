// Package events carries notifications from the synchronization core to
// its consumers (MQTT bridge, state history, telemetry, status API).
//
// The bus deliberately has a fixed set of event variants rather than a
// generic topic space: every consumer switches on the variant and the
// compiler keeps producers and consumers in step. Delivery is synchronous
// and in subscription order on the publisher's goroutine, so events for
// one device are observed in the order they were produced. Handlers must
// not block; anything slow belongs behind the handler's own queue.
package events
