package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skra72/melcloudd/internal/device"
	"github.com/skra72/melcloudd/internal/events"
	"github.com/skra72/melcloudd/internal/infrastructure/logging"
	"github.com/skra72/melcloudd/internal/infrastructure/mqtt"
	"github.com/skra72/melcloudd/internal/sync"
)

// commandTimeout bounds one inbound set command end to end: parse,
// encode and the cloud round trip.
const commandTimeout = 30 * time.Second

// Publisher is the MQTT surface the bridge needs. *mqtt.Client
// satisfies it; tests substitute a recorder.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
	PublishEvent(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Topics() mqtt.Topics
}

// eventPayload is the wire shape of non-retained lifecycle events.
type eventPayload struct {
	Kind      string `json:"kind"`
	Account   string `json:"account"`
	DeviceID  int    `json:"device_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Running   *bool  `json:"running,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Bridge connects one event bus and a set of account coordinators to an
// MQTT broker.
type Bridge struct {
	client Publisher
	logger *logging.Logger

	coords map[string]*sync.Coordinator
}

// New creates a bridge over the given coordinators, keyed by account
// name.
func New(client Publisher, coordinators []*sync.Coordinator, logger *logging.Logger) *Bridge {
	coords := make(map[string]*sync.Coordinator, len(coordinators))
	for _, c := range coordinators {
		coords[c.Account()] = c
	}
	return &Bridge{client: client, logger: logger, coords: coords}
}

// Start subscribes the bridge to the bus and to every account's set
// topic pattern, then republishes the current identity and state of
// every device the coordinators already know. The replay covers
// coordinators that synchronized before the bridge attached, so the
// retained info and state topics are correct regardless of startup
// order.
func (b *Bridge) Start(ctx context.Context, bus *events.Bus) error {
	bus.Subscribe(func(e events.Event) {
		b.handleEvent(ctx, e)
	})

	for account := range b.coords {
		pattern := b.client.Topics().SetPattern(account)
		if err := b.client.Subscribe(pattern, 1, b.handleSet); err != nil {
			return fmt.Errorf("subscribing to %q: %w", pattern, err)
		}
	}

	b.republishCurrent()
	return nil
}

// republishCurrent pushes the present identity and snapshot of every
// known device onto the retained topics.
func (b *Bridge) republishCurrent() {
	topics := b.client.Topics()
	for account, coord := range b.coords {
		for _, s := range coord.Synchronizers() {
			d, err := s.Descriptor()
			if err != nil {
				continue
			}
			if info, err := d.Identity(); err == nil {
				if payload, err := json.Marshal(info); err == nil {
					topic := topics.DeviceInfo(account, s.Family(), s.DeviceID())
					if err := b.client.PublishRetained(topic, payload); err != nil {
						b.logger.Warn("republishing device info", "topic", topic, "error", err)
					}
				}
			}
			if state, ok := s.Snapshot(); ok {
				if payload, err := json.Marshal(state); err == nil {
					topic := topics.DeviceState(account, s.Family(), s.DeviceID())
					if err := b.client.PublishRetained(topic, payload); err != nil {
						b.logger.Warn("republishing device state", "topic", topic, "error", err)
					}
				}
			}
		}
	}
}

// handleEvent maps one bus event onto the topic scheme.
func (b *Bridge) handleEvent(ctx context.Context, e events.Event) {
	if ctx.Err() != nil {
		return
	}
	topics := b.client.Topics()

	switch e.Kind {
	case events.KindDeviceInfo:
		payload, err := json.Marshal(e.Info)
		if err != nil {
			b.logger.Error("encoding device info", "device_id", e.DeviceID, "error", err)
			return
		}
		topic := topics.DeviceInfo(e.Account, e.Family, e.DeviceID)
		if err := b.client.PublishRetained(topic, payload); err != nil {
			b.logger.Warn("publishing device info", "topic", topic, "error", err)
		}

	case events.KindStateChanged:
		payload, err := json.Marshal(e.State)
		if err != nil {
			b.logger.Error("encoding device state", "device_id", e.DeviceID, "error", err)
			return
		}
		topic := topics.DeviceState(e.Account, e.Family, e.DeviceID)
		if err := b.client.PublishRetained(topic, payload); err != nil {
			b.logger.Warn("publishing device state", "topic", topic, "error", err)
		}

	case events.KindConnected, events.KindWarning, events.KindError, events.KindSchedulerState:
		b.publishLifecycle(e)

	case events.KindDebug:
		// Debug stays on the log; the broker does not need it.
	}
}

func (b *Bridge) publishLifecycle(e events.Event) {
	p := eventPayload{
		Kind:      e.Kind.String(),
		Account:   e.Account,
		DeviceID:  e.DeviceID,
		Message:   e.Message,
		Timestamp: e.Time.UTC().Format(time.RFC3339),
	}
	if e.Err != nil {
		p.Message = e.Err.Error()
	}
	if e.Kind == events.KindSchedulerState {
		running := e.Running
		p.Running = &running
	}

	payload, err := json.Marshal(p)
	if err != nil {
		b.logger.Error("encoding lifecycle event", "kind", e.Kind.String(), "error", err)
		return
	}
	topic := b.client.Topics().AccountEvent(e.Account, e.Kind.String())
	if err := b.client.PublishEvent(topic, payload); err != nil {
		b.logger.Warn("publishing lifecycle event", "topic", topic, "error", err)
	}
}

// handleSet processes one inbound command message.
func (b *Bridge) handleSet(topic string, payload []byte) error {
	account, family, deviceID, err := b.client.Topics().ParseSet(topic)
	if err != nil {
		return err
	}

	coord, ok := b.coords[account]
	if !ok {
		return fmt.Errorf("set command for unconfigured account %q", account)
	}
	s, err := coord.Synchronizer(deviceID)
	if err != nil {
		return fmt.Errorf("set command for device %d: %w", deviceID, err)
	}
	if s.Family() != family {
		return fmt.Errorf("set topic family %s does not match device %d family %s", family, deviceID, s.Family())
	}

	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return fmt.Errorf("decoding set payload for device %d: %w", deviceID, err)
	}
	values := make(map[device.Field]any, len(raw))
	for k, v := range raw {
		values[device.Field(k)] = v
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := s.SetFields(ctx, values); err != nil {
		return fmt.Errorf("applying set command to device %d: %w", deviceID, err)
	}
	b.logger.Info("command applied", "account", account, "device_id", deviceID, "fields", len(values))
	return nil
}
