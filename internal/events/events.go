package events

import (
	"sync"
	"time"

	"github.com/skra72/melcloudd/internal/device"
)

// Kind discriminates the event variants the core can publish.
type Kind int

const (
	// KindConnected reports a successful login for an account.
	KindConnected Kind = iota

	// KindDeviceInfo carries a device's static identity. Published once
	// per device per process lifetime, on the first complete state read.
	KindDeviceInfo

	// KindStateChanged carries a normalized state snapshot. Published
	// only when the snapshot differs from the previous one.
	KindStateChanged

	// KindWarning reports a recoverable oddity worth surfacing.
	KindWarning

	// KindError reports a failed cycle or command.
	KindError

	// KindDebug carries diagnostic detail. Consumers gate it on their
	// own verbosity.
	KindDebug

	// KindSchedulerState reports a scheduler starting or stopping, with
	// its timer names.
	KindSchedulerState
)

// String returns the variant name used in logs and MQTT topics.
func (k Kind) String() string {
	switch k {
	case KindConnected:
		return "connected"
	case KindDeviceInfo:
		return "deviceInfo"
	case KindStateChanged:
		return "stateChanged"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	case KindDebug:
		return "debug"
	case KindSchedulerState:
		return "schedulerState"
	default:
		return "unknown"
	}
}

// Event is one notification. Which fields carry meaning depends on Kind;
// unused fields stay at their zero value.
type Event struct {
	Kind    Kind
	Time    time.Time
	Account string

	// Device context for KindDeviceInfo, KindStateChanged and
	// device-scoped errors. DeviceID 0 means account scope.
	DeviceID int
	Family   device.Family

	// Info is set for KindDeviceInfo.
	Info *device.Identity

	// State is the family snapshot (device.AtaSnapshot, AtwSnapshot or
	// ErvSnapshot) for KindStateChanged.
	State any

	// Message is set for KindWarning, KindDebug and KindSchedulerState.
	Message string

	// Err is set for KindError.
	Err error

	// Timers and Running are set for KindSchedulerState.
	Timers  []string
	Running bool
}

// Handler consumes events. Handlers run on the publisher's goroutine and
// must return promptly.
type Handler func(Event)

// Bus fans events out to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler. Handlers are invoked in subscription
// order. Subscription is expected during wiring, before publishing
// starts; there is no unsubscribe.
func (b *Bus) Subscribe(h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish delivers the event to every handler, synchronously and in
// subscription order. A zero Time is stamped with the current time.
func (b *Bus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Connected publishes a login notification for an account.
func (b *Bus) Connected(account string) {
	b.Publish(Event{Kind: KindConnected, Account: account})
}

// DeviceInfo publishes a device's static identity.
func (b *Bus) DeviceInfo(account string, family device.Family, info device.Identity) {
	b.Publish(Event{
		Kind:     KindDeviceInfo,
		Account:  account,
		DeviceID: info.DeviceID,
		Family:   family,
		Info:     &info,
	})
}

// StateChanged publishes a fresh state snapshot for a device.
func (b *Bus) StateChanged(account string, deviceID int, family device.Family, state any) {
	b.Publish(Event{
		Kind:     KindStateChanged,
		Account:  account,
		DeviceID: deviceID,
		Family:   family,
		State:    state,
	})
}

// Warning publishes a recoverable oddity.
func (b *Bus) Warning(account, message string) {
	b.Publish(Event{Kind: KindWarning, Account: account, Message: message})
}

// Error publishes a failure. deviceID 0 means account scope.
func (b *Bus) Error(account string, deviceID int, err error) {
	b.Publish(Event{Kind: KindError, Account: account, DeviceID: deviceID, Err: err})
}

// Debug publishes diagnostic detail.
func (b *Bus) Debug(account, message string) {
	b.Publish(Event{Kind: KindDebug, Account: account, Message: message})
}

// SchedulerState publishes a scheduler lifecycle change with its timer
// names.
func (b *Bus) SchedulerState(account string, running bool, timers []string) {
	b.Publish(Event{
		Kind:    KindSchedulerState,
		Account: account,
		Running: running,
		Timers:  timers,
	})
}
