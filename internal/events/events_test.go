package events

import (
	"errors"
	"testing"

	"github.com/skra72/melcloudd/internal/device"
)

func TestBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.Subscribe(func(e Event) { order = append(order, "first") })
	bus.Subscribe(func(e Event) { order = append(order, "second") })
	bus.Subscribe(func(e Event) { order = append(order, "third") })

	bus.Connected("home")

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("delivered to %d handlers, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestBusPreservesEventOrder(t *testing.T) {
	bus := NewBus()

	var kinds []Kind
	bus.Subscribe(func(e Event) { kinds = append(kinds, e.Kind) })

	bus.Connected("home")
	bus.StateChanged("home", 1001, device.FamilyAirToAir, device.AtaSnapshot{Power: true})
	bus.Error("home", 1001, errors.New("boom"))

	want := []Kind{KindConnected, KindStateChanged, KindError}
	if len(kinds) != len(want) {
		t.Fatalf("received %d events, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d kind = %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestBusStampsTime(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe(func(e Event) { got = e })
	bus.Warning("home", "device list empty")

	if got.Time.IsZero() {
		t.Error("event Time was not stamped")
	}
	if got.Message != "device list empty" {
		t.Errorf("Message = %q", got.Message)
	}
}

func TestBusDeviceInfoCarriesIdentity(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe(func(e Event) { got = e })

	info := device.Identity{DeviceID: 1001, Name: "Living Room", Family: "ata"}
	bus.DeviceInfo("home", device.FamilyAirToAir, info)

	if got.Kind != KindDeviceInfo {
		t.Fatalf("Kind = %v, want KindDeviceInfo", got.Kind)
	}
	if got.DeviceID != 1001 {
		t.Errorf("DeviceID = %d, want 1001", got.DeviceID)
	}
	if got.Info == nil || got.Info.Name != "Living Room" {
		t.Errorf("Info = %+v, want Living Room identity", got.Info)
	}
}

func TestBusErrorScope(t *testing.T) {
	bus := NewBus()

	var got Event
	bus.Subscribe(func(e Event) { got = e })

	sentinel := errors.New("session expired")
	bus.Error("home", 0, sentinel)

	if got.Kind != KindError {
		t.Fatalf("Kind = %v, want KindError", got.Kind)
	}
	if got.DeviceID != 0 {
		t.Errorf("DeviceID = %d, want account scope 0", got.DeviceID)
	}
	if !errors.Is(got.Err, sentinel) {
		t.Errorf("Err = %v, want wrapped sentinel", got.Err)
	}
}

func TestBusNilHandlerIgnored(t *testing.T) {
	bus := NewBus()
	bus.Subscribe(nil)
	bus.Connected("home") // must not panic
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindConnected, "connected"},
		{KindDeviceInfo, "deviceInfo"},
		{KindStateChanged, "stateChanged"},
		{KindWarning, "warning"},
		{KindError, "error"},
		{KindDebug, "debug"},
		{KindSchedulerState, "schedulerState"},
		{Kind(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
