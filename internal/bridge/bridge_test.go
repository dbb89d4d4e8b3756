package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/skra72/melcloudd/internal/device"
	"github.com/skra72/melcloudd/internal/events"
	"github.com/skra72/melcloudd/internal/infrastructure/config"
	"github.com/skra72/melcloudd/internal/infrastructure/logging"
	"github.com/skra72/melcloudd/internal/infrastructure/mqtt"
	"github.com/skra72/melcloudd/internal/store"
	"github.com/skra72/melcloudd/internal/sync"
)

// fakeBroker records publishes and tracks subscriptions in memory.
type fakeBroker struct {
	mu         gosync.Mutex
	retained   map[string][]byte
	eventMsgs  map[string][][]byte
	subscribed []string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		retained:  make(map[string][]byte),
		eventMsgs: make(map[string][][]byte),
	}
}

func (f *fakeBroker) PublishRetained(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retained[topic] = payload
	return nil
}

func (f *fakeBroker) PublishEvent(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventMsgs[topic] = append(f.eventMsgs[topic], payload)
	return nil
}

func (f *fakeBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, topic)
	return nil
}

func (f *fakeBroker) Topics() mqtt.Topics {
	return mqtt.NewTopics("")
}

func (f *fakeBroker) retainedPayload(topic string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.retained[topic]
	return p, ok
}

// fakeCloudEnv runs a stub MELCloud and a coordinator over it.
type fakeCloudEnv struct {
	coord    *sync.Coordinator
	bus      *events.Bus
	received map[string]any
	mu       gosync.Mutex
}

func newFakeCloudEnv(t *testing.T) *fakeCloudEnv {
	t.Helper()
	env := &fakeCloudEnv{received: make(map[string]any)}

	runtime := map[string]any{
		"Power":                   true,
		"RoomTemperature":         21.5,
		"SetTemperature":          22.0,
		"OperationMode":           device.AtaModeHeat,
		"SetFanSpeed":             3,
		"VaneHorizontalDirection": 0,
		"VaneVerticalDirection":   2,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /Login/ClientLogin", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ErrorId":   nil,
			"LoginData": map[string]any{"ContextKey": "ctx"},
		})
	})
	mux.HandleFunc("GET /User/ListDevices", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"ID": 1,
				"Structure": map[string]any{
					"Devices": []map[string]any{
						{"DeviceID": 1001, "DeviceName": "Living Room", "Type": 0, "Device": runtime},
					},
				},
			},
		})
	})
	mux.HandleFunc("POST /Device/SetAta", func(w http.ResponseWriter, r *http.Request) {
		env.mu.Lock()
		json.NewDecoder(r.Body).Decode(&env.received)
		env.mu.Unlock()
		echo, _ := json.Marshal(runtime)
		w.Write(echo)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	env.bus = events.NewBus()
	env.coord = sync.NewCoordinator(config.AccountConfig{
		Name:                   "home",
		Email:                  "a",
		Password:               "b",
		BaseURL:                server.URL,
		RefreshIntervalSeconds: 1,
		DeviceIntervalSeconds:  1,
	}, st, env.bus)
	return env
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestBridgeRepublishesInfoAndState(t *testing.T) {
	env := newFakeCloudEnv(t)
	broker := newFakeBroker()

	b := New(broker, []*sync.Coordinator{env.coord}, testLogger())
	if err := b.Start(context.Background(), env.bus); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(broker.subscribed) != 1 || broker.subscribed[0] != "melcloudd/home/+/+/set" {
		t.Fatalf("subscriptions = %v", broker.subscribed)
	}

	if err := env.coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer env.coord.Stop()

	waitFor(t, 2*time.Second, func() bool {
		_, ok := broker.retainedPayload("melcloudd/home/ata/1001/state")
		return ok
	})

	info, ok := broker.retainedPayload("melcloudd/home/ata/1001/info")
	if !ok {
		t.Fatal("no retained info payload")
	}
	var identity device.Identity
	if err := json.Unmarshal(info, &identity); err != nil {
		t.Fatalf("unmarshaling info payload: %v", err)
	}
	if identity.Name != "Living Room" || identity.Manufacturer != "Mitsubishi" {
		t.Errorf("identity = %+v", identity)
	}

	state, _ := broker.retainedPayload("melcloudd/home/ata/1001/state")
	var snap device.AtaSnapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		t.Fatalf("unmarshaling state payload: %v", err)
	}
	if !snap.Power || snap.SetTemp != 22.0 {
		t.Errorf("snapshot = %+v", snap)
	}

	// Lifecycle events are not retained.
	broker.mu.Lock()
	connected := broker.eventMsgs["melcloudd/home/event/connected"]
	broker.mu.Unlock()
	if len(connected) != 1 {
		t.Errorf("got %d connected events, want 1", len(connected))
	}
}

func TestBridgeReplaysStateOnLateStart(t *testing.T) {
	env := newFakeCloudEnv(t)
	broker := newFakeBroker()

	// The coordinator synchronizes before the bridge exists, so its
	// first deviceInfo and stateChanged events reach nobody.
	if err := env.coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer env.coord.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.coord.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		for _, s := range env.coord.Synchronizers() {
			if _, ok := s.Snapshot(); ok {
				return true
			}
		}
		return false
	})

	b := New(broker, []*sync.Coordinator{env.coord}, testLogger())
	if err := b.Start(context.Background(), env.bus); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	info, ok := broker.retainedPayload("melcloudd/home/ata/1001/info")
	if !ok {
		t.Fatal("no retained info payload after late Start()")
	}
	var identity device.Identity
	if err := json.Unmarshal(info, &identity); err != nil {
		t.Fatalf("unmarshaling info payload: %v", err)
	}
	if identity.DeviceID != 1001 || identity.Name != "Living Room" {
		t.Errorf("identity = %+v", identity)
	}

	state, ok := broker.retainedPayload("melcloudd/home/ata/1001/state")
	if !ok {
		t.Fatal("no retained state payload after late Start()")
	}
	var snap device.AtaSnapshot
	if err := json.Unmarshal(state, &snap); err != nil {
		t.Fatalf("unmarshaling state payload: %v", err)
	}
	if !snap.Power || snap.SetTemp != 22.0 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestBridgeHandleSetAppliesCommand(t *testing.T) {
	env := newFakeCloudEnv(t)
	broker := newFakeBroker()

	b := New(broker, []*sync.Coordinator{env.coord}, testLogger())
	if err := b.Start(context.Background(), env.bus); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer env.coord.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.coord.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}

	payload := []byte(`{"Power": false, "SetTemperature": 19.5}`)
	if err := b.handleSet("melcloudd/home/ata/1001/set", payload); err != nil {
		t.Fatalf("handleSet() error = %v", err)
	}

	env.mu.Lock()
	defer env.mu.Unlock()
	if env.received["Power"] != false {
		t.Errorf("wire Power = %v, want false", env.received["Power"])
	}
	if env.received["SetTemperature"] != 19.5 {
		t.Errorf("wire SetTemperature = %v, want 19.5", env.received["SetTemperature"])
	}
	if env.received["HasPendingCommand"] != true {
		t.Error("wire command lacks HasPendingCommand")
	}
}

func TestBridgeHandleSetRejections(t *testing.T) {
	env := newFakeCloudEnv(t)
	broker := newFakeBroker()

	b := New(broker, []*sync.Coordinator{env.coord}, testLogger())
	if err := b.Start(context.Background(), env.bus); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := env.coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer env.coord.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := env.coord.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}

	tests := []struct {
		name    string
		topic   string
		payload string
		wantSub string
	}{
		{"unknown account", "melcloudd/other/ata/1001/set", `{"Power":true}`, "unconfigured account"},
		{"unknown device", "melcloudd/home/ata/9999/set", `{"Power":true}`, "unknown device"},
		{"family mismatch", "melcloudd/home/erv/1001/set", `{"Power":true}`, "does not match"},
		{"bad payload", "melcloudd/home/ata/1001/set", `not json`, "decoding set payload"},
		{"bad field value", "melcloudd/home/ata/1001/set", `{"Power":"yes"}`, "invalid field value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.handleSet(tt.topic, []byte(tt.payload))
			if err == nil {
				t.Fatal("handleSet() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("handleSet() error = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}
