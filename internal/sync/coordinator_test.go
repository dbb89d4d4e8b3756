package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skra72/melcloudd/internal/events"
	"github.com/skra72/melcloudd/internal/infrastructure/config"
	"github.com/skra72/melcloudd/internal/store"
)

// coordCloud is a fake MELCloud whose device list and failure behaviour
// tests tweak at runtime.
type coordCloud struct {
	server      *httptest.Server
	loginCalls  atomic.Int32
	expireLists atomic.Int32 // remaining ListDevices calls to 401
	roomTemp    atomic.Value // float64
}

func newCoordCloud(t *testing.T) *coordCloud {
	t.Helper()
	c := &coordCloud{}
	c.roomTemp.Store(21.5)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /Login/ClientLogin", func(w http.ResponseWriter, r *http.Request) {
		c.loginCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"ErrorId": nil,
			"LoginData": map[string]any{
				"ContextKey": "ctx-123",
				"Name":       "Jane",
			},
		})
	})
	mux.HandleFunc("GET /User/ListDevices", func(w http.ResponseWriter, r *http.Request) {
		if c.expireLists.Load() > 0 {
			c.expireLists.Add(-1)
			http.Error(w, "expired", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"ID": 1,
				"Structure": map[string]any{
					"Devices": []map[string]any{
						{
							"DeviceID":   1001,
							"DeviceName": "Living Room",
							"Type":       0,
							"Device": ataRuntime(func(m map[string]any) {
								m["RoomTemperature"] = c.roomTemp.Load()
							}),
						},
					},
				},
			},
		})
	})
	c.server = httptest.NewServer(mux)
	t.Cleanup(c.server.Close)
	return c
}

func newCoordinator(t *testing.T, cloud *coordCloud) (*Coordinator, *recorder) {
	t.Helper()

	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	bus := events.NewBus()
	rec := &recorder{}
	rec.attach(bus)

	cfg := config.AccountConfig{
		Name:                   "home",
		Email:                  "user@example.com",
		Password:               "hunter2",
		BaseURL:                cloud.server.URL,
		RefreshIntervalSeconds: 1,
		DeviceIntervalSeconds:  1,
	}
	return NewCoordinator(cfg, st, bus), rec
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

func TestCoordinatorFullCycle(t *testing.T) {
	cloud := newCoordCloud(t)
	coord, rec := newCoordinator(t, cloud)

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer coord.Stop()

	// First discovery fires immediately: connect, discover, spawn the
	// device synchronizer, and its timer's first tick publishes info
	// and state.
	waitFor(t, 2*time.Second, func() bool {
		return len(rec.ofKind(events.KindStateChanged)) >= 1
	})

	if n := len(rec.ofKind(events.KindConnected)); n != 1 {
		t.Errorf("got %d connected events, want 1", n)
	}
	if n := len(rec.ofKind(events.KindDeviceInfo)); n != 1 {
		t.Errorf("got %d deviceInfo events, want 1", n)
	}
	if _, err := coord.Synchronizer(1001); err != nil {
		t.Errorf("Synchronizer(1001) error = %v", err)
	}
	if _, err := coord.Synchronizer(9999); err == nil {
		t.Error("Synchronizer(9999) should fail for an undiscovered device")
	}

	// Scheduler state announced the discovery timer.
	schedEvents := rec.ofKind(events.KindSchedulerState)
	if len(schedEvents) == 0 {
		t.Fatal("no schedulerState events")
	}
	if !schedEvents[0].Running || len(schedEvents[0].Timers) == 0 || schedEvents[0].Timers[0] != "devicesList" {
		t.Errorf("first scheduler event = %+v", schedEvents[0])
	}
}

// Account info must never reach consumers unredacted.
func TestCoordinatorPersistsAndRedactsAccountInfo(t *testing.T) {
	cloud := newCoordCloud(t)
	coord, rec := newCoordinator(t, cloud)

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer coord.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return len(rec.ofKind(events.KindConnected)) >= 1
	})

	info, err := coord.AccountInfo()
	if err != nil {
		t.Fatalf("AccountInfo() error = %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(info, &m); err != nil {
		t.Fatalf("unmarshaling account info: %v", err)
	}
	if m["ContextKey"] != "removed" {
		t.Errorf("ContextKey = %v, want removed", m["ContextKey"])
	}
	if m["Name"] != "removed" {
		t.Errorf("Name = %v, want removed", m["Name"])
	}

	// Debug events carry the redacted payload too; the raw token must
	// never appear.
	for _, e := range rec.ofKind(events.KindDebug) {
		if strings.Contains(e.Message, "ctx-123") {
			t.Errorf("debug event leaked the context key: %q", e.Message)
		}
	}
}

// An expired session is repaired lazily: the failing cycle resets it and
// the next discovery tick logs in again.
func TestCoordinatorReconnectsAfterSessionExpiry(t *testing.T) {
	cloud := newCoordCloud(t)
	coord, rec := newCoordinator(t, cloud)

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer coord.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return len(rec.ofKind(events.KindConnected)) >= 1
	})

	// Next ListDevices reports the session dead.
	cloud.expireLists.Store(1)

	waitFor(t, 5*time.Second, func() bool {
		return cloud.loginCalls.Load() >= 2
	})
	waitFor(t, 5*time.Second, func() bool {
		return len(rec.ofKind(events.KindConnected)) >= 2
	})

	if n := len(rec.ofKind(events.KindWarning)); n == 0 {
		t.Error("expiry produced no warning event")
	}
}

func TestCoordinatorStateChangePropagates(t *testing.T) {
	cloud := newCoordCloud(t)
	coord, rec := newCoordinator(t, cloud)

	if err := coord.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer coord.Stop()

	waitFor(t, 2*time.Second, func() bool {
		return len(rec.ofKind(events.KindStateChanged)) >= 1
	})

	cloud.roomTemp.Store(23.0)

	waitFor(t, 5*time.Second, func() bool {
		return len(rec.ofKind(events.KindStateChanged)) >= 2
	})
}
