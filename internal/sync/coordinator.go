package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/skra72/melcloudd/internal/device"
	"github.com/skra72/melcloudd/internal/events"
	"github.com/skra72/melcloudd/internal/infrastructure/config"
	"github.com/skra72/melcloudd/internal/melcloud"
	"github.com/skra72/melcloudd/internal/scheduler"
	"github.com/skra72/melcloudd/internal/store"
)

// Coordinator runs the synchronization engine for one account: login,
// periodic discovery, and a synchronizer per discovered device.
type Coordinator struct {
	cfg      config.AccountConfig
	store    *store.Store
	bus      *events.Bus
	session  *melcloud.Session
	registry *melcloud.Registry
	sched    *scheduler.Scheduler

	mu        gosync.Mutex
	syncs     map[int]*Synchronizer
	announced bool
}

// NewCoordinator wires a coordinator for one configured account.
func NewCoordinator(cfg config.AccountConfig, st *store.Store, bus *events.Bus) *Coordinator {
	session := melcloud.NewSession(melcloud.Config{
		BaseURL:     cfg.BaseURL,
		Email:       cfg.Email,
		Password:    cfg.Password,
		Language:    cfg.Language,
		InsecureTLS: cfg.InsecureTLS(),
	})

	c := &Coordinator{
		cfg:      cfg,
		store:    st,
		bus:      bus,
		session:  session,
		registry: melcloud.NewRegistry(cfg.Name, st, bus),
		syncs:    make(map[int]*Synchronizer),
	}
	c.sched = scheduler.New(func(running bool, timers []string) {
		bus.SchedulerState(cfg.Name, running, timers)
	})
	return c
}

// Account returns the configured account name.
func (c *Coordinator) Account() string { return c.cfg.Name }

// Run prepares the account's persistence files and starts the discovery
// timer. The first discovery cycle fires immediately; device timers are
// added as devices are found. Run returns once the scheduler is started;
// Stop tears it down.
func (c *Coordinator) Run(ctx context.Context) error {
	for _, key := range []string{
		store.AccountInfoKey(c.cfg.Name),
		store.BuildingsKey(c.cfg.Name),
	} {
		if err := c.store.Ensure(key); err != nil {
			return fmt.Errorf("preparing storage for account %q: %w", c.cfg.Name, err)
		}
	}

	if err := c.sched.Add("devicesList", c.cfg.RefreshInterval(), c.discoverCycle); err != nil {
		return err
	}
	return c.sched.Start(ctx)
}

// Stop halts all timers and waits for in-flight cycles.
func (c *Coordinator) Stop() {
	c.sched.Stop()
}

// Synchronizer returns the synchronizer for a device id.
func (c *Coordinator) Synchronizer(deviceID int) (*Synchronizer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.syncs[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDevice, deviceID)
	}
	return s, nil
}

// Synchronizers returns all device synchronizers in no particular order.
func (c *Coordinator) Synchronizers() []*Synchronizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Synchronizer, 0, len(c.syncs))
	for _, s := range c.syncs {
		out = append(out, s)
	}
	return out
}

// AccountInfo returns the persisted account info with sensitive fields
// redacted. Safe to expose over the status API.
func (c *Coordinator) AccountInfo() (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.store.ReadJSON(store.AccountInfoKey(c.cfg.Name), &raw); err != nil {
		return nil, err
	}
	return melcloud.RedactAccountInfo(raw), nil
}

// UpdateOptions pushes modified account settings to the cloud and
// persists them on success.
func (c *Coordinator) UpdateOptions(ctx context.Context, accountInfo json.RawMessage) error {
	if err := c.session.UpdateApplicationOptions(ctx, accountInfo); err != nil {
		c.handleSessionError(err)
		return err
	}
	return c.store.WriteJSON(store.AccountInfoKey(c.cfg.Name), accountInfo)
}

// discoverCycle is the devicesList timer body: connect if needed,
// refresh the device list, and grow the device timer set.
func (c *Coordinator) discoverCycle(ctx context.Context) {
	login, err := c.session.Connect(ctx)
	if err != nil {
		c.bus.Error(c.cfg.Name, 0, err)
		return
	}

	c.mu.Lock()
	firstLogin := !c.announced
	c.announced = true
	c.mu.Unlock()

	if firstLogin {
		if err := c.store.WriteJSON(store.AccountInfoKey(c.cfg.Name), login.AccountInfo); err != nil {
			c.bus.Error(c.cfg.Name, 0, fmt.Errorf("persisting account info: %w", err))
		}
		c.bus.Connected(c.cfg.Name)
		c.bus.Debug(c.cfg.Name, "account info: "+string(melcloud.RedactAccountInfo(login.AccountInfo)))
	}

	devices, err := c.registry.Discover(ctx, c.session)
	if err != nil {
		c.handleSessionError(err)
		if !errors.Is(err, melcloud.ErrNoDevices) {
			c.bus.Error(c.cfg.Name, 0, err)
		}
		return
	}

	for _, d := range devices {
		if err := c.ensureSynchronizer(d); err != nil {
			c.bus.Error(c.cfg.Name, d.DeviceID, err)
		}
	}
}

// ensureSynchronizer creates the synchronizer and its timer on first
// sight of a device. Known devices are left alone; their persisted
// descriptor was already refreshed by discovery.
func (c *Coordinator) ensureSynchronizer(d device.Descriptor) error {
	c.mu.Lock()
	if _, ok := c.syncs[d.DeviceID]; ok {
		c.mu.Unlock()
		return nil
	}
	s, err := NewSynchronizer(c.cfg.Name, d, c.store, c.bus, c.session)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.syncs[d.DeviceID] = s
	c.mu.Unlock()

	name := fmt.Sprintf("device-%d", d.DeviceID)
	return c.sched.Add(name, c.cfg.DeviceInterval(), s.Check)
}

// handleSessionError resets the session when the cloud reports it
// expired, so the next discovery tick logs in afresh. Other errors pass
// through untouched.
func (c *Coordinator) handleSessionError(err error) {
	if !errors.Is(err, melcloud.ErrSessionExpired) {
		return
	}
	c.session.Reset()
	c.mu.Lock()
	c.announced = false
	c.mu.Unlock()
	c.bus.Warning(c.cfg.Name, "session expired, reconnecting on next cycle")
}

// WaitReady blocks until at least one device synchronizer exists or the
// context ends. Intended for tests and for surfaces that should not
// come up before first discovery.
func (c *Coordinator) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		c.mu.Lock()
		n := len(c.syncs)
		c.mu.Unlock()
		if n > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
