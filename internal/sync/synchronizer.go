package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	gosync "sync"

	"github.com/skra72/melcloudd/internal/device"
	"github.com/skra72/melcloudd/internal/events"
	"github.com/skra72/melcloudd/internal/melcloud"
	"github.com/skra72/melcloudd/internal/store"
)

// Synchronizer keeps one device's published state in step with the
// persisted cloud state. Check runs on the device's timer; SetFields is
// called by the command surfaces (MQTT bridge, HTTP API).
type Synchronizer struct {
	account  string
	deviceID int
	family   device.Family

	store   *store.Store
	bus     *events.Bus
	session *melcloud.Session

	mu       gosync.Mutex
	infoSent bool
	last     any
}

// NewSynchronizer creates a synchronizer for one discovered device.
func NewSynchronizer(account string, d device.Descriptor, st *store.Store, bus *events.Bus, session *melcloud.Session) (*Synchronizer, error) {
	family, err := d.Family()
	if err != nil {
		return nil, err
	}
	return &Synchronizer{
		account:  account,
		deviceID: d.DeviceID,
		family:   family,
		store:    st,
		bus:      bus,
		session:  session,
	}, nil
}

// DeviceID returns the cloud device identifier.
func (s *Synchronizer) DeviceID() int { return s.deviceID }

// Family returns the device family.
func (s *Synchronizer) Family() device.Family { return s.family }

// Snapshot returns the last published state, if any has been published
// yet.
func (s *Synchronizer) Snapshot() (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.last != nil
}

// Descriptor reads the device's persisted descriptor.
func (s *Synchronizer) Descriptor() (device.Descriptor, error) {
	var d device.Descriptor
	if err := s.store.ReadJSON(store.DeviceKey(s.account, s.deviceID), &d); err != nil {
		return device.Descriptor{}, err
	}
	return d, nil
}

// Check runs one synchronization cycle: read the persisted descriptor,
// normalize its state and publish what changed.
//
// A cycle never partially publishes. Incomplete state (required fields
// still null) keeps the previous snapshot and publishes a warning; any
// other failure publishes an error event. Either way the cycle ends and
// the next tick starts clean.
func (s *Synchronizer) Check(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	d, err := s.Descriptor()
	if err != nil {
		s.bus.Error(s.account, s.deviceID, fmt.Errorf("reading cached state: %w", err))
		return
	}
	if err := d.Validate(); err != nil {
		s.bus.Error(s.account, s.deviceID, err)
		return
	}

	snap, err := parseSnapshot(s.family, d.Device)
	if err != nil {
		if isIncomplete(err) {
			s.bus.Warning(s.account, fmt.Sprintf("device %d: %v", s.deviceID, err))
			return
		}
		s.bus.Error(s.account, s.deviceID, err)
		return
	}

	s.mu.Lock()
	firstComplete := !s.infoSent
	changed := s.last == nil || !reflect.DeepEqual(s.last, snap)
	if changed {
		s.last = snap
	}
	s.mu.Unlock()

	// infoSent latches only once deviceInfo actually went out, so a
	// failed identity extraction retries on the next cycle.
	if firstComplete {
		info, err := d.Identity()
		if err != nil {
			s.bus.Error(s.account, s.deviceID, err)
		} else {
			s.bus.DeviceInfo(s.account, s.family, info)
			s.mu.Lock()
			s.infoSent = true
			s.mu.Unlock()
		}
	}
	if changed {
		s.bus.StateChanged(s.account, s.deviceID, s.family, snap)
	}
}

// SetFields mutates the given fields on the device.
//
// The current snapshot is rebuilt from the persisted descriptor, the
// mutations are applied on top, and the result goes out as one command
// whose effective flags cover exactly the mutated fields. The server's
// state echo replaces the persisted runtime blob so the next Check sees
// the post-command state. Failed sends surface once as an error event
// and are not retried.
//
// Parameters:
//   - ctx: Cancels the send
//   - values: Field to new value; numbers may arrive as int or float64,
//     switches as bool
//
// Returns:
//   - error: ErrInvalidValue, ErrNoState, or the transport error
func (s *Synchronizer) SetFields(ctx context.Context, values map[device.Field]any) error {
	if len(values) == 0 {
		return fmt.Errorf("%w: no fields to set", ErrInvalidValue)
	}

	d, err := s.Descriptor()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoState, err)
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrNoState, err)
	}

	cmd, err := buildCommand(s.family, s.deviceID, d.Device, values)
	if err != nil {
		return err
	}

	echo, err := s.session.Send(ctx, cmd)
	if err != nil {
		s.bus.Error(s.account, s.deviceID, err)
		return err
	}

	// The echo is the device's post-command state. Persisting it keeps
	// the next Check from re-publishing the pre-command snapshot.
	if json.Valid(echo) {
		d.Device = echo
		if err := s.store.WriteJSON(store.DeviceKey(s.account, s.deviceID), d); err != nil {
			s.bus.Error(s.account, s.deviceID, fmt.Errorf("persisting command echo: %w", err))
		}
	}

	s.bus.Debug(s.account, fmt.Sprintf("device %d: command sent, flags %#x", s.deviceID, cmd.Flags()))
	return nil
}

// parseSnapshot normalizes a raw runtime blob for the family.
func parseSnapshot(family device.Family, raw json.RawMessage) (any, error) {
	switch family {
	case device.FamilyAirToAir:
		return device.ParseAta(raw)
	case device.FamilyAirToWater:
		return device.ParseAtw(raw)
	case device.FamilyEnergyRecovery:
		return device.ParseErv(raw)
	default:
		return nil, fmt.Errorf("%w: %d", device.ErrUnknownFamily, int(family))
	}
}
