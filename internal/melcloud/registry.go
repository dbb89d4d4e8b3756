package melcloud

import (
	"context"
	"fmt"

	"github.com/skra72/melcloudd/internal/device"
	"github.com/skra72/melcloudd/internal/events"
	"github.com/skra72/melcloudd/internal/store"
)

// Registry performs device discovery for one account and keeps the
// persistence layer current. Each pass rewrites the buildings file and
// one file per device wholesale, so the on-disk copy always mirrors the
// last successful ListDevices response.
type Registry struct {
	account string
	store   *store.Store
	bus     *events.Bus
}

// NewRegistry creates a registry for one account.
func NewRegistry(account string, st *store.Store, bus *events.Bus) *Registry {
	return &Registry{account: account, store: st, bus: bus}
}

// Discover fetches the building tree, persists it, and returns the
// flattened device list.
//
// An empty account (no buildings, or buildings without devices) is an
// ErrNoDevices error after a warning event; the previous on-disk device
// files are left untouched so a transient empty response cannot wipe
// cached state.
//
// Parameters:
//   - ctx: Cancels the underlying requests
//   - session: Connected session to query
//
// Returns:
//   - []device.Descriptor: Deduplicated devices across all buildings
//   - error: ErrDiscovery wrapping the cause, or ErrNoDevices
func (r *Registry) Discover(ctx context.Context, session *Session) ([]device.Descriptor, error) {
	buildings, err := session.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	if len(buildings) == 0 {
		r.bus.Warning(r.account, "no buildings found")
		return nil, fmt.Errorf("%w: account has no buildings", ErrNoDevices)
	}

	if err := r.store.WriteJSON(store.BuildingsKey(r.account), buildings); err != nil {
		return nil, fmt.Errorf("%w: persisting buildings: %w", ErrDiscovery, err)
	}

	devices := FlattenBuildings(buildings)
	if len(devices) == 0 {
		r.bus.Warning(r.account, "no devices found")
		return nil, fmt.Errorf("%w: buildings contain no devices", ErrNoDevices)
	}

	for _, d := range devices {
		if err := r.store.WriteJSON(store.DeviceKey(r.account, d.DeviceID), d); err != nil {
			return nil, fmt.Errorf("%w: persisting device %d: %w", ErrDiscovery, d.DeviceID, err)
		}
	}

	r.bus.Debug(r.account, fmt.Sprintf("discovery found %d devices", len(devices)))
	return devices, nil
}

// FlattenBuildings walks every building's structure and collects its
// devices. A device listed in more than one container (its area and the
// enclosing floor, say) appears once; first occurrence wins, in tree
// order.
func FlattenBuildings(buildings []Building) []device.Descriptor {
	var devices []device.Descriptor
	seen := make(map[int]bool)

	add := func(list []device.Descriptor) {
		for _, d := range list {
			if seen[d.DeviceID] {
				continue
			}
			seen[d.DeviceID] = true
			devices = append(devices, d)
		}
	}

	for _, b := range buildings {
		for _, floor := range b.Structure.Floors {
			for _, area := range floor.Areas {
				add(area.Devices)
			}
			add(floor.Devices)
		}
		for _, area := range b.Structure.Areas {
			add(area.Devices)
		}
		add(b.Structure.Devices)
	}
	return devices
}
