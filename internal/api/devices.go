package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/skra72/melcloudd/internal/device"
	"github.com/skra72/melcloudd/internal/history"
	"github.com/skra72/melcloudd/internal/melcloud"
	"github.com/skra72/melcloudd/internal/sync"
)

// defaultHistoryLimit caps history responses without an explicit limit.
const defaultHistoryLimit = 100

// deviceDetail is the full device view: identity, capabilities and
// whether a state snapshot is available yet.
type deviceDetail struct {
	Identity     device.Identity     `json:"identity"`
	Capabilities device.Capabilities `json:"capabilities"`
	State        any                 `json:"state,omitempty"`
	Synchronized bool                `json:"synchronized"`
}

// synchronizer resolves account and device ID path parameters.
func (s *Server) synchronizer(w http.ResponseWriter, r *http.Request) (*sync.Synchronizer, bool) {
	coord, ok := s.coordinator(chi.URLParam(r, "account"))
	if !ok {
		writeNotFound(w, "unknown account")
		return nil, false
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeBadRequest(w, "device id must be a positive integer")
		return nil, false
	}

	syn, err := coord.Synchronizer(id)
	if err != nil {
		writeNotFound(w, "unknown device")
		return nil, false
	}
	return syn, true
}

// handleListDevices returns the identities of all devices discovered
// under an account.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	coord, ok := s.coordinator(chi.URLParam(r, "account"))
	if !ok {
		writeNotFound(w, "unknown account")
		return
	}

	syncs := coord.Synchronizers()
	identities := make([]device.Identity, 0, len(syncs))
	for _, syn := range syncs {
		d, err := syn.Descriptor()
		if err != nil {
			continue
		}
		id, err := d.Identity()
		if err != nil {
			continue
		}
		identities = append(identities, id)
	}
	sort.Slice(identities, func(i, j int) bool {
		return identities[i].DeviceID < identities[j].DeviceID
	})

	writeJSON(w, http.StatusOK, map[string]any{"devices": identities})
}

// handleGetDevice returns the identity, capabilities and latest state
// of one device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	syn, ok := s.synchronizer(w, r)
	if !ok {
		return
	}

	d, err := syn.Descriptor()
	if err != nil {
		writeInternalError(w, "reading device descriptor")
		return
	}
	identity, err := d.Identity()
	if err != nil {
		writeInternalError(w, "reading device identity")
		return
	}
	caps, err := d.Capabilities()
	if err != nil {
		writeInternalError(w, "reading device capabilities")
		return
	}

	detail := deviceDetail{Identity: identity, Capabilities: caps}
	detail.State, detail.Synchronized = syn.Snapshot()

	writeJSON(w, http.StatusOK, detail)
}

// handleGetDeviceState returns the latest synchronized snapshot.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	syn, ok := s.synchronizer(w, r)
	if !ok {
		return
	}

	state, ok := syn.Snapshot()
	if !ok {
		writeUnavailable(w, "device state not synchronized yet")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleSetDeviceState applies writable fields from the request body as
// one combined cloud command.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	syn, ok := s.synchronizer(w, r)
	if !ok {
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeBadRequest(w, "body must be a JSON object of field values")
		return
	}
	if len(raw) == 0 {
		writeBadRequest(w, "no fields to set")
		return
	}

	values := make(map[device.Field]any, len(raw))
	for k, v := range raw {
		values[device.Field(k)] = v
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := syn.SetFields(ctx, values); err != nil {
		switch {
		case errors.Is(err, sync.ErrInvalidValue),
			errors.Is(err, device.ErrUnsupportedField):
			writeBadRequest(w, err.Error())
		case errors.Is(err, sync.ErrNoState):
			writeUnavailable(w, "device state not synchronized yet")
		case errors.Is(err, melcloud.ErrNotConnected),
			errors.Is(err, melcloud.ErrSessionExpired):
			writeUnavailable(w, "cloud session not established")
		default:
			s.logger.Error("applying device command",
				"device_id", syn.DeviceID(), "error", err)
			writeError(w, http.StatusBadGateway, ErrCodeInternal, "cloud rejected the command")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "applied"})
}

// handleDeviceHistory returns recent state changes from the audit trail.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history recording is disabled")
		return
	}

	syn, ok := s.synchronizer(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	account := chi.URLParam(r, "account")
	entries, err := s.history.Entries(r.Context(), account, syn.DeviceID(), limit)
	if err != nil {
		writeInternalError(w, "querying state history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}
