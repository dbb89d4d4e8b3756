package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skra72/melcloudd/internal/melcloud"
	"github.com/skra72/melcloudd/internal/store"
)

// accountSummary is one row in the accounts listing.
type accountSummary struct {
	Name    string `json:"name"`
	Devices int    `json:"devices"`
}

// handleListAccounts returns all configured accounts with their device
// counts.
func (s *Server) handleListAccounts(w http.ResponseWriter, _ *http.Request) {
	summaries := make([]accountSummary, 0, len(s.coords))
	for name, coord := range s.coords {
		summaries = append(summaries, accountSummary{
			Name:    name,
			Devices: len(coord.Synchronizers()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": summaries})
}

// handleGetAccount returns the redacted account information as stored
// from the last login.
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	coord, ok := s.coordinator(chi.URLParam(r, "account"))
	if !ok {
		writeNotFound(w, "unknown account")
		return
	}

	info, err := coord.AccountInfo()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrEmpty) {
			writeUnavailable(w, "account not synchronized yet")
			return
		}
		writeInternalError(w, "reading account info")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(info) //nolint:errcheck // Best-effort write to response
}

// handleUpdateOptions forwards application options (language, units) to
// the cloud and persists the result.
func (s *Server) handleUpdateOptions(w http.ResponseWriter, r *http.Request) {
	coord, ok := s.coordinator(chi.URLParam(r, "account"))
	if !ok {
		writeNotFound(w, "unknown account")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "reading request body")
		return
	}
	if !json.Valid(body) {
		writeBadRequest(w, "body must be valid JSON")
		return
	}

	if err := coord.UpdateOptions(r.Context(), body); err != nil {
		if errors.Is(err, melcloud.ErrNotConnected) || errors.Is(err, melcloud.ErrSessionExpired) {
			writeUnavailable(w, "cloud session not established")
			return
		}
		s.logger.Error("updating application options",
			"account", coord.Account(), "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeInternal, "cloud rejected the update")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "updated"})
}
