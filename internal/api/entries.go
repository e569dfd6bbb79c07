package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearth-home/hearth-core/internal/entry"
)

// createEntryRequest is the request body for POST /entries.
type createEntryRequest struct {
	Type    string                 `json:"type"`
	Title   string                 `json:"title"`
	Options map[string]interface{} `json:"options"`
}

// entryResponse wraps a persisted entry with its runtime coordinator
// status. The coordinator block is present only while the entry is loaded.
type entryResponse struct {
	*entry.Entry
	Coordinator *coordinatorStatus `json:"coordinator,omitempty"`
}

// coordinatorStatus is a point-in-time view of a running coordinator.
type coordinatorStatus struct {
	State        string `json:"state"`
	LastSuccess  bool   `json:"last_success"`
	LastError    string `json:"last_error,omitempty"`
	LastUpdated  string `json:"last_updated,omitempty"`
	FailureCount int    `json:"failure_count"`
	Listeners    int    `json:"listeners"`
}

// entryView builds the API representation of an entry, attaching runtime
// coordinator status when the entry is loaded.
func (s *Server) entryView(e *entry.Entry) entryResponse {
	resp := entryResponse{Entry: e}
	coord, err := s.manager.Coordinator(e.ID)
	if err != nil {
		return resp
	}

	status := coordinatorStatus{
		State:        string(coord.State()),
		LastSuccess:  coord.LastUpdateSuccess(),
		FailureCount: coord.FailureCount(),
		Listeners:    coord.ListenerCount(),
	}
	if lastErr := coord.LastError(); lastErr != nil {
		status.LastError = lastErr.Error()
	}
	if at := coord.LastUpdated(); !at.IsZero() {
		status.LastUpdated = at.UTC().Format(time.RFC3339)
	}
	resp.Coordinator = &status
	return resp
}

// handleListEntries returns all config entries, with optional state filter.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		entries []entry.Entry
		err     error
	)
	if state := r.URL.Query().Get("state"); state != "" {
		entries, err = s.repo.ListByState(ctx, entry.State(state))
	} else {
		entries, err = s.repo.List(ctx)
	}
	if err != nil {
		s.logger.Error("failed to list entries", "error", err)
		writeInternalError(w, "failed to list entries")
		return
	}

	views := make([]entryResponse, 0, len(entries))
	for i := range entries {
		views = append(views, s.entryView(&entries[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": views, "count": len(views)})
}

// handleCreateEntry creates a config entry and attempts its first setup.
//
// The entry is persisted regardless of the setup outcome: a device that is
// offline right now still gets created, enters the retry cycle, and loads
// when it comes back. The response reflects the state after the attempt.
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !s.registry.Has(req.Type) {
		writeBadRequest(w, "unknown integration type: "+req.Type)
		return
	}

	e := entry.New(req.Type, req.Title, req.Options)
	if err := e.Validate(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	if err := s.repo.Create(ctx, e); err != nil {
		if errors.Is(err, entry.ErrEntryExists) {
			writeConflict(w, "entry already exists")
			return
		}
		s.logger.Error("failed to create entry", "error", err)
		writeInternalError(w, "failed to create entry")
		return
	}

	if err := s.manager.Setup(ctx, e.ID); err != nil {
		s.logger.Warn("entry setup did not complete",
			"entry", e.ID, "type", e.Type, "error", err)
	}

	// Refetch: setup persisted the resulting state.
	created, err := s.repo.GetByID(ctx, e.ID)
	if err != nil {
		s.logger.Error("failed to reload created entry", "entry", e.ID, "error", err)
		writeInternalError(w, "failed to load created entry")
		return
	}
	writeJSON(w, http.StatusCreated, s.entryView(created))
}

// handleGetEntry returns a single entry by ID.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, entry.ErrEntryNotFound) {
			writeNotFound(w, "entry not found")
			return
		}
		s.logger.Error("failed to get entry", "entry", id, "error", err)
		writeInternalError(w, "failed to get entry")
		return
	}
	writeJSON(w, http.StatusOK, s.entryView(e))
}

// handleDeleteEntry unloads and removes a config entry.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Stop the coordinator first so nothing polls a deleted entry.
	if err := s.manager.Unload(id); err != nil && !errors.Is(err, entry.ErrNotLoaded) {
		s.logger.Error("failed to unload entry", "entry", id, "error", err)
		writeInternalError(w, "failed to unload entry")
		return
	}

	if err := s.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, entry.ErrEntryNotFound) {
			writeNotFound(w, "entry not found")
			return
		}
		s.logger.Error("failed to delete entry", "entry", id, "error", err)
		writeInternalError(w, "failed to delete entry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

// handleRefreshEntry asks the entry's coordinator for a debounced refresh.
// The refresh is asynchronous; clients observe the result via the
// WebSocket entity.changed channel or by polling the entry.
func (s *Server) handleRefreshEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	coord, err := s.manager.Coordinator(id)
	if err != nil {
		// Distinguish "no such entry" from "exists but not loaded".
		if _, repoErr := s.repo.GetByID(r.Context(), id); repoErr != nil {
			writeNotFound(w, "entry not found")
			return
		}
		writeConflict(w, "entry is not loaded")
		return
	}

	coord.RequestRefresh()
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "refresh requested", "id": id})
}

// handleReloadEntry tears the entry down and runs setup again. Used after
// editing credentials or options, and to retry auth_required/failed
// entries without restarting the hub.
func (s *Server) handleReloadEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	if err := s.manager.Reload(ctx, id); err != nil {
		if errors.Is(err, entry.ErrEntryNotFound) {
			writeNotFound(w, "entry not found")
			return
		}
		// Setup failures are not HTTP errors: the entry now sits in
		// setup_retry or failed, which the response body reports.
		s.logger.Warn("entry reload did not complete", "entry", id, "error", err)
	}

	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, entry.ErrEntryNotFound) {
			writeNotFound(w, "entry not found")
			return
		}
		s.logger.Error("failed to get entry after reload", "entry", id, "error", err)
		writeInternalError(w, "failed to get entry")
		return
	}
	writeJSON(w, http.StatusOK, s.entryView(e))
}
