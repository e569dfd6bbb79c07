package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hearth-home/hearth-core/internal/entity"
)

// entityView is the API representation of an entity.
type entityView struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	EntryID   string      `json:"entry_id"`
	Value     interface{} `json:"value"`
	Available bool        `json:"available"`
	ChangedAt string      `json:"changed_at,omitempty"`
}

func newEntityView(e *entity.Entity) entityView {
	v := entityView{
		ID:        e.ID(),
		Name:      e.Name(),
		EntryID:   e.EntryID(),
		Value:     e.Value(),
		Available: e.Available(),
	}
	if at := e.ChangedAt(); !at.IsZero() {
		v.ChangedAt = at.UTC().Format(time.RFC3339)
	}
	return v
}

// handleListEntities returns all entities, with optional entry_id filter.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entryID := r.URL.Query().Get("entry_id")

	entities := s.manager.Entities()
	views := make([]entityView, 0, len(entities))
	for _, e := range entities {
		if entryID != "" && e.EntryID() != entryID {
			continue
		}
		views = append(views, newEntityView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entities": views, "count": len(views)})
}

// handleGetEntity returns a single entity by ID.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	e, ok := s.manager.Entity(id)
	if !ok {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, newEntityView(e))
}

// handleEntityHistory returns recent state transitions for an entity,
// newest first. The limit query parameter caps the result size.
func (s *Server) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "history is not enabled")
		return
	}

	id := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.history.ForEntity(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("failed to query entity history", "entity", id, "error", err)
		writeInternalError(w, "failed to query history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records, "count": len(records)})
}
