package api

import (
	"net/http"
	"time"
)

// startTime marks process start for the uptime report.
var startTime = time.Now()

// handleHealth reports hub liveness plus a coarse component summary.
// The endpoint is unauthenticated so load balancers and supervisors can
// probe it.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]any{
		"status":         "ok",
		"version":        s.version,
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"entries_loaded": s.manager.LoadedCount(),
		"entities":       len(s.manager.Entities()),
	}

	if s.hub != nil {
		health["ws_clients"] = s.hub.ClientCount()
	}
	if s.mqtt != nil {
		health["mqtt_connected"] = s.mqtt.IsConnected()
	}

	writeJSON(w, http.StatusOK, health)
}
