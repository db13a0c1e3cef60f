package server

import (
	"context"
	"net/http"
	"time"
)

// HealthStatus represents operational status for the /health endpoint.
type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Database    string                 `json:"database"`
	EventLoop   string                 `json:"eventLoop"`
	Clients     int                    `json:"connectedClients"`
	Tracks      int                    `json:"trackCount"`
	Rows        int                    `json:"rowCount"`
	ActiveRow   string                 `json:"activeRow,omitempty"`
	Extractions int64                  `json:"waveformExtractions"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// handleHealthCheck returns basic liveness + dependency checks.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Database:  "disabled",
		EventLoop: "ok",
		Clients:   s.sessions.Count(),
		Details:   make(map[string]interface{}),
	}

	if s.db != nil {
		health.Database = "ok"
		if err := s.db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Database = "error"
			health.Details["database_error"] = err.Error()
		} else if count, err := s.db.CountPeaks(ctx); err == nil {
			health.Details["stored_waveforms"] = count
		}
	}

	// A stalled loop means no command can make progress
	err := s.loop.Call(ctx, func() {
		health.Rows = len(s.browser.Rows())
		health.ActiveRow = s.browser.ActiveRowID()
		health.Extractions = s.cache.Extractions()
	})
	if err != nil {
		health.Status = "unhealthy"
		health.EventLoop = "stalled"
		health.Details["event_loop_error"] = err.Error()
	}

	all, _ := s.catalogState()
	health.Tracks = len(all)

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	s.respondJSON(w, statusCode, health)
}
