package server

import (
	"net/http"
)

// ConfigResponse represents the public configuration sent to the frontend
type ConfigResponse struct {
	Player   PlayerConfigResponse   `json:"player"`
	Waveform WaveformConfigResponse `json:"waveform"`
}

// PlayerConfigResponse tells the frontend how often the playhead moves and
// how far a pointer travels before a press becomes a drag
type PlayerConfigResponse struct {
	TickIntervalMs   int     `json:"tickIntervalMs"`
	ScrubThresholdPx float64 `json:"scrubThresholdPx"`
}

// WaveformConfigResponse describes the peaks the server produces
type WaveformConfigResponse struct {
	Bars int `json:"bars"`
}

// handleGetConfig returns public configuration settings for the frontend
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	config := ConfigResponse{
		Player: PlayerConfigResponse{
			TickIntervalMs:   s.config.Player.TickIntervalMs,
			ScrubThresholdPx: s.config.Player.ScrubThresholdPx,
		},
		Waveform: WaveformConfigResponse{
			Bars: s.config.Waveform.Bars,
		},
	}

	s.respondJSON(w, http.StatusOK, config)
}
