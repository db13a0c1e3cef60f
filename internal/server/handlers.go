package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"beatbrowser/internal/browser"
	"beatbrowser/internal/catalog"
	"beatbrowser/pkg/models"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 64 << 10

// TracksResponse is the rendered track list with the filter that produced it
type TracksResponse struct {
	Tracks []models.Track `json:"tracks"`
	Total  int            `json:"total"`
	Filter catalog.Filter `json:"filter"`
	Facets catalog.Facets `json:"facets"`
}

// handleHome serves the main SPA / index file from the configured static dir.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.config.Server.StaticDir, "index.html"))
}

// onLoop runs fn on the event loop and returns its error
func (s *Server) onLoop(ctx context.Context, fn func() error) error {
	var opErr error
	if err := s.loop.Call(ctx, func() { opErr = fn() }); err != nil {
		return err
	}
	return opErr
}

// respondWithBrowserError maps a browser or loop failure to a status code
func (s *Server) respondWithBrowserError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, browser.ErrUnknownRow):
		s.respondWithError(w, r, http.StatusNotFound, "Row not found", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.respondWithError(w, r, http.StatusServiceUnavailable, "Request cancelled", err)
	default:
		s.respondWithError(w, r, http.StatusInternalServerError, "Playback error", err)
	}
}

// decodeBody decodes a bounded JSON request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) *ValidationError {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		return &ValidationError{
			Field:   "body",
			Message: "Invalid JSON request body",
			Code:    "INVALID_JSON",
		}
	}
	return nil
}

// handleGetTracks returns the rendered rows' tracks with the active filter
// and the facets of the full catalog.
func (s *Server) handleGetTracks(w http.ResponseWriter, r *http.Request) {
	var tracks []models.Track
	if err := s.loop.Call(r.Context(), func() { tracks = s.browser.Tracks() }); err != nil {
		s.respondWithBrowserError(w, r, err)
		return
	}

	all, filter := s.catalogState()
	s.respondJSON(w, http.StatusOK, TracksResponse{
		Tracks: tracks,
		Total:  len(all),
		Filter: filter,
		Facets: catalog.BuildFacets(all),
	})
}

// handleSetFilter applies a new list filter and re-renders the rows
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var filter catalog.Filter
	if verr := decodeBody(w, r, &filter); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	if errs := validateFilter(&filter); len(errs) > 0 {
		s.respondWithValidationError(w, r, errs)
		return
	}

	s.catalogMutex.Lock()
	s.filter = filter
	visible := filter.Apply(s.catalog)
	total := len(s.catalog)
	s.catalogMutex.Unlock()

	if err := s.loop.Call(r.Context(), func() { s.browser.SetTracks(visible) }); err != nil {
		s.respondWithBrowserError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusOK, TracksResponse{
		Tracks: visible,
		Total:  total,
		Filter: filter,
	})
}

// handleGetState returns a fresh snapshot of every row and the session
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	var snap *browser.Snapshot
	if err := s.loop.Call(r.Context(), func() { snap = s.browser.Snapshot() }); err != nil {
		s.respondWithBrowserError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

// handleGetClients lists the connected WebSocket clients
func (s *Server) handleGetClients(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"clients":    s.sessions.Clients(),
		"controller": s.sessions.Controller(),
	})
}
