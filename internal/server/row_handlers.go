package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"beatbrowser/internal/scrub"
	"beatbrowser/internal/waveform"
	"beatbrowser/pkg/models"

	"github.com/gorilla/mux"
)

// PointerRequest is one pointer event on a row's waveform
type PointerRequest struct {
	Type      string       `json:"type"`
	PointerID int          `json:"pointerId"`
	ClientX   float64      `json:"clientX"`
	Region    scrub.Region `json:"region"` // required for "down"
}

// SeekRequest moves the session to a fraction of the row's track
type SeekRequest struct {
	Fraction float64 `json:"fraction"`
}

// WaveformResponse is the drawable waveform of one row
type WaveformResponse struct {
	RowID   string                `json:"rowId"`
	Status  models.WaveformStatus `json:"status"`
	Failure models.FailureKind    `json:"failure,omitempty"`
	Bars    int                   `json:"bars"`
	Peaks   []float64             `json:"peaks"` // placeholder pattern until ready
}

// Command is a row operation received over the WebSocket
type Command struct {
	Type     string          `json:"type"` // toggle, seek, pointer or visible
	RowID    string          `json:"rowId"`
	Fraction float64         `json:"fraction,omitempty"`
	Pointer  *PointerRequest `json:"pointer,omitempty"`
}

// validateCommand checks a command before it reaches the browser
func validateCommand(cmd Command) []ValidationError {
	if verr := validateRowID(cmd.RowID); verr != nil {
		return []ValidationError{*verr}
	}
	switch cmd.Type {
	case "toggle", "visible":
		return nil
	case "seek":
		if verr := validateFraction(cmd.Fraction); verr != nil {
			return []ValidationError{*verr}
		}
		return nil
	case "pointer":
		if cmd.Pointer == nil {
			return []ValidationError{{Field: "pointer", Message: "Pointer event is required", Code: "MISSING_POINTER"}}
		}
		return validatePointerRequest(*cmd.Pointer)
	}
	return []ValidationError{{Field: "type", Message: fmt.Sprintf("Unknown command %q", cmd.Type), Code: "INVALID_COMMAND"}}
}

// execute applies a validated command on the event loop and returns the
// row's resulting view
func (s *Server) execute(ctx context.Context, cmd Command) (models.RowView, error) {
	var view models.RowView
	err := s.onLoop(ctx, func() error {
		var err error
		switch cmd.Type {
		case "toggle":
			err = s.browser.Toggle(cmd.RowID)
		case "seek":
			err = s.browser.Seek(cmd.RowID, cmd.Fraction)
		case "visible":
			_, err = s.browser.RowVisible(cmd.RowID)
		case "pointer":
			err = s.applyPointer(cmd.RowID, *cmd.Pointer)
		}
		if err != nil {
			return err
		}
		view, err = s.browser.Row(cmd.RowID)
		return err
	})
	return view, err
}

// applyPointer routes a pointer event to the browser. Runs on the loop.
func (s *Server) applyPointer(rowID string, req PointerRequest) error {
	switch req.Type {
	case PointerDown:
		return s.browser.PointerDown(rowID, req.PointerID, req.ClientX, req.Region)
	case PointerMove:
		return s.browser.PointerMove(rowID, req.PointerID, req.ClientX)
	case PointerUp:
		return s.browser.PointerUp(rowID, req.PointerID)
	default:
		return s.browser.PointerCancel(rowID)
	}
}

// runCommand validates and executes cmd, writing the row view or an error
func (s *Server) runCommand(w http.ResponseWriter, r *http.Request, cmd Command) {
	if errs := validateCommand(cmd); len(errs) > 0 {
		s.respondWithValidationError(w, r, errs)
		return
	}
	view, err := s.execute(r.Context(), cmd)
	if err != nil {
		s.respondWithBrowserError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

// handleGetRow returns one row's visual state
func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	rowID := mux.Vars(r)["id"]
	if verr := validateRowID(rowID); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	var view models.RowView
	err := s.onLoop(r.Context(), func() error {
		var err error
		view, err = s.browser.Row(rowID)
		return err
	})
	if err != nil {
		s.respondWithBrowserError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

// handleToggle is the row's play/pause control
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, Command{Type: "toggle", RowID: mux.Vars(r)["id"]})
}

// handleSeek seeks the row's track, adopting the row if needed
func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if verr := decodeBody(w, r, &req); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	s.runCommand(w, r, Command{Type: "seek", RowID: mux.Vars(r)["id"], Fraction: req.Fraction})
}

// handlePointer feeds one pointer event into the row's scrub gesture
func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	var req PointerRequest
	if verr := decodeBody(w, r, &req); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	s.runCommand(w, r, Command{Type: "pointer", RowID: mux.Vars(r)["id"], Pointer: &req})
}

// handleVisible marks the row as scrolled into view
func (s *Server) handleVisible(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, Command{Type: "visible", RowID: mux.Vars(r)["id"]})
}

// handleGetWaveform returns the peaks to draw for a row, resampled to the
// optional width query parameter
func (s *Server) handleGetWaveform(w http.ResponseWriter, r *http.Request) {
	rowID := mux.Vars(r)["id"]
	if verr := validateRowID(rowID); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	width := 0
	if raw := r.URL.Query().Get("width"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondWithValidationError(w, r, []ValidationError{{
				Field:   "width",
				Message: "Width must be an integer",
				Code:    "INVALID_WIDTH_FORMAT",
			}})
			return
		}
		if verr := validateWidth(parsed); verr != nil {
			s.respondWithValidationError(w, r, []ValidationError{*verr})
			return
		}
		width = parsed
	}

	var state models.WaveformState
	var peaks []float64
	err := s.onLoop(r.Context(), func() error {
		var err error
		state, peaks, err = s.browser.Waveform(rowID)
		return err
	})
	if err != nil {
		s.respondWithBrowserError(w, r, err)
		return
	}

	if width > 0 {
		peaks = waveform.Resample(peaks, width)
	}
	s.respondJSON(w, http.StatusOK, WaveformResponse{
		RowID:   rowID,
		Status:  state.Status,
		Failure: state.Failure,
		Bars:    len(peaks),
		Peaks:   peaks,
	})
}
