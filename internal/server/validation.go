package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"

	"beatbrowser/internal/catalog"

	"github.com/sirupsen/logrus"
)

// ValidationError represents a validation error with details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationResult contains validation results
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Pointer event types accepted from clients
const (
	PointerDown   = "down"
	PointerMove   = "move"
	PointerUp     = "up"
	PointerCancel = "cancel"
)

const (
	maxRowIDLength = 128
	maxQueryLength = 200
	maxFacetLength = 100
	maxBPM         = 400
	maxBars        = 4096
)

// respondWithValidationError sends a structured validation error response
func (s *Server) respondWithValidationError(w http.ResponseWriter, r *http.Request, errors []ValidationError) {
	s.logger.WithFields(logrus.Fields{
		"method":     r.Method,
		"path":       r.URL.Path,
		"errors":     errors,
		"request_id": requestID(r),
	}).Warn("Validation failed")

	result := ValidationResult{
		Valid:  false,
		Errors: errors,
	}

	s.respondJSON(w, http.StatusBadRequest, result)
}

// respondWithError sends a structured error response
func (s *Server) respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error) {
	logEntry := s.logger.WithFields(logrus.Fields{
		"method":      r.Method,
		"path":        r.URL.Path,
		"status_code": statusCode,
		"message":     message,
		"request_id":  requestID(r),
	})

	if err != nil {
		logEntry = logEntry.WithError(err)
	}

	if statusCode >= 500 {
		logEntry.Error("Server error")
	} else {
		logEntry.Warn("Client error")
	}

	response := map[string]interface{}{
		"error":   message,
		"code":    statusCode,
		"success": false,
	}

	s.respondJSON(w, statusCode, response)
}

// respondJSON writes v as the JSON body with the given status
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Debug("Failed to write JSON response")
	}
}

// validateRowID validates a row ID taken from the URL path
func validateRowID(rowID string) *ValidationError {
	if rowID == "" {
		return &ValidationError{
			Field:   "row_id",
			Message: "Row ID is required",
			Code:    "MISSING_ROW_ID",
		}
	}

	if len(rowID) > maxRowIDLength {
		return &ValidationError{
			Field:   "row_id",
			Message: "Row ID too long (max 128 characters)",
			Code:    "ROW_ID_TOO_LONG",
		}
	}

	if strings.ContainsAny(rowID, "\x00\r\n/") {
		return &ValidationError{
			Field:   "row_id",
			Message: "Row ID contains invalid characters",
			Code:    "INVALID_ROW_ID_CHARACTERS",
		}
	}

	return nil
}

// validateFraction validates a seek target
func validateFraction(fraction float64) *ValidationError {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return &ValidationError{
			Field:   "fraction",
			Message: "Fraction must be a finite number",
			Code:    "INVALID_FRACTION",
		}
	}

	if fraction < 0 || fraction > 1 {
		return &ValidationError{
			Field:   "fraction",
			Message: "Fraction must be between 0 and 1",
			Code:    "FRACTION_OUT_OF_RANGE",
		}
	}

	return nil
}

// validatePointerRequest validates a pointer event
func validatePointerRequest(req PointerRequest) []ValidationError {
	var errors []ValidationError

	switch req.Type {
	case PointerDown, PointerMove, PointerUp, PointerCancel:
	default:
		errors = append(errors, ValidationError{
			Field:   "type",
			Message: "Pointer type must be down, move, up or cancel",
			Code:    "INVALID_POINTER_TYPE",
		})
	}

	if math.IsNaN(req.ClientX) || math.IsInf(req.ClientX, 0) {
		errors = append(errors, ValidationError{
			Field:   "clientX",
			Message: "clientX must be a finite number",
			Code:    "INVALID_CLIENT_X",
		})
	}

	if req.Type == PointerDown {
		if math.IsNaN(req.Region.Left) || math.IsInf(req.Region.Left, 0) ||
			math.IsNaN(req.Region.Width) || math.IsInf(req.Region.Width, 0) || req.Region.Width < 0 {
			errors = append(errors, ValidationError{
				Field:   "region",
				Message: "Region must have a finite left and a non-negative width",
				Code:    "INVALID_REGION",
			})
		}
	}

	return errors
}

// validateFilter validates and sanitizes a list filter in place
func validateFilter(filter *catalog.Filter) []ValidationError {
	var errors []ValidationError

	filter.Query = sanitizeInput(filter.Query)
	filter.Genre = sanitizeInput(filter.Genre)
	filter.Mood = sanitizeInput(filter.Mood)
	filter.Key = sanitizeInput(filter.Key)
	filter.Sort = sanitizeInput(filter.Sort)

	if len(filter.Query) > maxQueryLength {
		errors = append(errors, ValidationError{
			Field:   "q",
			Message: "Search query too long (max 200 characters)",
			Code:    "SEARCH_QUERY_TOO_LONG",
		})
	}

	for field, value := range map[string]string{"genre": filter.Genre, "mood": filter.Mood, "key": filter.Key} {
		if len(value) > maxFacetLength {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "Filter value too long (max 100 characters)",
				Code:    "FILTER_VALUE_TOO_LONG",
			})
		}
	}

	if filter.BPMMin < 0 || filter.BPMMax < 0 || filter.BPMMin > maxBPM || filter.BPMMax > maxBPM {
		errors = append(errors, ValidationError{
			Field:   "bpm",
			Message: "BPM bounds must be between 0 and 400",
			Code:    "BPM_OUT_OF_RANGE",
		})
	} else if filter.BPMMax > 0 && filter.BPMMin > filter.BPMMax {
		errors = append(errors, ValidationError{
			Field:   "bpm",
			Message: "bpmMin cannot exceed bpmMax",
			Code:    "BPM_RANGE_INVERTED",
		})
	}

	switch filter.Sort {
	case "", catalog.SortDefault, catalog.SortBPMAsc, catalog.SortBPMDesc, catalog.SortTitleAsc, catalog.SortTitleDesc:
	default:
		errors = append(errors, ValidationError{
			Field:   "sort",
			Message: "Unknown sort order",
			Code:    "INVALID_SORT",
		})
	}

	return errors
}

// validateWidth validates the optional bar count a waveform is resampled to
func validateWidth(width int) *ValidationError {
	if width < 1 || width > maxBars {
		return &ValidationError{
			Field:   "width",
			Message: "Width must be between 1 and 4096 bars",
			Code:    "INVALID_WIDTH",
		}
	}
	return nil
}

// sanitizeInput sanitizes user input to prevent injection attacks
func sanitizeInput(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Trim whitespace
	input = strings.TrimSpace(input)

	return input
}
