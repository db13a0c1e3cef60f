package server

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"time"

	"beatbrowser/pkg/models"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// handleStreamTrack serves a row's audio with Range support. Library files
// are streamed from disk; remote sources are fetched through the source
// router and served from memory.
func (s *Server) handleStreamTrack(w http.ResponseWriter, r *http.Request) {
	rowID := mux.Vars(r)["id"]
	if verr := validateRowID(rowID); verr != nil {
		s.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	track, err := s.lookupTrack(r, rowID)
	if err != nil {
		s.respondWithBrowserError(w, r, err)
		return
	}
	if track.Source == "" {
		s.respondWithError(w, r, http.StatusNotFound, "Track has no audio source", nil)
		return
	}

	contentType := s.extractor.GetContentType(track.Source)

	if path, ok := s.sources.LocalPath(track.Source); ok {
		if err := s.streamFile(w, r, path, contentType); err != nil {
			s.respondWithError(w, r, http.StatusNotFound, "Audio file unavailable", err)
		}
		return
	}

	data, err := s.sources.Fetch(r.Context(), track.Source)
	if err != nil {
		status := http.StatusBadGateway
		if models.Classify(err) == models.FailureCrossOrigin {
			status = http.StatusForbidden
		}
		s.respondWithError(w, r, status, "Audio source unavailable", err)
		return
	}

	sum := sha1.Sum(data)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", `"`+hex.EncodeToString(sum[:8])+`"`)
	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
}

// lookupTrack finds the track rendered on rowID
func (s *Server) lookupTrack(r *http.Request, rowID string) (models.Track, error) {
	var track models.Track
	err := s.onLoop(r.Context(), func() error {
		if _, err := s.browser.Row(rowID); err != nil {
			return err
		}
		for _, t := range s.browser.Tracks() {
			if t.ID == rowID {
				track = t
				break
			}
		}
		return nil
	})
	return track, err
}

// streamFile serves a library file with caching headers. http.ServeContent
// handles Range and conditional requests.
func (s *Server) streamFile(w http.ResponseWriter, r *http.Request, filePath, contentType string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("error reading file info: %w", err)
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", fmt.Sprintf(`"%d-%d"`, stat.ModTime().Unix(), stat.Size()))
	w.Header().Set("Content-Type", contentType)

	s.logger.WithFields(logrus.Fields{
		"file":       filePath,
		"size":       formatBytes(int(stat.Size())),
		"range":      r.Header.Get("Range"),
		"request_id": requestID(r),
	}).Debug("Streaming track")

	http.ServeContent(w, r, stat.Name(), stat.ModTime(), file)
	return nil
}
