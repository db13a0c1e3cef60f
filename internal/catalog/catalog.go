// Package catalog loads the storefront track list (a beats.json array) and
// provides the filtering and sorting the list view offers.
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"beatbrowser/pkg/models"
)

// knownGenres lets a genre be recovered from the mood list of older entries
var knownGenres = []string{
	"Hip-Hop", "Hip Hop", "Trap", "Drill", "Boom Bap", "Lo-Fi", "R&B", "Pop",
	"House", "EDM", "Afrobeats", "Afrobeat", "Dancehall", "Reggaeton",
}

// entry is one raw catalog record. Older catalogs carry bpm as a string and
// mood as either a string or a list.
type entry struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Audio    string          `json:"audio"`
	Src      string          `json:"src"`
	Art      string          `json:"art"`
	BPM      json.RawMessage `json:"bpm"`
	Key      string          `json:"key"`
	Genre    string          `json:"genre"`
	Mood     json.RawMessage `json:"mood"`
	Duration json.RawMessage `json:"duration"`
}

// Load reads and parses the catalog file at path
func Load(path string) ([]models.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. Entries without an id get one derived
// from the title; duplicates are suffixed so every row ID is unique.
func Parse(data []byte) ([]models.Track, error) {
	var entries []entry
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	tracks := make([]models.Track, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		track := models.Track{
			ID:     strings.TrimSpace(e.ID),
			Title:  strings.TrimSpace(e.Title),
			Source: e.Audio,
			Art:    e.Art,
			Key:    strings.TrimSpace(e.Key),
			BPM:    parseBPM(e.BPM),
		}
		if track.Source == "" {
			track.Source = e.Src
		}
		if d := parseSeconds(e.Duration); d > 0 {
			track.DisplayDuration = time.Duration(d * float64(time.Second))
		}
		track.Genre, track.Moods = normalizeGenre(e.Genre, parseMoods(e.Mood))

		if track.ID == "" {
			track.ID = slugify(track.Title)
		}
		if track.ID == "" {
			track.ID = "track-" + strconv.Itoa(i+1)
		}
		if n := seen[track.ID]; n > 0 {
			seen[track.ID] = n + 1
			track.ID = fmt.Sprintf("%s-%d", track.ID, n+1)
		} else {
			seen[track.ID] = 1
		}

		tracks = append(tracks, track)
	}
	return tracks, nil
}

func parseMoods(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

// normalizeGenre picks the genre (explicit, or the first known genre among
// the moods) and removes it from the mood list
func normalizeGenre(genre string, moods []string) (string, []string) {
	genre = strings.TrimSpace(genre)
	if genre == "" {
		for _, m := range moods {
			if isKnownGenre(m) {
				genre = m
				break
			}
		}
	}
	if genre == "" {
		return "", moods
	}
	out := moods[:0:0]
	for _, m := range moods {
		if m != genre {
			out = append(out, m)
		}
	}
	return genre, out
}

func isKnownGenre(s string) bool {
	for _, g := range knownGenres {
		if g == s {
			return true
		}
	}
	return false
}

func parseBPM(raw json.RawMessage) int {
	v := parseSeconds(raw)
	if v <= 0 {
		return 0
	}
	return int(v + 0.5)
}

// parseSeconds accepts a JSON number or numeric string
func parseSeconds(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return 0
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
}
