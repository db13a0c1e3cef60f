package catalog

import (
	"sort"
	"strings"

	"beatbrowser/pkg/models"
)

// Sort orders
const (
	SortDefault   = "default"
	SortBPMAsc    = "bpm-asc"
	SortBPMDesc   = "bpm-desc"
	SortTitleAsc  = "title-asc"
	SortTitleDesc = "title-desc"
)

// Filter narrows the list view. Zero values match everything.
type Filter struct {
	Query  string `json:"q"`
	Genre  string `json:"genre"`
	Mood   string `json:"mood"`
	Key    string `json:"key"`
	BPMMin int    `json:"bpmMin"`
	BPMMax int    `json:"bpmMax"`
	Sort   string `json:"sort"`
}

// Apply returns the matching tracks in the requested order. The input is not
// modified. Tracks without a BPM pass any BPM range.
func (f Filter) Apply(tracks []models.Track) []models.Track {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		if query != "" && !strings.Contains(strings.ToLower(t.Title), query) {
			continue
		}
		if f.Genre != "" && t.Genre != f.Genre {
			continue
		}
		if f.Mood != "" && !contains(t.Moods, f.Mood) {
			continue
		}
		if f.Key != "" && t.Key != f.Key {
			continue
		}
		if t.BPM > 0 {
			if f.BPMMin > 0 && t.BPM < f.BPMMin {
				continue
			}
			if f.BPMMax > 0 && t.BPM > f.BPMMax {
				continue
			}
		}
		out = append(out, t)
	}

	switch f.Sort {
	case SortBPMAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].BPM < out[j].BPM })
	case SortBPMDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].BPM > out[j].BPM })
	case SortTitleAsc:
		sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title) })
	case SortTitleDesc:
		sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Title) > strings.ToLower(out[j].Title) })
	}
	return out
}

// Facets are the distinct values the filter controls offer
type Facets struct {
	Genres []string `json:"genres"`
	Moods  []string `json:"moods"`
	Keys   []string `json:"keys"`
}

// BuildFacets collects sorted distinct genres, moods and keys
func BuildFacets(tracks []models.Track) Facets {
	genres := map[string]bool{}
	moods := map[string]bool{}
	keys := map[string]bool{}
	for _, t := range tracks {
		if t.Genre != "" {
			genres[t.Genre] = true
		}
		for _, m := range t.Moods {
			moods[m] = true
		}
		if t.Key != "" {
			keys[t.Key] = true
		}
	}
	return Facets{
		Genres: sortedKeys(genres),
		Moods:  sortedKeys(moods),
		Keys:   sortedKeys(keys),
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
