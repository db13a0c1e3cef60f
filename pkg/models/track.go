package models

import "time"

// Track represents a sellable audio item as listed in the catalog
type Track struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Source          string        `json:"src"`                       // stable locator, also the waveform cache key
	DisplayDuration time.Duration `json:"displayDuration,omitempty"` // catalog hint, shown before metadata loads
	Genre           string        `json:"genre,omitempty"`
	Moods           []string      `json:"moods,omitempty"`
	BPM             int           `json:"bpm,omitempty"`
	Key             string        `json:"key,omitempty"`
	Art             string        `json:"art,omitempty"`
}

// Icon is the transport control glyph shown on a row
type Icon string

const (
	IconPlay  Icon = "play"
	IconPause Icon = "pause"
)

// RowView is the observable visual state of one track row
type RowView struct {
	RowID     string      `json:"rowId"`
	TrackID   string      `json:"trackId"`
	Progress  float64     `json:"progress"` // 0.0 to 1.0
	TimeLabel string      `json:"timeLabel"`
	IsPlaying bool        `json:"isPlaying"`
	Icon      Icon        `json:"icon"`
	Active    bool        `json:"active"`
	Failure   FailureKind `json:"failure,omitempty"`
}

// WaveformStatus is the lifecycle state of a waveform cache entry
type WaveformStatus string

const (
	WaveformAbsent   WaveformStatus = "absent"
	WaveformDecoding WaveformStatus = "decoding"
	WaveformReady    WaveformStatus = "ready"
	WaveformFailed   WaveformStatus = "failed"
)

// WaveformState is the observable state of one track's waveform
type WaveformState struct {
	Status  WaveformStatus `json:"status"`
	Peaks   []float64      `json:"peaks,omitempty"`
	Failure FailureKind    `json:"failure,omitempty"`
}
