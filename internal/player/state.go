package player

// Session is the state of the one physical playback resource. It lives for
// the whole process; loading a new source resets it in place.
type Session struct {
	LoadedSource  string  `json:"loadedSource,omitempty"`
	Position      float64 `json:"position"` // in seconds
	Duration      float64 `json:"duration"` // in seconds, valid when DurationKnown
	DurationKnown bool    `json:"durationKnown"`
	IsPlaying     bool    `json:"isPlaying"`
	Failed        bool    `json:"failed"`
	Generation    uint64  `json:"generation"` // bumped on every Load
}

// HasSource reports whether a source has been loaded
func (s Session) HasSource() bool {
	return s.LoadedSource != ""
}

// Fraction returns position/duration, or 0 while the duration is unknown
func (s Session) Fraction() float64 {
	if !s.DurationKnown || s.Duration <= 0 {
		return 0
	}
	return clamp01(s.Position / s.Duration)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
