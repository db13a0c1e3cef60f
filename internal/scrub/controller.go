// Package scrub turns pointer gestures over a waveform into seek fractions.
//
// A Controller is an Idle/Dragging state machine for one row. Pointer down
// enters Dragging and seeks once; moves beyond a small threshold seek on every
// update; up, cancel and leave return to Idle without seeking. A click (down
// and up without a real move) therefore yields exactly one seek.
package scrub

// Phase is the gesture state
type Phase int

const (
	Idle Phase = iota
	Dragging
)

func (p Phase) String() string {
	if p == Dragging {
		return "dragging"
	}
	return "idle"
}

// Region is the horizontal extent of the waveform in client coordinates
type Region struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// Fraction maps clientX into [0,1]. A degenerate region maps to 0.
func (r Region) Fraction(clientX float64) float64 {
	if r.Width <= 0 {
		return 0
	}
	f := (clientX - r.Left) / r.Width
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// DefaultThreshold is how far, in pixels, a pointer must travel from the
// down position before moves count as a drag.
const DefaultThreshold = 3.0

// Controller tracks one row's gesture
type Controller struct {
	phase        Phase
	pointerID    int
	region       Region
	downX        float64
	moved        bool
	lastFraction float64
	threshold    float64
}

// NewController creates an idle controller. threshold <= 0 uses DefaultThreshold.
func NewController(threshold float64) *Controller {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Controller{threshold: threshold}
}

// Phase returns the current gesture state
func (c *Controller) Phase() Phase {
	return c.phase
}

// Dragging reports whether a gesture is in progress
func (c *Controller) Dragging() bool {
	return c.phase == Dragging
}

// LastFraction returns the most recently computed target
func (c *Controller) LastFraction() float64 {
	return c.lastFraction
}

// PointerID returns the pointer that owns the current gesture
func (c *Controller) PointerID() int {
	return c.pointerID
}

// Down starts a gesture and returns the fraction to seek to. A second down
// while dragging restarts the gesture with the new pointer.
func (c *Controller) Down(pointerID int, clientX float64, region Region) float64 {
	c.phase = Dragging
	c.pointerID = pointerID
	c.region = region
	c.downX = clientX
	c.moved = false
	c.lastFraction = region.Fraction(clientX)
	return c.lastFraction
}

// Move updates a drag. It returns the fraction and true when a seek should be
// issued: only while dragging with the owning pointer, and only once the
// pointer has left the click threshold.
func (c *Controller) Move(pointerID int, clientX float64) (float64, bool) {
	if c.phase != Dragging || pointerID != c.pointerID {
		return 0, false
	}
	if !c.moved {
		dx := clientX - c.downX
		if dx < 0 {
			dx = -dx
		}
		if dx <= c.threshold {
			return 0, false
		}
		c.moved = true
	}
	c.lastFraction = c.region.Fraction(clientX)
	return c.lastFraction, true
}

// Up ends the gesture. It reports whether the gesture was a click, i.e. the
// pointer never left the threshold. No seek is issued on up.
func (c *Controller) Up(pointerID int) (wasClick bool) {
	if c.phase != Dragging || pointerID != c.pointerID {
		return false
	}
	wasClick = !c.moved
	c.reset()
	return wasClick
}

// Cancel aborts the gesture for pointer cancel, pointer leave or a newer
// gesture taking over on another row.
func (c *Controller) Cancel() {
	c.reset()
}

func (c *Controller) reset() {
	c.phase = Idle
	c.moved = false
}
