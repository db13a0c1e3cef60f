package player

import "fmt"

// EventKind classifies engine notifications
type EventKind int

const (
	EventMetadataReady EventKind = iota
	EventPositionChanged
	EventEnded
	EventLoadFailed
)

func (k EventKind) String() string {
	switch k {
	case EventMetadataReady:
		return "metadataReady"
	case EventPositionChanged:
		return "positionChanged"
	case EventEnded:
		return "ended"
	case EventLoadFailed:
		return "loadFailed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is emitted by the Engine. Source and Generation identify the Load the
// event belongs to so listeners can drop events of a superseded load.
type Event struct {
	Kind       EventKind
	Source     string
	Generation uint64
	Position   float64 // seconds
	Duration   float64 // seconds, set once known
	Err        error   // LoadFailed only
}
