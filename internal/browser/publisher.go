package browser

import (
	"sync"
	"time"

	"beatbrowser/internal/player"
	"beatbrowser/pkg/models"
)

// Snapshot is the observable state of the whole browser
type Snapshot struct {
	ActiveRowID string                          `json:"activeRowId"`
	Rows        []models.RowView                `json:"rows"`
	Waveforms   map[string]models.WaveformState `json:"waveforms"` // by track ID, peaks omitted
	Session     player.Session                  `json:"session"`
	UpdatedAt   time.Time                       `json:"updatedAt"`
}

// Publisher fans snapshots out to subscribers. Unlike the browser itself it
// is safe for concurrent use, since subscribers live on HTTP goroutines.
type Publisher struct {
	latest    *Snapshot
	mutex     sync.RWMutex
	listeners []chan *Snapshot
}

// NewPublisher creates an empty publisher
func NewPublisher() *Publisher {
	return &Publisher{
		listeners: make([]chan *Snapshot, 0),
	}
}

// Latest returns the last published snapshot, or nil before the first one
func (p *Publisher) Latest() *Snapshot {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.latest
}

// Publish stores snap and notifies listeners
func (p *Publisher) Publish(snap *Snapshot) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.latest = snap
	p.notifyListeners()
}

// Subscribe adds a listener for snapshots
func (p *Publisher) Subscribe() <-chan *Snapshot {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	ch := make(chan *Snapshot, 16) // Buffered channel to prevent blocking
	p.listeners = append(p.listeners, ch)
	return ch
}

// Unsubscribe removes a listener (call this when done to prevent memory leaks)
func (p *Publisher) Unsubscribe(ch <-chan *Snapshot) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	for i, listener := range p.listeners {
		if listener == ch {
			close(listener)
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			break
		}
	}
}

// notifyListeners sends the latest snapshot to all subscribers (must be called with lock held).
// A subscriber whose buffer is full is too slow to follow and is dropped.
func (p *Publisher) notifyListeners() {
	kept := p.listeners[:0]
	for _, listener := range p.listeners {
		select {
		case listener <- p.latest:
			kept = append(kept, listener)
		default:
			close(listener)
		}
	}
	p.listeners = kept
}
