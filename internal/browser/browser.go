package browser

import (
	"errors"
	"fmt"
	"time"

	"beatbrowser/internal/player"
	"beatbrowser/internal/scrub"
	"beatbrowser/internal/waveform"
	"beatbrowser/pkg/models"

	"github.com/sirupsen/logrus"
)

// ErrUnknownRow is returned for operations on a row that is not rendered
var ErrUnknownRow = errors.New("unknown row")

// row is one rendered track. Rows reference tracks; they never own the
// playback session.
type row struct {
	id    string
	track models.Track
	view  models.RowView
	scrub *scrub.Controller
}

// activeRef points at the row currently bound to the session. generation is
// the engine load that row issued; events of any other load are stale.
type activeRef struct {
	rowID      string
	generation uint64
}

// Browser is the playback coordinator for a list of track rows. It is the
// only writer of the engine's session. Browser is not safe for concurrent
// use: call it from the event loop that drives the engine and cache.
type Browser struct {
	engine    *player.Engine
	cache     *waveform.Cache
	publisher *Publisher
	logger    *logrus.Logger

	rows           map[string]*row
	order          []string
	active         *activeRef
	scrubOwner     string
	scrubThreshold float64
}

// Options tunes a Browser
type Options struct {
	ScrubThreshold float64 // pixels, <= 0 uses scrub.DefaultThreshold
}

// New wires a browser to the engine and waveform cache and takes over the
// engine's event listener.
func New(engine *player.Engine, cache *waveform.Cache, options Options, logger *logrus.Logger) *Browser {
	if logger == nil {
		logger = logrus.New()
	}
	b := &Browser{
		engine:         engine,
		cache:          cache,
		publisher:      NewPublisher(),
		logger:         logger,
		rows:           make(map[string]*row),
		scrubThreshold: options.ScrubThreshold,
	}
	engine.SetListener(b.handleEngineEvent)
	cache.OnSettled(func(string, waveform.Entry) { b.publish() })
	b.publish()
	return b
}

// Publisher exposes the snapshot feed
func (b *Browser) Publisher() *Publisher {
	return b.publisher
}

// SetTracks re-renders the row list. Rows whose ID and source survive keep
// their state; the rest are destroyed, including a row rebuilt under the same
// ID for a new source. If the active row is destroyed the session is paused
// and the reference cleared.
func (b *Browser) SetTracks(tracks []models.Track) {
	next := make(map[string]*row, len(tracks))
	order := make([]string, 0, len(tracks))

	for _, track := range tracks {
		if track.ID == "" {
			continue
		}
		if _, dup := next[track.ID]; dup {
			b.logger.WithField("track_id", track.ID).Warn("Duplicate track ID in catalog, keeping first")
			continue
		}
		if existing, ok := b.rows[track.ID]; ok && existing.track.Source == track.Source {
			existing.track = track
			next[track.ID] = existing
		} else {
			next[track.ID] = b.newRow(track)
		}
		order = append(order, track.ID)
	}

	if b.scrubOwner != "" && !b.survives(b.scrubOwner, next) {
		b.scrubOwner = ""
	}
	dangling := b.active != nil && !b.survives(b.active.rowID, next)

	b.rows = next
	b.order = order

	if dangling {
		b.clearDanglingActive()
	}

	b.logger.WithField("rows", len(order)).Info("Track list rendered")
	b.publish()
}

// survives reports whether rowID is the same row object in next
func (b *Browser) survives(rowID string, next map[string]*row) bool {
	prev, ok := b.rows[rowID]
	return ok && next[rowID] == prev
}

func (b *Browser) newRow(track models.Track) *row {
	return &row{
		id:    track.ID,
		track: track,
		view: models.RowView{
			RowID:     track.ID,
			TrackID:   track.ID,
			TimeLabel: idleLabel(track),
			Icon:      models.IconPlay,
		},
		scrub: scrub.NewController(b.scrubThreshold),
	}
}

// Toggle handles a row's transport control. On the active row it plays or
// pauses in place (reloading after a failed load); on any other row it
// switches the session to that row and starts playing from the top.
func (b *Browser) Toggle(rowID string) error {
	r, err := b.lookup(rowID)
	if err != nil {
		return err
	}
	if r.track.Source == "" {
		return nil
	}
	b.cache.Request(r.track.Source)

	if b.active == nil || b.active.rowID != rowID {
		b.switchTo(r, true)
		b.publish()
		return nil
	}

	session := b.engine.Session()
	switch {
	case session.Failed || session.LoadedSource != r.track.Source:
		b.active.generation = b.engine.Load(r.track.Source)
		b.engine.Play()
		r.view.Failure = models.FailureNone
		r.view.IsPlaying = true
		r.view.Icon = models.IconPause
	case session.IsPlaying:
		b.engine.Pause()
		r.view.IsPlaying = false
		r.view.Icon = models.IconPlay
	default:
		b.engine.Play()
		r.view.IsPlaying = true
		r.view.Icon = models.IconPause
	}

	b.publish()
	return nil
}

// Seek moves the session to fraction of rowID's track, adopting the row
// first when it is not active. An adopted row is loaded without autoplay; an
// already playing row keeps playing while it is scrubbed.
func (b *Browser) Seek(rowID string, fraction float64) error {
	r, err := b.lookup(rowID)
	if err != nil {
		return err
	}
	if r.track.Source == "" {
		return nil
	}
	if b.active == nil || b.active.rowID != rowID {
		b.switchTo(r, false)
	} else if session := b.engine.Session(); session.Failed || session.LoadedSource != r.track.Source {
		b.active.generation = b.engine.Load(r.track.Source)
		r.view.Failure = models.FailureNone
	}

	b.engine.SeekFraction(clampFraction(fraction))
	b.publish()
	return nil
}

// switchTo resets the previously active row, then binds r to the session
func (b *Browser) switchTo(r *row, autoplay bool) {
	if b.active != nil {
		if prev, ok := b.rows[b.active.rowID]; ok {
			resetRowView(prev)
		}
		b.active = nil
	}

	generation := b.engine.Load(r.track.Source)
	b.active = &activeRef{rowID: r.id, generation: generation}
	if autoplay {
		b.engine.Play()
	}

	r.view.Active = true
	r.view.Progress = 0
	r.view.Failure = models.FailureNone
	r.view.IsPlaying = autoplay
	if autoplay {
		r.view.Icon = models.IconPause
	} else {
		r.view.Icon = models.IconPlay
	}

	b.logger.WithFields(logrus.Fields{
		"row":        r.id,
		"source":     r.track.Source,
		"generation": generation,
		"autoplay":   autoplay,
	}).Debug("Active row switched")
}

// clearDanglingActive drops a reference to a row that no longer exists
func (b *Browser) clearDanglingActive() {
	b.logger.WithField("row", b.active.rowID).Info("Active row removed, pausing playback")
	b.engine.Pause()
	b.active = nil
}

// PointerDown starts a scrub gesture on rowID's waveform. A gesture on
// another row is cancelled: the later gesture wins.
func (b *Browser) PointerDown(rowID string, pointerID int, clientX float64, region scrub.Region) error {
	r, err := b.lookup(rowID)
	if err != nil {
		return err
	}
	if r.track.Source == "" {
		return nil
	}
	if b.scrubOwner != "" && b.scrubOwner != rowID {
		if other, ok := b.rows[b.scrubOwner]; ok {
			other.scrub.Cancel()
		}
	}
	b.scrubOwner = rowID
	b.cache.Request(r.track.Source)

	fraction := r.scrub.Down(pointerID, clientX, region)
	return b.Seek(rowID, fraction)
}

// PointerMove continues a scrub gesture
func (b *Browser) PointerMove(rowID string, pointerID int, clientX float64) error {
	r, err := b.lookup(rowID)
	if err != nil {
		return err
	}
	if b.scrubOwner != rowID {
		return nil
	}
	fraction, ok := r.scrub.Move(pointerID, clientX)
	if !ok {
		return nil
	}
	return b.Seek(rowID, fraction)
}

// PointerUp ends a scrub gesture
func (b *Browser) PointerUp(rowID string, pointerID int) error {
	r, err := b.lookup(rowID)
	if err != nil {
		return err
	}
	r.scrub.Up(pointerID)
	if b.scrubOwner == rowID && !r.scrub.Dragging() {
		b.scrubOwner = ""
	}
	return nil
}

// PointerCancel aborts a scrub gesture (pointer cancel or leave)
func (b *Browser) PointerCancel(rowID string) error {
	r, err := b.lookup(rowID)
	if err != nil {
		return err
	}
	r.scrub.Cancel()
	if b.scrubOwner == rowID {
		b.scrubOwner = ""
	}
	return nil
}

// RowVisible requests the row's waveform, as when it scrolls into view
func (b *Browser) RowVisible(rowID string) (waveform.Entry, error) {
	r, err := b.lookup(rowID)
	if err != nil {
		return waveform.Entry{}, err
	}
	if r.track.Source == "" {
		return waveform.Entry{Status: models.WaveformAbsent}, nil
	}
	return b.cache.Request(r.track.Source), nil
}

// Waveform returns the peaks to draw for a row: the extracted peaks when
// ready, otherwise the placeholder pattern. The entry is requested lazily.
func (b *Browser) Waveform(rowID string) (models.WaveformState, []float64, error) {
	entry, err := b.RowVisible(rowID)
	if err != nil {
		return models.WaveformState{}, nil, err
	}
	if entry.Status == models.WaveformReady {
		return entry.State(), entry.Peaks, nil
	}
	return entry.State(), waveform.Placeholder(b.cache.Bars()), nil
}

// ActiveRowID returns the row bound to the session, or ""
func (b *Browser) ActiveRowID() string {
	if b.active == nil {
		return ""
	}
	return b.active.rowID
}

// Rows returns every row's visual state keyed by row ID
func (b *Browser) Rows() map[string]models.RowView {
	out := make(map[string]models.RowView, len(b.rows))
	for id, r := range b.rows {
		out[id] = r.view
	}
	return out
}

// Row returns one row's visual state
func (b *Browser) Row(rowID string) (models.RowView, error) {
	r, err := b.lookup(rowID)
	if err != nil {
		return models.RowView{}, err
	}
	return r.view, nil
}

// Tracks returns the rendered tracks in display order
func (b *Browser) Tracks() []models.Track {
	out := make([]models.Track, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.rows[id].track)
	}
	return out
}

// Waveforms returns the waveform state of every rendered track keyed by track ID
func (b *Browser) Waveforms() map[string]models.WaveformState {
	out := make(map[string]models.WaveformState, len(b.rows))
	for id, r := range b.rows {
		if r.track.Source == "" {
			out[id] = models.WaveformState{Status: models.WaveformAbsent}
			continue
		}
		out[id] = b.cache.Get(r.track.Source).State()
	}
	return out
}

// Snapshot builds the observable state
func (b *Browser) Snapshot() *Snapshot {
	rows := make([]models.RowView, 0, len(b.order))
	for _, id := range b.order {
		rows = append(rows, b.rows[id].view)
	}
	waveforms := b.Waveforms()
	for id, state := range waveforms {
		state.Peaks = nil
		waveforms[id] = state
	}
	return &Snapshot{
		ActiveRowID: b.ActiveRowID(),
		Rows:        rows,
		Waveforms:   waveforms,
		Session:     b.engine.Session(),
		UpdatedAt:   time.Now(),
	}
}

func (b *Browser) publish() {
	b.publisher.Publish(b.Snapshot())
}

func (b *Browser) lookup(rowID string) (*row, error) {
	r, ok := b.rows[rowID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", rowID, ErrUnknownRow)
	}
	return r, nil
}
