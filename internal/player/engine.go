package player

import (
	"context"
	"fmt"
	"time"

	"beatbrowser/pkg/models"

	"github.com/sirupsen/logrus"
)

// Dispatcher runs a function on the goroutine that owns the Engine
type Dispatcher interface {
	Post(fn func())
}

// Clock supplies the time used to advance the playhead
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// seekTarget is a seek requested before the duration was known
type seekTarget struct {
	seconds    float64
	fraction   float64
	isFraction bool
}

// Engine adapts one Resource into load/play/pause/seek with events. It is not
// safe for concurrent use: every method must run on the dispatcher's goroutine.
// Metadata resolution runs on its own goroutine and is posted back.
type Engine struct {
	session    Session
	resource   Resource
	dispatcher Dispatcher
	clock      Clock
	logger     *logrus.Logger
	listener   func(Event)

	loadTimeout time.Duration
	cancelLoad  context.CancelFunc
	pending     *seekTarget

	// playhead anchor, valid while playing with a known duration
	anchorTime     time.Time
	anchorPosition float64
}

// Options tunes an Engine
type Options struct {
	LoadTimeout time.Duration
	Clock       Clock
}

// NewEngine creates the engine that owns the process-wide Session
func NewEngine(resource Resource, dispatcher Dispatcher, options Options, logger *logrus.Logger) *Engine {
	if options.Clock == nil {
		options.Clock = systemClock{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		resource:    resource,
		dispatcher:  dispatcher,
		clock:       options.Clock,
		logger:      logger,
		loadTimeout: options.LoadTimeout,
	}
}

// SetListener installs the single event listener
func (e *Engine) SetListener(fn func(Event)) {
	e.listener = fn
}

// Session returns a copy of the session with the position brought up to date
func (e *Engine) Session() Session {
	s := e.session
	s.Position = e.currentPosition()
	return s
}

// Position returns the current playhead in seconds
func (e *Engine) Position() float64 {
	return e.currentPosition()
}

// Load starts preparing source and returns the load's generation. The
// position resets to 0 and the duration is unknown until MetadataReady.
func (e *Engine) Load(source string) uint64 {
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	if e.session.IsPlaying && e.session.DurationKnown {
		e.resource.Stop()
	}

	generation := e.session.Generation + 1
	e.session = Session{
		LoadedSource: source,
		Generation:   generation,
	}
	e.pending = nil

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if e.loadTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), e.loadTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	e.cancelLoad = cancel

	e.logger.WithFields(logrus.Fields{
		"source":     source,
		"generation": generation,
	}).Debug("Loading source")

	go func() {
		duration, err := e.resource.Open(ctx, source)
		e.dispatcher.Post(func() {
			e.resolveLoad(generation, duration, err)
		})
	}()

	return generation
}

// Play starts or resumes playback. Before metadata is known it records the
// intent and playback begins once the duration resolves.
func (e *Engine) Play() {
	if !e.session.HasSource() || e.session.Failed || e.session.IsPlaying {
		return
	}
	if e.session.DurationKnown && e.session.Position >= e.session.Duration {
		e.session.Position = 0
	}
	e.session.IsPlaying = true
	if e.session.DurationKnown {
		e.startOutput()
	}
}

// Pause freezes the playhead
func (e *Engine) Pause() {
	if !e.session.HasSource() || !e.session.IsPlaying {
		return
	}
	e.session.Position = e.currentPosition()
	e.session.IsPlaying = false
	if e.session.DurationKnown {
		e.resource.Stop()
	}
}

// Seek moves the playhead to seconds. Without a known duration the seek is
// deferred; only the latest deferred seek is applied, exactly once.
func (e *Engine) Seek(seconds float64) {
	if !e.session.HasSource() || e.session.Failed {
		return
	}
	if !e.session.DurationKnown {
		e.pending = &seekTarget{seconds: seconds}
		return
	}
	e.applySeek(seconds)
}

// SeekFraction seeks to a fraction of the duration, deferring like Seek
func (e *Engine) SeekFraction(fraction float64) {
	if !e.session.HasSource() || e.session.Failed {
		return
	}
	fraction = clamp01(fraction)
	if !e.session.DurationKnown {
		e.pending = &seekTarget{fraction: fraction, isFraction: true}
		return
	}
	e.applySeek(fraction * e.session.Duration)
}

// Tick advances the playhead and emits PositionChanged, or Ended at the end
func (e *Engine) Tick() {
	if !e.session.IsPlaying || !e.session.DurationKnown {
		return
	}
	position := e.currentPosition()
	if position >= e.session.Duration {
		e.session.Position = e.session.Duration
		e.session.IsPlaying = false
		e.resource.Stop()
		e.emit(EventPositionChanged)
		e.emit(EventEnded)
		return
	}
	e.session.Position = position
	e.emit(EventPositionChanged)
}

// Run posts a Tick every interval until ctx is done
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.dispatcher.Post(e.Tick)
		}
	}
}

// resolveLoad applies the result of Resource.Open on the loop
func (e *Engine) resolveLoad(generation uint64, duration time.Duration, err error) {
	if generation != e.session.Generation {
		e.logger.WithField("generation", generation).Debug("Dropping superseded load result")
		return
	}
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}

	if err != nil {
		e.session.Failed = true
		e.session.IsPlaying = false
		e.pending = nil
		e.logger.WithError(err).WithField("source", e.session.LoadedSource).Warn("Failed to load source")
		e.emitEvent(Event{
			Kind: EventLoadFailed,
			Err:  fmt.Errorf("load %s: %v: %w", e.session.LoadedSource, err, models.ErrEngineLoadFailed),
		})
		return
	}

	e.session.Duration = duration.Seconds()
	e.session.DurationKnown = true
	e.emit(EventMetadataReady)

	if e.pending != nil {
		target := e.pending
		e.pending = nil
		if target.isFraction {
			e.applySeek(target.fraction * e.session.Duration)
		} else {
			e.applySeek(target.seconds)
		}
	}
	if e.session.IsPlaying {
		e.startOutput()
	}
}

// applySeek moves the playhead with a known duration
func (e *Engine) applySeek(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	if seconds > e.session.Duration {
		seconds = e.session.Duration
	}
	e.session.Position = seconds
	if e.session.IsPlaying {
		e.startOutput()
	}
	e.emit(EventPositionChanged)
}

// startOutput re-anchors the playhead and (re)starts the resource
func (e *Engine) startOutput() {
	e.anchorTime = e.clock.Now()
	e.anchorPosition = e.session.Position
	e.resource.Start(time.Duration(e.session.Position * float64(time.Second)))
}

// currentPosition derives the playhead from the anchor while playing
func (e *Engine) currentPosition() float64 {
	if !e.session.IsPlaying || !e.session.DurationKnown {
		return e.session.Position
	}
	position := e.anchorPosition + e.clock.Now().Sub(e.anchorTime).Seconds()
	if position > e.session.Duration {
		position = e.session.Duration
	}
	if position < e.session.Position {
		// never report a position behind one already emitted
		position = e.session.Position
	}
	return position
}

func (e *Engine) emit(kind EventKind) {
	e.emitEvent(Event{Kind: kind})
}

func (e *Engine) emitEvent(ev Event) {
	ev.Source = e.session.LoadedSource
	ev.Generation = e.session.Generation
	ev.Position = e.session.Position
	if e.session.DurationKnown {
		ev.Duration = e.session.Duration
	}
	if e.listener != nil {
		e.listener(ev)
	}
}
