package waveform

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"beatbrowser/internal/audio"
	"beatbrowser/pkg/models"

	"github.com/sirupsen/logrus"
)

// Fetcher retrieves the encoded bytes behind a source locator
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Decoder turns encoded bytes into samples
type Decoder interface {
	Decode(data []byte) (*audio.Buffer, error)
}

// PeakStore persists extracted peaks across sessions
type PeakStore interface {
	LoadPeaks(ctx context.Context, source string, bars int) ([]float64, bool, error)
	SavePeaks(ctx context.Context, source string, bars int, peaks []float64) error
}

// Dispatcher runs a function on the goroutine that owns the cache
type Dispatcher interface {
	Post(fn func())
}

// Entry is the cache's view of one track source
type Entry struct {
	Status models.WaveformStatus
	Peaks  []float64
	Err    error
}

// State converts the entry into its observable form
func (e Entry) State() models.WaveformState {
	return models.WaveformState{
		Status:  e.Status,
		Peaks:   e.Peaks,
		Failure: models.Classify(e.Err),
	}
}

// CacheOptions configures a Cache
type CacheOptions struct {
	Bars    int
	Workers int
	Timeout time.Duration
	Peaks   PeakOptions
}

// Cache lazily extracts and keeps peaks per track source. Entries never
// expire. All methods must be called from the dispatcher's goroutine; the
// fetch/decode work runs on a bounded set of worker goroutines.
type Cache struct {
	entries    map[string]*Entry
	listeners  []func(source string, entry Entry)
	options    CacheOptions
	fetcher    Fetcher
	decoder    Decoder
	store      PeakStore
	dispatcher Dispatcher
	logger     *logrus.Logger

	slots       chan struct{}
	ctx         context.Context
	cancel      context.CancelFunc
	extractions int64
}

// NewCache creates a waveform cache. store may be nil.
func NewCache(options CacheOptions, fetcher Fetcher, decoder Decoder, store PeakStore, dispatcher Dispatcher, logger *logrus.Logger) *Cache {
	if options.Bars <= 0 {
		options.Bars = 120
	}
	if options.Workers <= 0 {
		options.Workers = 2
	}
	if options.Peaks == (PeakOptions{}) {
		options.Peaks = DefaultPeakOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		entries:    make(map[string]*Entry),
		options:    options,
		fetcher:    fetcher,
		decoder:    decoder,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		slots:      make(chan struct{}, options.Workers),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Bars returns the resolution every entry is built at
func (c *Cache) Bars() int {
	return c.options.Bars
}

// Request returns the entry for source, starting an extraction if none has
// run yet. Repeated calls while decoding return the pending entry without
// starting another extraction.
func (c *Cache) Request(source string) Entry {
	if entry, exists := c.entries[source]; exists {
		return *entry
	}

	entry := &Entry{Status: models.WaveformDecoding}
	c.entries[source] = entry
	go c.extract(source)

	c.logger.WithField("source", source).Debug("Waveform extraction queued")
	return *entry
}

// Get returns the entry for source without triggering work
func (c *Cache) Get(source string) Entry {
	if entry, exists := c.entries[source]; exists {
		return *entry
	}
	return Entry{Status: models.WaveformAbsent}
}

// Invalidate forgets a settled entry so the next Request retries it. An
// in-flight extraction is left alone.
func (c *Cache) Invalidate(source string) {
	entry, exists := c.entries[source]
	if !exists || entry.Status == models.WaveformDecoding {
		return
	}
	delete(c.entries, source)
}

// Snapshot copies the state of every known entry
func (c *Cache) Snapshot() map[string]models.WaveformState {
	out := make(map[string]models.WaveformState, len(c.entries))
	for source, entry := range c.entries {
		out[source] = entry.State()
	}
	return out
}

// OnSettled registers a callback for entries reaching ready or failed
func (c *Cache) OnSettled(fn func(source string, entry Entry)) {
	c.listeners = append(c.listeners, fn)
}

// Extractions reports how many fetch/decode runs have started
func (c *Cache) Extractions() int64 {
	return atomic.LoadInt64(&c.extractions)
}

// Close abandons in-flight extractions
func (c *Cache) Close() {
	c.cancel()
}

// extract runs off the loop and posts its result back
func (c *Cache) extract(source string) {
	select {
	case c.slots <- struct{}{}:
	case <-c.ctx.Done():
		return
	}
	defer func() { <-c.slots }()

	atomic.AddInt64(&c.extractions, 1)
	startTime := time.Now()
	peaks, err := c.buildPeaks(source)

	fields := logrus.Fields{
		"source":         source,
		"bars":           c.options.Bars,
		"processingTime": time.Since(startTime),
	}
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("Waveform extraction failed, using placeholder")
	} else {
		c.logger.WithFields(fields).Debug("Waveform extracted")
	}

	c.dispatcher.Post(func() {
		c.settle(source, peaks, err)
	})
}

// buildPeaks loads from the store or runs fetch -> decode -> extract
func (c *Cache) buildPeaks(source string) ([]float64, error) {
	ctx := c.ctx
	if c.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.options.Timeout)
		defer cancel()
	}

	if c.store != nil {
		peaks, found, err := c.store.LoadPeaks(ctx, source, c.options.Bars)
		if err != nil {
			c.logger.WithError(err).WithField("source", source).Warn("Failed to read stored peaks")
		} else if found {
			return peaks, nil
		}
	}

	data, err := c.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}
	buf, err := c.decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", source, err)
	}
	peaks := ExtractPeaks(buf, c.options.Bars, c.options.Peaks)

	if c.store != nil {
		if err := c.store.SavePeaks(ctx, source, c.options.Bars, peaks); err != nil {
			c.logger.WithError(err).WithField("source", source).Warn("Failed to store peaks")
		}
	}
	return peaks, nil
}

// settle records an extraction result on the loop
func (c *Cache) settle(source string, peaks []float64, err error) {
	entry, exists := c.entries[source]
	if !exists || entry.Status != models.WaveformDecoding {
		return
	}

	if err != nil {
		entry.Status = models.WaveformFailed
		entry.Err = err
		entry.Peaks = nil
	} else {
		entry.Status = models.WaveformReady
		entry.Peaks = peaks
		entry.Err = nil
	}

	for _, fn := range c.listeners {
		fn(source, *entry)
	}
}
