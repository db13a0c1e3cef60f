package player

import (
	"context"
	"fmt"
	"time"

	"beatbrowser/internal/cache"
	"beatbrowser/internal/metadata"
	"beatbrowser/pkg/models"

	"github.com/sirupsen/logrus"
)

// Resource is the audio output the Engine drives. Open blocks until the
// source's metadata is known; Start and Stop must not block.
type Resource interface {
	Open(ctx context.Context, locator string) (time.Duration, error)
	Start(offset time.Duration)
	Stop()
}

// Prober reads a source's metadata
type Prober interface {
	Probe(ctx context.Context, locator string) (metadata.Info, error)
}

// ProbeResource is a silent output: it resolves durations by probing the
// source and leaves rendering sound to the client's own audio element, which
// follows the session this process publishes.
type ProbeResource struct {
	prober    Prober
	durations *cache.MemoryCache[time.Duration]
	logger    *logrus.Logger
}

// NewProbeResource creates a probe-backed resource. durations may be nil;
// when set, successful probes are remembered so reloading a row is instant.
func NewProbeResource(prober Prober, durations *cache.MemoryCache[time.Duration], logger *logrus.Logger) *ProbeResource {
	if logger == nil {
		logger = logrus.New()
	}
	return &ProbeResource{prober: prober, durations: durations, logger: logger}
}

// Open probes the locator for its duration
func (r *ProbeResource) Open(ctx context.Context, locator string) (time.Duration, error) {
	if r.durations != nil {
		if d, ok := r.durations.Get(locator); ok {
			return d, nil
		}
	}

	info, err := r.prober.Probe(ctx, locator)
	if err != nil {
		return 0, err
	}
	if info.Duration <= 0 {
		return 0, fmt.Errorf("%s has no playable duration: %w", locator, models.ErrDecodeUnsupported)
	}

	if r.durations != nil {
		r.durations.Set(locator, info.Duration)
	}
	return info.Duration, nil
}

// Start logs the transport change
func (r *ProbeResource) Start(offset time.Duration) {
	r.logger.WithField("offset", offset).Debug("Output started")
}

// Stop logs the transport change
func (r *ProbeResource) Stop() {
	r.logger.Debug("Output stopped")
}
