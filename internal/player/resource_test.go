package player

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"beatbrowser/internal/cache"
	"beatbrowser/internal/metadata"
	"beatbrowser/pkg/models"

	"github.com/sirupsen/logrus"
)

type countingProber struct {
	infos map[string]metadata.Info
	calls int
}

func (p *countingProber) Probe(_ context.Context, locator string) (metadata.Info, error) {
	p.calls++
	info, ok := p.infos[locator]
	if !ok {
		return metadata.Info{}, models.ErrSourceUnreachable
	}
	return info, nil
}

func TestProbeResourceOpen(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	durations := cache.NewMemoryCache[time.Duration](time.Minute)
	defer durations.Close()

	prober := &countingProber{infos: map[string]metadata.Info{
		"a.mp3":     {Duration: 120 * time.Second},
		"empty.wav": {},
	}}
	r := NewProbeResource(prober, durations, logger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := r.Open(ctx, "a.mp3")
		if err != nil || d != 120*time.Second {
			t.Fatalf("Open: %v %v", d, err)
		}
	}
	if prober.calls != 1 {
		t.Errorf("Expected one probe thanks to the cache, got %d", prober.calls)
	}

	if _, err := r.Open(ctx, "empty.wav"); !errors.Is(err, models.ErrDecodeUnsupported) {
		t.Errorf("Expected zero duration to be undecodable, got %v", err)
	}
	if _, err := r.Open(ctx, "gone.mp3"); !errors.Is(err, models.ErrSourceUnreachable) {
		t.Errorf("Expected unreachable, got %v", err)
	}

	// Without a cache every open probes
	uncached := NewProbeResource(prober, nil, logger)
	before := prober.calls
	uncached.Open(ctx, "a.mp3")
	uncached.Open(ctx, "a.mp3")
	if prober.calls != before+2 {
		t.Errorf("Expected two probes without cache, got %d", prober.calls-before)
	}
	uncached.Start(0)
	uncached.Stop()
}
