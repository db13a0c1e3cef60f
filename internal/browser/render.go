package browser

import (
	"fmt"
	"math"

	"beatbrowser/internal/player"
	"beatbrowser/pkg/models"

	"github.com/sirupsen/logrus"
)

// FormatTime renders seconds as m:ss. Non-finite and negative values render
// as 0:00.
func FormatTime(sec float64) string {
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
		sec = 0
	}
	m := int(sec / 60)
	s := int(math.Mod(sec, 60))
	return fmt.Sprintf("%d:%02d", m, s)
}

// handleEngineEvent is the render sync loop: it applies engine events to the
// active row only. Events from a superseded load or for a row that no longer
// exists are dropped here, before any row state is touched.
func (b *Browser) handleEngineEvent(ev player.Event) {
	if b.active == nil || ev.Generation != b.active.generation {
		b.logger.WithFields(logrus.Fields{
			"event":      ev.Kind.String(),
			"source":     ev.Source,
			"generation": ev.Generation,
		}).Debug("Dropping stale engine event")
		return
	}

	r, exists := b.rows[b.active.rowID]
	if !exists {
		b.clearDanglingActive()
		return
	}

	switch ev.Kind {
	case player.EventMetadataReady:
		r.view.TimeLabel = FormatTime(ev.Duration)

	case player.EventPositionChanged:
		if ev.Duration > 0 {
			r.view.Progress = clampFraction(ev.Position / ev.Duration)
		}
		r.view.TimeLabel = FormatTime(ev.Position)

	case player.EventEnded:
		r.view.Progress = 0
		r.view.IsPlaying = false
		r.view.Icon = models.IconPlay
		r.view.TimeLabel = FormatTime(ev.Duration)

	case player.EventLoadFailed:
		r.view.IsPlaying = false
		r.view.Icon = models.IconPlay
		r.view.Failure = models.Classify(ev.Err)
		b.logger.WithError(ev.Err).WithField("row", r.id).Warn("Row failed to load")
	}

	b.publish()
}

// resetRowView puts a row back to its idle visual state
func resetRowView(r *row) {
	r.view.Progress = 0
	r.view.IsPlaying = false
	r.view.Icon = models.IconPlay
	r.view.TimeLabel = idleLabel(r.track)
	r.view.Active = false
	r.view.Failure = models.FailureNone
}

// idleLabel is the time shown on a row that is not bound to the session
func idleLabel(track models.Track) string {
	if track.DisplayDuration > 0 {
		return FormatTime(track.DisplayDuration.Seconds())
	}
	return FormatTime(0)
}

func clampFraction(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
