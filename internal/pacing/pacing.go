// Package pacing holds packets back so that media time advances no faster
// than wall-clock time, optionally scaled by a playback speed.
package pacing

import (
	"log/slog"
	"math"
	"time"
)

// Slack is how early a packet may be released ahead of its due time.
const Slack = 2 * time.Millisecond

const slackUS = uint64(Slack / time.Microsecond)

// Mode selects how streams are anchored to the wall clock.
type Mode uint8

const (
	// Off disables pacing.
	Off Mode = iota
	// PerStream anchors each stream on its own first packet.
	PerStream
	// Shared anchors every stream on the first packet of any stream.
	Shared
)

func (m Mode) String() string {
	switch m {
	case PerStream:
		return "on"
	case Shared:
		return "sync"
	default:
		return "off"
	}
}

// ParseMode maps "off", "on" and "sync" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "off":
		return Off, true
	case "on":
		return PerStream, true
	case "sync":
		return Shared, true
	}
	return Off, false
}

// Clock reports the current time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Anchor pairs a media time with the wall-clock time it was first seen.
// Both are in microseconds.
type Anchor struct {
	media uint64
	wall  uint64
	set   bool
}

// Reset clears the anchor so the next packet re-anchors.
func (a *Anchor) Reset() { *a = Anchor{} }

// Regulator decides, for each packet, whether it is due yet. A Regulator
// is driven from a single goroutine.
type Regulator struct {
	log    *slog.Logger
	mode   Mode
	speed  float64
	clock  Clock
	origin time.Time

	shared *Anchor
	now    uint64
	wait   uint64
}

// NewRegulator returns a Regulator. A nil clock uses the system clock; a
// nil logger uses slog.Default(). A negative speed is treated as its
// absolute value.
func NewRegulator(mode Mode, speed float64, clock Clock, log *slog.Logger) *Regulator {
	if clock == nil {
		clock = systemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Regulator{
		log:    log.With("component", "pacing"),
		mode:   mode,
		speed:  math.Abs(speed),
		clock:  clock,
		origin: clock.Now(),
	}
}

// Enabled reports whether any pacing is applied.
func (r *Regulator) Enabled() bool { return r.mode != Off }

// Begin samples the clock once for a processing pass and clears the
// pending wait.
func (r *Regulator) Begin() {
	r.now = uint64(r.clock.Now().Sub(r.origin) / time.Microsecond)
	r.wait = math.MaxUint64
}

// Admit reports whether a packet at mediaUS microseconds may be released
// now. own is the calling stream's anchor.
func (r *Regulator) Admit(own *Anchor, mediaUS uint64) bool {
	if r.mode == Off {
		return true
	}
	a := own
	if r.mode == Shared {
		if r.shared == nil {
			r.shared = own
		}
		a = r.shared
	}
	if !a.set {
		*a = Anchor{media: mediaUS, wall: r.now, set: true}
		return true
	}
	if mediaUS < a.media {
		r.log.Warn("packet earlier than pacing anchor, releasing", "media_us", mediaUS, "anchor_us", a.media)
		return true
	}
	diff := mediaUS - a.media
	if r.speed > 0 {
		diff = uint64(float64(diff) / r.speed)
	}
	elapsed := r.now - a.wall
	if elapsed+slackUS >= diff {
		if late := elapsed - min(elapsed, diff); late > 2*slackUS {
			r.log.Debug("packet released late", "late_us", late)
		}
		return true
	}
	r.wait = min(r.wait, diff-elapsed)
	return false
}

// Wait returns how long the caller should sleep before the earliest held
// packet becomes due, or 0 when nothing was held in this pass.
func (r *Regulator) Wait() time.Duration {
	if r.wait == math.MaxUint64 || r.wait == 0 {
		return 0
	}
	remaining := time.Duration(r.wait) * time.Microsecond
	return max(remaining-Slack, Slack)
}

// Forget drops the shared anchor if it belongs to a.
func (r *Regulator) Forget(a *Anchor) {
	if r.shared == a {
		r.shared = nil
	}
}

// ResetShared clears the shared anchor so the next packet of any stream
// re-anchors.
func (r *Regulator) ResetShared() {
	if r.shared != nil {
		r.shared.Reset()
	}
}
