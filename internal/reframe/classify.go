package reframe

import "github.com/zsiec/reframer/internal/media"

// placement is where a packet falls relative to the current range.
type placement uint8

const (
	placeBefore placement = iota
	placeInside
	placeAfter
)

func (p placement) String() string {
	switch p {
	case placeInside:
		return "inside"
	case placeAfter:
		return "after"
	default:
		return "before"
	}
}

// window is the current range as the classifier sees it. Frame indices
// are 1-based; zero means the bound is a time.
type window struct {
	start      media.Fraction
	end        media.Fraction
	startFrame uint64
	endFrame   uint64
	open       bool
}

// classify places a packet of st with decode time ts, duration dur and
// 1-based index frameIdx in the range. For splittable raw audio straddling
// a bound it also returns the number of samples before that bound.
func classify(w window, st *stream, ts uint64, dur uint32, frameIdx uint64) (placement, uint64) {
	if w.startFrame > 0 {
		if frameIdx < w.startFrame {
			return placeBefore, 0
		}
		if !w.open {
			if w.endFrame > 0 && frameIdx >= w.endFrame {
				return placeAfter, 0
			}
			if w.endFrame == 0 && media.CompareTS(ts+uint64(dur), st.timescale, w.end) > 0 {
				return placeAfter, 0
			}
		}
		return placeInside, 0
	}

	var keep uint64
	end := ts + uint64(dur)
	before := media.CompareTS(ts, st.timescale, w.start) < 0
	if before && st.splittableAudio() && media.CompareTS(end, st.timescale, w.start) > 0 {
		keep = media.SamplesBetween(ts, st.timescale, w.start, st.sampleRate)
		before = false
	}
	// A packet is after the range only if it ends strictly past the end.
	after := false
	if !w.open && w.end.Valid() && media.CompareTS(end, st.timescale, w.end) > 0 {
		if st.splittableAudio() && media.CompareTS(ts, st.timescale, w.end) < 0 {
			keep = media.SamplesBetween(ts, st.timescale, w.end, st.sampleRate)
		}
		after = true
	}
	switch {
	case after:
		// Long packets, typically text, may start before and end after.
		return placeAfter, keep
	case before:
		return placeBefore, 0
	}
	return placeInside, keep
}
