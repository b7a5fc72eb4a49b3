package reframe

import "github.com/zsiec/reframer/internal/media"

// cutPoint is a timestamp in an arbitrary timescale. A zero scale marks
// an unset point.
type cutPoint struct {
	ts    uint64
	scale uint64
}

func (c cutPoint) valid() bool { return c.scale != 0 }

// in returns c in ticks of timescale.
func (c cutPoint) in(timescale uint64) uint64 {
	return media.Rescale(c.ts, timescale, c.scale)
}

func (c cutPoint) fraction() media.Fraction {
	return media.Fraction{Num: c.ts, Den: c.scale}
}

// cmp compares c with ts ticks of timescale.
func (c cutPoint) cmp(ts, timescale uint64) int {
	return media.CompareTicks(c.ts, c.scale, ts, timescale)
}

// offerMin keeps the earliest point offered.
func (c *cutPoint) offerMin(ts, timescale uint64) {
	if !c.valid() || c.cmp(ts, timescale) > 0 {
		*c = cutPoint{ts: ts, scale: timescale}
	}
}

// offerMax keeps the latest point offered.
func (c *cutPoint) offerMax(ts, timescale uint64) {
	if !c.valid() || c.cmp(ts, timescale) < 0 {
		*c = cutPoint{ts: ts, scale: timescale}
	}
}

// sizeDecision is the outcome of one size-split evaluation.
type sizeDecision uint8

const (
	// sizeWait: the chunk is too small and more input is needed.
	sizeWait sizeDecision = iota
	// sizeExtend: the chunk is too small, probe one GOP further.
	sizeExtend
	// sizeAccept: cut at the returned point.
	sizeAccept
)

// sizeEstimator chooses chunk boundaries for size-based splitting by
// accumulating GOPs until the target size is crossed, then rounding to
// the cut before or after the crossing.
type sizeEstimator struct {
	target uint64
	round  Rounding
	// depth is how many extra GOPs the current candidate spans.
	depth int

	prev     cutPoint
	prevSize uint64
	// size is the estimated size of the last accepted chunk.
	size uint64
}

func (e *sizeEstimator) reset() {
	e.depth = 0
	e.prev = cutPoint{}
	e.prevSize = 0
}

// decide evaluates a candidate cut whose chunk would weigh size bytes.
// complete reports that every stream has queued data up to the cut or is
// at end of stream. It returns the cut to use on sizeAccept.
func (e *sizeEstimator) decide(cur cutPoint, size uint64, complete bool) (sizeDecision, cutPoint, bool) {
	if size < e.target && cur.valid() &&
		(!e.prev.valid() || e.prev.cmp(cur.ts, cur.scale) < 0) {
		if !complete {
			return sizeWait, cutPoint{}, false
		}
		e.prevSize = size
		e.prev = cur
		e.depth++
		return sizeExtend, cutPoint{}, false
	}

	var usePrev bool
	switch e.round {
	case RoundBefore:
		usePrev = true
	case RoundAfter:
		usePrev = false
	default:
		usePrev = absDiff(e.target, size) >= absDiff(e.target, e.prevSize)
	}
	if !e.prev.valid() {
		usePrev = false
	}
	cut := cur
	if usePrev {
		cut = e.prev
		e.size = e.prevSize
	} else {
		e.size = size
	}
	e.prev = cutPoint{}
	e.depth = 0
	return sizeAccept, cut, usePrev
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
