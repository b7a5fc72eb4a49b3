package reframe

import (
	"github.com/zsiec/reframer/internal/boundary"
	"github.com/zsiec/reframer/internal/media"
)

// loadRange advances to the next range: the next chunk in split modes, or
// the next start/end pair otherwise.
func (r *Reframer) loadRange() {
	r.videoFramesAtRangeStart = r.videoFrames

	switch r.mode {
	case boundary.ModeDuration:
		r.win.start = r.win.start.Add(r.extractDur)
		r.win.end = r.win.end.Add(r.extractDur)
		r.fileIdx++
		return
	case boundary.ModeSAP, boundary.ModeSize:
		r.win.start = r.win.end
		r.cut = cutPoint{}
		r.fileIdx++
		return
	}

	prevEnd := r.win.end
	prevFrame := r.win.startFrame
	r.win = window{}

	if len(r.opts.Starts) == 0 {
		if r.state != stateNone {
			r.finish()
		}
		return
	}
	if r.rangeIdx >= len(r.opts.Starts) {
		r.finish()
		return
	}
	startExpr := r.opts.Starts[r.rangeIdx]
	endExpr := ""
	switch {
	case r.rangeIdx < len(r.opts.Ends):
		endExpr = r.opts.Ends[r.rangeIdx]
	case r.rangeIdx+1 < len(r.opts.Starts):
		endExpr = r.opts.Starts[r.rangeIdx+1]
	}
	r.rangeIdx++
	r.state = stateClosed
	if endExpr == "" {
		r.state = stateOpen
	}

	start, err := boundary.Parse(startExpr)
	if err != nil {
		r.log.Warn("cannot parse range start, ending extraction", "error", err)
		r.finish()
		return
	}
	r.mode = start.Mode
	r.win.start = start.Time
	r.win.startFrame = start.Frame

	seek := r.rangeIdx > 1 && r.needsSeek(prevEnd, prevFrame)
	if seek && !r.seekable {
		r.log.Error("ranges not in order and input not seekable, aborting extraction", "range", r.rangeIdx)
		r.finish()
		return
	}

	r.rangeExtraction = r.mode == boundary.ModeRange || r.mode == boundary.ModeDuration
	switch r.mode {
	case boundary.ModeDuration:
		endExpr = ""
		r.extractDur = start.Time
		r.win.start = media.Fraction{Den: r.extractDur.Den}
		r.win.end = r.extractDur
		r.state = stateClosed
		r.fileIdx = 1
		r.opts.SplitRange = true
		r.opts.AdjustEnd = true
	case boundary.ModeSize:
		endExpr = ""
		r.opts.SplitRange = true
		r.est.target = start.Size
		r.est.reset()
		r.fileIdx = 1
	case boundary.ModeSAP:
		endExpr = ""
		r.opts.SplitRange = true
		r.fileIdx = 1
	}

	if endExpr != "" {
		end, err := boundary.Parse(endExpr)
		if err != nil {
			r.log.Warn("cannot parse range end, assuming open range", "error", err)
			r.state = stateOpen
		} else {
			r.win.end = end.Time
			r.win.endFrame = end.Frame
		}
	}
	r.win.open = r.state == stateOpen

	// Raw audio split state only carries over into a contiguous range.
	resetSplit := !prevEnd.Valid() || prevEnd.Cmp(r.win.start) != 0
	if r.pacer.Enabled() || seek || resetSplit {
		var from float64
		if seek {
			from = max(r.win.start.Seconds()-r.opts.SeekSafe, 0)
			r.hasSeenEOS = false
			r.seeked = true
		}
		for _, st := range r.streams {
			if r.pacer.Enabled() {
				st.anchor.Reset()
			}
			if seek {
				st.in.SendEvent(media.Event{Type: media.EventStop})
				st.in.SendEvent(media.Event{Type: media.EventPlay, Start: from, Speed: 1})
				st.nbFramesRange = 0
			}
			if resetSplit {
				st.splitKeep, st.skipSamples = 0, 0
			}
		}
	}

	if r.rangeIdx <= len(r.opts.Props) {
		for _, st := range r.streams {
			r.pushProps(st)
			st.out.PushProps(r.opts.Props[r.rangeIdx-1])
			st.out.SetProp(media.PropPeriodResume, "")
		}
	}
	r.stats.RecordRange(uint32(r.rangeIdx), startExpr)
	r.log.Debug("range loaded", "index", r.rangeIdx, "mode", r.mode, "state", r.state,
		"start", startExpr, "end", endExpr, "seek", seek)
}

// needsSeek decides whether the source must be repositioned to reach the
// range just parsed. Frame numbers count from the source start, so they
// stay valid until a seek happens.
func (r *Reframer) needsSeek(prevEnd media.Fraction, prevFrame uint64) bool {
	if r.win.startFrame > 0 {
		if prevFrame == 0 {
			return r.seeked
		}
		return r.win.startFrame <= prevFrame
	}
	if !prevEnd.Valid() {
		return true
	}
	if r.win.start.Less(prevEnd) {
		return true
	}
	return r.win.start.Seconds() > prevEnd.Seconds()+r.opts.SeekSafe
}

// finish ends extraction: inputs are stopped and discarded, outputs end.
func (r *Reframer) finish() {
	r.state = stateDone
	for _, st := range r.streams {
		st.reset()
		st.in.SetDiscard(true)
		st.in.SendEvent(media.Event{Type: media.EventStop})
		r.signalEOS(st)
	}
	r.log.Info("range extraction done", "ranges", r.rangeIdx)
}

// nextRange closes the current range, carrying each stream's timeline
// offset over, and loads the next one. It returns the number of streams
// at end of stream.
func (r *Reframer) nextRange() int {
	eos, pending := 0, 0
	var parked []*stream
	for _, st := range r.streams {
		switch {
		case st.reinsert.get() != nil:
			if d, ok := r.rangeSpan(st); ok {
				st.tsAtRangeEnd += d
			}
		case st.rangeEnd.ok && st.rangeStart.ok && st.rangeEnd.v > st.rangeStart.v:
			st.tsAtRangeEnd += st.rangeEnd.v - st.rangeStart.v
		}
		st.rangeStart = mark{}
		st.rangeEnd = mark{}
		st.start = startPending
		switch {
		case st.inEOS && st.queue.len() > 0:
			pending++
		case st.inEOS && st.reinsert.get() != nil:
			// Reinserted in every chunk until the other streams end.
			parked = append(parked, st)
		case st.inEOS:
			r.signalEOS(st)
			eos++
		case st.split.get() != nil:
			pending++
		}
	}
	if len(parked) > 0 && eos+len(parked) == len(r.streams) {
		for _, st := range parked {
			r.signalEOS(st)
		}
		eos += len(parked)
	}
	r.inRange = false
	r.progress = true
	r.loadRange()
	if pending > 0 {
		r.again = true
	}
	return eos
}
