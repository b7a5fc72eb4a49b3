package reframe

import (
	"github.com/zsiec/reframer/internal/boundary"
	"github.com/zsiec/reframer/internal/media"
)

// nthSAP returns the timestamp of the n-th access point queued on st.
func (r *Reframer) nthSAP(st *stream, n int) (uint64, bool) {
	seen := 0
	for i := range st.queue.len() {
		p := st.queue.at(i)
		if !r.opts.Raw && p.SAP == media.SAPNone {
			continue
		}
		seen++
		if seen == n {
			return st.ts(p), true
		}
	}
	return 0, false
}

// findCut returns the candidate chunk boundary. ok is false when more
// input is needed; an invalid cut with ok set means every stream ended
// with nothing left to bound.
func (r *Reframer) findCut() (cut cutPoint, flushAll, ok bool) {
	var hard, easy cutPoint
	nbEOS := 0
	hasEmpty := false
	waitSAP := false
	// The head access point opens the chunk; the cut is depth GOPs on.
	n := r.est.depth + 2
	for _, st := range r.streams {
		if st.inEOS {
			nbEOS++
			if st.queue.len() == 0 {
				hasEmpty = true
				continue
			}
		}
		sap, found := r.nthSAP(st, n)
		if !found {
			if st.inEOS && !flushAll && st.reinsert.get() == nil {
				flushAll = true
			} else if !st.allSAPs {
				waitSAP = true
			}
			continue
		}
		if st.allSAPs {
			easy.offerMin(sap, st.timescale)
		} else {
			hard.offerMin(sap, st.timescale)
		}
	}
	if nbEOS > 0 && hasEmpty {
		flushAll = true
	}
	if flushAll {
		// Final chunk: it ends with the last queued packet.
		for _, st := range r.streams {
			if st.reinsert.get() != nil {
				continue
			}
			if !st.inEOS {
				return cutPoint{}, false, false
			}
			last := st.queue.tail()
			if last == nil {
				continue
			}
			hard.offerMax(st.ts(last)+uint64(max(last.Duration, 1)), st.timescale)
		}
	}
	cut = hard
	if !cut.valid() {
		if waitSAP {
			return cutPoint{}, false, false
		}
		cut = easy
	}
	if !cut.valid() && nbEOS < len(r.streams) {
		return cutPoint{}, false, false
	}
	return cut, flushAll, true
}

// checkSplitPoint looks for the next chunk boundary in access point and
// size splitting. Streams whose every packet is an access point only
// bound the cut when no other stream offers one. When a boundary is
// found and every stream has queued data up to it, the range starts.
//
// The cut is recomputed on every call: a stream only reveals that it has
// sparse access points once its first non-SAP packet is queued.
func (r *Reframer) checkSplitPoint() {
	if r.inRange {
		return
	}
	cut, flushAll, ok := r.findCut()
	if !ok {
		return
	}
	r.cut = cut

	if !flushAll && r.cut.valid() {
		for _, st := range r.streams {
			if st.start == startEOS || st.reinsert.get() != nil {
				continue
			}
			last := st.queue.tail()
			if last == nil || r.cut.cmp(st.ts(last), st.timescale) > 0 {
				return
			}
		}
	}

	if r.mode == boundary.ModeSize && r.cut.valid() {
		var size uint64
		reached := 0
		for _, st := range r.streams {
			found := false
			for i := range st.queue.len() {
				p := st.queue.at(i)
				if r.cut.cmp(st.ts(p), st.timescale) <= 0 {
					found = true
					break
				}
				size += uint64(len(p.Data))
			}
			if found || st.inEOS {
				reached++
			}
		}
		decision, cut, usedPrev := r.est.decide(r.cut, size, reached == len(r.streams))
		switch decision {
		case sizeWait:
			return
		case sizeExtend:
			return
		}
		r.cut = cut
		r.log.Info("size split computed", "estimate", r.est.size, "previous", usedPrev)
		r.stats.RecordSizeEstimate(r.est.size, usedPrev)
	}

	r.inRange = true
	r.est.depth = 0
	for _, st := range r.streams {
		st.firstSent = false
		st.atRangeStart = true
		head := st.queue.head()
		if head == nil || !r.cut.valid() {
			st.rangeEnd = mark{}
		} else {
			st.rangeEnd = markAt(r.cut.in(st.timescale))
		}
		if head != nil {
			st.rangeStart = markAt(st.ts(head))
		}
	}
	if r.cut.valid() {
		r.win.end = r.cut.fraction()
	}
}

// purgeQueues drops queued packets that end before ts ticks of timescale.
// Streams holding a reinsert packet keep their queue.
func (r *Reframer) purgeQueues(ts, timescale uint64) {
	for _, st := range r.streams {
		if st.reinsert.get() != nil {
			continue
		}
		cut := cutPoint{ts: ts, scale: timescale}.in(st.timescale)
		for head := st.queue.head(); head != nil; head = st.queue.head() {
			if st.ts(head)+uint64(head.Duration) >= cut {
				break
			}
			st.queue.drop()
			st.nbFrames++
		}
	}
}

type alignResult uint8

const (
	// alignRetry: a stream has no packet at the start yet.
	alignRetry alignResult = iota
	alignReady
	// alignNextRange: nothing is left for this range.
	alignNextRange
	alignEOS
)

// alignRangeStart computes the common start of a range once every stream
// has chosen its start access point, and drops queued packets before it.
// Streams with sparse access points set the start when present, then
// streams of all access points, then text streams.
func (r *Reframer) alignRangeStart() alignResult {
	var hard, easy, text cutPoint
	for _, st := range r.streams {
		if !st.playing || st.start == startEOS || st.start == startReinsert {
			continue
		}
		switch {
		case st.canSplit:
			text.offerMin(st.sapTS, st.timescale)
		case st.sapExact:
			easy.offerMin(r.win.start.Num, r.win.start.Den)
		case st.allSAPs:
			easy.offerMin(st.sapTS, st.timescale)
		default:
			hard.offerMin(st.sapTS, st.timescale)
		}
	}
	cut := hard
	if !cut.valid() {
		cut = easy
	}
	if !cut.valid() && text.valid() {
		if r.win.startFrame > 0 {
			cut = text
		} else {
			cut = cutPoint{ts: r.win.start.Num, scale: r.win.start.Den}
		}
	}

	purgeAll := !cut.valid()
	if purgeAll && r.mode == boundary.ModeRange {
		r.log.Warn("all streams at end of stream before range start", "start", r.win.start.String())
	}

	for _, st := range r.streams {
		found := false
		for head := st.queue.head(); head != nil; head = st.queue.head() {
			if !purgeAll && r.startsRange(st, cut) {
				found = true
				break
			}
			st.queue.drop()
			st.nbFrames++
		}
		if !found && !purgeAll && !st.blockingRefs {
			// The cut lies past everything queued: fetch more.
			st.start = startPending
			st.rangeEnd = mark{}
			return alignRetry
		}
	}

	for _, st := range r.streams {
		st.start = startPending
		if r.mode == boundary.ModeDuration {
			st.firstSent = false
		} else {
			st.firstSent = !r.opts.SplitRange
		}
		if purgeAll && r.mode != boundary.ModeRange {
			r.signalEOS(st)
		}
	}
	if purgeAll {
		if r.mode != boundary.ModeRange {
			return alignEOS
		}
		return alignNextRange
	}
	r.inRange = true
	return alignReady
}

// startsRange reports whether the head packet of st opens the range at
// cut, and if so records the stream's range start.
func (r *Reframer) startsRange(st *stream, cut cutPoint) bool {
	head := st.queue.head()
	ots := st.ts(head)
	end := ots + uint64(max(head.Duration, 1))

	st.splitStart, st.skipSamples = 0, 0
	switch {
	case cut.cmp(ots, st.timescale) <= 0:
		if r.skipToSAP(st, head) {
			return false
		}
	case st.canSplit && cut.cmp(end, st.timescale) <= 0:
		st.splitStart = cut.in(st.timescale) - ots
	case st.splittableAudio() && cut.cmp(end, st.timescale) < 0:
		st.skipSamples = media.SamplesBetween(ots, st.timescale, cut.fraction(), st.sampleRate)
	case head == st.reinsert.get() && st.rangeEnd.ok && cut.cmp(end, st.timescale) < 0:
		// A single long packet covering the whole range, such as a
		// timecode track.
		at := cut.in(st.timescale)
		st.splitStart = at - ots
		if r.win.end.Valid() && !r.win.open {
			if e := r.win.end.In(st.timescale); e > at {
				st.splitEnd = e - at
			}
		}
	case st.start == startReinsert:
	default:
		return false
	}

	st.rangeStart = markAt(ots)
	st.atRangeStart = true
	if orig := cut.in(st.timescale); st.start == startComputed && orig < ots &&
		r.opts.SplitRange && r.rangeIdx > 1 {
		st.out.SetProp(media.PropDelay, int64(ots-orig))
	}
	return true
}

// skipToSAP reports whether head must be dropped because a split range
// may not open on a packet other streams cannot decode from.
func (r *Reframer) skipToSAP(st *stream, head *media.Packet) bool {
	if !r.opts.SplitRange || st.allSAPs || head.SAP != media.SAPNone || r.opts.NoSAP || r.opts.Raw {
		return false
	}
	r.log.Debug("range start not on an access point, skipping to the next one", "stream", st.name, "ts", st.ts(head))
	return true
}
