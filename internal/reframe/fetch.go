package reframe

import (
	"github.com/zsiec/reframer/internal/boundary"
	"github.com/zsiec/reframer/internal/media"
)

type fetchResult struct {
	checkSplit bool
	reached    int
	notPlaying int
}

// fetch moves at most one packet per stream from its input, or its held
// split packet, into the stream queue, tracking range start and end.
func (r *Reframer) fetch() (fetchResult, error) {
	var fr fetchResult
	for _, st := range r.streams {
		if !st.playing {
			fr.reached++
			fr.notPlaying++
			continue
		}
		if st.start != startPending {
			fr.reached++
			// Only a stream looking for its adjusted end keeps reading.
			if !r.waitAdjust || !st.needsAdjust {
				continue
			}
		}
		// Once end of stream was seen everything left is flushed.
		if !r.hasSeenEOS && st.rangeEnd.ok {
			continue
		}

		p := st.split.get()
		fromSplit := p != nil
		if !fromSplit {
			p = st.in.Packet()
		}
		if p == nil {
			if st.in.IsEOS() {
				r.fetchEOS(st, &fr)
			}
			continue
		}
		// Other streams wait while an adjusting stream finds its end.
		if r.rangeExtraction && r.waitAdjust && !st.needsAdjust {
			continue
		}
		r.progress = true
		st.nbFramesRange++

		ts := st.ts(p)
		isSAP := r.opts.NoSAP || r.opts.Raw || p.SAP != media.SAPNone
		if !isSAP && st.allSAPs {
			st.allSAPs = false
			r.nbNonSAPs++
			if r.nbNonSAPs > 1 {
				r.log.Warn("several streams use predictive coding, access point alignment may be broken", "streams", r.nbNonSAPs)
			}
			if r.opts.AdjustEnd {
				st.needsAdjust = true
				if st.start == startComputed && r.rangeExtraction {
					r.waitAdjust = true
				}
			}
		}

		if !r.rangeExtraction {
			if p.Blocking {
				r.log.Error("cannot split by access point or size with blocking packet references", "stream", st.name)
				r.eos = eosUnsupported
				return fr, ErrNotSupported
			}
			st.queue.push(p)
			if fromSplit {
				st.split.clear()
			} else {
				st.in.DropPacket()
			}
			fr.checkSplit = true
			r.trackReinsert(st, p)
			continue
		}

		place, keep := classify(r.win, st, ts, p.Duration, st.nbFramesRange)

		if isSAP {
			if place == placeBefore && (len(r.streams) == 1 || !st.allSAPs) {
				r.purgeQueues(ts, st.timescale)
			}
			if !r.inRange && place == placeInside && st.start == startPending {
				r.pickStart(st, ts, keep)
				fr.reached++
			}
			if place != placeAfter {
				st.prevSAPTS = ts
				st.prevSAPIdx = st.nbFramesRange
			}
			if !r.waitAdjust && r.opts.AdjustEnd && st.needsAdjust {
				r.waitAdjust = true
			}
		}

		if r.mode == boundary.ModeDuration && r.hasSeenEOS && place == placeAfter {
			place = placeInside
		}

		resplit := false
		if place == placeAfter && (!r.opts.AdjustEnd || isSAP) {
			enqueue := false
			st.splitEnd = 0
			if st.start == startPending {
				st.sapTS = st.prevSAPTS
				st.sapExact = false
				st.start = startComputed
				fr.reached++
				if st.prevSAPTS == ts {
					enqueue = true
				}
			}
			st.rangeEnd = markAt(ts)
			switch {
			case st.canSplit && r.win.startFrame == 0:
				if media.CompareTS(ts, st.timescale, r.win.end) < 0 {
					// Send the head of the packet now, keep it for the next range.
					enqueue = true
					st.splitEnd = r.win.end.In(st.timescale) - ts
					st.rangeEnd.v += st.splitEnd
					st.split.set(p)
					resplit = true
				}
			case keep > 0 && r.win.startFrame == 0:
				// Send the first keep samples now, the rest opens the next range.
				enqueue = true
				st.split.set(p)
				resplit = true
				st.splitKeep = keep
				st.rangeEnd.v += st.samplesToTicks(keep)
			}
			if r.waitAdjust && r.opts.AdjustEnd && st.needsAdjust {
				r.win.end = media.Fraction{Num: st.rangeEnd.v, Den: st.timescale}
				r.waitAdjust = false
			}
			if !enqueue {
				continue
			}
		}

		if p.Blocking && place == placeBefore {
			st.blockingRefs = true
			if !fromSplit {
				st.in.DropPacket()
			}
			continue
		}

		st.queue.push(p)
		switch {
		case !fromSplit:
			st.in.DropPacket()
			r.trackReinsert(st, p)
		case !resplit:
			st.split.clear()
		}
	}
	return fr, nil
}

// fetchEOS handles a stream whose input ended.
func (r *Reframer) fetchEOS(st *stream, fr *fetchResult) {
	if st.reinsert.get() != nil {
		// Single-packet streams (images, scene descriptions) get their
		// packet reinserted at the start of each range.
		if !r.inRange && st.start == startPending {
			st.start = startReinsert
			if st.queue.len() == 0 {
				st.queue.push(st.reinsert.get())
				r.progress = true
				if !r.rangeExtraction {
					fr.checkSplit = true
				}
			}
		}
		if st.start != startPending {
			fr.reached++
		}
		if !r.rangeExtraction {
			st.inEOS = true
		}
		return
	}
	if !r.rangeExtraction {
		fr.checkSplit = true
		st.inEOS = true
	} else if st.start != startEOS {
		st.start = startEOS
		r.progress = true
		if r.waitAdjust && r.opts.AdjustEnd && st.needsAdjust {
			r.waitAdjust = false
		}
	}
	// Flush everything on end of stream rather than emit a last chunk
	// holding a few samples of one stream. The stream is done once its
	// queue is.
	if r.mode == boundary.ModeDuration {
		st.inEOS = true
		if !r.hasSeenEOS || !r.inRange {
			r.progress = true
		}
		r.hasSeenEOS = true
		r.inRange = true
	}
}

// trackReinsert keeps the first packet of a stream until a second one
// shows up. Blocking packets are never kept.
func (r *Reframer) trackReinsert(st *stream, p *media.Packet) {
	if !p.Blocking && st.nbFramesRange == 1 {
		st.reinsert.set(p)
	} else {
		st.reinsert.clear()
	}
}

// pickStart records the access point stream st starts the range from,
// according to the rounding policy. keep is the number of samples of a
// raw audio packet that lie before the requested start.
func (r *Reframer) pickStart(st *stream, ts, keep uint64) {
	st.start = startComputed
	st.sapExact = false
	// Raw audio is cut on the sample, whatever the rounding.
	if st.splittableAudio() && r.win.startFrame == 0 {
		st.sapTS = ts + st.samplesToTicks(keep)
		st.sapExact = keep > 0
		return
	}
	switch r.opts.Round {
	case RoundClosest:
		closer := false
		if r.win.startFrame > 0 {
			target := int64(r.win.startFrame - 1)
			closer = absInt(target-int64(st.nbFramesRange)) < absInt(target-int64(st.prevSAPIdx))
		} else {
			target := int64(r.win.start.In(st.timescale))
			closer = absInt(target-int64(ts)) < absInt(target-int64(st.prevSAPTS))
		}
		if closer {
			st.sapTS = ts
		} else {
			st.sapTS = st.prevSAPTS
		}
	case RoundBefore:
		st.sapTS = st.prevSAPTS
		// An access point exactly on the requested start opens the range.
		if r.mode == boundary.ModeRange {
			if r.win.startFrame > 0 && st.nbFramesRange == r.win.startFrame ||
				r.win.startFrame == 0 && media.CompareTS(ts, st.timescale, r.win.start) == 0 {
				st.sapTS = ts
			}
		}
	default:
		st.sapTS = ts
	}
}

func absInt(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
