package reframe

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/zsiec/reframer/internal/boundary"
	"github.com/zsiec/reframer/internal/media"
)

// send forwards p on the output of st, rewritten for the current range if
// one is active. It returns false when pacing holds the packet.
func (r *Reframer) send(st *stream, p *media.Packet, queued bool) bool {
	due := true
	if r.pacer.Enabled() {
		if ts := p.Timestamp(); ts != media.NoTS {
			due = r.pacer.Admit(&st.anchor, media.Rescale(ts+st.delay, 1_000_000, st.timescale))
		}
	}

	if r.state == stateNone && len(r.opts.Frames) > 0 && !slices.Contains(r.opts.Frames, st.nbFrames+1) {
		r.stats.RecordDropped(st.name, "frame_filter")
		r.discard(st, queued)
		st.nbFrames++
		return true
	}
	if !due {
		return false
	}

	if st.rangeStart.ok {
		r.emitRanged(st, p)
	} else {
		st.out.Send(media.NewReference(p))
		r.stats.RecordEmitted(st.name, len(p.Data), false)
	}

	r.discard(st, queued)
	st.nbFrames++
	if st.kind == media.StreamVisual && st.nbFrames > r.videoFrames {
		r.videoFrames = st.nbFrames
	}
	return true
}

// emitRanged sends p with timestamps moved onto the output timeline of the
// current range, cutting raw audio and text packets at range bounds.
func (r *Reframer) emitRanged(st *stream, p *media.Packet) {
	var (
		out       *media.Packet
		ctsOffset uint64
		partial   bool
	)
	switch {
	case r.opts.TimecodeRewrite && st.codec == media.CodecTimecode && st.atRangeStart && r.videoFramesAtRangeStart > 0:
		out = media.NewCopy(p)
		if len(out.Data) >= 4 {
			n := binary.BigEndian.Uint32(out.Data)
			binary.BigEndian.PutUint32(out.Data, n+uint32(r.videoFramesAtRangeStart))
		}
	case p == st.split.get() && st.splitKeep > 0:
		// Head of a packet straddling the range end.
		out = media.NewDerived(p, st.copyAudio(p.Data, 0, st.splitKeep))
		out.Duration = uint32(st.samplesToTicks(st.splitKeep))
		st.splitKeep = 0
		partial = true
	case st.skipSamples > 0:
		// Tail of a packet straddling the range start. Its duration is
		// what the head left, so both halves add up to the packet.
		offset := st.skipSamples
		total := uint64(len(p.Data)) / st.bytesPerSamp
		out = media.NewDerived(p, st.copyAudio(p.Data, offset, total-min(offset, total)))
		ctsOffset = st.samplesToTicks(offset)
		out.Duration = p.Duration - uint32(min(ctsOffset, uint64(p.Duration)))
		st.rangeStart.v += ctsOffset
		st.skipSamples = 0
		partial = true
	default:
		out = media.NewReference(p)
	}

	if !st.firstSent {
		st.firstSent = true
		num, suffix := r.fileTag()
		if out.Props == nil {
			out.Props = media.Properties{}
		}
		out.Props[media.PropFileNumber] = num
		out.Props[media.PropFileSuffix] = suffix
	}

	base := st.delay + st.tsAtRangeEnd
	if p.CTS != media.NoTS {
		out.CTS = r.rebase(st, p.CTS+ctsOffset+base)
		if r.opts.Raw {
			out.DTS = out.CTS
		}
	}
	if !r.opts.Raw && p.DTS != media.NoTS {
		out.DTS = r.rebase(st, p.DTS+ctsOffset+base)
	}

	split := false
	if st.splitStart > 0 {
		d := uint64(p.Duration)
		// Packets shorter than the cut keep their duration.
		if d > st.splitStart {
			d -= st.splitStart
		}
		out.Duration = uint32(d)
		st.rangeStart.v += st.splitStart
		st.splitStart = 0
		split = true
	}
	if st.splitEnd > 0 && st.queue.len() == 1 {
		out.Duration = uint32(st.splitEnd)
		st.splitEnd = 0
		split = true
	}
	// A reinserted packet lasts until the range end.
	if !st.canSplit && !split && p == st.reinsert.get() {
		if d, ok := r.rangeSpan(st); ok && d < uint64(p.Duration) {
			out.Duration = uint32(d)
		}
	}

	st.atRangeStart = false
	st.out.Send(out)
	r.stats.RecordEmitted(st.name, len(out.Data), partial || split)
}

// rangeSpan returns the length of the current range in st ticks. ok is
// false while the range end is unknown.
func (r *Reframer) rangeSpan(st *stream) (uint64, bool) {
	if !r.win.end.Valid() || r.rangeExtraction && r.win.open {
		return 0, false
	}
	var start uint64
	if r.win.start.Valid() {
		start = r.win.start.In(st.timescale)
	}
	end := r.win.end.In(st.timescale)
	if end <= start {
		return 0, false
	}
	return end - start, true
}

// rebase subtracts the range start, clamping at zero.
func (r *Reframer) rebase(st *stream, ts uint64) uint64 {
	if ts < st.rangeStart.v {
		r.log.Warn("negative timestamp while splitting, forcing to 0", "stream", st.name,
			"ts", ts, "range_start", st.rangeStart.v)
		return 0
	}
	return ts - st.rangeStart.v
}

// fileTag returns the file number and suffix announced on the first packet
// of a range.
func (r *Reframer) fileTag() (uint32, string) {
	expr := ""
	if r.rangeIdx > 0 && r.rangeIdx <= len(r.opts.Starts) {
		expr = r.opts.Starts[r.rangeIdx-1]
	}
	if r.mode != boundary.ModeRange {
		startMS := r.win.start.In(1000)
		endMS := startMS
		if r.win.end.Valid() {
			endMS = r.win.end.In(1000)
		}
		return r.fileIdx, fmt.Sprintf("%d-%d", startMS, endMS)
	}

	num := uint32(r.rangeIdx)
	if strings.Contains(expr, "/") {
		start := r.win.start.In(1)
		if r.win.end.Valid() {
			return num, fmt.Sprintf("%d-%d", start, r.win.end.In(1))
		}
		return num, fmt.Sprintf("%d", start)
	}
	suffix := expr
	if r.state == stateClosed && r.rangeIdx <= len(r.opts.Ends) {
		suffix += "_" + r.opts.Ends[r.rangeIdx-1]
	}
	return num, strings.NewReplacer(":", ".", "/", ".").Replace(suffix)
}

// copyAudio copies n samples starting at sample offset out of a raw audio
// payload, planar or interleaved.
func (st *stream) copyAudio(src []byte, offset, n uint64) []byte {
	dst := make([]byte, n*st.bytesPerSamp)
	if !st.planar || st.channels <= 1 {
		from := offset * st.bytesPerSamp
		copy(dst, src[min(from, uint64(len(src))):])
		return dst
	}
	stride := uint64(len(src)) / st.channels
	bps := st.bytesPerSamp / st.channels
	for ch := range st.channels {
		plane := src[ch*stride : (ch+1)*stride]
		from := min(offset*bps, stride)
		copy(dst[ch*bps*n:(ch+1)*bps*n], plane[from:])
	}
	return dst
}
