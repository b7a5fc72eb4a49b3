package reframe

import (
	"github.com/zsiec/reframer/internal/media"
	"github.com/zsiec/reframer/internal/pacing"
)

// startState tracks a stream's progress towards the start of the current
// range.
type startState uint8

const (
	startPending startState = iota
	// startComputed: the stream picked its candidate start access point.
	startComputed
	// startEOS: the stream ended before reaching the range start.
	startEOS
	// startReinsert: the stream's single packet is reinserted at the cut.
	startReinsert
)

// stream is the per-input state of the reframer.
type stream struct {
	in   Input
	out  Output
	name string

	timescale uint64
	kind      media.StreamType
	codec     media.Codec
	// canSplit streams (text) may cut a packet that straddles a boundary.
	canSplit bool
	// allSAPs holds until the first non-SAP packet is seen.
	allSAPs      bool
	needsAdjust  bool
	blockingRefs bool

	// Raw audio layout, all zero for other streams.
	channels     uint64
	sampleRate   uint64
	bytesPerSamp uint64 // all channels
	planar       bool

	delay uint64

	queue    packetQueue
	split    heldPacket
	reinsert heldPacket

	start      startState
	sapTS      uint64
	prevSAPTS  uint64
	prevSAPIdx uint64
	// sapExact: sapTS is a sample inside a raw audio packet, so the range
	// starts exactly at the requested time.
	sapExact bool

	rangeStart mark
	rangeEnd   mark

	nbFrames      uint64
	nbFramesRange uint64

	firstSent bool
	// atRangeStart is set until the first packet of a range is emitted.
	atRangeStart bool
	inEOS        bool
	eosSignaled  bool
	playing      bool
	// splitKeep is the number of samples of the held split packet sent
	// before the range end; skipSamples the number dropped from the head
	// packet at the range start.
	splitKeep    uint64
	skipSamples  uint64
	splitStart   uint64
	splitEnd     uint64
	tsAtRangeEnd uint64

	anchor pacing.Anchor
}

func newStream(in Input, out Output) *stream {
	return &stream{in: in, out: out, name: in.Name(), allSAPs: true}
}

// configure reads the input's stream properties.
func (st *stream) configure(props media.Properties) {
	st.timescale = 1000
	if v, ok := props.Uint(media.PropTimescale); ok && v > 0 {
		st.timescale = v
	}
	st.kind = props.StreamType()
	st.codec = props.Codec()
	st.canSplit = st.kind == media.StreamText

	st.channels, st.sampleRate, st.bytesPerSamp, st.planar = 0, 0, 0, false
	if st.codec == media.CodecRaw && st.kind == media.StreamAudio {
		format := props.AudioFormat()
		st.channels, _ = props.Uint(media.PropChannels)
		st.sampleRate = st.timescale
		if v, ok := props.Uint(media.PropSampleRate); ok && v > 0 {
			st.sampleRate = v
		}
		st.bytesPerSamp = uint64(format.BitDepth()/8) * st.channels
		st.planar = format.Planar()
	}

	// A negative delay is a composition offset and stays on the stream.
	st.delay = 0
	if v, ok := props.Int(media.PropDelay); ok && v > 0 {
		st.delay = uint64(v)
	}
}

// ts returns the decode time of p shifted by the stream delay.
func (st *stream) ts(p *media.Packet) uint64 {
	return p.Timestamp() + st.delay
}

// splittableAudio reports whether packets can be cut at sample granularity.
func (st *stream) splittableAudio() bool {
	return st.bytesPerSamp > 0
}

// samplesToTicks converts a sample count into stream timescale ticks.
func (st *stream) samplesToTicks(n uint64) uint64 {
	if st.sampleRate == 0 {
		return n
	}
	return media.Rescale(n, st.timescale, st.sampleRate)
}

// reset releases every packet the stream holds.
func (st *stream) reset() {
	st.queue.clear()
	st.split.clear()
	st.reinsert.clear()
}
