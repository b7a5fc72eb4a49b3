package media

// StreamType is the broad media category of a stream.
type StreamType uint8

const (
	StreamUnknown StreamType = iota
	StreamVisual
	StreamAudio
	StreamText
	StreamMetadata
)

func (t StreamType) String() string {
	switch t {
	case StreamVisual:
		return "visual"
	case StreamAudio:
		return "audio"
	case StreamText:
		return "text"
	case StreamMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// Codec identifies the coding format of a stream.
type Codec uint8

const (
	CodecUnknown Codec = iota
	// CodecRaw marks uncompressed media, such as PCM audio.
	CodecRaw
	CodecH264
	CodecH265
	CodecAAC
	// CodecTimecode is a QuickTime tmcd track: each sample starts with a
	// big-endian 32-bit frame counter.
	CodecTimecode
	CodecText
)

func (c Codec) String() string {
	switch c {
	case CodecRaw:
		return "raw"
	case CodecH264:
		return "h264"
	case CodecH265:
		return "h265"
	case CodecAAC:
		return "aac"
	case CodecTimecode:
		return "tmcd"
	case CodecText:
		return "text"
	default:
		return "unknown"
	}
}

// AudioFormat is a raw audio sample layout.
type AudioFormat uint8

const (
	AudioNone AudioFormat = iota
	AudioU8
	AudioS16
	AudioS24
	AudioS32
	AudioFloat
	AudioDouble
	AudioU8Planar
	AudioS16Planar
	AudioS24Planar
	AudioS32Planar
	AudioFloatPlanar
	AudioDoublePlanar
)

// BitDepth returns the size of one sample of one channel in bits.
func (f AudioFormat) BitDepth() int {
	switch f {
	case AudioU8, AudioU8Planar:
		return 8
	case AudioS16, AudioS16Planar:
		return 16
	case AudioS24, AudioS24Planar:
		return 24
	case AudioS32, AudioS32Planar, AudioFloat, AudioFloatPlanar:
		return 32
	case AudioDouble, AudioDoublePlanar:
		return 64
	}
	return 0
}

// Planar reports whether channels are stored one after the other rather
// than interleaved.
func (f AudioFormat) Planar() bool {
	return f >= AudioU8Planar
}

// PlaybackMode is the seek capability a source advertises.
type PlaybackMode uint8

const (
	PlaybackNone PlaybackMode = iota
	PlaybackSeek
	PlaybackFastForward
	PlaybackRewind
)

// EventType identifies a control event sent upstream.
type EventType uint8

const (
	EventPlay EventType = iota + 1
	EventStop
)

func (t EventType) String() string {
	switch t {
	case EventPlay:
		return "play"
	case EventStop:
		return "stop"
	}
	return "unknown"
}

// Event is a control request travelling from a consumer towards a source.
// Start is in seconds from the beginning of the source.
type Event struct {
	Type  EventType
	Start float64
	Speed float64
}
