package media

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// Well-known property names.
const (
	PropTimescale    = "Timescale"
	PropStreamType   = "StreamType"
	PropCodec        = "Codec"
	PropAudioFormat  = "AudioFormat"
	PropChannels     = "NumChannels"
	PropSampleRate   = "SampleRate"
	PropDelay        = "Delay"
	PropPlaybackMode = "PlaybackMode"
	PropHasSync      = "HasSync"
	PropFileNumber   = "FileNumber"
	PropFileSuffix   = "FileSuffix"
	PropPeriodResume = "PeriodResume"
)

// Properties is a bag of named values attached to a stream or a packet.
type Properties map[string]any

// Clone returns a shallow copy, or nil for an empty bag.
func (p Properties) Clone() Properties {
	if len(p) == 0 {
		return nil
	}
	return maps.Clone(p)
}

// Uint returns the named property as a uint64.
func (p Properties) Uint(key string) (uint64, bool) {
	switch v := p[key].(type) {
	case uint64:
		return v, true
	case uint32:
		return uint64(v), true
	case int:
		if v >= 0 {
			return uint64(v), true
		}
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	}
	return 0, false
}

// Int returns the named property as an int64.
func (p Properties) Int(key string) (int64, bool) {
	switch v := p[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	}
	return 0, false
}

// String returns the named property as a string.
func (p Properties) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// StreamType returns the stream type property, StreamUnknown if absent.
func (p Properties) StreamType() StreamType {
	v, _ := p[PropStreamType].(StreamType)
	return v
}

// Codec returns the codec property, CodecUnknown if absent.
func (p Properties) Codec() Codec {
	v, _ := p[PropCodec].(Codec)
	return v
}

// AudioFormat returns the audio sample format, AudioNone if absent.
func (p Properties) AudioFormat() AudioFormat {
	v, _ := p[PropAudioFormat].(AudioFormat)
	return v
}

// PlaybackMode returns the playback capability of the source. A missing
// property means the source cannot seek.
func (p Properties) PlaybackMode() PlaybackMode {
	v, _ := p[PropPlaybackMode].(PlaybackMode)
	return v
}

var errBadProperty = errors.New("expected Name=Value")

// ParseProperties parses a set of overlay properties in the form
// "Name=Value[:Name=Value...]". A leading '#' on a name is accepted and
// dropped. Values are kept as strings.
func ParseProperties(s string) (Properties, error) {
	props := Properties{}
	for _, kv := range strings.Split(s, ":") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		name, value, ok := strings.Cut(strings.TrimPrefix(kv, "#"), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("property %q: %w", kv, errBadProperty)
		}
		props[name] = value
	}
	return props, nil
}
