package reframe

import "github.com/zsiec/reframer/internal/media"

// Input is the upstream side of one stream, as seen by the reframer.
type Input interface {
	// Name identifies the stream in logs and metrics.
	Name() string
	// Packet returns the head packet without removing it, or nil. The
	// input keeps its reference; callers that hold the packet past
	// DropPacket must Retain it first.
	Packet() *media.Packet
	// DropPacket removes the head packet.
	DropPacket()
	// IsEOS reports that no packet is queued and none will follow.
	IsEOS() bool
	Props() media.Properties
	SendEvent(ev media.Event)
	// SetDiscard makes the input drop everything it receives.
	SetDiscard(discard bool)
}

// Output is the downstream side of one stream.
type Output interface {
	// Send takes ownership of one reference on p.
	Send(p *media.Packet)
	SetEOS()
	ResetProps()
	CopyProps(props media.Properties)
	// SetProp sets a stream property; a nil value removes it.
	SetProp(key string, value any)
	// PushProps announces a property change that applies from the next
	// packet on, keeping existing properties.
	PushProps(props media.Properties)
}

// StatsRecorder receives telemetry callbacks. The metrics package
// implements it.
type StatsRecorder interface {
	RecordEmitted(stream string, bytes int, partial bool)
	RecordDropped(stream, reason string)
	RecordRange(index uint32, suffix string)
	RecordSizeEstimate(bytes uint64, usedPrevious bool)
}

type nopStats struct{}

func (nopStats) RecordEmitted(string, int, bool) {}
func (nopStats) RecordDropped(string, string)    {}
func (nopStats) RecordRange(uint32, string)      {}
func (nopStats) RecordSizeEstimate(uint64, bool) {}
