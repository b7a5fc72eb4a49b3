// Package media defines the packet, property and event types exchanged
// between the host pipeline and the reframer.
package media

import (
	"fmt"
	"sync/atomic"
)

// NoTS marks an unknown decoding or composition timestamp.
const NoTS = ^uint64(0)

// SAPType is the stream access point type of a packet (ISO/IEC 14496-12 Annex I).
type SAPType uint8

const (
	SAPNone SAPType = iota
	SAP1
	SAP2
	SAP3
	SAP4
)

// Values of the depended_on flag pair.
const (
	DependedUnknown uint8 = iota
	DependedOn
	DependedOnByNone
)

// Packet is one access unit travelling through the reframer. Packets are
// reference counted: every holder calls Retain before keeping a packet and
// Release when done. The producer's initial reference is owned by whoever
// receives the packet from New.
type Packet struct {
	DTS      uint64
	CTS      uint64
	Duration uint32
	SAP      SAPType
	// Dependency carries the is_leading/depends_on/depended_on/redundant
	// bit pairs, most significant first.
	Dependency uint8
	// Blocking marks packets whose payload is backed by a resource that
	// cannot be held indefinitely.
	Blocking bool
	Data     []byte
	Props    Properties

	refs    atomic.Int32
	parent  *Packet
	tracker *Tracker
}

// New returns a packet wrapping data with a single reference.
func New(data []byte) *Packet {
	return newPacket(data, nil)
}

func newPacket(data []byte, t *Tracker) *Packet {
	p := &Packet{DTS: NoTS, CTS: NoTS, Data: data, tracker: t}
	p.refs.Store(1)
	if t != nil {
		t.live.Add(1)
	}
	return p
}

// NewReference returns a new packet sharing src's payload and copying its
// timing, flags and properties. The new packet holds a reference on src
// until it is released.
func NewReference(src *Packet) *Packet {
	p := newPacket(src.Data, src.tracker)
	p.copyInfo(src)
	p.parent = src.Retain()
	return p
}

// NewCopy returns a packet with a private copy of src's payload.
func NewCopy(src *Packet) *Packet {
	data := make([]byte, len(src.Data))
	copy(data, src.Data)
	return NewDerived(src, data)
}

// NewDerived returns a packet carrying src's timing, flags and properties
// with data as payload. It holds no reference on src.
func NewDerived(src *Packet, data []byte) *Packet {
	p := newPacket(data, src.tracker)
	p.copyInfo(src)
	return p
}

func (p *Packet) copyInfo(src *Packet) {
	p.DTS = src.DTS
	p.CTS = src.CTS
	p.Duration = src.Duration
	p.SAP = src.SAP
	p.Dependency = src.Dependency
	p.Blocking = src.Blocking
	p.Props = src.Props.Clone()
}

// Retain adds a reference and returns p.
func (p *Packet) Retain() *Packet {
	p.refs.Add(1)
	return p
}

// Release drops a reference. The last release frees the packet and its
// parent reference, if any.
func (p *Packet) Release() {
	n := p.refs.Add(-1)
	switch {
	case n > 0:
		return
	case n < 0:
		panic(fmt.Sprintf("media: packet released %d times too often", -n))
	}
	if p.parent != nil {
		p.parent.Release()
		p.parent = nil
	}
	if p.tracker != nil {
		p.tracker.live.Add(-1)
	}
}

// Refs returns the current reference count.
func (p *Packet) Refs() int32 {
	return p.refs.Load()
}

// Timestamp returns DTS if known, otherwise CTS.
func (p *Packet) Timestamp() uint64 {
	if p.DTS != NoTS {
		return p.DTS
	}
	return p.CTS
}

// DependedOn returns the depended_on flag pair. DependedOnByNone marks a
// non-reference frame.
func (p *Packet) DependedOn() uint8 {
	return (p.Dependency >> 2) & 3
}

// Tracker counts live packets allocated through it, so tests can assert
// that every reference taken was given back.
type Tracker struct {
	live atomic.Int64
}

// New returns a tracked packet wrapping data.
func (t *Tracker) New(data []byte) *Packet {
	return newPacket(data, t)
}

// Live returns the number of packets not yet freed.
func (t *Tracker) Live() int64 {
	return t.live.Load()
}
