package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

// streamTypeSubgroup is the MoQ transport subgroup stream type with an
// explicit subgroup id and per-object extension headers
// (draft-ietf-moq-transport-15). Each object file is laid out as one such
// stream: the group id is the file number and every packet is an object.
const streamTypeSubgroup uint64 = 0x0d

// Object extension IDs. Even IDs carry a varint value, odd IDs a
// length-prefixed byte string.
const (
	extCaptureTime  uint64 = 2 // composition time in microseconds
	extFrameMarking uint64 = 4 // RFC 9626 flags
	extDecodeTime   uint64 = 6 // decode time in microseconds, when it differs
	extFileSuffix   uint64 = 7 // range suffix, on the first object only
)

// RFC 9626 frame marking flags (non-scalable).
const (
	vfmKeyframe    uint64 = 0xE0
	vfmNonKeyframe uint64 = 0xC0
)

var errBadStreamType = errors.New("sink: not an object stream")

// Header opens an object file.
type Header struct {
	TrackAlias uint64
	Group      uint64
	Priority   byte
}

func (h Header) append(buf []byte) []byte {
	buf = quicvarint.Append(buf, streamTypeSubgroup)
	buf = quicvarint.Append(buf, h.TrackAlias)
	buf = quicvarint.Append(buf, h.Group)
	buf = quicvarint.Append(buf, 0) // subgroup ID
	return append(buf, h.Priority)
}

// Object is one stored packet.
type Object struct {
	ID        uint64
	CaptureUS uint64
	DecodeUS  uint64
	Keyframe  bool
	Suffix    string
	Payload   []byte
}

func (o *Object) append(buf []byte) []byte {
	var exts []byte
	exts = quicvarint.Append(exts, extCaptureTime)
	exts = quicvarint.Append(exts, o.CaptureUS)
	if o.DecodeUS != o.CaptureUS {
		exts = quicvarint.Append(exts, extDecodeTime)
		exts = quicvarint.Append(exts, o.DecodeUS)
	}
	exts = quicvarint.Append(exts, extFrameMarking)
	if o.Keyframe {
		exts = quicvarint.Append(exts, vfmKeyframe)
	} else {
		exts = quicvarint.Append(exts, vfmNonKeyframe)
	}
	if o.Suffix != "" {
		exts = quicvarint.Append(exts, extFileSuffix)
		exts = quicvarint.Append(exts, uint64(len(o.Suffix)))
		exts = append(exts, o.Suffix...)
	}

	buf = quicvarint.Append(buf, o.ID)
	buf = quicvarint.Append(buf, uint64(len(exts)))
	buf = append(buf, exts...)
	buf = quicvarint.Append(buf, uint64(len(o.Payload)))
	return append(buf, o.Payload...)
}

// ReadHeader reads the header of an object file.
func ReadHeader(r *bufio.Reader) (Header, error) {
	var h Header
	typ, err := quicvarint.Read(r)
	if err != nil {
		return h, fmt.Errorf("sink: read stream type: %w", err)
	}
	if typ != streamTypeSubgroup {
		return h, fmt.Errorf("%w: type 0x%x", errBadStreamType, typ)
	}
	if h.TrackAlias, err = quicvarint.Read(r); err != nil {
		return h, fmt.Errorf("sink: read track alias: %w", err)
	}
	if h.Group, err = quicvarint.Read(r); err != nil {
		return h, fmt.Errorf("sink: read group: %w", err)
	}
	if _, err = quicvarint.Read(r); err != nil {
		return h, fmt.Errorf("sink: read subgroup: %w", err)
	}
	if h.Priority, err = r.ReadByte(); err != nil {
		return h, fmt.Errorf("sink: read priority: %w", err)
	}
	return h, nil
}

// ReadObject reads the next object. It returns io.EOF at a clean end of
// file.
func ReadObject(r *bufio.Reader) (Object, error) {
	var o Object
	id, err := quicvarint.Read(r)
	if err != nil {
		return o, err
	}
	o.ID = id

	exts, err := readBytes(r)
	if err != nil {
		return o, fmt.Errorf("sink: object %d extensions: %w", id, err)
	}
	if err := o.parseExtensions(exts); err != nil {
		return o, fmt.Errorf("sink: object %d: %w", id, err)
	}
	if o.Payload, err = readBytes(r); err != nil {
		return o, fmt.Errorf("sink: object %d payload: %w", id, err)
	}
	return o, nil
}

func (o *Object) parseExtensions(b []byte) error {
	decodeSet := false
	for len(b) > 0 {
		id, n, err := quicvarint.Parse(b)
		if err != nil {
			return err
		}
		b = b[n:]
		if id%2 == 1 {
			l, n, err := quicvarint.Parse(b)
			if err != nil {
				return err
			}
			b = b[n:]
			if uint64(len(b)) < l {
				return io.ErrUnexpectedEOF
			}
			if id == extFileSuffix {
				o.Suffix = string(b[:l])
			}
			b = b[l:]
			continue
		}
		v, n, err := quicvarint.Parse(b)
		if err != nil {
			return err
		}
		b = b[n:]
		switch id {
		case extCaptureTime:
			o.CaptureUS = v
		case extDecodeTime:
			o.DecodeUS, decodeSet = v, true
		case extFrameMarking:
			o.Keyframe = v == vfmKeyframe
		}
	}
	if !decodeSet {
		o.DecodeUS = o.CaptureUS
	}
	return nil
}

func readBytes(r *bufio.Reader) ([]byte, error) {
	n, err := quicvarint.Read(r)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
