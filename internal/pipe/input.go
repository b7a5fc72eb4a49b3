// Package pipe provides in-memory stream endpoints that connect packet
// producers (demuxers, tests) to the reframer and collect what it emits.
package pipe

import (
	"context"
	"slices"
	"sync"

	"github.com/zsiec/reframer/internal/media"
)

// Input is a bounded packet queue for one stream. A producer goroutine
// pushes packets and closes the input at end of stream; the reframer's
// goroutine peeks and drops them. Control events sent upstream by the
// reframer are recorded and forwarded to an optional handler.
//
// Every Play event starts a new generation. Packets pushed with a stale
// generation belong to a position the consumer no longer reads from and
// are discarded.
type Input struct {
	name string

	mu       sync.Mutex
	pkts     []*media.Packet
	bytes    int
	maxBytes int
	props    media.Properties
	eos      bool
	discard  bool
	stopped  bool
	gen      uint64
	events   []media.Event
	onEvent  func(media.Event)
	wake     chan<- struct{}
	space    chan struct{}
}

// NewInput returns an empty input named name with the given stream
// properties.
func NewInput(name string, props media.Properties) *Input {
	return &Input{
		name:  name,
		props: props.Clone(),
		space: make(chan struct{}, 1),
	}
}

// SetWake registers a channel signalled, without blocking, whenever the
// input gains a packet or reaches end of stream.
func (in *Input) SetWake(ch chan<- struct{}) {
	in.mu.Lock()
	in.wake = ch
	in.mu.Unlock()
}

// SetMaxBytes bounds the buffered payload. Push blocks while the bound is
// exceeded; zero disables the bound. A single packet is always accepted
// into an empty input.
func (in *Input) SetMaxBytes(n int) {
	in.mu.Lock()
	in.maxBytes = n
	in.mu.Unlock()
}

// SetEventHandler registers fn to receive every event sent upstream. fn is
// called on the consumer goroutine and must not block.
func (in *Input) SetEventHandler(fn func(media.Event)) {
	in.mu.Lock()
	in.onEvent = fn
	in.mu.Unlock()
}

// Name implements reframe.Input.
func (in *Input) Name() string { return in.name }

// Generation returns the current play generation.
func (in *Input) Generation() uint64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.gen
}

// Push queues p, taking ownership of its reference. It blocks while the
// input is full and returns ctx.Err() if ctx ends first.
func (in *Input) Push(ctx context.Context, p *media.Packet) error {
	return in.push(ctx, p, false, 0)
}

// PushGen is Push for a producer positioned by generation gen. The packet
// is dropped if a Play event started a newer generation.
func (in *Input) PushGen(ctx context.Context, gen uint64, p *media.Packet) error {
	return in.push(ctx, p, true, gen)
}

func (in *Input) push(ctx context.Context, p *media.Packet, checkGen bool, gen uint64) error {
	for {
		in.mu.Lock()
		if in.discard || in.stopped || (checkGen && gen != in.gen) {
			in.mu.Unlock()
			p.Release()
			return nil
		}
		if in.maxBytes == 0 || len(in.pkts) == 0 || in.bytes+len(p.Data) <= in.maxBytes {
			in.pkts = append(in.pkts, p)
			in.bytes += len(p.Data)
			in.eos = false
			wake := in.wake
			in.mu.Unlock()
			notify(wake)
			return nil
		}
		in.mu.Unlock()

		select {
		case <-ctx.Done():
			p.Release()
			return ctx.Err()
		case <-in.space:
		}
	}
}

// Close marks the end of the stream. Queued packets stay readable.
func (in *Input) Close() {
	in.mu.Lock()
	in.eos = true
	wake := in.wake
	in.mu.Unlock()
	notify(wake)
}

// CloseGen is Close for a producer positioned by generation gen. It does
// nothing if a Play event started a newer generation.
func (in *Input) CloseGen(gen uint64) {
	in.mu.Lock()
	if gen != in.gen {
		in.mu.Unlock()
		return
	}
	in.eos = true
	wake := in.wake
	in.mu.Unlock()
	notify(wake)
}

// SetProps replaces the stream properties. The consumer must be told to
// reconfigure the stream.
func (in *Input) SetProps(props media.Properties) {
	in.mu.Lock()
	in.props = props.Clone()
	in.mu.Unlock()
}

// Packet implements reframe.Input.
func (in *Input) Packet() *media.Packet {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.pkts) == 0 {
		return nil
	}
	return in.pkts[0]
}

// DropPacket implements reframe.Input.
func (in *Input) DropPacket() {
	in.mu.Lock()
	if len(in.pkts) == 0 {
		in.mu.Unlock()
		return
	}
	p := in.pkts[0]
	in.pkts[0] = nil
	in.pkts = in.pkts[1:]
	in.bytes -= len(p.Data)
	in.mu.Unlock()

	p.Release()
	select {
	case in.space <- struct{}{}:
	default:
	}
}

// IsEOS implements reframe.Input.
func (in *Input) IsEOS() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.discard || (in.eos && len(in.pkts) == 0)
}

// Props implements reframe.Input.
func (in *Input) Props() media.Properties {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.props
}

// SendEvent implements reframe.Input. Stop flushes the queue and refuses
// packets until the next Play.
func (in *Input) SendEvent(ev media.Event) {
	in.mu.Lock()
	in.events = append(in.events, ev)
	var flushed []*media.Packet
	switch ev.Type {
	case media.EventStop:
		in.stopped = true
		flushed = in.takeAll()
	case media.EventPlay:
		in.stopped = false
		in.eos = false
		in.gen++
	}
	fn := in.onEvent
	in.mu.Unlock()

	release(flushed)
	if fn != nil {
		fn(ev)
	}
}

// SetDiscard implements reframe.Input.
func (in *Input) SetDiscard(discard bool) {
	in.mu.Lock()
	in.discard = discard
	var flushed []*media.Packet
	if discard {
		flushed = in.takeAll()
	}
	in.mu.Unlock()
	release(flushed)
}

// Events returns a copy of the events received so far.
func (in *Input) Events() []media.Event {
	in.mu.Lock()
	defer in.mu.Unlock()
	return slices.Clone(in.events)
}

// Len returns the number of queued packets.
func (in *Input) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pkts)
}

// takeAll empties the queue; mu must be held.
func (in *Input) takeAll() []*media.Packet {
	pkts := in.pkts
	in.pkts = nil
	in.bytes = 0
	if len(pkts) > 0 {
		select {
		case in.space <- struct{}{}:
		default:
		}
	}
	return pkts
}

func release(pkts []*media.Packet) {
	for _, p := range pkts {
		p.Release()
	}
}

func notify(ch chan<- struct{}) {
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}
