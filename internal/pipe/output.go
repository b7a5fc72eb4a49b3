package pipe

import (
	"maps"
	"slices"
	"sync"

	"github.com/zsiec/reframer/internal/media"
)

// Output collects the packets and property changes of one reframed
// stream in memory.
type Output struct {
	mu     sync.Mutex
	pkts   []*media.Packet
	props  media.Properties
	pushed []media.Properties
	eos    int
	onSend func(*media.Packet)
}

// NewOutput returns an empty output.
func NewOutput() *Output {
	return &Output{props: media.Properties{}}
}

// SetSendHandler registers fn to observe every packet as it is sent. The
// output keeps its reference; fn must Retain a packet it holds on to.
func (o *Output) SetSendHandler(fn func(*media.Packet)) {
	o.mu.Lock()
	o.onSend = fn
	o.mu.Unlock()
}

// Send implements reframe.Output.
func (o *Output) Send(p *media.Packet) {
	o.mu.Lock()
	o.pkts = append(o.pkts, p)
	fn := o.onSend
	o.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// SetEOS implements reframe.Output.
func (o *Output) SetEOS() {
	o.mu.Lock()
	o.eos++
	o.mu.Unlock()
}

// ResetProps implements reframe.Output.
func (o *Output) ResetProps() {
	o.mu.Lock()
	o.props = media.Properties{}
	o.mu.Unlock()
}

// CopyProps implements reframe.Output.
func (o *Output) CopyProps(props media.Properties) {
	o.mu.Lock()
	maps.Copy(o.props, props)
	o.mu.Unlock()
}

// SetProp implements reframe.Output.
func (o *Output) SetProp(key string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if value == nil {
		delete(o.props, key)
		return
	}
	o.props[key] = value
}

// PushProps implements reframe.Output.
func (o *Output) PushProps(props media.Properties) {
	o.mu.Lock()
	defer o.mu.Unlock()
	maps.Copy(o.props, props)
	o.pushed = append(o.pushed, props.Clone())
}

// Packets returns the packets sent so far. The output keeps ownership.
func (o *Output) Packets() []*media.Packet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.pkts)
}

// Take removes and returns the packets sent since the last call. The
// caller owns their references.
func (o *Output) Take() []*media.Packet {
	o.mu.Lock()
	defer o.mu.Unlock()
	pkts := o.pkts
	o.pkts = nil
	return pkts
}

// Props returns a copy of the current stream properties.
func (o *Output) Props() media.Properties {
	o.mu.Lock()
	defer o.mu.Unlock()
	return maps.Clone(o.props)
}

// Pushed returns the property overlays announced so far.
func (o *Output) Pushed() []media.Properties {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.pushed)
}

// EOS reports whether end of stream was signalled.
func (o *Output) EOS() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.eos > 0
}

// EOSCount returns how many times end of stream was signalled.
func (o *Output) EOSCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.eos
}

// Release drops every collected packet.
func (o *Output) Release() {
	o.mu.Lock()
	pkts := o.pkts
	o.pkts = nil
	o.mu.Unlock()
	release(pkts)
}
