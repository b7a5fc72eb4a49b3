package reframe

import "github.com/zsiec/reframer/internal/media"

// packetQueue is a FIFO owning one reference on every packet it holds.
type packetQueue struct {
	pkts []*media.Packet
}

func (q *packetQueue) push(p *media.Packet) {
	q.pkts = append(q.pkts, p.Retain())
}

func (q *packetQueue) len() int { return len(q.pkts) }

func (q *packetQueue) at(i int) *media.Packet { return q.pkts[i] }

func (q *packetQueue) head() *media.Packet {
	if len(q.pkts) == 0 {
		return nil
	}
	return q.pkts[0]
}

func (q *packetQueue) tail() *media.Packet {
	if len(q.pkts) == 0 {
		return nil
	}
	return q.pkts[len(q.pkts)-1]
}

// drop removes and releases the head packet.
func (q *packetQueue) drop() {
	p := q.pkts[0]
	q.pkts[0] = nil
	q.pkts = q.pkts[1:]
	p.Release()
}

func (q *packetQueue) clear() {
	for _, p := range q.pkts {
		p.Release()
	}
	q.pkts = nil
}

// heldPacket owns at most one reference on a packet kept across ranges.
type heldPacket struct {
	p *media.Packet
}

func (h *heldPacket) get() *media.Packet { return h.p }

func (h *heldPacket) set(p *media.Packet) {
	if h.p == p {
		return
	}
	if p != nil {
		p.Retain()
	}
	if h.p != nil {
		h.p.Release()
	}
	h.p = p
}

func (h *heldPacket) clear() { h.set(nil) }

// mark is an optional timestamp.
type mark struct {
	v  uint64
	ok bool
}

func markAt(v uint64) mark { return mark{v: v, ok: true} }
