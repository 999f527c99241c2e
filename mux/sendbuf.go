package mux

import "github.com/hostlink/go-hostlink/packet"

// sendBuffer is the priority queue of out-of-band control packets.
// Control packets always preempt channel data during outbound
// selection. Retrieval is FIFO, one packet at a time.
type sendBuffer struct {
	pf    PacketMaker
	queue []*packet.Packet
}

func (b *sendBuffer) add(p *packet.Packet) {
	b.queue = append(b.queue, p)
}

// next returns the pending head of the queue without removing it, or
// nil if the queue is empty.
func (b *sendBuffer) next() *packet.Packet {
	if len(b.queue) == 0 {
		return nil
	}
	return b.queue[0]
}

// remove retires the head of the queue, returning its storage to the
// factory.
func (b *sendBuffer) remove() {
	if len(b.queue) == 0 {
		return
	}
	b.pf.Destroy(b.queue[0])
	b.queue[0] = nil
	b.queue = b.queue[1:]
}
