// Package channel implements the per-channel protocol engine: send and
// receive buffering with offset-based flow control. Data packets carry
// the cumulative stream offset after their payload; MaxData packets
// announce, bodilessly, the highest offset the announcing side can
// accept. A channel never sends past the peer's announced offset.
package channel

import (
	"errors"
	"sync"

	"github.com/hostlink/go-hostlink/event"
	"github.com/hostlink/go-hostlink/mux"
	"github.com/hostlink/go-hostlink/packet"
)

var (
	// ErrBufferFull is returned by Write when the send ring has no
	// room. Callers wanting to block should wait for a send-ready
	// notification and retry.
	ErrBufferFull = errors.New("hostlink: send buffer full")

	// ErrChannelReset is returned once the peer has reported this
	// channel with an Error packet.
	ErrChannelReset = errors.New("hostlink: channel reset by peer")
)

// Channel is the protocol engine for one logical channel. Its engine
// methods are called by the Mux under the multiplexer lock; the
// channel's own lock only orders them against the application-facing
// Read and Write, and nothing here blocks or calls back into the Mux.
type Channel struct {
	id     packet.ChannelID
	signal *event.Event // link readiness, shared with the mux

	mu      sync.Mutex
	version uint16
	reset   bool

	// Send side. The ring holds bytes accepted from the writer that
	// the peer has not yet acknowledged as transmitted. sent is the
	// offset confirmed by RemovePacket, maxRemote the peer's
	// announced receive limit.
	send      ring
	maxPacket int
	sent      uint32
	maxRemote uint32

	// At most one packet is in flight between QuerySendPacket and
	// RemovePacket; repeated queries return it unchanged.
	inflight     packet.Header
	inflightBody []byte
	hasInflight  bool

	// Receive side.
	recv       ring
	received   uint32 // in-order bytes accepted so far
	announced  uint32 // last offset announced via MaxData
	announce   bool   // a MaxData announcement is pending
	recvSignal *event.Event
}

// New returns an engine for the given channel id. signal is the link
// readiness event shared with the multiplexer; it is set whenever this
// channel gains outbound work.
func New(id packet.ChannelID, signal *event.Event) *Channel {
	return &Channel{
		id:         id,
		signal:     signal,
		version:    packet.ProtocolVersion,
		recvSignal: event.New(),
	}
}

var _ mux.Engine = (*Channel)(nil)

// offsetAfter reports whether offset a is logically ahead of b.
// Offsets are cumulative and wrap the 32-bit space, so ordering is
// modular; it holds as long as the two stay within 2^31 of each
// other, which buffer sizes guarantee.
func offsetAfter(a, b uint32) bool { return int32(a-b) > 0 }

// ID returns the channel identifier.
func (c *Channel) ID() packet.ChannelID { return c.id }

// ReadSignal returns the event signaled while inbound data is
// buffered (or the channel has been reset).
func (c *Channel) ReadSignal() *event.Event { return c.recvSignal }

// ProcessReceivePacket handles an inbound packet addressed to this
// channel. The multiplexer has already validated the header shape.
func (c *Channel) ProcessReceivePacket(h packet.Header, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch h.Kind {
	case packet.KindData:
		if h.Offset != c.received+uint32(len(body)) {
			return mux.ErrProtocol
		}
		if len(body) > c.recv.free() {
			// Peer wrote past the window we announced.
			return mux.ErrProtocol
		}
		c.recv.write(body)
		c.received = h.Offset
		c.recvSignal.Signal()

	case packet.KindMaxData:
		if offsetAfter(h.Offset, c.maxRemote) {
			c.maxRemote = h.Offset
			if c.send.len() > 0 {
				c.signal.Signal()
			}
		}

	case packet.KindError:
		c.reset = true
		c.recvSignal.Signal()
	}

	return nil
}

// QuerySendPacket reports the channel's next outbound packet. Pending
// window announcements take priority over payload. The same packet is
// reported until RemovePacket retires it.
func (c *Channel) QuerySendPacket() (packet.Header, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasInflight {
		return c.inflight, c.inflightBody, true
	}

	if c.announce {
		c.announce = false
		c.inflight = packet.Header{
			Signature: packet.Signature,
			Offset:    c.received + uint32(c.recv.free()),
			Version:   c.version,
			Kind:      packet.KindMaxData,
			Channel:   c.id,
		}
		c.inflightBody = nil
		c.hasInflight = true
		return c.inflight, nil, true
	}

	n := c.send.len()
	if !offsetAfter(c.maxRemote, c.sent) {
		n = 0
	} else if credit := int(c.maxRemote - c.sent); n > credit {
		n = credit
	}
	if c.maxPacket > 0 && n > c.maxPacket {
		n = c.maxPacket
	}
	if n > packet.MaxBodySize {
		n = packet.MaxBodySize
	}
	if n == 0 {
		return packet.Header{}, nil, false
	}

	body := make([]byte, n)
	c.send.peek(body)
	c.inflight = packet.Header{
		Signature: packet.Signature,
		Offset:    c.sent + uint32(n),
		Version:   c.version,
		Kind:      packet.KindData,
		Channel:   c.id,
		BodySize:  uint32(n),
	}
	c.inflightBody = body
	c.hasInflight = true
	return c.inflight, body, true
}

// RemovePacket acknowledges that the in-flight packet was transmitted,
// consuming its bytes from the send ring.
func (c *Channel) RemovePacket(h packet.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasInflight {
		return
	}

	switch h.Kind {
	case packet.KindData:
		c.send.discard(int(c.inflight.BodySize))
		c.sent = c.inflight.Offset
	case packet.KindMaxData:
		c.announced = c.inflight.Offset
	}

	c.inflight = packet.Header{}
	c.inflightBody = nil
	c.hasInflight = false
}

// UpdateState re-arms the window announcement if the receive window
// has grown past what the peer was last told.
func (c *Channel) UpdateState() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.recv.buf) == 0 || c.announce {
		return
	}
	if offsetAfter(c.received+uint32(c.recv.free()), c.announced) {
		c.announce = true
		c.signal.Signal()
	}
}

// SetVersion applies a negotiated protocol version.
func (c *Channel) SetVersion(version uint16) {
	c.mu.Lock()
	c.version = version
	c.mu.Unlock()
}

// Version returns the channel's negotiated version.
func (c *Channel) Version() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// SetSendBuffer installs empty send storage.
func (c *Channel) SetSendBuffer(buf []byte, maxPacketSize int) {
	c.mu.Lock()
	c.send.init(buf, 0)
	c.maxPacket = maxPacketSize
	c.mu.Unlock()
}

// SetSendBufferWithData installs send storage already holding data to
// transmit, as used for one-shot static sends.
func (c *Channel) SetSendBufferWithData(data []byte, maxPacketSize int) {
	c.mu.Lock()
	c.send.init(data, len(data))
	c.maxPacket = maxPacketSize
	c.signal.Signal()
	c.mu.Unlock()
}

// SetReceiveBuffer installs receive storage and arms the initial
// window announcement so the peer learns it may send.
func (c *Channel) SetReceiveBuffer(buf []byte) {
	c.mu.Lock()
	c.recv.init(buf, 0)
	c.announce = true
	c.signal.Signal()
	c.mu.Unlock()
}

// Write copies as much of p as fits into the send ring and signals the
// link. It never blocks: if nothing fits it returns ErrBufferFull.
func (c *Channel) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reset {
		return 0, ErrChannelReset
	}

	n := c.send.write(p)
	if n == 0 && len(p) > 0 {
		return 0, ErrBufferFull
	}
	c.signal.Signal()
	return n, nil
}

// Read drains buffered inbound bytes into p without blocking. A zero
// count with nil error means nothing is buffered; the read signal is
// cleared so a caller can wait on it and retry.
func (c *Channel) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recv.len() == 0 {
		if c.reset {
			return 0, ErrChannelReset
		}
		c.recvSignal.Clear()
		return 0, nil
	}

	n := c.recv.read(p)
	if !c.announce && offsetAfter(c.received+uint32(c.recv.free()), c.announced) {
		c.announce = true
		c.signal.Signal()
	}
	return n, nil
}
