// Package mux implements the hostlink channel multiplexer: one
// physical transport carries many logical channels, and the Mux owns
// the shared state deciding which packet goes out next and where every
// inbound packet lands.
package mux

import (
	"fmt"
	"sync"

	"github.com/hostlink/go-hostlink/event"
	"github.com/hostlink/go-hostlink/packet"
	"github.com/hostlink/go-hostlink/task"
)

// Engine is the per-channel protocol engine. One instance exists per
// open channel, owned by the table. Engine methods are invoked while
// the multiplexer lock is held, so they must not block and must not
// call back into the Mux.
type Engine interface {
	// ProcessReceivePacket handles an inbound packet addressed to this
	// channel.
	ProcessReceivePacket(h packet.Header, body []byte) error

	// QuerySendPacket reports the channel's next outbound packet, if
	// any. Repeated calls return the same packet until RemovePacket
	// retires it.
	QuerySendPacket() (packet.Header, []byte, bool)

	// RemovePacket acknowledges that the packet described by h was
	// transmitted.
	RemovePacket(h packet.Header)

	// UpdateState runs the channel's periodic bookkeeping.
	UpdateState()

	SetVersion(version uint16)
	SetSendBuffer(buf []byte, maxPacketSize int)
	SetSendBufferWithData(data []byte, maxPacketSize int)
	SetReceiveBuffer(buf []byte)
}

// EngineFactory builds the engine for a newly opened channel.
type EngineFactory func(id packet.ChannelID) Engine

// PacketMaker constructs and reclaims control packets.
type PacketMaker interface {
	MakeErrorPacket(channel packet.ChannelID) (*packet.Packet, error)
	Destroy(p *packet.Packet)
}

// SleepDetector reports whether the peer host is sleeping. It is
// polled under the multiplexer lock and must not block.
type SleepDetector interface {
	IsSleeping() bool
}

// DetectorFunc adapts a func to the SleepDetector interface.
type DetectorFunc func() bool

func (f DetectorFunc) IsSleeping() bool { return f() }

// TaskRegistry is the completion-handle lookup for long-running
// operations. Its methods are called while the multiplexer lock is
// held and must not block.
type TaskRegistry interface {
	GetTaskEvent(id task.ID) *event.Event
	NotifySendReady()
}

// State is the multiplexer's operational state.
type State int

const (
	// StateNormal permits transmission.
	StateNormal State = iota
	// StateSleep suppresses transmission without discarding queued
	// work.
	StateSleep
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "Normal"
	case StateSleep:
		return "Sleep"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Mux multiplexes logical channels over one transport. A single lock
// guards the channel table, the control queue, the operational state
// and the negotiated version; every exported operation holds it for
// its entire body.
type Mux struct {
	pf       PacketMaker
	detector SleepDetector
	tasks    TaskRegistry
	signal   *event.Event
	engines  EngineFactory

	mu      sync.Mutex
	table   *table
	ctrl    sendBuffer
	state   State
	version uint16
}

// New returns a Mux wired to its collaborators. The signal event is
// set whenever new outbound work appears or the mux leaves sleep.
func New(pf PacketMaker, detector SleepDetector, tasks TaskRegistry, signal *event.Event, engines EngineFactory) *Mux {
	return &Mux{
		pf:       pf,
		detector: detector,
		tasks:    tasks,
		signal:   signal,
		engines:  engines,
		table:    newTable(),
		ctrl:     sendBuffer{pf: pf},
		state:    StateNormal,
		version:  packet.ProtocolVersion,
	}
}

// Signal returns the readiness event transmitters wait on.
func (m *Mux) Signal() *event.Event {
	return m.signal
}

// ValidateHeader checks an inbound header against the rules for its
// packet kind. A bad signature means the transport handed us bytes
// off a frame boundary; nothing above this layer is safe to run after
// that, so it panics rather than returning an error. Error packets
// are exempt from the version check: they must stay deliverable when
// the endpoints disagree on version, because version mismatch is one
// of the things an Error packet exists to report.
func (m *Mux) ValidateHeader(h packet.Header) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.Signature != packet.Signature {
		panic(fmt.Sprintf("hostlink: bad packet signature %#x", h.Signature))
	}

	switch h.Kind {
	case packet.KindData:
		if h.Version != m.version || h.BodySize > packet.MaxBodySize {
			return ErrProtocol
		}
	case packet.KindMaxData:
		if h.Version != m.version || h.BodySize != 0 {
			return ErrProtocol
		}
	case packet.KindError:
		if h.BodySize != 0 {
			return ErrProtocol
		}
	default:
		panic(fmt.Sprintf("hostlink: unknown packet kind %d", uint16(h.Kind)))
	}

	return nil
}

// ProcessReceivePacket routes an inbound packet to its channel. If the
// channel is unknown, a Data or MaxData packet triggers an Error reply
// so the peer learns the channel does not exist on this side; an
// unknown-channel Error packet is dropped silently to avoid an endless
// exchange of error packets answering error packets.
func (m *Mux) ProcessReceivePacket(h packet.Header, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.table.get(h.Channel); ok {
		return e.ProcessReceivePacket(h, body)
	}

	if h.Kind == packet.KindData || h.Kind == packet.KindMaxData {
		m.sendErrorPacketLocked(h.Channel)
	}
	return ErrChannelNotExist
}

// QuerySendPacket selects the next outbound packet. Control packets
// always come first; otherwise the channel table is scanned in order
// and the first channel with a ready packet wins. A found channel
// packet is still gated by sendability, so during sleep the call
// reports nothing to send even though a packet was found.
func (m *Mux) QuerySendPacket() (packet.Header, []byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p := m.ctrl.next(); p != nil {
		h := p.Header
		h.BodySize = 0
		return h, nil, true
	}

	var (
		h     packet.Header
		body  []byte
		found bool
	)
	m.table.each(func(_ packet.ChannelID, e Engine) {
		if found {
			return
		}
		if eh, eb, ok := e.QuerySendPacket(); ok {
			h, body, found = eh, eb, true
		}
	})
	if found {
		return h, body, m.isSendableLocked(h.Kind)
	}

	return packet.Header{}, nil, false
}

// RemovePacket retires a transmitted packet: an Error packet is popped
// from the control queue, anything else is handed back to its channel
// to free send-buffer capacity. Either way the task registry is told a
// send slot may have freed.
func (m *Mux) RemovePacket(h packet.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.Kind == packet.KindError {
		m.ctrl.remove()
	} else if e, ok := m.table.get(h.Channel); ok {
		e.RemovePacket(h)
	}

	m.tasks.NotifySendReady()
}

// UpdateChannelState runs every channel's periodic bookkeeping.
func (m *Mux) UpdateChannelState() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.table.each(func(_ packet.ChannelID, e Engine) {
		e.UpdateState()
	})
}

// UpdateMuxState polls the sleep detector. Entering sleep suppresses
// new sends but discards nothing; leaving sleep signals the readiness
// event so waiting transmitters re-check for work immediately.
func (m *Mux) UpdateMuxState() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.detector.IsSleeping() {
		m.state = StateSleep
	} else {
		m.state = StateNormal
		m.signal.Signal()
	}
}

// CheckChannelExist reports ErrChannelNotExist if the channel is not
// in the table. No state is mutated.
func (m *Mux) CheckChannelExist(id packet.ChannelID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.table.exists(id) {
		return ErrChannelNotExist
	}
	return nil
}

// SendErrorPacket enqueues an Error control packet addressed to id and
// signals the readiness event. Construction failure from the packet
// factory is propagated.
func (m *Mux) SendErrorPacket(id packet.ChannelID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sendErrorPacketLocked(id)
}

func (m *Mux) sendErrorPacketLocked(id packet.ChannelID) error {
	p, err := m.pf.MakeErrorPacket(id)
	if err != nil {
		return err
	}
	m.ctrl.add(p)
	m.signal.Signal()
	return nil
}

// IsSendable reports whether a packet of the given kind may currently
// be transmitted. Sleep blocks all kinds uniformly.
func (m *Mux) IsSendable(kind packet.Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.isSendableLocked(kind)
}

func (m *Mux) isSendableLocked(kind packet.Kind) bool {
	switch m.state {
	case StateNormal:
		return true
	case StateSleep:
		return false
	default:
		panic(fmt.Sprintf("hostlink: invalid mux state %d", int(m.state)))
	}
}

// Open inserts a new channel into the table and applies the current
// negotiated version to it.
func (m *Mux) Open(id packet.ChannelID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.table.exists(id) {
		return ErrChannelAlreadyExist
	}

	e := m.engines(id)
	m.table.add(id, e)
	e.SetVersion(m.version)

	return nil
}

// SetVersion updates the negotiated version and applies it to every
// open channel. Channels opened afterwards inherit it through Open.
func (m *Mux) SetVersion(version uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.version = version

	m.table.each(func(_ packet.ChannelID, e Engine) {
		e.SetVersion(version)
	})
}

// Version returns the current negotiated version.
func (m *Mux) Version() uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.version
}

// State returns the current operational state.
func (m *Mux) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// GetTaskEvent looks up the completion event for a registered task.
func (m *Mux) GetTaskEvent(id task.ID) *event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.tasks.GetTaskEvent(id)
}

// SetSendBuffer installs a channel's send-buffer storage. Calling any
// buffer setter before Open is a contract violation, not a protocol
// condition, and panics.
func (m *Mux) SetSendBuffer(id packet.ChannelID, buf []byte, maxPacketSize int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.engineOrPanic(id).SetSendBuffer(buf, maxPacketSize)
}

// SetSendBufferWithData installs a send buffer already holding data to
// transmit.
func (m *Mux) SetSendBufferWithData(id packet.ChannelID, data []byte, maxPacketSize int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.engineOrPanic(id).SetSendBufferWithData(data, maxPacketSize)
}

// SetReceiveBuffer installs a channel's receive-buffer storage.
func (m *Mux) SetReceiveBuffer(id packet.ChannelID, buf []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.engineOrPanic(id).SetReceiveBuffer(buf)
}

func (m *Mux) engineOrPanic(id packet.ChannelID) Engine {
	e, ok := m.table.get(id)
	if !ok {
		panic(fmt.Sprintf("hostlink: channel %d is not open", uint32(id)))
	}
	return e
}
