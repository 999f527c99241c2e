// Package transport assembles the hostlink protocol stack over a
// single connection and pumps packets across it.
package transport

import (
	"io"
	"sync"

	"github.com/hostlink/go-hostlink/channel"
	"github.com/hostlink/go-hostlink/event"
	"github.com/hostlink/go-hostlink/mux"
	"github.com/hostlink/go-hostlink/packet"
	"github.com/hostlink/go-hostlink/task"
)

// Link is a running hostlink endpoint: a multiplexer, its
// collaborators and a pump, wired together over one connection.
type Link struct {
	opts    options
	factory *packet.Factory
	tasks   *task.Registry
	mux     *mux.Mux
	pump    *Pump

	chanMu sync.Mutex
	chans  map[packet.ChannelID]*channel.Channel
}

// NewLink assembles a link over conn. The link is inert until Start
// is called; open the channels this endpoint serves first, so packets
// the peer sent early are never mistaken for unknown-channel traffic.
func NewLink(conn io.ReadWriteCloser, opts ...Option) *Link {
	o := defaultOptions()
	for _, f := range opts {
		f(&o)
	}

	l := &Link{
		opts:    o,
		factory: packet.NewFactory(o.budget),
		tasks:   task.NewRegistry(),
		chans:   make(map[packet.ChannelID]*channel.Channel),
	}
	l.mux = mux.New(l.factory, o.detector, l.tasks, event.New(), l.newEngine)
	l.pump = NewPump(l.mux, conn, opts...)
	return l
}

// Start launches the link's pump.
func (l *Link) Start() {
	l.pump.Start()
}

func (l *Link) newEngine(id packet.ChannelID) mux.Engine {
	ch := channel.New(id, l.mux.Signal())
	l.chanMu.Lock()
	l.chans[id] = ch
	l.chanMu.Unlock()
	return ch
}

// Mux exposes the link's multiplexer.
func (l *Link) Mux() *mux.Mux {
	return l.mux
}

// Tasks exposes the link's task registry.
func (l *Link) Tasks() *task.Registry {
	return l.tasks
}

// Open creates the channel on this side and installs its buffers.
// Both endpoints must open the same channel id for data to flow; the
// peer answers packets for a channel it has not opened with an Error
// packet.
func (l *Link) Open(id packet.ChannelID) (*Stream, error) {
	if err := l.mux.Open(id); err != nil {
		return nil, err
	}
	l.mux.SetSendBuffer(id, make([]byte, l.opts.sendBufSize), l.opts.maxPacket)
	l.mux.SetReceiveBuffer(id, make([]byte, l.opts.recvBufSize))
	return l.stream(id), nil
}

// OpenWithData creates the channel with a send buffer already holding
// data, for one-shot static sends.
func (l *Link) OpenWithData(id packet.ChannelID, data []byte) (*Stream, error) {
	if err := l.mux.Open(id); err != nil {
		return nil, err
	}
	l.mux.SetSendBufferWithData(id, data, l.opts.maxPacket)
	l.mux.SetReceiveBuffer(id, make([]byte, l.opts.recvBufSize))
	return l.stream(id), nil
}

func (l *Link) stream(id packet.ChannelID) *Stream {
	l.chanMu.Lock()
	ch := l.chans[id]
	l.chanMu.Unlock()
	return &Stream{link: l, ch: ch}
}

// SetVersion applies a negotiated protocol version to the multiplexer
// and the packet factory.
func (l *Link) SetVersion(version uint16) {
	l.mux.SetVersion(version)
	l.factory.SetVersion(version)
}

// Close shuts the link down and closes the connection.
func (l *Link) Close() error {
	return l.pump.Close()
}

// Wait blocks until the link has shut down, returning the causing
// error.
func (l *Link) Wait() error {
	return l.pump.Wait()
}
