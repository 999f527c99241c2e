package transport

import (
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/hostlink/go-hostlink/mux"
	"github.com/hostlink/go-hostlink/packet"
)

// Pump drives a Mux over one transport connection: a send loop that
// blocks on the readiness signal and transmits whatever the mux
// selects, a receive loop that deframes, validates and routes inbound
// packets, and a maintenance loop refreshing channel and mux state.
type Pump struct {
	mux      *mux.Mux
	conn     io.ReadWriteCloser
	enc      *packet.Encoder
	dec      *packet.Decoder
	log      *zap.Logger
	interval time.Duration

	errCond   *sync.Cond
	err       error
	closed    chan struct{}
	closeOnce sync.Once
}

// NewPump returns an unstarted pump for m over conn.
func NewPump(m *mux.Mux, conn io.ReadWriteCloser, opts ...Option) *Pump {
	o := defaultOptions()
	for _, f := range opts {
		f(&o)
	}
	return &Pump{
		mux:      m,
		conn:     conn,
		enc:      packet.NewEncoder(conn),
		dec:      packet.NewDecoder(conn),
		log:      o.logger,
		interval: o.interval,
		errCond:  sync.NewCond(new(sync.Mutex)),
		closed:   make(chan struct{}),
	}
}

// Start launches the pump's loops.
func (p *Pump) Start() {
	go p.sendLoop()
	go p.receiveLoop()
	go p.maintainLoop()
}

// Close shuts the pump down and closes the transport. Safe to call
// more than once.
func (p *Pump) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.conn.Close()
	})
	return nil
}

// Done returns a channel closed when the pump has shut down.
func (p *Pump) Done() <-chan struct{} {
	return p.closed
}

// Wait blocks until the pump has shut down and returns the error that
// caused it. An orderly remote close surfaces as io.EOF.
func (p *Pump) Wait() error {
	p.errCond.L.Lock()
	defer p.errCond.L.Unlock()
	for p.err == nil {
		p.errCond.Wait()
	}
	return p.err
}

func (p *Pump) fail(err error) {
	p.errCond.L.Lock()
	if p.err == nil {
		p.err = err
	}
	p.errCond.Broadcast()
	p.errCond.L.Unlock()
	p.Close()
}

func (p *Pump) sendLoop() {
	sig := p.mux.Signal()
	for {
		h, body, ok := p.mux.QuerySendPacket()
		if !ok {
			sig.Clear()
			// Work may have arrived between the query and the clear.
			if h, body, ok = p.mux.QuerySendPacket(); !ok {
				select {
				case <-sig.Done():
					continue
				case <-p.closed:
					return
				}
			}
		}
		if err := p.enc.Encode(h, body); err != nil {
			p.fail(errors.Wrap(err, "hostlink: transmit"))
			return
		}
		p.mux.RemovePacket(h)
	}
}

func (p *Pump) receiveLoop() {
	for {
		h, body, err := p.dec.Decode()
		if err != nil {
			p.fail(err)
			return
		}
		if err := p.mux.ValidateHeader(h); err != nil {
			p.log.Warn("dropping malformed packet",
				zap.Stringer("header", h), zap.Error(err))
			continue
		}
		if err := p.mux.ProcessReceivePacket(h, body); err != nil {
			// An unknown channel has already been answered with an
			// Error packet by the mux; nothing more to do here.
			p.log.Debug("receive",
				zap.Stringer("header", h), zap.Error(err))
		}
	}
}

func (p *Pump) maintainLoop() {
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			p.mux.UpdateChannelState()
			p.mux.UpdateMuxState()
		case <-p.closed:
			return
		}
	}
}
