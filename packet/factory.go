package packet

import (
	"errors"
	"sync"
)

// ErrAllocationFailed is returned when the factory's packet budget is
// exhausted.
var ErrAllocationFailed = errors.New("hostlink: packet allocation failed")

// Factory builds control packets against a bounded budget. Packets
// must be handed back with Destroy once they have been transmitted.
type Factory struct {
	mu          sync.Mutex
	limit       int
	outstanding int
	version     uint16
}

// NewFactory returns a factory allowing up to limit outstanding
// packets. A limit of zero means unbounded.
func NewFactory(limit int) *Factory {
	return &Factory{limit: limit, version: ProtocolVersion}
}

// SetVersion changes the version stamped into packets the factory
// constructs from now on.
func (f *Factory) SetVersion(version uint16) {
	f.mu.Lock()
	f.version = version
	f.mu.Unlock()
}

// MakeErrorPacket constructs a bodiless Error packet addressed to
// channel.
func (f *Factory) MakeErrorPacket(channel ChannelID) (*Packet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.limit > 0 && f.outstanding >= f.limit {
		return nil, ErrAllocationFailed
	}
	f.outstanding++

	return &Packet{Header: Header{
		Signature: Signature,
		Version:   f.version,
		Kind:      KindError,
		Channel:   channel,
	}}, nil
}

// Destroy returns a packet to the factory's budget.
func (f *Factory) Destroy(p *Packet) {
	if p == nil {
		return
	}
	f.mu.Lock()
	if f.outstanding > 0 {
		f.outstanding--
	}
	f.mu.Unlock()
}
