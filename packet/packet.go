// Package packet implements the fixed-header framing of the hostlink
// protocol: a 20-byte big-endian header followed by a bounded body.
package packet

import (
	"encoding/binary"
	"fmt"
)

// Signature is the magic value carried by every hostlink packet. A
// header with any other signature did not come off an intact frame
// boundary.
const Signature uint32 = 0x484C4E4B // "HLNK"

// ProtocolVersion is the version spoken by this implementation before
// any negotiation takes place.
const ProtocolVersion uint16 = 2

// MaxBodySize bounds the body of a single packet.
const MaxBodySize = 0x3E000

// HeaderSize is the wire size of a Header.
const HeaderSize = 20

// Kind identifies what a packet carries.
type Kind uint16

const (
	// KindData carries channel payload bytes.
	KindData Kind = iota + 1
	// KindMaxData announces, bodilessly, the highest stream offset the
	// sender can currently receive.
	KindMaxData
	// KindError is an out-of-band control packet reporting a channel
	// fault such as an unknown channel id.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "Data"
	case KindMaxData:
		return "MaxData"
	case KindError:
		return "Error"
	default:
		return fmt.Sprintf("Kind(%d)", uint16(k))
	}
}

// ChannelID identifies a logical channel within a link.
type ChannelID uint32

// Header is the fixed packet header. For Data packets Offset is the
// cumulative stream offset after this packet's payload; for MaxData it
// is the highest offset the sender is prepared to accept.
type Header struct {
	Signature uint32
	Offset    uint32
	Version   uint16
	Kind      Kind
	Channel   ChannelID
	BodySize  uint32
}

func (h Header) String() string {
	return fmt.Sprintf("{Header Kind:%s Channel:%d Version:%d Offset:%d BodySize:%d}",
		h.Kind, h.Channel, h.Version, h.Offset, h.BodySize)
}

// Bytes returns the wire encoding of the header.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(b[0:4], h.Signature)
	binary.BigEndian.PutUint32(b[4:8], h.Offset)
	binary.BigEndian.PutUint16(b[8:10], h.Version)
	binary.BigEndian.PutUint16(b[10:12], uint16(h.Kind))
	binary.BigEndian.PutUint32(b[12:16], uint32(h.Channel))
	binary.BigEndian.PutUint32(b[16:20], h.BodySize)
	return b
}

// ParseHeader decodes a header from exactly HeaderSize bytes.
func ParseHeader(b []byte) Header {
	return Header{
		Signature: binary.BigEndian.Uint32(b[0:4]),
		Offset:    binary.BigEndian.Uint32(b[4:8]),
		Version:   binary.BigEndian.Uint16(b[8:10]),
		Kind:      Kind(binary.BigEndian.Uint16(b[10:12])),
		Channel:   ChannelID(binary.BigEndian.Uint32(b[12:16])),
		BodySize:  binary.BigEndian.Uint32(b[16:20]),
	}
}

// Packet pairs a header with its body storage. Control packets carry
// no body.
type Packet struct {
	Header Header
	Body   []byte
}
