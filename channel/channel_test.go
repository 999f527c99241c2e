package channel

import (
	"bytes"
	"errors"
	"testing"

	"github.com/hostlink/go-hostlink/event"
	"github.com/hostlink/go-hostlink/mux"
	"github.com/hostlink/go-hostlink/packet"
)

func fatal(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func maxData(ch packet.ChannelID, offset uint32) packet.Header {
	return packet.Header{
		Signature: packet.Signature,
		Offset:    offset,
		Version:   packet.ProtocolVersion,
		Kind:      packet.KindMaxData,
		Channel:   ch,
	}
}

func data(ch packet.ChannelID, offset uint32, n int) packet.Header {
	return packet.Header{
		Signature: packet.Signature,
		Offset:    offset,
		Version:   packet.ProtocolVersion,
		Kind:      packet.KindData,
		Channel:   ch,
		BodySize:  uint32(n),
	}
}

func TestSendFlow(t *testing.T) {
	ev := event.New()
	ch := New(1, ev)
	ch.SetSendBuffer(make([]byte, 64), 16)

	n, err := ch.Write([]byte("hello world"))
	fatal(err, t)
	if n != 11 {
		t.Fatalf("wrote %d bytes, want 11", n)
	}
	if !ev.Signaled() {
		t.Fatal("write did not signal the link")
	}

	// No credit from the peer yet.
	if _, _, ok := ch.QuerySendPacket(); ok {
		t.Fatal("packet offered without remote credit")
	}

	fatal(ch.ProcessReceivePacket(maxData(1, 8), nil), t)

	h, body, ok := ch.QuerySendPacket()
	if !ok {
		t.Fatal("no packet after credit arrived")
	}
	if h.Kind != packet.KindData || h.Offset != 8 || h.BodySize != 8 {
		t.Fatalf("unexpected data header %v", h)
	}
	if string(body) != "hello wo" {
		t.Fatalf("unexpected body %q", body)
	}

	// The same packet stays in flight until retired.
	h2, _, ok := ch.QuerySendPacket()
	if !ok || h2 != h {
		t.Fatalf("repeated query returned %v, want %v", h2, h)
	}

	ch.RemovePacket(h)

	// Credit exhausted: 8 of 8 sent.
	if _, _, ok := ch.QuerySendPacket(); ok {
		t.Fatal("packet offered past the remote credit")
	}

	fatal(ch.ProcessReceivePacket(maxData(1, 100), nil), t)
	h, body, ok = ch.QuerySendPacket()
	if !ok || h.Offset != 11 || string(body) != "rld" {
		t.Fatalf("tail packet %v body %q", h, body)
	}
	ch.RemovePacket(h)

	if _, _, ok := ch.QuerySendPacket(); ok {
		t.Fatal("packet offered from an empty send buffer")
	}
}

func TestMaxPacketSizeSplitsWrites(t *testing.T) {
	ch := New(1, event.New())
	ch.SetSendBuffer(make([]byte, 64), 4)
	fatal(ch.ProcessReceivePacket(maxData(1, 1000), nil), t)

	_, err := ch.Write([]byte("abcdefghij"))
	fatal(err, t)

	var got bytes.Buffer
	for {
		h, body, ok := ch.QuerySendPacket()
		if !ok {
			break
		}
		if h.BodySize > 4 {
			t.Fatalf("packet body %d exceeds max packet size", h.BodySize)
		}
		got.Write(body)
		ch.RemovePacket(h)
	}
	if got.String() != "abcdefghij" {
		t.Fatalf("reassembled %q", got.String())
	}
}

func TestWriteBufferFull(t *testing.T) {
	ch := New(1, event.New())
	ch.SetSendBuffer(make([]byte, 8), 8)

	n, err := ch.Write([]byte("12345678"))
	fatal(err, t)
	if n != 8 {
		t.Fatalf("wrote %d, want 8", n)
	}

	if _, err := ch.Write([]byte("x")); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("full buffer write returned %v, want ErrBufferFull", err)
	}

	// Retiring a packet frees ring space for the writer.
	fatal(ch.ProcessReceivePacket(maxData(1, 100), nil), t)
	h, _, ok := ch.QuerySendPacket()
	if !ok {
		t.Fatal("no packet")
	}
	ch.RemovePacket(h)

	if _, err := ch.Write([]byte("x")); err != nil {
		t.Fatalf("write after retire returned %v", err)
	}
}

func TestWindowAnnouncement(t *testing.T) {
	ev := event.New()
	ch := New(1, ev)
	ch.SetSendBuffer(make([]byte, 8), 8)
	ch.SetReceiveBuffer(make([]byte, 32))

	if !ev.Signaled() {
		t.Fatal("installing a receive buffer did not signal the link")
	}

	h, _, ok := ch.QuerySendPacket()
	if !ok || h.Kind != packet.KindMaxData || h.Offset != 32 || h.BodySize != 0 {
		t.Fatalf("initial announcement %v, ok=%v", h, ok)
	}
	ch.RemovePacket(h)

	// Window unchanged: nothing further to announce.
	ch.UpdateState()
	if _, _, ok := ch.QuerySendPacket(); ok {
		t.Fatal("spurious announcement")
	}

	fatal(ch.ProcessReceivePacket(data(1, 5, 5), []byte("hello")), t)
	if _, _, ok := ch.QuerySendPacket(); ok {
		t.Fatal("announcement while the window has not grown")
	}

	// Draining the ring grows the window past what was announced.
	buf := make([]byte, 16)
	n, err := ch.Read(buf)
	fatal(err, t)
	if n != 5 || string(buf[:5]) != "hello" {
		t.Fatalf("read %d bytes %q", n, buf[:n])
	}

	h, _, ok = ch.QuerySendPacket()
	if !ok || h.Kind != packet.KindMaxData || h.Offset != 37 {
		t.Fatalf("re-announcement %v, ok=%v", h, ok)
	}
}

func TestReceiveContinuity(t *testing.T) {
	ch := New(1, event.New())
	ch.SetReceiveBuffer(make([]byte, 32))

	// Offset must equal received bytes plus this body.
	err := ch.ProcessReceivePacket(data(1, 10, 5), []byte("hello"))
	if !errors.Is(err, mux.ErrProtocol) {
		t.Fatalf("gap offset accepted: %v", err)
	}

	// A body the announced window cannot hold is a protocol error.
	big := make([]byte, 40)
	err = ch.ProcessReceivePacket(data(1, 40, 40), big)
	if !errors.Is(err, mux.ErrProtocol) {
		t.Fatalf("window overrun accepted: %v", err)
	}

	fatal(ch.ProcessReceivePacket(data(1, 5, 5), []byte("hello")), t)
	if !ch.ReadSignal().Signaled() {
		t.Fatal("inbound data did not set the read signal")
	}
}

func TestPeerReset(t *testing.T) {
	ch := New(1, event.New())
	ch.SetSendBuffer(make([]byte, 8), 8)
	ch.SetReceiveBuffer(make([]byte, 8))

	errHdr := packet.Header{
		Signature: packet.Signature,
		Kind:      packet.KindError,
		Channel:   1,
	}
	fatal(ch.ProcessReceivePacket(errHdr, nil), t)

	if _, err := ch.Read(make([]byte, 4)); !errors.Is(err, ErrChannelReset) {
		t.Fatalf("read after reset returned %v", err)
	}
	if _, err := ch.Write([]byte("x")); !errors.Is(err, ErrChannelReset) {
		t.Fatalf("write after reset returned %v", err)
	}
	if !ch.ReadSignal().Signaled() {
		t.Fatal("reset did not wake readers")
	}
}

func TestSetSendBufferWithData(t *testing.T) {
	ev := event.New()
	ch := New(1, ev)
	ch.SetSendBufferWithData([]byte("static"), 16)

	if !ev.Signaled() {
		t.Fatal("preloaded send buffer did not signal the link")
	}

	fatal(ch.ProcessReceivePacket(maxData(1, 100), nil), t)
	h, body, ok := ch.QuerySendPacket()
	if !ok || string(body) != "static" || h.Offset != 6 {
		t.Fatalf("preloaded data packet %v body %q", h, body)
	}
}

func TestSendOffsetWraparound(t *testing.T) {
	ch := New(1, event.New())
	ch.SetSendBuffer(make([]byte, 64), 16)

	// A long-lived channel wraps the 32-bit offset space every 4 GiB;
	// place both sides just short of the boundary.
	ch.sent = 0xFFFFFFF8
	ch.maxRemote = 0xFFFFFFF8

	_, err := ch.Write([]byte("0123456789abcdef"))
	fatal(err, t)
	if _, _, ok := ch.QuerySendPacket(); ok {
		t.Fatal("packet offered without credit")
	}

	// Wire offset 8 is logically 2^32+8, ahead of everything sent.
	fatal(ch.ProcessReceivePacket(maxData(1, 8), nil), t)

	h, body, ok := ch.QuerySendPacket()
	if !ok {
		t.Fatal("wrapped announcement ignored")
	}
	if h.Offset != 8 || len(body) != 16 {
		t.Fatalf("data packet %v with %d byte body", h, len(body))
	}
	ch.RemovePacket(h)
	if ch.sent != 8 {
		t.Fatalf("sent offset %#x, want 8", ch.sent)
	}

	// A stale announcement from before the wrap must not move the
	// limit backwards.
	fatal(ch.ProcessReceivePacket(maxData(1, 0xFFFFFFF0), nil), t)
	if ch.maxRemote != 8 {
		t.Fatalf("stale announcement moved limit to %#x", ch.maxRemote)
	}
	_, err = ch.Write([]byte("x"))
	fatal(err, t)
	if _, _, ok := ch.QuerySendPacket(); ok {
		t.Fatal("packet offered against a stale limit")
	}
}

func TestAnnounceOffsetWraparound(t *testing.T) {
	ch := New(1, event.New())
	ch.SetReceiveBuffer(make([]byte, 32))

	// Window fully announced just below the wrap boundary.
	ch.received = 0xFFFFFFD8
	ch.announced = 0xFFFFFFF8
	ch.announce = false

	fatal(ch.ProcessReceivePacket(data(1, 0xFFFFFFE8, 16), make([]byte, 16)), t)
	if ch.announce {
		t.Fatal("announcement armed before the window grew")
	}

	// Draining grows the window past the boundary: received+free wraps
	// to a small wire value that is still logically ahead.
	n, err := ch.Read(make([]byte, 16))
	fatal(err, t)
	if n != 16 {
		t.Fatalf("read %d, want 16", n)
	}

	h, _, ok := ch.QuerySendPacket()
	if !ok || h.Kind != packet.KindMaxData || h.Offset != 8 {
		t.Fatalf("wrapped announcement %v, ok=%v", h, ok)
	}
}

func TestVersionStamped(t *testing.T) {
	ch := New(1, event.New())
	ch.SetVersion(9)
	if ch.Version() != 9 {
		t.Fatalf("version %d, want 9", ch.Version())
	}

	ch.SetSendBuffer(make([]byte, 8), 8)
	fatal(ch.ProcessReceivePacket(maxData(1, 100), nil), t)
	_, err := ch.Write([]byte("x"))
	fatal(err, t)

	h, _, ok := ch.QuerySendPacket()
	if !ok || h.Version != 9 {
		t.Fatalf("outbound header %v, want version 9", h)
	}
}
