package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hostlink/go-hostlink/channel"
	"github.com/hostlink/go-hostlink/mux"
)

func fatal(err error, t *testing.T) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func testPair(t *testing.T, opts ...Option) (*Link, *Link) {
	t.Helper()
	ac, bc := net.Pipe()
	a := NewLink(ac, opts...)
	b := NewLink(bc, opts...)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestRoundTrip(t *testing.T) {
	a, b := testPair(t)

	sa, err := a.Open(1)
	fatal(err, t)
	sb, err := b.Open(1)
	fatal(err, t)
	a.Start()
	b.Start()

	if _, err := sa.Write([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(sb, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "ping" {
		t.Fatalf("received %q", buf)
	}

	if _, err := sb.Write([]byte("pong")); err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadFull(sa, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "pong" {
		t.Fatalf("received %q", buf)
	}
}

func TestIndependentChannels(t *testing.T) {
	a, b := testPair(t)

	sa1, err := a.Open(1)
	fatal(err, t)
	sa2, err := a.Open(2)
	fatal(err, t)
	sb1, err := b.Open(1)
	fatal(err, t)
	sb2, err := b.Open(2)
	fatal(err, t)
	a.Start()
	b.Start()

	if _, err := sa1.Write([]byte("one")); err != nil {
		t.Fatal(err)
	}
	if _, err := sa2.Write([]byte("two")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 3)
	if _, err := io.ReadFull(sb2, buf); err != nil || string(buf) != "two" {
		t.Fatalf("channel 2 read %q, %v", buf, err)
	}
	if _, err := io.ReadFull(sb1, buf); err != nil || string(buf) != "one" {
		t.Fatalf("channel 1 read %q, %v", buf, err)
	}
}

func TestFlowControlSmallWindow(t *testing.T) {
	// Buffers far smaller than the payload force the transfer through
	// many window announcements.
	a, b := testPair(t,
		WithSendBufferSize(8),
		WithReceiveBufferSize(8),
		WithMaxPacketSize(4),
	)

	sa, err := a.Open(1)
	fatal(err, t)
	sb, err := b.Open(1)
	fatal(err, t)
	a.Start()
	b.Start()

	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i)
	}

	werr := make(chan error, 1)
	go func() {
		_, err := sa.Write(payload)
		werr <- err
	}()

	got := make([]byte, len(payload))
	if _, err := io.ReadFull(sb, got); err != nil {
		t.Fatal(err)
	}
	fatal(<-werr, t)
	if !bytes.Equal(got, payload) {
		t.Fatal("payload corrupted in transit")
	}
}

func TestUnknownChannelResets(t *testing.T) {
	a, b := testPair(t)

	// Only one side opens the channel; the peer answers its window
	// announcement with an Error packet, resetting the channel here.
	sa, err := a.Open(1)
	fatal(err, t)
	a.Start()
	b.Start()

	_, err = sa.Read(make([]byte, 4))
	if !errors.Is(err, channel.ErrChannelReset) {
		t.Fatalf("read returned %v, want ErrChannelReset", err)
	}
}

func TestOpenWithData(t *testing.T) {
	a, b := testPair(t)

	_, err := a.OpenWithData(1, []byte("hello"))
	fatal(err, t)
	sb, err := b.Open(1)
	fatal(err, t)
	a.Start()
	b.Start()

	buf := make([]byte, 5)
	if _, err := io.ReadFull(sb, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Fatalf("received %q", buf)
	}
}

func TestSleepSuspendsSending(t *testing.T) {
	var asleep atomic.Bool
	asleep.Store(true)

	// Only the sender sleeps.
	ac, bc := net.Pipe()
	a := NewLink(ac,
		WithMaintenanceInterval(5*time.Millisecond),
		WithSleepDetector(mux.DetectorFunc(asleep.Load)),
	)
	b := NewLink(bc, WithMaintenanceInterval(5*time.Millisecond))
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	sa, err := a.Open(1)
	fatal(err, t)
	sb, err := b.Open(1)
	fatal(err, t)
	a.Start()
	b.Start()

	// Let the maintenance loop observe the detector before queueing
	// data, so the packet is held rather than racing the first poll.
	time.Sleep(30 * time.Millisecond)

	if _, err := sa.Write([]byte("late")); err != nil {
		t.Fatal(err)
	}

	read := make(chan struct{})
	buf := make([]byte, 4)
	go func() {
		io.ReadFull(sb, buf)
		close(read)
	}()

	select {
	case <-read:
		t.Fatal("data crossed the link while asleep")
	case <-time.After(50 * time.Millisecond):
	}

	asleep.Store(false)
	select {
	case <-read:
	case <-time.After(time.Second):
		t.Fatal("data never arrived after wake")
	}
	if string(buf) != "late" {
		t.Fatalf("received %q", buf)
	}
}

func TestCloseUnblocksPeer(t *testing.T) {
	a, b := testPair(t)

	sa, err := a.Open(1)
	fatal(err, t)
	_, err = b.Open(1)
	fatal(err, t)
	a.Start()
	b.Start()

	done := make(chan error, 1)
	go func() {
		_, err := sa.Read(make([]byte, 4))
		done <- err
	}()

	b.Close()
	select {
	case err := <-done:
		if err != io.EOF {
			t.Fatalf("read returned %v, want io.EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader not released by peer close")
	}
	if err := a.Wait(); err != io.EOF {
		t.Fatalf("wait returned %v, want io.EOF", err)
	}
}
