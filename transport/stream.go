package transport

import (
	"errors"
	"io"

	"github.com/hostlink/go-hostlink/channel"
	"github.com/hostlink/go-hostlink/packet"
	"github.com/hostlink/go-hostlink/task"
)

// Stream is the blocking application view of one channel. The channel
// engine itself never blocks; Stream layers waiting on top of it using
// the channel's read signal and the link's task registry.
type Stream struct {
	link *Link
	ch   *channel.Channel
}

// ID returns the stream's channel identifier.
func (s *Stream) ID() packet.ChannelID {
	return s.ch.ID()
}

// Read blocks until inbound data is available, the channel is reset,
// or the link shuts down.
func (s *Stream) Read(p []byte) (int, error) {
	for {
		n, err := s.ch.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
		select {
		case <-s.ch.ReadSignal().Done():
		case <-s.link.pump.Done():
			return 0, io.EOF
		}
	}
}

// Write blocks until all of p has been accepted into the channel's
// send buffer. While the buffer is full it registers a send task and
// waits for the multiplexer to report freed capacity.
func (s *Stream) Write(p []byte) (int, error) {
	var total int
	for len(p) > 0 {
		n, err := s.ch.Write(p)
		if err == nil {
			total += n
			p = p[n:]
			continue
		}
		if !errors.Is(err, channel.ErrBufferFull) {
			return total, err
		}

		id, ev := s.link.tasks.Add(task.KindSend)
		// Capacity may have freed between the failed write and the
		// registration; retry before blocking.
		if n, err = s.ch.Write(p); err == nil {
			s.link.tasks.Remove(id)
			total += n
			p = p[n:]
			continue
		}
		if !errors.Is(err, channel.ErrBufferFull) {
			s.link.tasks.Remove(id)
			return total, err
		}

		select {
		case <-ev.Done():
			s.link.tasks.Remove(id)
		case <-s.link.pump.Done():
			s.link.tasks.Remove(id)
			return total, io.ErrClosedPipe
		}
	}
	return total, nil
}
