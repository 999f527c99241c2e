package packet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"syscall"
)

// Decoder reads framed packets from an io.Reader.
type Decoder struct {
	r io.Reader
	sync.Mutex
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads one packet. Bodies larger than MaxBodySize are refused
// before any body allocation happens.
func (dec *Decoder) Decode() (Header, []byte, error) {
	dec.Lock()
	defer dec.Unlock()

	var raw [HeaderSize]byte
	if _, err := io.ReadFull(dec.r, raw[:]); err != nil {
		var syscallErr *os.SyscallError
		if errors.As(err, &syscallErr) && syscallErr.Err == syscall.ECONNRESET {
			return Header{}, nil, io.EOF
		}
		return Header{}, nil, err
	}

	h := ParseHeader(raw[:])
	if h.BodySize > MaxBodySize {
		// Consume the declared body so the stream stays on a frame
		// boundary; header validation rejects the packet upstream.
		if _, err := io.CopyN(io.Discard, dec.r, int64(h.BodySize)); err != nil {
			return h, nil, err
		}
		return h, nil, nil
	}

	var body []byte
	if h.BodySize > 0 {
		body = make([]byte, h.BodySize)
		if _, err := io.ReadFull(dec.r, body); err != nil {
			return h, nil, err
		}
	}

	if Debug != nil {
		fmt.Fprintln(Debug, ">>DEC", h)
	}

	return h, body, nil
}
