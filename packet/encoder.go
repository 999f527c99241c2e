package packet

import (
	"fmt"
	"io"
	"sync"
)

var (
	// Debug can be set to get packets as they're encoded and decoded
	Debug io.Writer
)

// Encoder writes framed packets to an io.Writer.
type Encoder struct {
	w io.Writer
	sync.Mutex
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one packet. Only the first BodySize bytes of body are
// transmitted.
func (enc *Encoder) Encode(h Header, body []byte) error {
	enc.Lock()
	defer enc.Unlock()

	if Debug != nil {
		fmt.Fprintln(Debug, "<<ENC", h)
	}

	if _, err := enc.w.Write(h.Bytes()); err != nil {
		return err
	}
	if h.BodySize == 0 {
		return nil
	}
	_, err := enc.w.Write(body[:h.BodySize])
	return err
}
