package transport

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/quic-go/quic-go"
)

var defaultTLSConfig = tls.Config{
	NextProtos: []string{"hostlink-quic"},
}

// quicConn binds a QUIC stream to its connection so closing the link
// tears down both.
type quicConn struct {
	conn   quic.Connection
	stream quic.Stream
}

func (c *quicConn) Read(p []byte) (int, error)  { return c.stream.Read(p) }
func (c *quicConn) Write(p []byte) (int, error) { return c.stream.Write(p) }

func (c *quicConn) Close() error {
	c.stream.Close()
	return c.conn.CloseWithError(0, "link closed")
}

// DialQUIC establishes a hostlink link over a QUIC stream. A nil
// tlsConf uses a default config with the hostlink ALPN.
func DialQUIC(addr string, tlsConf *tls.Config, opts ...Option) (*Link, error) {
	if tlsConf == nil {
		tlsConf = defaultTLSConfig.Clone()
	}
	conn, err := quic.DialAddr(context.Background(), addr, tlsConf, nil)
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(context.Background())
	if err != nil {
		return nil, err
	}
	// The stream only exists on the wire once data flows; send a
	// preface byte the acceptor strips.
	if _, err := stream.Write([]byte{0}); err != nil {
		return nil, err
	}
	return NewLink(&quicConn{conn: conn, stream: stream}, opts...), nil
}

// QUICListener accepts hostlink links over QUIC.
type QUICListener struct {
	ln   *quic.Listener
	opts []Option
}

// ListenQUIC creates a QUIC listener at the given address.
func ListenQUIC(addr string, tlsConf *tls.Config, opts ...Option) (*QUICListener, error) {
	ln, err := quic.ListenAddr(addr, tlsConf, nil)
	if err != nil {
		return nil, err
	}
	return &QUICListener{ln: ln, opts: opts}, nil
}

// Accept waits for and returns the next connected link.
func (l *QUICListener) Accept() (*Link, error) {
	conn, err := l.ln.Accept(context.Background())
	if err != nil {
		return nil, err
	}
	stream, err := conn.AcceptStream(context.Background())
	if err != nil {
		return nil, err
	}
	preface := make([]byte, 1)
	if _, err := stream.Read(preface); err != nil {
		return nil, err
	}
	return NewLink(&quicConn{conn: conn, stream: stream}, l.opts...), nil
}

// Close closes the listener.
func (l *QUICListener) Close() error {
	return l.ln.Close()
}

// Addr returns the listener's network address.
func (l *QUICListener) Addr() net.Addr {
	return l.ln.Addr()
}
