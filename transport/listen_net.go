package transport

import (
	"net"
)

// NetListener wraps a net.Listener to return connected hostlink links.
type NetListener struct {
	net.Listener
	opts []Option
}

// Accept waits for and returns the next connected link to the listener.
func (l *NetListener) Accept() (*Link, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return NewLink(conn, l.opts...), nil
}

// Close closes the listener.
// Any blocked Accept operations will be unblocked and return errors.
func (l *NetListener) Close() error {
	return l.Listener.Close()
}

func listenNet(proto, addr string, opts []Option) (*NetListener, error) {
	l, err := net.Listen(proto, addr)
	if err != nil {
		return nil, err
	}
	return &NetListener{Listener: l, opts: opts}, nil
}

// ListenTCP creates a TCP listener at the given address.
func ListenTCP(addr string, opts ...Option) (*NetListener, error) {
	return listenNet("tcp", addr, opts)
}

// ListenUnix creates a Unix domain socket listener at the given path.
func ListenUnix(path string, opts ...Option) (*NetListener, error) {
	return listenNet("unix", path, opts)
}
