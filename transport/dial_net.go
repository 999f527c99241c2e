package transport

import (
	"net"
)

func dialNet(proto, addr string, opts []Option) (*Link, error) {
	conn, err := net.Dial(proto, addr)
	if err != nil {
		return nil, err
	}
	return NewLink(conn, opts...), nil
}

// DialTCP establishes a hostlink link via TCP connection.
func DialTCP(addr string, opts ...Option) (*Link, error) {
	return dialNet("tcp", addr, opts)
}

// DialUnix establishes a hostlink link via Unix domain socket.
func DialUnix(path string, opts ...Option) (*Link, error) {
	return dialNet("unix", path, opts)
}
