package transport

import (
	"io"
	"net"
	"net/http"

	"golang.org/x/net/websocket"
)

// wsListener wraps a net.Listener and WebSocket server to return
// connected hostlink links.
type wsListener struct {
	net.Listener
	accepted chan *Link
}

// Accept waits for and returns the next connected link to the listener.
func (l *wsListener) Accept() (*Link, error) {
	link, ok := <-l.accepted
	if !ok {
		return nil, io.EOF
	}
	return link, nil
}

// Close closes the listener.
// Any blocked Accept operations will be unblocked and return errors.
func (l *wsListener) Close() error {
	close(l.accepted)
	return l.Listener.Close()
}

func (l *wsListener) Addr() net.Addr {
	return l.Listener.Addr()
}

// ListenWS takes a TCP address and returns a Listener for a
// HTTP+WebSocket server listening on the given address.
func ListenWS(addr string, opts ...Option) (Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	wsl := &wsListener{
		Listener: l,
		accepted: make(chan *Link),
	}
	srv := &http.Server{
		Addr: addr,
		Handler: websocket.Handler(func(ws *websocket.Conn) {
			ws.PayloadType = websocket.BinaryFrame
			link := NewLink(ws, opts...)
			defer link.Close()
			wsl.accepted <- link
			link.Wait()
		}),
	}
	go srv.Serve(l)
	return wsl, nil
}
