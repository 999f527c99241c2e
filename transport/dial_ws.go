package transport

import (
	"fmt"

	"golang.org/x/net/websocket"
)

// DialWS establishes a hostlink link via WebSocket connection. The
// address must be a host and port; connecting at a particular path is
// not supported.
func DialWS(addr string, opts ...Option) (*Link, error) {
	ws, err := websocket.Dial(fmt.Sprintf("ws://%s/", addr), "", fmt.Sprintf("http://%s/", addr))
	if err != nil {
		return nil, err
	}
	ws.PayloadType = websocket.BinaryFrame
	return NewLink(ws, opts...), nil
}
