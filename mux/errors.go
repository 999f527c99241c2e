package mux

import "errors"

var (
	// ErrProtocol reports a header whose fields are malformed for its
	// packet kind.
	ErrProtocol = errors.New("hostlink: protocol error")

	// ErrChannelNotExist reports an operation against a channel id
	// that is not in the table.
	ErrChannelNotExist = errors.New("hostlink: channel does not exist")

	// ErrChannelAlreadyExist reports an Open for a channel id that is
	// already in the table.
	ErrChannelAlreadyExist = errors.New("hostlink: channel already exists")
)
