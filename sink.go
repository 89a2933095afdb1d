package server

import (
	"errors"

	"swingy/server/internal/net/proto"
)

var (
	// ErrSinkFull reports that a sink's outbound queue had no room for a frame.
	ErrSinkFull = errors.New("server: sink queue full")
	// ErrSinkClosed reports a send to a sink whose connection has gone away.
	ErrSinkClosed = errors.New("server: sink closed")
)

// Sink is the outbound half of a session. Send must not block; a sink that
// cannot accept a frame returns ErrSinkFull or ErrSinkClosed and the frame is
// lost.
type Sink interface {
	Encoding() proto.Encoding
	Send(data []byte) error
}
