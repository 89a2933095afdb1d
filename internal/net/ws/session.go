package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"

	server "swingy/server"
	"swingy/server/internal/net/proto"
)

// Session is the outbound half of one websocket connection. Frames are queued
// without blocking and written by a single pump goroutine.
type Session struct {
	conn     *websocket.Conn
	encoding proto.Encoding
	send     chan []byte

	mu     deadlock.Mutex
	closed bool
}

func newSession(conn *websocket.Conn, enc proto.Encoding, queue int) *Session {
	if queue < 1 {
		queue = 1
	}
	return &Session{
		conn:     conn,
		encoding: enc,
		send:     make(chan []byte, queue),
	}
}

// Encoding reports the frame format negotiated at upgrade.
func (s *Session) Encoding() proto.Encoding {
	return s.encoding
}

// Send queues data for the write pump. It never blocks.
func (s *Session) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return server.ErrSinkClosed
	}
	select {
	case s.send <- data:
		return nil
	default:
		return server.ErrSinkFull
	}
}

// Close stops the write pump after it flushes queued frames.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
	s.mu.Unlock()
}

func (s *Session) messageType() int {
	if s.encoding.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// writePump owns all writes to the connection. It exits when the queue is
// closed or a write fails, closing the connection so the read loop ends too.
func (s *Session) writePump(pingPeriod, writeWait time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	kind := s.messageType()
	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteMessage(kind, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
