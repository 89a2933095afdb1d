package ws

import (
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	server "swingy/server"
	"swingy/server/internal/net/proto"
	"swingy/server/internal/telemetry"
)

const (
	defaultSendQueue  = 64
	defaultReadLimit  = 4096
	defaultPongWait   = 60 * time.Second
	defaultWriteWait  = 10 * time.Second
	defaultPingPeriod = (defaultPongWait * 9) / 10
)

// HandlerConfig tunes per-connection limits.
type HandlerConfig struct {
	Logger     telemetry.Logger
	SendQueue  int
	ReadLimit  int64
	PongWait   time.Duration
	PingPeriod time.Duration
	WriteWait  time.Duration
}

func (c HandlerConfig) normalized() HandlerConfig {
	if c.Logger == nil {
		c.Logger = telemetry.Discard
	}
	if c.SendQueue <= 0 {
		c.SendQueue = defaultSendQueue
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	return c
}

// Handler upgrades requests to websocket sessions bound to a hub.
type Handler struct {
	hub      *server.Hub
	config   HandlerConfig
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs a websocket session handler for the given hub.
func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	cfg = cfg.normalized()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}
	return &Handler{
		hub:      hub,
		config:   cfg,
		logger:   cfg.Logger,
		upgrader: upgrader,
	}
}

// Handle upgrades the request and serves the session until the peer goes
// away. The optional encoding query parameter selects msgpack frames.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	enc, err := proto.ParseEncoding(r.URL.Query().Get("encoding"))
	if err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	session := newSession(conn, enc, h.config.SendQueue)
	go session.writePump(h.config.PingPeriod, h.config.WriteWait)

	id := h.hub.Register(session, r.RemoteAddr)
	defer func() {
		h.hub.Unregister(id)
		session.Close()
	}()

	conn.SetReadLimit(h.config.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Printf("session %d closed: %v", id, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(h.config.PongWait))

		msg, err := proto.DecodeClientMessage(enc, payload)
		if err != nil {
			h.hub.HandleMalformedFrame(id, len(payload), err)
			continue
		}
		h.hub.HandleClientMessage(id, msg)
	}
}
