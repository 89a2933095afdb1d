package net

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	server "swingy/server"
	"swingy/server/internal/net/proto"
	"swingy/server/internal/net/ws"
	"swingy/server/internal/observability"
	"swingy/server/internal/telemetry"
)

type HTTPHandlerConfig struct {
	StaticDir     string
	Logger        telemetry.Logger
	Observability observability.Config
	WebSocket     ws.HandlerConfig
}

func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	if cfg.WebSocket.Logger == nil {
		cfg.WebSocket.Logger = logger
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status          string             `json:"status"`
			ServerTime      int64              `json:"serverTime"`
			ProtocolVersion int                `json:"protocolVersion"`
			Diagnostics     server.Diagnostics `json:"diagnostics"`
		}{
			Status:          "ok",
			ServerTime:      time.Now().UnixMilli(),
			ProtocolVersion: proto.Version,
			Diagnostics:     hub.DiagnosticsSnapshot(),
		}
		writeJSON(w, logger, payload)
	})

	mux.HandleFunc("/protocol/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		data, err := proto.SchemaJSON()
		if err != nil {
			logger.Printf("failed to build protocol schema: %v", err)
			httpError(w, "failed to encode", nethttp.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		w.Write(data)
	})

	socket := ws.NewHandler(hub, cfg.WebSocket)
	mux.HandleFunc("/ws", socket.Handle)
	mux.HandleFunc("/ws/", socket.Handle)

	if cfg.Observability.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	if cfg.StaticDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.StaticDir))
		mux.Handle("/", fs)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
