package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	server "swingy/server"
	"swingy/server/internal/observability"
)

func newTestHub(t *testing.T) *server.Hub {
	t.Helper()
	hub, err := server.NewHub(server.DefaultHubConfig(), nil)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	return hub
}

func TestHealthEndpoint(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.Code, resp.Body.String())
	}
}

func TestDiagnosticsEndpoint(t *testing.T) {
	hub := newTestHub(t)
	hub.Advance(time.Now())
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}

	var payload struct {
		Status      string `json:"status"`
		Diagnostics struct {
			Tick        uint64 `json:"tick"`
			DemonHealth uint8  `json:"demonHealth"`
		} `json:"diagnostics"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics payload: %v", err)
	}
	if payload.Status != "ok" || payload.Diagnostics.Tick != 1 || payload.Diagnostics.DemonHealth != 255 {
		t.Fatalf("unexpected diagnostics %+v", payload)
	}
}

func TestProtocolSchemaEndpoint(t *testing.T) {
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/protocol/schema", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "ClientMessage") {
		t.Fatalf("expected schema to describe ClientMessage")
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/protocol/schema", nil))
	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", resp.Code)
	}
}

func TestPprofIsOptIn(t *testing.T) {
	hub := newTestHub(t)
	off := NewHTTPHandler(hub, HTTPHandlerConfig{})
	resp := httptest.NewRecorder()
	off.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected pprof to be disabled by default, got %d", resp.Code)
	}

	on := NewHTTPHandler(hub, HTTPHandlerConfig{Observability: observability.Config{EnablePprof: true}})
	resp = httptest.NewRecorder()
	on.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected pprof index when enabled, got %d", resp.Code)
	}
}

func TestStaticFilesServedFromRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>arena</h1>"), 0o644); err != nil {
		t.Fatalf("write index: %v", err)
	}
	handler := NewHTTPHandler(newTestHub(t), HTTPHandlerConfig{StaticDir: dir})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "arena") {
		t.Fatalf("expected index page, got %d %q", resp.Code, resp.Body.String())
	}
}

func TestWebsocketRoutes(t *testing.T) {
	hub := newTestHub(t)
	srv := httptest.NewServer(NewHTTPHandler(hub, HTTPHandlerConfig{}))
	t.Cleanup(srv.Close)

	for _, path := range []string{"/ws", "/ws/"} {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
		conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			t.Fatalf("dial %s: %v", path, err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, payload, err := conn.ReadMessage(); err != nil || !strings.Contains(string(payload), `"you"`) {
			t.Fatalf("expected welcome on %s, got %q %v", path, payload, err)
		}
		conn.Close()
		resp.Body.Close()
	}
}
