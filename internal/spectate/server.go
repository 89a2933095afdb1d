// Package spectate serves a read-only terminal view of the arena over SSH.
package spectate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/sasha-s/go-deadlock"

	"swingy/server/internal/sim"
	"swingy/server/internal/telemetry"
)

const (
	defaultRefresh = 100 * time.Millisecond
	clearScreen    = "\x1b[H\x1b[2J"
	hideCursor     = "\x1b[?25l"
	showCursor     = "\x1b[?25h"
)

// Source provides the most recent world snapshot.
type Source interface {
	LatestSnapshot() (sim.Snapshot, bool)
}

// Config configures the spectator server.
type Config struct {
	Addr        string
	HostKeyPath string
	Refresh     time.Duration
	Width       float64
	Height      float64
	Logger      telemetry.Logger
}

// Server is an SSH endpoint that streams the arena to connected terminals.
type Server struct {
	source Source
	config Config
	logger telemetry.Logger
	ssh    *ssh.Server
}

// New builds a spectator server. It does not listen until ListenAndServe.
func New(source Source, cfg Config) (*Server, error) {
	if source == nil {
		return nil, errors.New("spectate: nil snapshot source")
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = defaultRefresh
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		tuning := sim.DefaultTuning()
		cfg.Width, cfg.Height = tuning.Width, tuning.Height
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.Discard
	}
	s := &Server{source: source, config: cfg, logger: cfg.Logger}

	opts := []ssh.Option{
		wish.WithAddress(cfg.Addr),
		wish.WithMiddleware(
			s.middleware,
			activeterm.Middleware(),
		),
		ssh.WrapConn(func(ctx ssh.Context, conn net.Conn) net.Conn {
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn
		}),
	}
	if cfg.HostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(cfg.HostKeyPath))
	}
	srv, err := wish.NewServer(opts...)
	if err != nil {
		return nil, fmt.Errorf("spectate: create ssh server: %w", err)
	}
	s.ssh = srv
	return s, nil
}

// ListenAndServe blocks until the server stops. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	if err := s.ssh.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting sessions and waits for open ones to end.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.ssh.Shutdown(ctx)
}

func (s *Server) middleware(next ssh.Handler) ssh.Handler {
	return func(sess ssh.Session) {
		pty, winCh, ok := sess.Pty()
		if !ok {
			fmt.Fprintln(sess, "Error: PTY required. Please connect with: ssh -t host")
			return
		}
		s.logger.Printf("[spectate] session opened user=%s remote=%s size=%dx%d", sess.User(), sess.RemoteAddr(), pty.Window.Width, pty.Window.Height)

		size := newSizeTracker(pty.Window.Width, pty.Window.Height)
		go func() {
			for win := range winCh {
				size.update(win.Width, win.Height)
			}
		}()

		quit := make(chan struct{})
		go func() {
			defer close(quit)
			buf := make([]byte, 1)
			for {
				n, err := sess.Read(buf)
				if err != nil {
					return
				}
				if n == 1 && (buf[0] == 'q' || buf[0] == 3) {
					return
				}
			}
		}()

		s.stream(sess, size, quit)
		s.logger.Printf("[spectate] session closed user=%s", sess.User())
		next(sess)
	}
}

func (s *Server) stream(sess ssh.Session, size *sizeTracker, quit <-chan struct{}) {
	fmt.Fprint(sess, hideCursor)
	defer fmt.Fprint(sess, showCursor)

	ticker := time.NewTicker(s.config.Refresh)
	defer ticker.Stop()
	for {
		select {
		case <-sess.Context().Done():
			return
		case <-quit:
			return
		case <-ticker.C:
			snap, ok := s.source.LatestSnapshot()
			if !ok {
				continue
			}
			cols, rows := size.get()
			frame := Render(snap, s.config.Width, s.config.Height, cols, rows)
			if _, err := fmt.Fprint(sess, clearScreen+frame); err != nil {
				return
			}
		}
	}
}

type sizeTracker struct {
	mu     deadlock.RWMutex
	width  int
	height int
}

func newSizeTracker(width, height int) *sizeTracker {
	return &sizeTracker{width: width, height: height}
}

func (s *sizeTracker) update(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
}

func (s *sizeTracker) get() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}
