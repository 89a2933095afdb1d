package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	server "swingy/server"
	"swingy/server/internal/config"
	servernet "swingy/server/internal/net"
	"swingy/server/internal/net/ws"
	"swingy/server/internal/observability"
	"swingy/server/internal/spectate"
	"swingy/server/internal/telemetry"
	"swingy/server/logging"
)

const shutdownTimeout = 5 * time.Second

// Run serves the arena until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.Config) error {
	zapLogger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to construct logger: %w", err)
	}
	defer zapLogger.Sync()
	sugar := zapLogger.Sugar()
	telemetryLogger := telemetry.WrapZap(sugar)

	metrics := &logging.Metrics{}
	logConfig := routerConfig(cfg.Log)
	sinks, err := buildSinks(logConfig, zapLogger)
	if err != nil {
		return err
	}
	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, sinks, logging.WithMetrics(metrics), logging.WithFallback(sugar))
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
		stats := router.Stats()
		telemetryLogger.Printf("logging router: events=%d dropped=%d sampled=%d", stats.EventsTotal, stats.DroppedTotal, stats.SampledTotal)
	}()

	hubCfg := server.DefaultHubConfig()
	hubCfg.Tuning = cfg.Tuning
	hubCfg.Loop = cfg.LoopConfig()
	hubCfg.Logger = telemetry.Named(telemetryLogger, "hub")
	hubCfg.Metrics = metrics
	hubCfg.DebugTelemetry = cfg.DebugTelemetry

	hub, err := server.NewHub(hubCfg, router)
	if err != nil {
		return fmt.Errorf("failed to construct hub: %w", err)
	}
	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	defer close(stop)

	staticDir, err := server.ResolveStaticDir(cfg.StaticDir)
	if err != nil {
		if cfg.StaticDir != "" {
			return err
		}
		telemetryLogger.Printf("no static directory found, serving API only")
		staticDir = ""
	}

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		StaticDir:     staticDir,
		Logger:        telemetry.Named(telemetryLogger, "http"),
		Observability: observability.Config{EnablePprof: cfg.EnablePprof},
		WebSocket: ws.HandlerConfig{
			Logger:    telemetry.Named(telemetryLogger, "ws"),
			SendQueue: cfg.SendQueue,
		},
	})

	var spectator *spectate.Server
	if cfg.SSH.Addr != "" {
		spectator, err = spectate.New(hub, spectate.Config{
			Addr:        cfg.SSH.Addr,
			HostKeyPath: cfg.SSH.HostKeyPath,
			Width:       cfg.Tuning.Width,
			Height:      cfg.Tuning.Height,
			Logger:      telemetry.Named(telemetryLogger, "spectate"),
		})
		if err != nil {
			return err
		}
	}

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	errCh := make(chan error, 2)
	go func() {
		telemetryLogger.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()
	if spectator != nil {
		go func() {
			telemetryLogger.Printf("spectator listening on %s", cfg.SSH.Addr)
			if err := spectator.ListenAndServe(); err != nil {
				errCh <- fmt.Errorf("spectator failed: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		telemetryLogger.Printf("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetryLogger.Printf("http shutdown: %v", err)
	}
	if spectator != nil {
		if err := spectator.Shutdown(shutdownCtx); err != nil {
			telemetryLogger.Printf("spectator shutdown: %v", err)
		}
	}
	return runErr
}
