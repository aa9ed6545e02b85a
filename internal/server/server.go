package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"newsletter/internal/email"
	"newsletter/internal/store"
)

// ErrListenerUnusable is returned by New when the listener is nil or closed.
var ErrListenerUnusable = errors.New("listener cannot be served")

// Pinger reports database reachability for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WelcomeNotifier sends the mail that follows a successful sign-up.
type WelcomeNotifier interface {
	Welcome(ctx context.Context, r email.Recipient) error
}

type Config struct {
	Store    store.SubscriberStore
	Pinger   Pinger          // optional; /ready always succeeds without it
	Notifier WelcomeNotifier // optional
	Logger   *slog.Logger

	// ShutdownTimeout bounds the drain in Run. Defaults to 5s.
	ShutdownTimeout time.Duration
}

type Server struct {
	httpServer *http.Server
	listener   net.Listener

	store    store.SubscriberStore
	pinger   Pinger
	notifier WelcomeNotifier
	log      *slog.Logger
	metrics  *Metrics

	shutdownTimeout time.Duration
	background      sync.WaitGroup
}

// New builds a server that will serve on ln. Nothing is served until Serve
// or Run is called, so the caller chooses whether to block on it or run it
// next to other work.
func New(ln net.Listener, cfg Config) (*Server, error) {
	if err := checkListener(ln); err != nil {
		return nil, err
	}
	if cfg.Store == nil {
		return nil, errors.New("server: nil subscriber store")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{
		listener:        ln,
		store:           cfg.Store,
		pinger:          cfg.Pinger,
		notifier:        cfg.Notifier,
		log:             cfg.Logger,
		metrics:         NewMetrics(),
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(cfg.Logger.Handler(), slog.LevelWarn),
	}
	return s, nil
}

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health_check", s.handleHealthCheck)
	mux.HandleFunc("POST /subscriptions", s.handleSubscribe)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", NewPrometheusExporter(s.metrics).Handler())

	// Wrap middleware: otel -> requestID -> logging -> headers -> mux
	var handler http.Handler = mux
	handler = securityHeadersMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = otelhttp.NewHandler(handler, "newsletter")
	return handler
}

// Addr is the address the listener is bound to.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Metrics exposes the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Serve blocks until the server stops. A stop caused by Shutdown is not an
// error.
func (s *Server) Serve() error {
	err := s.httpServer.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Run serves until ctx is done, then shuts down, giving in-flight requests
// up to the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// Shutdown stops accepting connections, waits for in-flight requests and
// pending welcome mails, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkListener probes the listener's file descriptor so a closed socket is
// reported now rather than on the first Accept.
func checkListener(ln net.Listener) error {
	if ln == nil {
		return fmt.Errorf("%w: nil listener", ErrListenerUnusable)
	}
	sc, ok := ln.(syscall.Conn)
	if !ok {
		return nil
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListenerUnusable, err)
	}
	if err := rc.Control(func(uintptr) {}); err != nil {
		return fmt.Errorf("%w: %w", ErrListenerUnusable, err)
	}
	return nil
}
