package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	limiterTTL        = 2 * time.Minute
	limiterGCInterval = 30 * time.Second
)

// Run starts the server and blocks until a shutdown signal or a listener error.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	s.Start(ln)

	slog.Info("Litka server running", "addr", ln.Addr().String(), "store", s.cfg.Store)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		slog.Info("shutting down...")
	case <-s.ctx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(ctx)
}

// Start serves HTTP on ln in the background and starts periodic tasks.
func (s *Server) Start(ln net.Listener) {
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "err", err)
			s.cancel()
		}
	}()

	s.metrics.StartPeriodicLog(s.cfg.MetricsLogInterval, s.ctx.Done())
	if s.cfg.SweepInterval > 0 {
		s.moderation.StartSweeper(s.cfg.SweepInterval, s.now, s.ctx.Done())
	}
}

// Shutdown stops accepting requests, closes every connection and the store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	var errs []error
	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	s.liveMu.Lock()
	conns := make([]Conn, 0, len(s.live))
	for _, c := range s.live {
		conns = append(conns, c)
	}
	s.liveMu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
	slog.Info("closed connections", "count", len(conns))

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
