package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sagarc03/warden/protocol"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("server closed")

const (
	DefaultMaxConnections = 256
	DefaultIdleTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 30 * time.Second

	rejectTimeout     = time.Second
	minAcceptBackoff  = 5 * time.Millisecond
	maxAcceptBackoff  = time.Second
	shutdownPollEvery = 10 * time.Millisecond
)

// Config holds connection limits and timeouts. Zero values take the defaults.
type Config struct {
	Addr           string
	MaxConnections int64
	IdleTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxBodyBytes   int64
}

func (c Config) withDefaults() Config {
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = protocol.DefaultMaxBodyBytes
	}
	return c
}

// Stats is a snapshot of connection counters.
type Stats struct {
	Active   int64 `json:"active_connections"`
	Total    int64 `json:"total_connections"`
	Rejected int64 `json:"rejected_connections"`
}

// Server accepts connections and answers requests through a Router.
type Server struct {
	cfg    Config
	router *Router
	sem    *semaphore.Weighted

	// ctx is handed to handlers and cancelled when Shutdown gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[*conn]struct{}
	closing   atomic.Bool
	wg        sync.WaitGroup

	active   atomic.Int64
	total    atomic.Int64
	rejected atomic.Int64
}

func New(cfg Config, router *Router) *Server {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:       cfg,
		router:    router,
		sem:       semaphore.NewWeighted(cfg.MaxConnections),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[*conn]struct{}),
	}
}

// Router returns the router the server dispatches to.
func (s *Server) Router() *Router {
	return s.router
}

// Stats returns the current connection counters.
func (s *Server) Stats() Stats {
	return Stats{
		Active:   s.active.Load(),
		Total:    s.total.Load(),
		Rejected: s.rejected.Load(),
	}
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown or a permanent accept error.
// It always closes l. After Shutdown it returns ErrServerClosed.
func (s *Server) Serve(l net.Listener) error {
	if !s.trackListener(l) {
		_ = l.Close()
		return ErrServerClosed
	}
	defer func() {
		s.untrackListener(l)
		_ = l.Close()
	}()

	slog.Info("listening", "addr", l.Addr().String())

	var backoff time.Duration
	for {
		nc, err := l.Accept()
		if err != nil {
			if s.closing.Load() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("accept: %w", err)
			}

			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(backoff*2, maxAcceptBackoff)
			}
			slog.Warn("accept failed, retrying", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		s.total.Add(1)

		if !s.sem.TryAcquire(1) {
			s.rejected.Add(1)
			if !s.trackReject() {
				_ = nc.Close()
				return ErrServerClosed
			}
			go s.reject(nc)
			continue
		}

		c := newConn(s, nc)
		if !s.trackConn(c) {
			s.sem.Release(1)
			_ = nc.Close()
			return ErrServerClosed
		}

		s.active.Add(1)
		go func() {
			defer func() {
				s.sem.Release(1)
				s.active.Add(-1)
				s.untrackConn(c)
			}()
			c.serve(s.ctx)
		}()
	}
}

func (s *Server) reject(nc net.Conn) {
	defer s.wg.Done()
	defer func() { _ = nc.Close() }()

	slog.Warn("connection rejected, server busy", "remote", nc.RemoteAddr().String())

	_ = nc.SetWriteDeadline(time.Now().Add(rejectTimeout))
	if _, err := protocol.Text(protocol.StatusServiceUnavailable, "Server busy").WriteTo(nc); err != nil {
		slog.Debug("write busy response", "remote", nc.RemoteAddr().String(), "error", err)
	}
}

// Shutdown stops accepting, closes idle connections and waits for active
// ones to finish their current request. When ctx ends first the remaining
// connections are closed and ctx.Err() is returned.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closing.Store(true)

	s.mu.Lock()
	for l := range s.listeners {
		_ = l.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(shutdownPollEvery)
		defer ticker.Stop()
		for {
			s.closeIdle()
			if s.connCount() == 0 {
				break
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.closeAll()
		s.cancel()
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}

func (s *Server) trackListener(l net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.listeners[l] = struct{}{}
	return true
}

func (s *Server) untrackListener(l net.Listener) {
	s.mu.Lock()
	delete(s.listeners, l)
	s.mu.Unlock()
}

func (s *Server) trackConn(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) trackReject() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) untrackConn(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) connCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) closeIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.closeIfIdle()
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.close()
	}
}
