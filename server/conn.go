package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sagarc03/warden"
	"github.com/sagarc03/warden/protocol"
)

type connState int

const (
	stateIdle connState = iota
	stateActive
	stateClosed
)

// conn runs the request loop of one client connection.
type conn struct {
	srv *Server
	nc  net.Conn
	br  *bufio.Reader
	log *slog.Logger

	mu    sync.Mutex
	state connState
}

func newConn(srv *Server, nc net.Conn) *conn {
	return &conn{
		srv: srv,
		nc:  nc,
		br:  bufio.NewReader(nc),
		log: slog.With("remote", nc.RemoteAddr().String()),
	}
}

// setState moves the connection to state. It reports false when the
// connection was already closed.
func (c *conn) setState(state connState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateClosed {
		return false
	}
	c.state = state
	return true
}

func (c *conn) closeIfIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == stateIdle {
		c.state = stateClosed
		_ = c.nc.Close()
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateClosed {
		c.state = stateClosed
		_ = c.nc.Close()
	}
}

func (c *conn) serve(ctx context.Context) {
	defer c.close()

	c.log.Debug("connection opened")

	for {
		if c.srv.closing.Load() || !c.setState(stateIdle) {
			return
		}

		if err := c.nc.SetReadDeadline(time.Now().Add(c.srv.cfg.IdleTimeout)); err != nil {
			c.log.Debug("set read deadline", "error", err)
			return
		}

		req, err := protocol.ReadRequest(c.br, c.srv.cfg.MaxBodyBytes)
		if err != nil {
			c.readFailed(err)
			return
		}

		if !c.setState(stateActive) {
			return
		}

		start := time.Now()
		resp := c.dispatch(ctx, req)
		if req.Method == "HEAD" {
			resp = resp.WithoutBody()
		}

		if err := c.write(resp); err != nil {
			c.log.Debug("write response", "error", err)
			return
		}

		c.log.Debug("request",
			"method", req.Method,
			"path", req.Path,
			"status", resp.Status,
			"duration", time.Since(start),
		)
	}
}

// readFailed ends the connection after a failed read. Framing errors are
// answered before closing; EOF, timeouts and resets are not.
func (c *conn) readFailed(err error) {
	switch {
	case errors.Is(err, io.EOF):
		c.log.Debug("connection closed by peer")
	case errors.Is(err, os.ErrDeadlineExceeded):
		c.log.Debug("connection idle, closing")
	case errors.Is(err, warden.ErrMalformedRequest), errors.Is(err, warden.ErrBodyTooLarge):
		c.log.Debug("bad request, closing", "error", err)
		if werr := c.write(ErrorResponse(err)); werr != nil {
			c.log.Debug("write response", "error", werr)
		}
	case errors.Is(err, net.ErrClosed):
	default:
		c.log.Warn("read request", "error", err)
	}
}

// dispatch runs the handler, turning a panic into a 500.
func (c *conn) dispatch(ctx context.Context, req *protocol.Request) (resp *protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panic",
				"method", req.Method,
				"path", req.Path,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			resp = Status(protocol.StatusInternalServerError)
		}
	}()

	resp = c.srv.router.Dispatch(ctx, req)
	if resp == nil {
		c.log.Error("handler returned no response", "method", req.Method, "path", req.Path)
		resp = Status(protocol.StatusInternalServerError)
	}
	return resp
}

func (c *conn) write(resp *protocol.Response) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := resp.WriteTo(c.nc); err != nil {
		return err
	}
	return nil
}
