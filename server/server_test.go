package server_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/warden/protocol"
	"github.com/sagarc03/warden/server"
)

func echoRouter() *server.Router {
	r := server.NewRouter()
	r.Handle("POST", "/echo", func(_ context.Context, req *protocol.Request) *protocol.Response {
		return protocol.Binary(200, "application/octet-stream", req.Body)
	})
	r.Handle("HEAD", "/echo", func(_ context.Context, req *protocol.Request) *protocol.Response {
		return protocol.Text(200, "this body is dropped")
	})
	r.Handle("GET", "/panic", func(context.Context, *protocol.Request) *protocol.Response {
		panic("boom")
	})
	r.Handle("GET", "/nil", func(context.Context, *protocol.Request) *protocol.Response {
		return nil
	})
	return r
}

func startServer(t *testing.T, cfg server.Config, router *server.Router) (*server.Server, string, <-chan error) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := server.New(cfg, router)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(l) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return srv, l.Addr().String(), errCh
}

type testConn struct {
	t  *testing.T
	nc net.Conn
	br *bufio.Reader
}

func dial(t *testing.T, addr string) *testConn {
	t.Helper()
	nc, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nc.Close() })
	require.NoError(t, nc.SetDeadline(time.Now().Add(5*time.Second)))
	return &testConn{t: t, nc: nc, br: bufio.NewReader(nc)}
}

func (c *testConn) send(raw string) {
	c.t.Helper()
	_, err := io.WriteString(c.nc, raw)
	require.NoError(c.t, err)
}

func (c *testConn) roundTrip(req *protocol.Request) *protocol.Response {
	c.t.Helper()
	require.NoError(c.t, req.Write(c.nc))
	return c.read()
}

func (c *testConn) read() *protocol.Response {
	c.t.Helper()
	resp, err := protocol.ReadResponse(c.br, 1<<20)
	require.NoError(c.t, err)
	return resp
}

// assertClosed drains the connection and fails unless the server closes it.
func (c *testConn) assertClosed() {
	c.t.Helper()
	_, err := io.Copy(io.Discard, c.br)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		c.t.Fatal("connection was not closed by the server")
	}
}

func TestServer_RequestLoop(t *testing.T) {
	_, addr, _ := startServer(t, server.Config{}, echoRouter())
	c := dial(t, addr)

	bodies := [][]byte{
		[]byte("first"),
		{0x00, 0xff, '\r', '\n', '\r', '\n', 0x01},
		[]byte("line one\nline two\n"),
	}
	for _, body := range bodies {
		resp := c.roundTrip(protocol.NewRequest("POST", "/echo", body))
		assert.Equal(t, 200, resp.Status)
		assert.Equal(t, body, resp.Body())
	}

	resp := c.roundTrip(protocol.NewRequest("GET", "/missing", nil))
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "Page not found", resp.String())
}

func TestServer_HeadHasNoBody(t *testing.T) {
	_, addr, _ := startServer(t, server.Config{}, echoRouter())
	c := dial(t, addr)

	resp := c.roundTrip(protocol.NewRequest("HEAD", "/echo", nil))
	assert.Equal(t, 200, resp.Status)
	assert.Empty(t, resp.Body())
	cl, _ := resp.Header("Content-Length")
	assert.Equal(t, "0", cl)

	// The connection is still framed correctly afterwards.
	resp = c.roundTrip(protocol.NewRequest("POST", "/echo", []byte("after head")))
	assert.Equal(t, "after head", resp.String())
}

func TestServer_MalformedRequestClosesConnection(t *testing.T) {
	_, addr, _ := startServer(t, server.Config{}, echoRouter())
	c := dial(t, addr)

	c.send("NONSENSE\r\n")

	resp := c.read()
	assert.Equal(t, 400, resp.Status)
	assert.Equal(t, "Bad Request", resp.String())
	c.assertClosed()
}

func TestServer_BodyTooLarge(t *testing.T) {
	_, addr, _ := startServer(t, server.Config{MaxBodyBytes: 16}, echoRouter())
	c := dial(t, addr)

	c.send("POST /echo HTTP/1.1\r\nContent-Length: 100\r\n\r\n")

	resp := c.read()
	assert.Equal(t, 413, resp.Status)
	assert.Equal(t, "Payload Too Large", resp.String())
	c.assertClosed()
}

func TestServer_PanicRecovered(t *testing.T) {
	_, addr, _ := startServer(t, server.Config{}, echoRouter())
	c := dial(t, addr)

	resp := c.roundTrip(protocol.NewRequest("GET", "/panic", nil))
	assert.Equal(t, 500, resp.Status)
	assert.Equal(t, "Internal Server Error", resp.String())

	resp = c.roundTrip(protocol.NewRequest("GET", "/nil", nil))
	assert.Equal(t, 500, resp.Status)

	resp = c.roundTrip(protocol.NewRequest("POST", "/echo", []byte("still alive")))
	assert.Equal(t, "still alive", resp.String())
}

func TestServer_ConnectionLimit(t *testing.T) {
	srv, addr, _ := startServer(t, server.Config{MaxConnections: 1}, echoRouter())

	first := dial(t, addr)
	resp := first.roundTrip(protocol.NewRequest("POST", "/echo", []byte("hold")))
	require.Equal(t, 200, resp.Status)

	second := dial(t, addr)
	resp = second.read()
	assert.Equal(t, 503, resp.Status)
	assert.Equal(t, "Server busy", resp.String())
	second.assertClosed()

	assert.Equal(t, int64(1), srv.Stats().Rejected)
	assert.Equal(t, int64(1), srv.Stats().Active)

	require.NoError(t, first.nc.Close())
	assert.Eventually(t, func() bool {
		return srv.Stats().Active == 0
	}, 2*time.Second, 10*time.Millisecond)

	third := dial(t, addr)
	resp = third.roundTrip(protocol.NewRequest("POST", "/echo", []byte("free again")))
	assert.Equal(t, "free again", resp.String())
	assert.Equal(t, int64(3), srv.Stats().Total)
}

func TestServer_IdleTimeout(t *testing.T) {
	_, addr, _ := startServer(t, server.Config{IdleTimeout: 100 * time.Millisecond}, echoRouter())
	c := dial(t, addr)

	resp := c.roundTrip(protocol.NewRequest("POST", "/echo", []byte("x")))
	require.Equal(t, 200, resp.Status)

	start := time.Now()
	c.assertClosed()
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestServer_Shutdown(t *testing.T) {
	srv, addr, errCh := startServer(t, server.Config{}, echoRouter())

	idle := dial(t, addr)
	resp := idle.roundTrip(protocol.NewRequest("POST", "/echo", []byte("x")))
	require.Equal(t, 200, resp.Status)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, server.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}

	idle.assertClosed()
	assert.Equal(t, int64(0), srv.Stats().Active)

	_, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	assert.Error(t, err)
}

func TestServer_ShutdownWaitsForActiveRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	r := server.NewRouter()
	r.Handle("GET", "/slow", func(context.Context, *protocol.Request) *protocol.Response {
		close(started)
		<-release
		return protocol.Text(200, "done")
	})

	srv, addr, _ := startServer(t, server.Config{}, r)
	c := dial(t, addr)
	require.NoError(t, protocol.NewRequest("GET", "/slow", nil).Write(c.nc))
	<-started

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- srv.Shutdown(ctx)
	}()

	select {
	case <-shutdownErr:
		t.Fatal("Shutdown returned while a request was in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)

	resp := c.read()
	assert.Equal(t, "done", resp.String())
	c.assertClosed()
	assert.NoError(t, <-shutdownErr)
}

func TestServer_ShutdownTimeout(t *testing.T) {
	started := make(chan struct{})

	r := server.NewRouter()
	r.Handle("GET", "/stuck", func(ctx context.Context, _ *protocol.Request) *protocol.Response {
		close(started)
		<-ctx.Done()
		return protocol.Text(200, "cancelled")
	})

	srv, addr, _ := startServer(t, server.Config{}, r)
	c := dial(t, addr)
	require.NoError(t, protocol.NewRequest("GET", "/stuck", nil).Write(c.nc))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := srv.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.assertClosed()
}

func TestServer_ServeAfterShutdown(t *testing.T) {
	srv := server.New(server.Config{}, echoRouter())
	require.NoError(t, srv.Shutdown(context.Background()))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(l), server.ErrServerClosed)
}
