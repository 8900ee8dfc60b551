package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"net"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/sagarc03/warden/protocol"
)

const (
	// DefaultTimeout bounds one request when the context carries no deadline.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodyBytes bounds response bodies. It is larger than the
	// server's default image size limit.
	DefaultMaxBodyBytes int64 = 64 << 20

	sessionCookie = "session_id"
)

// Client talks to a warden server over one persistent TCP connection.
// It remembers cookies set by the server and sends them back on every
// request. A Client is safe for concurrent use; requests are serialized.
type Client struct {
	address string
	timeout time.Duration
	maxBody int64
	dialer  net.Dialer

	mu      sync.Mutex
	conn    net.Conn
	br      *bufio.Reader
	cookies map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout used when the context has no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithMaxBodyBytes sets the largest response body the client accepts.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) {
		c.maxBody = n
	}
}

// New creates a new Client with the given config and options.
// No connection is made until the first request.
func New(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}

	cfg = cfg.WithDefaults()

	c := &Client{
		address: cfg.Address,
		timeout: DefaultTimeout,
		maxBody: DefaultMaxBodyBytes,
		cookies: make(map[string]string),
	}
	maps.Copy(c.cookies, cfg.Cookies)

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Address returns the server address.
func (c *Client) Address() string {
	return c.address
}

// Cookies returns a copy of the cookie jar.
func (c *Client) Cookies() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.cookies)
}

// SetCookies replaces the cookie jar.
func (c *Client) SetCookies(cookies map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies = make(map[string]string, len(cookies))
	maps.Copy(c.cookies, cookies)
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeConn()
}

// Do sends req and reads one response. The cookie jar is attached as a
// Cookie header and updated from Set-Cookie headers in the response; a
// Max-Age of 0 removes the cookie.
//
// When a reused connection turns out to have been closed by the server
// before any response byte arrived, Do dials again and resends once.
func (c *Client) Do(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cookies) > 0 {
		req.AddHeader("Cookie", formatCookies(c.cookies))
	}

	resp, reused, err := c.roundTrip(ctx, req)
	if err != nil && reused && isStale(err) && ctx.Err() == nil {
		resp, _, err = c.roundTrip(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}

	c.applySetCookies(resp)
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, bool, error) {
	reused := c.conn != nil
	if !reused {
		conn, err := c.dialer.DialContext(ctx, "tcp", c.address)
		if err != nil {
			return nil, false, fmt.Errorf("dial %s: %w", c.address, err)
		}
		c.conn = conn
		c.br = bufio.NewReader(conn)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		_ = c.closeConn()
		return nil, reused, fmt.Errorf("set deadline: %w", err)
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := req.Write(c.conn); err != nil {
		_ = c.closeConn()
		return nil, reused, c.contextError(ctx, fmt.Errorf("write request: %w", err))
	}

	resp, err := protocol.ReadResponse(c.br, c.maxBody)
	if err != nil {
		_ = c.closeConn()
		return nil, reused, c.contextError(ctx, fmt.Errorf("read response: %w", err))
	}

	return resp, reused, nil
}

func (c *Client) contextError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Join(ctxErr, err)
	}
	return err
}

func (c *Client) closeConn() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.br = nil
	return err
}

func (c *Client) applySetCookies(resp *protocol.Response) {
	for _, v := range resp.HeaderValues("Set-Cookie") {
		cookie, err := protocol.ParseSetCookie(v)
		if err != nil {
			continue
		}
		if cookie.MaxAge == 0 {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = cookie.Value
	}
}

// isStale reports whether err means the server closed an idle connection.
func isStale(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed)
}

// formatCookies joins the jar into one Cookie header value with a stable order.
func formatCookies(cookies map[string]string) string {
	var out []byte
	for _, name := range slices.Sorted(maps.Keys(cookies)) {
		if len(out) > 0 {
			out = append(out, "; "...)
		}
		out = append(out, name...)
		out = append(out, '=')
		out = append(out, cookies[name]...)
	}
	return string(out)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userRequest struct {
	Username string `json:"username"`
}

type imageRequest struct {
	URL string `json:"url"`
}

func (c *Client) send(ctx context.Context, method, path string, payload any) (*protocol.Response, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
	}

	req := protocol.NewRequest(method, path, body)
	if body != nil {
		req.AddHeader("Content-Type", "application/json")
	}
	return c.Do(ctx, req)
}

// expect turns a response into a Result, or a ResponseError when the status
// is not 200.
func expect(command string, resp *protocol.Response) (*Result, error) {
	if resp.Status != protocol.StatusOK {
		return nil, &ResponseError{Status: resp.Status, Body: resp.String()}
	}
	return &Result{Command: command, Status: resp.Status, Message: resp.String()}, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, username, password string) (*Result, error) {
	if username == "" {
		return nil, fmt.Errorf("register: %w", ErrUsernameRequired)
	}
	resp, err := c.send(ctx, "POST", "/register", credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return expect("register", resp)
}

// Login authenticates and stores the session cookie in the jar.
func (c *Client) Login(ctx context.Context, username, password string) (*Result, error) {
	if username == "" {
		return nil, fmt.Errorf("login: %w", ErrUsernameRequired)
	}
	resp, err := c.send(ctx, "POST", "/login", credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return expect("login", resp)
}

// CheckSession asks the server whether the session cookie is still valid.
func (c *Client) CheckSession(ctx context.Context) (*Result, error) {
	resp, err := c.send(ctx, "GET", "/check_cookie", nil)
	if err != nil {
		return nil, err
	}
	return expect("check", resp)
}

// Logout ends the session. The server expires the session cookie.
func (c *Client) Logout(ctx context.Context) (*Result, error) {
	resp, err := c.send(ctx, "POST", "/logout", nil)
	if err != nil {
		return nil, err
	}
	// A logout without a session still clears any local copy.
	c.forget(sessionCookie)
	return expect("logout", resp)
}

// Upgrade requests a privilege grant for username and stores the key cookie.
func (c *Client) Upgrade(ctx context.Context, username string) (*Result, error) {
	if username == "" {
		return nil, fmt.Errorf("upgrade: %w", ErrUsernameRequired)
	}
	resp, err := c.send(ctx, "PUT", "/privilege", userRequest{Username: username})
	if err != nil {
		return nil, err
	}
	return expect("upgrade", resp)
}

// Authorized reports whether username holds a valid privilege grant.
func (c *Client) Authorized(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, fmt.Errorf("authorized: %w", ErrUsernameRequired)
	}
	resp, err := c.send(ctx, "HEAD", "/images", userRequest{Username: username})
	if err != nil {
		return false, err
	}

	switch resp.Status {
	case protocol.StatusOK:
		return true, nil
	case protocol.StatusUnauthorized:
		return false, nil
	default:
		return false, &ResponseError{Status: resp.Status, Body: resp.String()}
	}
}

// FetchImage downloads the image at url. The name comes from the
// Content-Disposition filename, falling back to the base of url.
func (c *Client) FetchImage(ctx context.Context, url string) (*Image, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch: %w", ErrURLRequired)
	}
	resp, err := c.send(ctx, "GET", "/images", imageRequest{URL: url})
	if err != nil {
		return nil, err
	}
	if resp.Status != protocol.StatusOK {
		return nil, &ResponseError{Status: resp.Status, Body: resp.String()}
	}

	img := &Image{Name: filepath.Base(url), Data: resp.Body()}
	img.ContentType, _ = resp.Header("Content-Type")
	if disposition, ok := resp.Header("Content-Disposition"); ok {
		if _, params, parseErr := mime.ParseMediaType(disposition); parseErr == nil && params["filename"] != "" {
			img.Name = params["filename"]
		}
	}
	return img, nil
}

// Fetch downloads an image and writes it to opts.LocalPath. An empty
// LocalPath uses the base of the server's filename in the working
// directory; "-" writes to stdout.
func (c *Client) Fetch(ctx context.Context, opts FetchOptions, stdout io.Writer) (*FetchResult, error) {
	img, err := c.FetchImage(ctx, opts.URL)
	if err != nil {
		return nil, err
	}

	result := &FetchResult{
		URL:         opts.URL,
		ContentType: img.ContentType,
		Size:        int64(len(img.Data)),
	}

	if opts.LocalPath == "-" {
		result.LocalPath = "-"
		if _, err := stdout.Write(img.Data); err != nil {
			return nil, fmt.Errorf("write stdout: %w", err)
		}
		return result, nil
	}

	localPath := opts.LocalPath
	if localPath == "" {
		localPath = filepath.Base(img.Name)
	}
	result.LocalPath = localPath

	dir := filepath.Dir(localPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	if err := os.WriteFile(localPath, img.Data, 0o644); err != nil { //#nosec G306 -- downloaded images are not secret
		return nil, fmt.Errorf("write file: %w", err)
	}

	return result, nil
}

func (c *Client) forget(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cookies, name)
}
