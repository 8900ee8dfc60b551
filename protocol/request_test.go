package protocol_test

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/sagarc03/warden"
	"github.com/sagarc03/warden/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest_Basic(t *testing.T) {
	body := `{"username":"alice","password":"pw1"}`
	raw := "POST /login HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Content-Length: 37\r\n" +
		"\r\n" +
		body

	req, err := protocol.ParseRequest([]byte(raw), 0)
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/login", req.Path)
	assert.Equal(t, "HTTP/1.1", req.Version)
	assert.Equal(t, []protocol.Header{
		{Name: "Host", Value: "localhost"},
		{Name: "Content-Length", Value: "37"},
	}, req.Headers)
	assert.Equal(t, body, string(req.Body))
}

func TestRequest_HeaderCaseInsensitive(t *testing.T) {
	raw := "GET /check_cookie HTTP/1.1\r\nX-Trace: a\r\nx-trace: b\r\n\r\n"

	req, err := protocol.ParseRequest([]byte(raw), 0)
	require.NoError(t, err)

	v, ok := req.Header("X-TRACE")
	assert.True(t, ok)
	assert.Equal(t, "a", v, "first match wins")
	assert.Len(t, req.Headers, 2, "duplicates are kept")

	_, ok = req.Header("Missing")
	assert.False(t, ok)
}

func TestParseRequest_Cookies(t *testing.T) {
	raw := "GET /check_cookie HTTP/1.1\r\n" +
		"Cookie: session_id=abc; theme=dark; broken; key=a=b\r\n" +
		"cookie: extra=1\r\n" +
		"\r\n"

	req, err := protocol.ParseRequest([]byte(raw), 0)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"session_id": "abc",
		"theme":      "dark",
		"key":        "a=b",
		"extra":      "1",
	}, req.Cookies)
	assert.Equal(t, "abc", req.Cookie("session_id"))
	assert.Equal(t, "", req.Cookie("missing"))
}

func TestParseRequest_NoBody(t *testing.T) {
	req, err := protocol.ParseRequest([]byte("GET /check_cookie HTTP/1.1\r\n\r\n"), 0)
	require.NoError(t, err)
	assert.Empty(t, req.Body)
	assert.Empty(t, req.Cookies)
}

func TestParseRequest_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "two tokens", raw: "GET /\r\n\r\n"},
		{name: "four tokens", raw: "GET / HTTP/1.1 extra\r\n\r\n"},
		{name: "double space", raw: "GET  / HTTP/1.1\r\n\r\n"},
		{name: "header without colon", raw: "GET / HTTP/1.1\r\nBadHeader\r\n\r\n"},
		{name: "header with empty name", raw: "GET / HTTP/1.1\r\n: value\r\n\r\n"},
		{name: "negative content length", raw: "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n"},
		{name: "non numeric content length", raw: "POST / HTTP/1.1\r\nContent-Length: ten\r\n\r\n"},
		{name: "conflicting content length", raw: "POST / HTTP/1.1\r\nContent-Length: 1\r\nContent-Length: 2\r\n\r\nab"},
		{name: "truncated body", raw: "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc"},
		{name: "no blank line", raw: "GET / HTTP/1.1\r\nHost: x\r\n"},
		{name: "unterminated request line", raw: "GET / HTTP/1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.ParseRequest([]byte(tt.raw), 0)
			assert.ErrorIs(t, err, warden.ErrMalformedRequest)
		})
	}
}

func TestParseRequest_BodyTooLarge(t *testing.T) {
	raw := "POST /register HTTP/1.1\r\nContent-Length: 11\r\n\r\nhello world"

	_, err := protocol.ParseRequest([]byte(raw), 10)
	assert.ErrorIs(t, err, warden.ErrBodyTooLarge)

	req, err := protocol.ParseRequest([]byte(raw), 11)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(req.Body))
}

func TestReadRequest_LineTooLong(t *testing.T) {
	raw := "GET /" + strings.Repeat("a", protocol.MaxLineBytes) + " HTTP/1.1\r\n\r\n"

	_, err := protocol.ParseRequest([]byte(raw), 0)
	assert.ErrorIs(t, err, warden.ErrMalformedRequest)
}

func TestReadRequest_TooManyHeaders(t *testing.T) {
	var b strings.Builder
	b.WriteString("GET / HTTP/1.1\r\n")
	for range protocol.MaxHeaders + 1 {
		b.WriteString("X-A: b\r\n")
	}
	b.WriteString("\r\n")

	_, err := protocol.ParseRequest([]byte(b.String()), 0)
	assert.ErrorIs(t, err, warden.ErrMalformedRequest)
}

func TestReadRequest_EOF(t *testing.T) {
	_, err := protocol.ReadRequest(bufio.NewReader(strings.NewReader("")), 0)
	assert.Equal(t, io.EOF, err)
}

// chunkedReader returns at most n bytes per Read, like a socket delivering
// a message in several segments.
type chunkedReader struct {
	data []byte
	n    int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	size := min(r.n, len(p), len(r.data))
	copy(p, r.data[:size])
	r.data = r.data[size:]
	return size, nil
}

func TestReadRequest_BinaryBodySplitAcrossReads(t *testing.T) {
	body := bytes.Repeat([]byte{0x00, '\r', '\n', 0xff, '\r', '\n', '\r', '\n'}, 512)
	var raw bytes.Buffer
	raw.WriteString("POST /upload HTTP/1.1\r\nContent-Length: 4096\r\n\r\n")
	raw.Write(body)

	br := bufio.NewReader(&chunkedReader{data: raw.Bytes(), n: 7})
	req, err := protocol.ReadRequest(br, 0)
	require.NoError(t, err)
	assert.Equal(t, body, req.Body, "body bytes survive unchanged")
}

func TestReadRequest_Sequential(t *testing.T) {
	raw := "POST /a HTTP/1.1\r\nContent-Length: 3\r\n\r\none" +
		"GET /b HTTP/1.1\r\n\r\n" +
		"POST /c HTTP/1.1\r\nContent-Length: 5\r\n\r\nthree"

	br := bufio.NewReader(strings.NewReader(raw))

	var paths, bodies []string
	for {
		req, err := protocol.ReadRequest(br, 0)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		paths = append(paths, req.Path)
		bodies = append(bodies, string(req.Body))
	}

	assert.Equal(t, []string{"/a", "/b", "/c"}, paths)
	assert.Equal(t, []string{"one", "", "three"}, bodies)
}

func TestReadRequest_MultiLineJSONBody(t *testing.T) {
	body := "{\r\n  \"username\": \"alice\",\r\n  \"password\": \"pw1\"\r\n}"
	raw := "POST /register HTTP/1.1\r\nContent-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	req, err := protocol.ParseRequest([]byte(raw), 0)
	require.NoError(t, err)
	assert.Equal(t, body, string(req.Body))
}

func TestRequest_WriteRoundTrip(t *testing.T) {
	req := protocol.NewRequest("PUT", "/privilege", []byte(`{"username":"alice"}`))
	req.AddHeader("Cookie", "session_id=abc")

	var buf bytes.Buffer
	require.NoError(t, req.Write(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "PUT /privilege HTTP/1.1\r\nCookie: session_id=abc\r\nContent-Length: 20\r\n\r\n"))

	got, err := protocol.ParseRequest(buf.Bytes(), 0)
	require.NoError(t, err)
	assert.Equal(t, req.Body, got.Body)
	assert.Equal(t, "abc", got.Cookie("session_id"))
}
