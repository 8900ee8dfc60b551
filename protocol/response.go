package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sagarc03/warden"
)

// Status codes emitted by warden.
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusNotFound            = 404
	StatusConflict            = 409
	StatusPayloadTooLarge     = 413
	StatusInternalServerError = 500
	StatusServiceUnavailable  = 503
)

var statusText = map[int]string{
	StatusOK:                  "OK",
	StatusBadRequest:          "Bad Request",
	StatusUnauthorized:        "Unauthorized",
	StatusNotFound:            "Not Found",
	StatusConflict:            "Conflict",
	StatusPayloadTooLarge:     "Payload Too Large",
	StatusInternalServerError: "Internal Server Error",
	StatusServiceUnavailable:  "Service Unavailable",
}

// StatusText returns the reason phrase for code, or "Unknown".
func StatusText(code int) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown"
}

// BodyKind tells how a response body should be treated.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyText
	BodyBinary
)

func (k BodyKind) String() string {
	switch k {
	case BodyText:
		return "text"
	case BodyBinary:
		return "binary"
	default:
		return "none"
	}
}

const textContentType = "text/plain; charset=utf-8"

// Response is a status, ordered headers and one body variant.
type Response struct {
	Status  int
	Headers []Header
	kind    BodyKind
	body    []byte
}

// Text returns a response with a UTF-8 text body.
func Text(status int, text string) *Response {
	return &Response{
		Status:  status,
		Headers: []Header{{Name: "Content-Type", Value: textContentType}},
		kind:    BodyText,
		body:    []byte(text),
	}
}

// Binary returns a response carrying data unchanged.
func Binary(status int, contentType string, data []byte) *Response {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Response{
		Status:  status,
		Headers: []Header{{Name: "Content-Type", Value: contentType}},
		kind:    BodyBinary,
		body:    data,
	}
}

// Empty returns a response without a body.
func Empty(status int) *Response {
	return &Response{Status: status, kind: BodyNone}
}

// AddHeader appends a header and returns r for chaining.
func (r *Response) AddHeader(name, value string) *Response {
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
	return r
}

// SetCookie appends a Set-Cookie header.
func (r *Response) SetCookie(c Cookie) *Response {
	return r.AddHeader("Set-Cookie", c.String())
}

// Header returns the first header matching name, case-insensitively.
func (r *Response) Header(name string) (string, bool) {
	return lookupHeader(r.Headers, name)
}

// HeaderValues returns every value of the named header in order.
func (r *Response) HeaderValues(name string) []string {
	return headerValues(r.Headers, name)
}

func (r *Response) Kind() BodyKind {
	return r.kind
}

func (r *Response) Body() []byte {
	return r.body
}

// String returns the body as text. Binary bodies are returned as is.
func (r *Response) String() string {
	return string(r.body)
}

// WithoutBody drops the body while keeping status and headers, as a HEAD
// response needs. Content-Length still reports zero.
func (r *Response) WithoutBody() *Response {
	return &Response{Status: r.Status, Headers: r.Headers, kind: BodyNone}
}

// WriteTo writes the status line, headers, Content-Length and body.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", r.Status, StatusText(r.Status))

	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, "Content-Length") {
			continue
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, h.Value)
	}
	fmt.Fprintf(&buf, "Content-Length: %d\r\n\r\n", len(r.body))

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return int64(n), err
	}

	if len(r.body) == 0 {
		return int64(n), nil
	}

	m, err := w.Write(r.body)
	return int64(n + m), err
}

// ReadResponse reads one response from br, as written by WriteTo.
// The body kind is inferred from Content-Type.
func ReadResponse(br *bufio.Reader, maxBody int64) (*Response, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}

	version, rest, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(version, "HTTP/") {
		return nil, fmt.Errorf("status line %q: %w", truncate(line), warden.ErrMalformedRequest)
	}
	codeText, _, _ := strings.Cut(rest, " ")
	code, err := strconv.Atoi(codeText)
	if err != nil {
		return nil, fmt.Errorf("status line %q: %w", truncate(line), warden.ErrMalformedRequest)
	}

	headers, err := readHeaders(br)
	if err != nil {
		return nil, err
	}

	body, err := readBody(br, headers, maxBody)
	if err != nil {
		return nil, err
	}

	resp := &Response{Status: code, Headers: headers, body: body}
	switch contentType, _ := lookupHeader(headers, "Content-Type"); {
	case len(body) == 0:
		resp.kind = BodyNone
	case strings.HasPrefix(contentType, "text/"):
		resp.kind = BodyText
	default:
		resp.kind = BodyBinary
	}

	return resp, nil
}

// Cookie is a Set-Cookie value.
type Cookie struct {
	Name     string
	Value    string
	MaxAge   int
	HttpOnly bool
}

// String formats the cookie as name=value[; HttpOnly]; Max-Age=n.
func (c Cookie) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(c.Value)
	if c.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	b.WriteString("; Max-Age=")
	b.WriteString(strconv.Itoa(max(c.MaxAge, 0)))
	return b.String()
}

// ParseSetCookie parses a Set-Cookie header value. Unknown attributes are ignored.
func ParseSetCookie(value string) (Cookie, error) {
	parts := strings.Split(value, ";")
	name, val, ok := strings.Cut(strings.TrimSpace(parts[0]), "=")
	if !ok || name == "" {
		return Cookie{}, errors.New("parse set-cookie: missing name=value")
	}

	c := Cookie{Name: name, Value: val, MaxAge: -1}
	for _, attr := range parts[1:] {
		k, v, _ := strings.Cut(strings.TrimSpace(attr), "=")
		switch {
		case strings.EqualFold(k, "HttpOnly"):
			c.HttpOnly = true
		case strings.EqualFold(k, "Max-Age"):
			n, err := strconv.Atoi(v)
			if err != nil {
				return Cookie{}, fmt.Errorf("parse set-cookie: max-age %q: %w", v, err)
			}
			c.MaxAge = n
		}
	}
	return c, nil
}
