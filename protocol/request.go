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

const (
	// MaxLineBytes bounds the request line and each header line.
	MaxLineBytes = 8 << 10
	// MaxHeaders bounds the number of header lines in one message.
	MaxHeaders = 100
	// DefaultMaxBodyBytes is the body limit used when none is configured.
	DefaultMaxBodyBytes int64 = 1 << 20
)

// Header is one header line. Messages keep headers as an ordered list.
type Header struct {
	Name  string
	Value string
}

// Request is a parsed request.
type Request struct {
	Method  string
	Path    string
	Version string
	Headers []Header
	Cookies map[string]string
	Body    []byte
}

// NewRequest returns a request with the default version and given body.
func NewRequest(method, path string, body []byte) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Version: "HTTP/1.1",
		Cookies: map[string]string{},
		Body:    body,
	}
}

// Header returns the value of the first header matching name, case-insensitively.
func (r *Request) Header(name string) (string, bool) {
	return lookupHeader(r.Headers, name)
}

// Cookie returns the named cookie value, or "" when absent.
func (r *Request) Cookie(name string) string {
	return r.Cookies[name]
}

// AddHeader appends a header line.
func (r *Request) AddHeader(name, value string) {
	r.Headers = append(r.Headers, Header{Name: name, Value: value})
}

// ReadRequest reads one request from br. It returns io.EOF if the stream ends
// before the first byte of a request.
//
// Error types returned:
//   - io.EOF: clean end of stream
//   - warden.ErrMalformedRequest: bad request line, header or Content-Length, or a truncated message
//   - warden.ErrBodyTooLarge: Content-Length above maxBody
func ReadRequest(br *bufio.Reader, maxBody int64) (*Request, error) {
	line, err := readLine(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}

	req, err := parseRequestLine(line)
	if err != nil {
		return nil, err
	}

	headers, err := readHeaders(br)
	if err != nil {
		return nil, err
	}
	req.Headers = headers
	req.Cookies = ParseCookies(headerValues(headers, "Cookie"))

	body, err := readBody(br, headers, maxBody)
	if err != nil {
		return nil, err
	}
	req.Body = body

	return req, nil
}

// ParseRequest parses a complete request held in memory with the same rules
// as ReadRequest.
func ParseRequest(buf []byte, maxBody int64) (*Request, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("parse request: %w: empty request", warden.ErrMalformedRequest)
	}
	return ReadRequest(bufio.NewReader(bytes.NewReader(buf)), maxBody)
}

// Write serializes the request. Content-Length is added from the body.
func (r *Request) Write(w io.Writer) error {
	var buf bytes.Buffer

	version := r.Version
	if version == "" {
		version = "HTTP/1.1"
	}
	fmt.Fprintf(&buf, "%s %s %s\r\n", r.Method, r.Path, version)

	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, "Content-Length") {
			continue
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, h.Value)
	}
	if len(r.Body) > 0 {
		fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(r.Body))
	}
	buf.WriteString("\r\n")
	buf.Write(r.Body)

	_, err := w.Write(buf.Bytes())
	return err
}

func parseRequestLine(line string) (*Request, error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("request line %q: %w", truncate(line), warden.ErrMalformedRequest)
	}
	return &Request{Method: parts[0], Path: parts[1], Version: parts[2]}, nil
}

// readLine reads one line of at most MaxLineBytes and strips the line ending.
func readLine(br *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxLineBytes {
			return "", fmt.Errorf("read line: %w: line exceeds %d bytes", warden.ErrMalformedRequest, MaxLineBytes)
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if len(line) == 0 {
				return "", io.EOF
			}
			return "", fmt.Errorf("read line: %w: %w", warden.ErrMalformedRequest, io.ErrUnexpectedEOF)
		}
		return "", err
	}

	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line), nil
}

func readHeaders(br *bufio.Reader) ([]Header, error) {
	var headers []Header
	for {
		line, err := readLine(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("read headers: %w: %w", warden.ErrMalformedRequest, io.ErrUnexpectedEOF)
			}
			return nil, err
		}
		if line == "" {
			return headers, nil
		}

		if len(headers) == MaxHeaders {
			return nil, fmt.Errorf("read headers: %w: more than %d headers", warden.ErrMalformedRequest, MaxHeaders)
		}

		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("header %q: %w", truncate(line), warden.ErrMalformedRequest)
		}

		headers = append(headers, Header{Name: name, Value: strings.TrimSpace(value)})
	}
}

// contentLength returns the declared body length, or 0 when no Content-Length
// header is present. Conflicting duplicates are malformed.
func contentLength(headers []Header) (int64, error) {
	values := headerValues(headers, "Content-Length")
	if len(values) == 0 {
		return 0, nil
	}

	n, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("content-length %q: %w", truncate(values[0]), warden.ErrMalformedRequest)
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return 0, fmt.Errorf("content-length: %w: conflicting values", warden.ErrMalformedRequest)
		}
	}

	return n, nil
}

func readBody(br *bufio.Reader, headers []Header, maxBody int64) ([]byte, error) {
	n, err := contentLength(headers)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	if n > maxBody {
		return nil, fmt.Errorf("read body: %w: %d bytes exceeds %d", warden.ErrBodyTooLarge, n, maxBody)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(br, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("read body: %w: %w", warden.ErrMalformedRequest, io.ErrUnexpectedEOF)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// ParseCookies parses Cookie header values into a map. Fragments are split
// on ";" and then on the first "="; fragments without "=" are skipped.
// Later duplicates win.
func ParseCookies(values []string) map[string]string {
	cookies := make(map[string]string)
	for _, v := range values {
		for _, fragment := range strings.Split(v, ";") {
			name, value, ok := strings.Cut(strings.TrimSpace(fragment), "=")
			if !ok || name == "" {
				continue
			}
			cookies[name] = value
		}
	}
	return cookies
}

func lookupHeader(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

func headerValues(headers []Header, name string) []string {
	var values []string
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			values = append(values, h.Value)
		}
	}
	return values
}

func truncate(s string) string {
	const maxLen = 64
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
