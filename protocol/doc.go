// Package protocol implements warden's HTTP-shaped wire format.
//
// A request is a CRLF-terminated request line of exactly three space-separated
// tokens, header lines up to the first empty line, and a body of exactly
// Content-Length bytes:
//
//	POST /login HTTP/1.1\r\n
//	Content-Length: 38\r\n
//	\r\n
//	{"username":"alice","password":"pw1"}
//
// Responses use the same framing and always carry Content-Length, so text and
// binary bodies share one reader. Header order is preserved on both sides.
//
// Only the subset warden uses is supported: no chunked transfer encoding,
// no header folding, no pipelining guarantees beyond reading requests in order.
package protocol
