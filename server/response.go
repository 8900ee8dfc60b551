package server

import (
	"errors"
	"log/slog"

	"github.com/sagarc03/warden"
	"github.com/sagarc03/warden/protocol"
)

// Status answers with the reason phrase of code as a text body.
func Status(code int) *protocol.Response {
	return protocol.Text(code, protocol.StatusText(code))
}

// ErrorResponse maps an error to its response. Routes with their own wording
// for a case (register, login, privilege, images) handle it before calling this.
//
//	ErrMalformedRequest, ErrInvalidInput -> 400
//	ErrUnauthorized                      -> 401
//	ErrNotFound                          -> 404
//	ErrConflict                          -> 409
//	ErrBodyTooLarge                      -> 413
//	anything else                        -> 500, logged
func ErrorResponse(err error) *protocol.Response {
	switch {
	case errors.Is(err, warden.ErrMalformedRequest), errors.Is(err, warden.ErrInvalidInput):
		return Status(protocol.StatusBadRequest)
	case errors.Is(err, warden.ErrUnauthorized):
		return Status(protocol.StatusUnauthorized)
	case errors.Is(err, warden.ErrNotFound):
		return Status(protocol.StatusNotFound)
	case errors.Is(err, warden.ErrConflict):
		return Status(protocol.StatusConflict)
	case errors.Is(err, warden.ErrBodyTooLarge):
		return Status(protocol.StatusPayloadTooLarge)
	default:
		slog.Error("internal error", "error", err)
		return Status(protocol.StatusInternalServerError)
	}
}
