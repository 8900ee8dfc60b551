package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sagarc03/warden"
	"github.com/sagarc03/warden/protocol"
)

// Cookie names.
const (
	SessionCookie = "session_id"
	KeyCookie     = "key"
)

// Response bodies with fixed wording.
const (
	BodyRegisterSuccess   = "REGISTER_SUCCESS"
	BodyRegisterFailed    = "REGISTER_FAILED"
	BodyUserExists        = "User already exists"
	BodyLoginSuccess      = "LOGIN_SUCCESS"
	BodyLoginFailed       = "LOGIN_FAILED"
	BodyLogoutSuccess     = "LOGOUT_SUCCESS"
	BodyNoValidSession    = "No valid session"
	BodyPrivilegeChanged  = "PRIVILEGE_CHANGED"
	BodyPrivilegeConflict = "PRIVILEGE_ALREADY_CHANGED"
	BodyUserNotFound      = "User not found"
	BodyImageNotFound     = "Image not found"
)

type Authenticator interface {
	Register(ctx context.Context, id, password string) error
	Login(ctx context.Context, id, password string) (warden.Session, error)
	CheckSession(ctx context.Context, sessionID string) (warden.Session, error)
	Logout(ctx context.Context, sessionID string) error
	SessionMaxAge(sess warden.Session) int
}

type Privileges interface {
	CheckAuthorized(ctx context.Context, id string) error
	Upgrade(ctx context.Context, id string) (warden.Grant, error)
}

type ImageFetcher interface {
	FetchImage(ctx context.Context, name, token string) (warden.Image, error)
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type usernameRequest struct {
	Username string `json:"username" validate:"required"`
}

type imageRequest struct {
	URL string `json:"url" validate:"required"`
}

// Handler turns requests into service calls.
type Handler struct {
	auth      Authenticator
	privilege Privileges
	content   ImageFetcher
	validate  *validator.Validate
}

func NewHandler(auth Authenticator, privilege Privileges, content ImageFetcher) *Handler {
	return &Handler{
		auth:      auth,
		privilege: privilege,
		content:   content,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router returns the route table.
func (h *Handler) Router() *Router {
	r := NewRouter()
	r.Handle("POST", "/register", h.handleRegister)
	r.Handle("POST", "/login", h.handleLogin)
	r.Handle("GET", "/check_cookie", h.handleCheckCookie)
	r.Handle("POST", "/logout", h.handleLogout)
	r.Handle("PUT", "/privilege", h.handleUpgrade)
	r.Handle("HEAD", "/images", h.handleAuthorized)
	r.Handle("GET", "/images", h.handleFetchImage)
	return r
}

// decode unmarshals the JSON body into v. A body that is not valid JSON is
// ErrMalformedRequest; a missing required field is ErrInvalidInput.
func (h *Handler) decode(req *protocol.Request, v any) error {
	if err := json.Unmarshal(req.Body, v); err != nil {
		return errors.Join(warden.ErrMalformedRequest, err)
	}
	if err := h.validate.Struct(v); err != nil {
		return errors.Join(warden.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) handleRegister(ctx context.Context, req *protocol.Request) *protocol.Response {
	var body credentialsRequest
	if err := h.decode(req, &body); err != nil {
		return ErrorResponse(err)
	}

	err := h.auth.Register(ctx, body.Username, body.Password)
	if err == nil {
		return protocol.Text(protocol.StatusOK, BodyRegisterSuccess)
	}

	var perr *warden.PolicyError
	switch {
	case errors.Is(err, warden.ErrConflict):
		return protocol.Text(protocol.StatusBadRequest, BodyRegisterFailed+": "+BodyUserExists)
	case errors.As(err, &perr):
		return protocol.Text(protocol.StatusBadRequest, BodyRegisterFailed+": "+perr.Reason)
	case errors.Is(err, warden.ErrInvalidInput):
		return protocol.Text(protocol.StatusBadRequest, BodyRegisterFailed)
	default:
		return ErrorResponse(err)
	}
}

func (h *Handler) handleLogin(ctx context.Context, req *protocol.Request) *protocol.Response {
	var body credentialsRequest
	if err := h.decode(req, &body); err != nil {
		if errors.Is(err, warden.ErrInvalidInput) {
			return loginFailed()
		}
		return ErrorResponse(err)
	}

	sess, err := h.auth.Login(ctx, body.Username, body.Password)
	if err != nil {
		if errors.Is(err, warden.ErrUnauthorized) {
			slog.Debug("login failed", "user", body.Username)
			return loginFailed()
		}
		return ErrorResponse(err)
	}

	return protocol.Text(protocol.StatusOK, BodyLoginSuccess).SetCookie(protocol.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		MaxAge:   h.auth.SessionMaxAge(sess),
		HttpOnly: true,
	})
}

func loginFailed() *protocol.Response {
	return protocol.Text(protocol.StatusUnauthorized, BodyLoginFailed)
}

func (h *Handler) handleCheckCookie(ctx context.Context, req *protocol.Request) *protocol.Response {
	sess, err := h.auth.CheckSession(ctx, req.Cookie(SessionCookie))
	if err != nil {
		if errors.Is(err, warden.ErrUnauthorized) {
			return protocol.Text(protocol.StatusUnauthorized, BodyNoValidSession)
		}
		return ErrorResponse(err)
	}
	return protocol.Text(protocol.StatusOK, "Valid session for "+sess.UserID)
}

func (h *Handler) handleLogout(ctx context.Context, req *protocol.Request) *protocol.Response {
	if err := h.auth.Logout(ctx, req.Cookie(SessionCookie)); err != nil {
		return ErrorResponse(err)
	}
	return protocol.Text(protocol.StatusOK, BodyLogoutSuccess).SetCookie(protocol.Cookie{
		Name:     SessionCookie,
		HttpOnly: true,
	})
}

func (h *Handler) handleUpgrade(ctx context.Context, req *protocol.Request) *protocol.Response {
	var body usernameRequest
	if err := h.decode(req, &body); err != nil {
		return ErrorResponse(err)
	}

	grant, err := h.privilege.Upgrade(ctx, body.Username)
	if err != nil {
		switch {
		case errors.Is(err, warden.ErrConflict):
			return protocol.Text(protocol.StatusConflict, BodyPrivilegeConflict)
		case errors.Is(err, warden.ErrNotFound):
			return protocol.Text(protocol.StatusNotFound, BodyUserNotFound)
		default:
			return ErrorResponse(err)
		}
	}

	slog.Info("privilege granted", "user", grant.UserID, "expires_at", grant.ExpiresAt)

	return protocol.Text(protocol.StatusOK, BodyPrivilegeChanged).SetCookie(protocol.Cookie{
		Name:   KeyCookie,
		Value:  grant.Token,
		MaxAge: grant.MaxAge(),
	})
}

// handleAuthorized answers HEAD /images. The connection drops the body.
func (h *Handler) handleAuthorized(ctx context.Context, req *protocol.Request) *protocol.Response {
	var body usernameRequest
	if err := h.decode(req, &body); err != nil {
		return ErrorResponse(err)
	}

	if err := h.privilege.CheckAuthorized(ctx, body.Username); err != nil {
		return ErrorResponse(err)
	}
	return Status(protocol.StatusOK)
}

func (h *Handler) handleFetchImage(ctx context.Context, req *protocol.Request) *protocol.Response {
	var body imageRequest
	if err := h.decode(req, &body); err != nil {
		return ErrorResponse(err)
	}

	img, err := h.content.FetchImage(ctx, body.URL, req.Cookie(KeyCookie))
	if err != nil {
		if errors.Is(err, warden.ErrNotFound) {
			return protocol.Text(protocol.StatusNotFound, BodyImageNotFound)
		}
		return ErrorResponse(err)
	}

	return protocol.Binary(protocol.StatusOK, img.ContentType, img.Data).
		AddHeader("Content-Disposition", contentDisposition(img.Name))
}

func contentDisposition(name string) string {
	name = strings.ReplaceAll(name, `\`, `\\`)
	name = strings.ReplaceAll(name, `"`, `\"`)
	return `attachment; filename="` + name + `"`
}
