package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/sagarc03/warden/server"
)

// ConnectionStats reports protocol server counters. *server.Server implements it.
type ConnectionStats interface {
	Stats() server.Stats
}

// SessionCounter reports the number of held sessions.
type SessionCounter interface {
	Len() int
}

// UserCounter reports the number of registered users. Every warden.UserRepo implements it.
type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

// RouteLister lists protocol routes. *server.Router implements it.
type RouteLister interface {
	Routes() []string
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	CORS CORSConfig
}

// Sources are the components the admin API reports on.
type Sources struct {
	Connections ConnectionStats
	Sessions    SessionCounter
	Users       UserCounter
	Routes      RouteLister
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	server.Stats
	Sessions int      `json:"sessions"`
	Users    int      `json:"users"`
	Routes   []string `json:"routes"`
}

// Handler serves the admin API.
type Handler struct {
	config  HandlerConfig
	sources Sources
}

// NewHandler creates a new Handler with the given configuration and sources.
func NewHandler(config *HandlerConfig, sources Sources) *Handler {
	return &Handler{
		config:  *config,
		sources: sources,
	}
}

// Router returns the admin routes:
//
//	GET /healthz  liveness
//	GET /stats    connection, session and user counters
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RecoverMiddleware)
	r.Use(LoggingMiddleware)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(writeNotFound)
	r.MethodNotAllowed(writeMethodNotAllowed)

	r.Get("/healthz", h.handleHealth)
	r.Get("/stats", h.handleStats)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Routes: []string{}}

	if h.sources.Connections != nil {
		resp.Stats = h.sources.Connections.Stats()
	}
	if h.sources.Sessions != nil {
		resp.Sessions = h.sources.Sessions.Len()
	}
	if h.sources.Users != nil {
		n, err := h.sources.Users.Count(r.Context())
		if err != nil {
			HandleError(w, fmt.Errorf("count users: %w", err))
			return
		}
		resp.Users = n
	}
	if h.sources.Routes != nil {
		resp.Routes = h.sources.Routes.Routes()
	}

	_ = WriteJSON(w, http.StatusOK, resp)
}
