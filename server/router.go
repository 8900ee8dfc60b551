package server

import (
	"context"
	"sort"

	"github.com/sagarc03/warden/protocol"
)

// HandlerFunc answers one request. It must always return a response.
type HandlerFunc func(ctx context.Context, req *protocol.Request) *protocol.Response

type route struct {
	method string
	path   string
}

// Router dispatches on the exact (method, path) pair. Paths are not
// normalized and query strings are not stripped.
type Router struct {
	routes map[route]HandlerFunc
}

func NewRouter() *Router {
	return &Router{routes: make(map[route]HandlerFunc)}
}

// Handle registers h for method and path, replacing any earlier handler.
func (r *Router) Handle(method, path string, h HandlerFunc) {
	r.routes[route{method: method, path: path}] = h
}

// Lookup returns the handler registered for method and path.
func (r *Router) Lookup(method, path string) (HandlerFunc, bool) {
	h, ok := r.routes[route{method: method, path: path}]
	return h, ok
}

// Dispatch runs the matching handler, or answers 404 "Page not found".
func (r *Router) Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	h, ok := r.Lookup(req.Method, req.Path)
	if !ok {
		return protocol.Text(protocol.StatusNotFound, "Page not found")
	}
	return h(ctx, req)
}

// Routes lists the registered routes as "METHOD /path", sorted by path then method.
func (r *Router) Routes() []string {
	keys := make([]route, 0, len(r.routes))
	for k := range r.routes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].path != keys[j].path {
			return keys[i].path < keys[j].path
		}
		return keys[i].method < keys[j].method
	})

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.method + " " + k.path
	}
	return out
}
