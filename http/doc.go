// Package http provides the warden admin API.
//
// The admin API is a small JSON surface served next to the protocol server,
// on its own port, for health checks and operational counters.
//
// # Endpoints
//
//   - GET /healthz returns {"status":"ok"}
//   - GET /stats returns connection counters, the number of live sessions,
//     the number of registered users and the protocol route table
//
// Unknown paths and methods return a JSON ErrorResponse.
//
// # Usage
//
//	h := http.NewHandler(&http.HandlerConfig{CORS: corsCfg}, http.Sources{
//	    Connections: srv,
//	    Sessions:    sessions,
//	    Users:       repo,
//	    Routes:      srv.Router(),
//	})
//	admin := &nethttp.Server{Addr: ":5710", Handler: h.Router()}
//
// # Middleware
//
// Every route runs behind RecoverMiddleware and LoggingMiddleware. CORS is
// applied with go-chi/cors when CORSConfig.Enabled is set.
package http
