// Package server runs the warden request loop on raw TCP connections.
//
// A Server accepts connections up to a fixed limit, reads requests with
// protocol.ReadRequest, dispatches them through a Router and writes the
// responses back, looping until the peer closes, the connection idles out
// or the server shuts down.
//
//	h := server.NewHandler(auth, privilege, content)
//	srv := server.New(server.Config{Addr: ":8080"}, h.Router())
//	go srv.ListenAndServe()
//	...
//	srv.Shutdown(ctx)
//
// Services report failures as warden sentinel errors and ErrorResponse maps
// them to status codes in one place.
package server
