// Package server accepts TCP connections and serves one HTTP/1.1 request per
// connection.
//
// Each accepted connection gets its own goroutine, which moves through
// Accepted, Parsing, Routing, Handling and Closed. The request is parsed with
// package protocol, matched against a frozen router.Table, and handed to the
// matching Handler together with a ResponseWriter bound to the connection.
// After the handler returns the connection is closed; there is no keep-alive.
//
//	srv := server.New(&server.Config{Address: ":8080"})
//	srv.Handle("/", func(w *server.ResponseWriter, r *server.Request) error {
//	    return w.Status(200).BodyString("Hello World!").Send()
//	})
//	srv.Handle("/object/{id}/edit", func(w *server.ResponseWriter, r *server.Request) error {
//	    return w.Status(200).BodyString("ABC " + r.Param("id")).Send()
//	})
//	log.Fatal(srv.ListenAndServe())
//
// # Errors
//
// Nothing that happens on a connection affects the others or the process.
// Parse failures close the connection without a response, logged by
// severity: truncated input at debug, malformed data at warn, other client
// errors at info. An unmatched path gets the built-in 404 fallback. Handler
// errors and panics are logged and counted.
package server
