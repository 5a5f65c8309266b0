package main

import (
	"fmt"
	"html"

	"github.com/barehttp/barehttp/pkg/server"
)

const helloPage = "<html><body><h1>Hello World</h1></body></html>"

const pingPage = `<html>
	<body>
		<h1>Hello World</h1>
		<p>%s</p>
	</body>
</html>`

// demoRoutes is the route table served by "barehttp serve".
var demoRoutes = []struct {
	pattern string
	handler server.HandlerFunc
}{
	{"/", handleIndex},
	{"/object/{id}/edit", handleEditObject},
	{"/hello", handleHello},
	{"/ping", handlePing},
	{"/ping_raw", handlePingRaw},
}

// registerDemoRoutes adds the demo handlers to srv.
func registerDemoRoutes(srv *server.Server) error {
	for _, r := range demoRoutes {
		if err := srv.Handle(r.pattern, r.handler); err != nil {
			return fmt.Errorf("register %s: %w", r.pattern, err)
		}
	}
	return nil
}

func handleIndex(w *server.ResponseWriter, r *server.Request) error {
	return w.Status(200).BodyString("Hello World!").Send()
}

func handleEditObject(w *server.ResponseWriter, r *server.Request) error {
	return w.Status(200).BodyString("ABC " + r.Param("id")).Send()
}

func handleHello(w *server.ResponseWriter, r *server.Request) error {
	return w.Status(200).SendHTML(helloPage)
}

// handlePing echoes the request body inside an HTML page.
func handlePing(w *server.ResponseWriter, r *server.Request) error {
	return w.Status(200).SendHTML(fmt.Sprintf(pingPage, html.EscapeString(string(r.Body))))
}

// handlePingRaw answers with the parsed request as JSON.
func handlePingRaw(w *server.ResponseWriter, r *server.Request) error {
	return w.Status(200).SendJSON(r)
}
