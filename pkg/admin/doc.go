// Package admin serves the operational HTTP endpoints that sit next to the
// bare server: Prometheus metrics, liveness and readiness probes, drain
// control and the route listing.
//
// The admin listener is a separate net/http server routed by chi, so its
// health never depends on the request path it reports on.
//
//	adm := admin.New(&admin.Config{ListenAddr: ":9090", Gatherer: reg}, srv)
//	adm.RunInBackground()
//	defer adm.Shutdown(context.Background())
package admin
