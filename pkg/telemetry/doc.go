// Package telemetry provides the Prometheus collectors and OpenTelemetry
// spans recorded by the server.
//
// Both halves are optional. A nil *Metrics or *Tracer is a valid no-op, so
// the connection path calls them without checks.
//
//	reg := prometheus.NewRegistry()
//	srv := server.New(&server.Config{
//	    Metrics: telemetry.NewMetrics(telemetry.WithRegistry(reg)),
//	    Tracer:  telemetry.NewTracer(),
//	})
package telemetry
