// Package config loads the barehttp command configuration.
//
// The configuration lives in barehttp.yaml (or barehttp.yml, or
// barehttp.json) and maps onto server.Config and admin.Config. Every field is
// optional; omitted fields take the server defaults.
//
// # Configuration File Structure
//
//	server:
//	  address: ":8080"
//	  read_header_timeout: 10s
//	  read_timeout: 30s
//	  write_timeout: 30s
//	  shutdown_timeout: 30s
//	  max_header_bytes: 8192
//	  max_body_bytes: 1048576
//	  max_connections: 0
//	admin:
//	  address: "127.0.0.1:9090"
//	  pprof: false
//	log:
//	  level: info
//	  format: text
//	telemetry:
//	  namespace: barehttp
//	  tracing: false
//
// The BAREHTTP_ADDRESS environment variable overrides server.address.
//
// # Usage
//
//	cfg, err := config.LoadOrDefault(path)
//	if err != nil {
//	    errors.PrintError(err)
//	    os.Exit(1)
//	}
//	srv := server.New(cfg.ServerConfig())
package config
