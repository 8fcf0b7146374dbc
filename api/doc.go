// Package api defines the wire types for the Sigflow HTTP API.
//
// The HTTP surface is a small read-only inspection layer: health and
// readiness probes, build version info, Prometheus metrics, and browsing
// of persisted pipeline checkpoints. Pipelines themselves run through the
// library or the CLI, not over HTTP.
//
// # Endpoints
//
//	GET /healthz                                  liveness probe
//	GET /readyz                                   readiness probe (runs registered checks)
//	GET /version                                  build version info
//	GET /metrics                                  Prometheus metrics
//	GET /api/v1/checkpoints                       list checkpoints (?pipeline= filters)
//	GET /api/v1/checkpoints/{pipeline}/{session}  one checkpoint with its state
//
// # Response envelope
//
// The /api/v1 and /version endpoints wrap payloads in a common envelope
// (handlers.Response) carrying success flag, data or error, timestamp,
// and the request ID assigned by the server middleware. Probe endpoints
// return their status document directly so orchestrators can parse them
// without unwrapping.
//
// # Authentication
//
// When JWT auth is enabled in the server config, /api/v1 endpoints require
// a Bearer token signed with the configured secret. Probes, /version and
// /metrics stay open.
package api
