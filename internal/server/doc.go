// Package server is the HTTP surface of the bridge.
//
// It exposes the assistant-facing task API, the auth status probe, and the
// inbound relay webhook on one listener, with health probes alongside.
// Prometheus metrics live on a separate listener so operational data never
// shares a port with the API. Request validation happens before any remote
// call; failures use a single error envelope with a machine-readable kind.
package server
