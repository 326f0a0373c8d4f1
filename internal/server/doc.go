// Package server exposes the HTTP control API: status, live parameters,
// Prometheus metrics, and a websocket level feed.
package server
