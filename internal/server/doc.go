// Package server provides the HTTP server for the PingRank dashboard and API.
//
// It serves the embedded dashboard at "/", the current ranking as JSON, and
// pushes a fresh ranking to Server-Sent Events and WebSocket clients after
// every state change. A POST to /api/rounds starts a manual run.
//
// The server shuts down gracefully on context cancellation, with a 5-second
// timeout for in-flight requests. It is started by [pingrank.PingRank.Start].
package server
