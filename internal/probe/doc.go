// Package probe performs single timed HTTP probes for pingrank.
//
// This package is internal to pingrank. An [Executor] issues one GET request
// to https://{host}/ under a hard timeout and reports the elapsed time, or a
// failure. Responses are treated as opaque: neither the status code nor the
// body is inspected, so any response at all counts as a success.
//
// Failure causes (timeout, DNS, refused connection, TLS) are deliberately
// collapsed into a single failed [Outcome].
package probe
