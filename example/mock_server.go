package main

import (
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// mockHost describes how the mock server answers one host.
type mockHost struct {
	baseLatency time.Duration
	jitter      time.Duration
	// dropRate is the chance a request is aborted without a response.
	dropRate float64
}

// StartMockLatencyServer serves /{host} with per-host latency and loss so
// the dashboard has something to rank. Unknown hosts answer after 100ms.
func StartMockLatencyServer(addr string, hosts map[string]mockHost) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		host := strings.TrimPrefix(r.URL.Path, "/")
		h, ok := hosts[host]
		if !ok {
			h = mockHost{baseLatency: 100 * time.Millisecond}
		}

		delay := h.baseLatency
		if h.jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(h.jitter)))
		}
		time.Sleep(delay)

		if rand.Float64() < h.dropRate {
			panic(http.ErrAbortHandler)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock server error", "error", err)
	}
}
