package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// handleSSE streams rankings via Server-Sent Events.
//
// Each write carries a deadline so a slow or vanished client cannot block
// the handler past shutdown.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.engine.Subscribe()
	defer s.engine.Unsubscribe(ch)

	send := func(v rankingView) error {
		data, err := json.Marshal(v)
		if err != nil {
			s.logger.Error("failed to encode ranking", "error", err)
			return nil
		}
		return writeAndFlush(data)
	}

	if err := send(newRankingView(s.engine.Snapshot(), s.engine.Progress(), category)); err != nil {
		return
	}

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := send(newRankingView(snap, s.engine.Progress(), category)); err != nil {
				return
			}
		case <-r.Context().Done():
			// fires on client disconnect and on server shutdown
			return
		}
	}
}

// handleWS streams rankings over a WebSocket. Incoming messages are read
// only to notice the client going away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.engine.Subscribe()
	defer s.engine.Unsubscribe(ch)

	write := func(v rankingView) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(v)
	}

	if err := write(newRankingView(s.engine.Snapshot(), s.engine.Progress(), category)); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if err := write(newRankingView(snap, s.engine.Progress(), category)); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}
