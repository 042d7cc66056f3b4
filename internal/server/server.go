package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jpalmerr/pingrank/internal/rounds"
	"github.com/jpalmerr/pingrank/internal/stats"
)

const (
	// streamWriteTimeout bounds a single SSE or WebSocket write so a stuck
	// client cannot pin its handler goroutine. Must be <= shutdown timeout.
	streamWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// maxRounds caps a manual run requested over HTTP.
	maxRounds = 1000

	defaultTitle = "PingRank"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Engine is the part of the probing engine the server needs.
type Engine interface {
	Snapshot() stats.Snapshot
	Subscribe() <-chan stats.Snapshot
	Unsubscribe(ch <-chan stats.Snapshot)
	Progress() rounds.Progress
	// StartRounds starts a background manual run of n rounds (n <= 0 for
	// the default) and returns its id.
	StartRounds(n int) (string, error)
}

// Server handles HTTP requests for the dashboard and its API.
//
// Routes:
//   - GET /: the embedded dashboard
//   - GET /api/ranking: current ranking and progress as JSON
//   - GET /api/progress: round progress as JSON
//   - POST /api/rounds: start a manual run
//   - GET /api/sse: Server-Sent Events stream of rankings
//   - GET /api/ws: WebSocket stream of rankings
//
// The ranking routes accept an optional ?category= filter.
type Server struct {
	engine     Engine
	port       int
	httpServer *http.Server
	assets     fs.FS
	title      string
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server]. assets may be nil, in which case
// only the API is served. The server is not started until [Server.Start].
func NewServer(engine Engine, port int, assets fs.FS, title string, logger *slog.Logger) *Server {
	return &Server{
		engine: engine,
		port:   port,
		assets: assets,
		title:  title,
		logger: logger,
	}
}

// Handler returns the router with every route registered.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/ranking", s.handleRanking).Methods(http.MethodGet)
	api.HandleFunc("/progress", s.handleProgress).Methods(http.MethodGet)
	api.HandleFunc("/rounds", s.handleStartRounds).Methods(http.MethodPost)
	api.HandleFunc("/sse", s.handleSSE).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	if s.assets != nil {
		r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	}
	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns once the port is bound. The server runs
// until ctx is cancelled, then shuts down gracefully with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx, so streaming handlers end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	category, ok := categoryParam(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, newRankingView(s.engine.Snapshot(), s.engine.Progress(), category))
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	s.writeJSON(w, http.StatusOK, s.engine.Progress())
}

// handleStartRounds starts a manual run. The optional ?rounds= parameter
// overrides the configured round count.
func (s *Server) handleStartRounds(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("rounds"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxRounds {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("rounds must be an integer between 1 and %d", maxRounds))
			return
		}
		n = v
	}

	runID, err := s.engine.StartRounds(n)
	switch {
	case errors.Is(err, rounds.ErrBusy):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("manual run requested", "run_id", runID, "remote", r.RemoteAddr)
	s.writeJSON(w, http.StatusAccepted, startRoundsResponse{
		RunID:    runID,
		Progress: s.engine.Progress(),
	})
}

type startRoundsResponse struct {
	RunID    string          `json:"run_id"`
	Progress rounds.Progress `json:"progress"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// categoryParam reads ?category=. It writes a 400 and returns false for an
// unknown category; "" and "all" mean no filter.
func categoryParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	c := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	switch c {
	case "", "all":
		return "", true
	case "public", "private", "codex":
		return c, true
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(errorResponse{Error: fmt.Sprintf("unknown category %q", c)})
		return "", false
	}
}
