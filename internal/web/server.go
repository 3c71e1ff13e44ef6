// Package web provides an HTTP status server for the sensory-game daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sweeney/sensory-game/internal/status"
	"github.com/sweeney/sensory-game/internal/store"
)

// DefaultHistoryLimit is the number of sessions /history.json returns
// when no limit is given.
const DefaultHistoryLimit = 20

// MaxHistoryLimit caps the limit query parameter.
const MaxHistoryLimit = 500

// Snapshotter provides the current daemon state.
type Snapshotter interface {
	Snapshot() status.Snapshot
}

// History lists finished sessions, most recent first.
type History interface {
	Recent(ctx context.Context, limit int) ([]store.Session, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    Snapshotter
	history    History
}

// New creates a Server that reads state from the given tracker.
// history may be nil, in which case /history.json reports it unavailable.
func New(addr string, tracker Snapshotter, history History) *Server {
	s := &Server{tracker: tracker, history: history}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	return s
}

// Router returns the request router. Useful for tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	r.HandleFunc("/history.json", s.handleHistory).Methods(http.MethodGet)
	return r
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}

	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	sessions, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(formatHistory(sessions))
}
