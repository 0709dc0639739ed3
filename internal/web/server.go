// Package web serves the station's status page and JSON document on the
// local network. Every request renders a fresh tracker snapshot.
package web

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/sweeney/weather-station/internal/status"
)

// Source provides the station state to render.
type Source interface {
	Snapshot() status.Snapshot
}

// Server is the status HTTP server.
type Server struct {
	src  Source
	mux  *http.ServeMux
	http *http.Server
}

// New returns a Server for addr. It does not listen until ListenAndServe.
func New(addr string, src Source) *Server {
	s := &Server{src: src, mux: http.NewServeMux()}
	s.mux.HandleFunc("/", s.page)
	s.mux.HandleFunc("/index.json", s.document)
	s.mux.HandleFunc("/healthz", s.health)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           readOnly(s.mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	return s
}

// Handler returns the routes, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// ListenAndServe blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// readOnly rejects anything but GET and HEAD and disables caching; the page
// reloads itself and must always see the live state.
func readOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/index.html":
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.src.Snapshot())
}

func (s *Server) document(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.src.Snapshot()))
}

// health is 200 once boot calibration has finished, 503 before.
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !s.src.Snapshot().Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "calibrating\n")
		return
	}
	io.WriteString(w, "ok\n")
}
