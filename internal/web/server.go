// Package web provides the HTTP status page and remote controls for the
// shake-timer daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/shake-timer/internal/api"
	"github.com/sweeney/shake-timer/internal/status"
)

// Controller is the stopwatch as seen from the page's buttons.
type Controller interface {
	Press() bool
	Submit(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// Session logs the daemon in and out of the timing server.
type Session interface {
	Login(ctx context.Context, creds api.Credentials) error
	Logout(ctx context.Context) error
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctrl       Controller
	session    Session
}

// New creates a Server that reads state from the given tracker and forwards
// button presses to ctrl and session.
func New(addr string, tracker *status.Tracker, ctrl Controller, session Session) *Server {
	s := &Server{tracker: tracker, ctrl: ctrl, session: session}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("POST /toggle", s.handleToggle)
	mux.HandleFunc("POST /submit", s.handleSubmit)
	mux.HandleFunc("POST /records/{id}/delete", s.handleDelete)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
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
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	accepted := s.ctrl.Press()
	writeAction(w, r, ActionJSON{OK: true, Accepted: &accepted}, nil)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	err := s.ctrl.Submit(r.Context())
	writeAction(w, r, ActionJSON{OK: err == nil}, err)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.ctrl.Delete(r.Context(), r.PathValue("id"))
	writeAction(w, r, ActionJSON{OK: err == nil}, err)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds := api.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	err := s.session.Login(r.Context(), creds)
	writeAction(w, r, ActionJSON{OK: err == nil}, err)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	err := s.session.Logout(r.Context())
	writeAction(w, r, ActionJSON{OK: err == nil}, err)
}
