// Package server is a reference implementation of the timing server the
// client talks to: cookie-session login and a per-user list of times under
// /time.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sweeney/shake-timer/internal/api"
	"github.com/sweeney/shake-timer/internal/store"
)

// SessionCookie is the name of the login session cookie.
const SessionCookie = "shake_timer_session"

// maxBody bounds request bodies.
const maxBody = 1 << 16

type ctxKey struct{}

// Server routes the timing API onto a store.
type Server struct {
	store  *store.Store
	router *mux.Router
}

// New creates the API router over st.
func New(st *store.Store) *Server {
	s := &Server{store: st, router: mux.NewRouter()}

	s.router.Use(logRequests)
	s.router.HandleFunc("/login", s.handleLogin).Methods("POST")
	s.router.HandleFunc("/logout", s.handleLogout).Methods("POST")

	times := s.router.PathPrefix("/time").Subrouter()
	times.Use(s.requireSession)
	times.HandleFunc("", s.handleList).Methods("GET")
	times.HandleFunc("", s.handleCreate).Methods("POST")
	times.HandleFunc("/{id}", s.handleDelete).Methods("DELETE")

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds api.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid login body")
		return
	}

	err := s.store.Authenticate(r.Context(), creds.Username, creds.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		log.Printf("login %s: %v", creds.Username, err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := s.store.CreateSession(r.Context(), creds.Username)
	if err != nil {
		log.Printf("login %s: %v", creds.Username, err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := s.store.DeleteSession(r.Context(), c.Value); err != nil {
			log.Printf("logout: %v", err)
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListRecords(r.Context(), userFrom(r))
	if err != nil {
		log.Printf("list: %v", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	resp := api.ListResponse{Times: make([]api.Record, len(recs))}
	for i, rec := range recs {
		resp.Times[i] = api.Record{ID: rec.ID, Time: rec.Time}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Time *int64 `json:"time"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil || req.Time == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"time\": milliseconds}")
		return
	}
	if *req.Time < 0 {
		writeError(w, http.StatusBadRequest, "time must not be negative")
		return
	}

	rec, err := s.store.CreateRecord(r.Context(), userFrom(r), *req.Time)
	if err != nil {
		log.Printf("create: %v", err)
		writeError(w, http.StatusInternalServerError, "create failed")
		return
	}
	writeJSON(w, http.StatusCreated, api.Record{ID: rec.ID, Time: rec.Time})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.store.DeleteRecord(r.Context(), userFrom(r), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	if err != nil {
		log.Printf("delete %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// requireSession rejects requests without a valid session cookie and puts
// the session's user in the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		user, err := s.store.SessionUser(r.Context(), c.Value)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "not logged in")
			return
		}
		if err != nil {
			log.Printf("session: %v", err)
			writeError(w, http.StatusInternalServerError, "session lookup failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

func userFrom(r *http.Request) string {
	user, _ := r.Context().Value(ctxKey{}).(string)
	return user
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
