package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/sweeney/shake-timer/internal/api"
	"github.com/sweeney/shake-timer/internal/stopwatch"
)

// ActionJSON is the response to a button POST from a JSON client.
type ActionJSON struct {
	OK bool `json:"ok"`
	// Accepted is set for /toggle: false when the debounce gate dropped the press.
	Accepted *bool  `json:"accepted,omitempty"`
	Error    string `json:"error,omitempty"`
}

// errorStatus maps an action error to the HTTP status returned to the page.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, stopwatch.ErrInactive):
		return http.StatusForbidden
	case errors.Is(err, stopwatch.ErrNothingToSubmit):
		return http.StatusConflict
	case api.IsNetworkError(err):
		return http.StatusBadGateway
	}
	if code := api.StatusCode(err); code >= 400 && code < 500 {
		return code
	}
	return http.StatusBadGateway
}

// writeAction answers a button POST. Browsers posting the page's forms are
// sent back to the page; clients asking for JSON get an ActionJSON.
func writeAction(w http.ResponseWriter, r *http.Request, res ActionJSON, err error) {
	code := http.StatusOK
	if err != nil {
		log.Printf("web: %s %s: %v", r.Method, r.URL.Path, err)
		res.Error = err.Error()
		code = errorStatus(err)
	}

	if !strings.Contains(r.Header.Get("Accept"), "application/json") {
		if err != nil {
			http.Error(w, res.Error, code)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	data, _ := json.Marshal(res)
	w.Write(data)
}
