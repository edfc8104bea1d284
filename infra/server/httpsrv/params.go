package httpsrv

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// SecondsParam reads a non-negative duration given in (possibly fractional) seconds from
// the query string. An absent parameter yields def.
func SecondsParam(r *http.Request, name string, def time.Duration) (time.Duration, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("%s must be a non-negative number of seconds", name)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": msg} with the given status code.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}
