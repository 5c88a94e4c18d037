package endpoints

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/objperms/objperms/pkg/config"
)

func respondWithError(w http.ResponseWriter, code int, payload interface{}) {
	respondWithJSON(w, code, map[string]interface{}{"error": payload})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithDeletion emits the row-removal signal: a bare JSON string
// naming the row to drop.
func respondWithDeletion(w http.ResponseWriter, rowID string) {
	respondWithJSON(w, http.StatusOK, rowID)
}

// respondWithFieldErrors emits the validation shape: a JSON object
// mapping field names to messages. The panel appends one error item
// per key and keeps its popover open, so the status is still 200.
func respondWithFieldErrors(w http.ResponseWriter, fieldErrors map[string]string) {
	respondWithJSON(w, http.StatusOK, fieldErrors)
}

// respondWithFragment emits a rendered HTML fragment.
func respondWithFragment(w http.ResponseWriter, markup []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(markup)
}

// clientIP resolves the requesting address, honoring X-Forwarded-For
// only when the direct peer is a configured trusted proxy.
func clientIP(r *http.Request, cfg *config.PanelConfig) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" && cfg.IsTrustedProxy(ip) {
		return forwarded
	}
	return ip
}
