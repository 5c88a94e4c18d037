package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/server"
)

// RegisterStatusEndpoint registers the status page. It lives at the
// server root, outside the session gate, so supervisors and readiness
// probes can reach it unauthenticated.
func RegisterStatusEndpoint(s *server.Server) {
	cfg := s.Config

	// GET / - Status page (no auth required)
	s.Router.HandleFunc("/", handleStatus(cfg)).Methods("GET")
}

func handleStatus(cfg *config.PanelConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := os.Getenv("OBJPERMS_VERSION_DISPLAY")
		if version == "" {
			version = "0.1.0"
		}

		accept := r.Header.Get("Accept")
		format := r.URL.Query().Get("format")
		if format == "json" || strings.Contains(accept, "application/json") {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"version": version})
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, statusPage, version, cfg.BasePath)
	}
}

const statusPage = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width">
    <title>Object Permissions Panel</title>
  </head>
  <body>
    <h1>Object Permissions Panel</h1>
    <p>Version %s</p>
    <p>Panels are served under <code>%s</code>.</p>
  </body>
</html>
`
