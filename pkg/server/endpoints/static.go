package endpoints

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/objperms/objperms/pkg/server"
)

//go:embed static/css
var staticFiles embed.FS

// RegisterStaticFiles registers static file serving for the panel's
// stylesheet. Files are embedded in the binary and stay outside the
// session gate so error pages still render styled.
func RegisterStaticFiles(srv *server.Server) {
	// Create sub-filesystem rooted at "static"
	staticFS, _ := fs.Sub(staticFiles, "static")

	// Serve {base}/css/* from embedded static/css/
	cssFS, _ := fs.Sub(staticFS, "css")
	prefix := srv.Config.BasePath + "/css/"
	srv.Router.PathPrefix(prefix).Handler(
		http.StripPrefix(prefix, http.FileServer(http.FS(cssFS))),
	)

	// Serve favicon.ico (return 404 if not present)
	srv.Router.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}
