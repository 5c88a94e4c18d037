package endpoints

import (
	"github.com/gorilla/mux"

	"github.com/objperms/objperms/pkg/server"
	"github.com/objperms/objperms/pkg/server/middleware"
)

// RegisterAll registers all panel endpoints on the server
func RegisterAll(srv *server.Server) {
	RegisterStatusEndpoint(srv)
	RegisterPanelEndpoints(srv)
	RegisterMutationEndpoints(srv)
	RegisterEventsEndpoint(srv)

	// Static files
	RegisterStaticFiles(srv)
}

// panelRouter mounts a subrouter under the configured base path. When a
// session secret is configured, every route on it requires a valid
// session cookie.
func panelRouter(srv *server.Server) *mux.Router {
	router := srv.Router.PathPrefix(srv.Config.BasePath).Subrouter()
	if srv.Config.SessionSecret != "" {
		auth := middleware.NewSessionAuthenticator(srv.Config.SessionSecret)
		router.Use(auth.Middleware)
	}
	return router
}
