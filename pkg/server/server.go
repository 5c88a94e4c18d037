package server

import (
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/objperms/objperms/pkg/config"
	"github.com/objperms/objperms/pkg/events"
	"github.com/objperms/objperms/pkg/registry"
	"github.com/objperms/objperms/pkg/server/store"
	gormstore "github.com/objperms/objperms/pkg/server/store/gorm"
)

type Server struct {
	Config   *config.PanelConfig
	Registry *registry.Registry
	Router   *mux.Router
	DB       *gorm.DB
	Subjects store.SubjectsStore
	Grants   store.GrantsStore
	Bus      *events.Bus
	srv      *http.Server
}

func NewServer(
	cfg *config.PanelConfig,
	reg *registry.Registry,
	db *gorm.DB,
) *Server {

	router := mux.NewRouter().UseEncodedPath()
	srv := &http.Server{
		Handler: handlers.LoggingHandler(os.Stdout, router),
		Addr:    cfg.ListenAddr,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return &Server{
		Config:   cfg,
		Registry: reg,
		Router:   router,
		DB:       db,
		Subjects: gormstore.NewSubjectsStore(db),
		Grants:   gormstore.NewGrantsStore(db),
		Bus:      events.NewBus(),
		srv:      srv,
	}
}

func (s Server) Start() error {
	return s.srv.ListenAndServe()
}

// StartWithListener serves on an existing listener. Tests use this to
// bind a port before the serving goroutine starts.
func (s Server) StartWithListener(l net.Listener) error {
	return s.srv.Serve(l)
}
