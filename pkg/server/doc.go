// Package server provides the HTTP server for the permissions panel.
//
// This package implements the core HTTP server that serves the panel
// pages, form fragments and mutation endpoints. It uses gorilla/mux for
// routing and gorilla/handlers for access logging.
//
// # Server Setup
//
//	srv := server.NewServer(cfg, reg, db)
//	endpoints.RegisterAll(srv)
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Components
//
// The Server struct holds:
//
//   - Config: panel configuration
//   - Registry: the permission vocabulary
//   - Router: HTTP request router
//   - DB: database connection
//   - Subjects, Grants: storage interfaces
//   - Bus: in-process change fan-out for live updates
//
// # Endpoints
//
// Endpoints are registered via the endpoints subpackage:
//
//	endpoints.RegisterAll(srv)
//
// This registers the panel surface:
//
//   - GET  /panel/{kind}/{obj} - full panel page
//   - GET  /panel/{kind}/{obj}/users - add-user form fragment
//   - POST /panel/{kind}/{obj}/users - add user or delete row
//   - GET  /panel/{kind}/{obj}/users/{row} - edit-permissions form fragment
//   - POST /panel/{kind}/{obj}/users/{row} - replace a row's permissions
//   - GET  /panel/{kind}/{obj}/events - websocket change stream
package server
