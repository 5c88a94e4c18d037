// Package main provides objpermsctl, the server and admin CLI for the
// per-object permissions panel.
//
// The panel lets administrators manage which users and groups hold
// which permissions on individual objects (virtual machines, clusters,
// and so on), from a popover-driven page served next to the host
// application's own admin UI. Identities live in the host application's
// database; this server reads them and owns only the grants.
//
// # Architecture
//
// The server is organized into several packages:
//
//   - pkg/panel: client-side controller for the panel page
//   - pkg/rowkey: user_<id> / group_<id> row identifiers
//   - pkg/fragment: parsing of row and form HTML fragments
//   - pkg/registry: permission definitions (YAML vocabulary per object kind)
//   - pkg/server: HTTP server and routing
//   - pkg/server/endpoints: panel page, mutation, and event endpoints
//   - pkg/server/store: user, group, and grant storage
//   - pkg/events: in-process change bus feeding the websocket stream
//   - pkg/audit: audit logging
//   - pkg/config: configuration management
//   - pkg/db: database connection utilities
//
// # Quick Start
//
//	# Generate a session secret
//	objpermsctl session-secret generate > session_secret
//	export OBJPERMS_SESSION_SECRET=$(cat session_secret)
//
//	# Run database migrations
//	objpermsctl db migrate
//
//	# Load the permission definitions
//	objpermsctl registry sync /etc/objperms/registry.yml
//
//	# Start the server
//	objpermsctl server
//
// # Environment Variables
//
//   - DATABASE_URL: PostgreSQL connection string
//   - OBJPERMS_CONFIG_PATH: Directory holding objperms.yml (default: /etc/objperms)
//   - OBJPERMS_SESSION_SECRET: Secret for signing panel session tokens
//   - OBJPERMS_LOG_LEVEL: Log level (debug enables SQL logging)
//   - OBJPERMS_AUDIT_ENABLED: Audit log toggle (default: true)
//
// Every objperms.yml setting can also be set via OBJPERMS_<SETTING>.
package main
