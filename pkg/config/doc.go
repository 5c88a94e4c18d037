// Package config provides configuration management for the panel server.
//
// This package handles loading and validating server configuration from
// environment variables and a configuration file, tracking where each
// value came from.
//
// # Configuration Sources
//
//   - Environment variables (primary)
//   - objperms.yml configuration file (optional)
//
// # Key Configuration Options
//
//   - OBJPERMS_LISTEN_ADDR: HTTP listen address
//   - OBJPERMS_BASE_PATH: URL prefix the panel is mounted under
//   - OBJPERMS_REGISTRY_PATH: permission definitions file
//   - OBJPERMS_SESSION_SECRET: session token signing key
//   - OBJPERMS_LOG_LEVEL: logging verbosity
//   - DATABASE_URL: database connection
package config
