// Package db embeds the SQL migrations that define the panel schema.
//
// The migrations are compiled into the binary when it is built with the
// embed_migrations tag; development builds read them from db/migrations
// on disk instead.
package db

import "embed"

//go:embed migrations
var Migrations embed.FS
