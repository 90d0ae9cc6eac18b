package database

import "embed"

// Migrations holds the goose SQL migrations applied at startup and by
// kapacityctl migrate.
//
//go:embed migrations/*.sql
var Migrations embed.FS
