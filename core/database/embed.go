package database

import "embed"

// migrationsFS holds one directory of SQL migrations per driver.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS
