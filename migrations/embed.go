// Package migrations embeds the schema migrations for every supported SQL backend.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite/*.sql.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
