// Package migrations embeds the SQL schema migrations for the backend and the local store.
package migrations

import "embed"

// FS holds backend (PostgreSQL) migrations under postgres/ and local store (SQLite)
// migrations under sqlite/.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
