// Package migrations embeds the goose migrations of the local SQLite store.
// Each file bumps the schema version by one; migrations are additive.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
