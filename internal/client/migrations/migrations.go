// Package migrations embeds the SQLite schema of the authctl session database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
