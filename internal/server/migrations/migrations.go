// Package migrations embeds the goose SQL migrations for the credkeeper schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
