// Package migrations embeds the goose SQL migrations that bootstrap a fresh
// tenant database with the accounting base schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
