// Package migrations embeds the ledger's SQLite schema migrations.
package migrations

import "embed"

// FS contains embedded SQLite migrations for ledger storage.
//
//go:embed *.sql
var FS embed.FS
