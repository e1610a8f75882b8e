package migrations

import "embed"

// FS holds the SQLite store schema in golang-migrate naming.
//
//go:embed *.sql
var FS embed.FS
