// Package migrations embeds the index store schema for each SQL dialect.
package migrations

import "embed"

// FS holds one directory of golang-migrate files per dialect
//
//go:embed postgres/*.sql mysql/*.sql sqlite/*.sql
var FS embed.FS
