// AngelaMos | 2026
// embed.go

// Package migrations holds the ordered SQL schema files applied by
// core.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
