// Package schemas provides the embedded SQL migrations of the notes database.
package schemas

import "embed"

// Migrations contains the migration files, applied in file name order.
//
//go:embed migrations/*.sql
var Migrations embed.FS
