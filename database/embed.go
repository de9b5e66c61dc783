package database

import "embed"

// EmbeddedMigrations holds the gateway schema. Access the subtree with
// fs.Sub(EmbeddedMigrations, "migrations") before passing it to New.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
