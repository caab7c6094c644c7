// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema is the DDL applied on startup. Every statement is idempotent so
// restarts against an initialized database are no-ops.
//
//go:embed migrations/001_schema.sql
var Schema string
