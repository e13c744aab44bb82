// Package db provides the embedded database schema and seed catalog.
package db

import _ "embed"

// Schema contains the DDL statements for the medicines, sales and sale_items
// tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedCatalog is the default medicine catalog loaded by cmd/seed-db.
//
//go:embed seed/medicines.json
var SeedCatalog []byte
