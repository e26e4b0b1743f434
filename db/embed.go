// Package db provides the embedded database schema and catalog seed data.
package db

import _ "embed"

// Schema contains the DDL statements for all storefront tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedProducts is the JSON catalog loaded by the seed-db command.
//
//go:embed seed/products.json
var SeedProducts []byte
