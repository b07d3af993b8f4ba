// Package db carries the SQL schema so binaries can migrate without files on disk.
package db

import _ "embed"

//go:embed schema.sql
var Schema string
