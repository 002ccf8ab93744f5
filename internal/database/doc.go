// Package database manages the PostgreSQL connection pool used by the
// history writer.
package database
