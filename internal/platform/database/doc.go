// Package database opens the SQL connection pool used by the task store and
// manages its schema. Two drivers are supported: PostgreSQL through the pgx
// stdlib driver and SQLite through go-sqlite3. Migrations for each dialect are
// embedded in the binary and applied with goose.
package database
