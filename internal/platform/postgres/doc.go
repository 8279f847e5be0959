// Package postgres provides the SQL implementation of store.TaskStore. The
// statements are written to run unchanged on PostgreSQL (pgx) and on SQLite
// (go-sqlite3), so the same store backs production and local development.
package postgres
