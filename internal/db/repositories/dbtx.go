// Package repositories implements the data access layer (repository pattern) for the
// booking backend. Each repository type encapsulates all database queries for a domain
// entity. Handlers never issue SQL directly; all database access goes through this
// layer, which makes query logic testable in isolation and prevents accidental
// cross-domain data access.
//
// Repositories are constructed over the DBTX interface so the same query code runs
// against *sql.DB for plain calls and against *sql.Tx inside multi-step workflows
// such as the integration disconnects.
package repositories

import (
	"context"
	"database/sql"
)

// DBTX is the subset of database/sql operations shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

var _ DBTX = (*sql.DB)(nil)
var _ DBTX = (*sql.Tx)(nil)
