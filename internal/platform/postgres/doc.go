// Package postgres provides the PostgreSQL implementation of the job registry
// defined in the internal/store package, together with the embedded schema
// migrations it depends on.
//
// Connections are expected to come from database/sql with the pgx stdlib
// driver registered under the name "pgx".
package postgres
