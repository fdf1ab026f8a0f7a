// Package postgres implements the store interfaces on PostgreSQL through the
// pgx database/sql driver. It also owns the embedded schema migrations and
// the Provider that hands out one pooled connection per operation.
package postgres
