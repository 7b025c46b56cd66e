// Package postgres implements run-history persistence on PostgreSQL through
// the pgx database/sql driver, with schema migrations embedded and applied
// by goose.
package postgres
