// Package storage provides audit trail storage backends: an in-memory
// store for tests and single-process setups, and a SQLite store for
// durable records.
package storage
