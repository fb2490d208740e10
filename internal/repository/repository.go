// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres, sqlite) inside this directory.
package repository

import "errors"

var (
	// ErrNotFound is returned when no record matches a lookup.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when (owner_id, stored_name) is already recorded.
	ErrAlreadyExists = errors.New("record already exists")
)

// RowScanner is satisfied by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}
