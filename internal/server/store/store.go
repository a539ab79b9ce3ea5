// Package store implements the SQL persistence layer: profile stores backing
// the resolver, plus accounts, companies, and invitations for the HTTP
// surfaces.
package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict means a uniqueness constraint rejected the write.
	ErrConflict = errors.New("store: conflict")
)

// mapWriteError converts a uniqueness violation into conflict, leaving every
// other failure untouched.
func mapWriteError(err error, conflict error) error {
	if err == nil {
		return nil
	}

	if isUniqueViolation(err) {
		return conflict
	}

	return err
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}

	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}
