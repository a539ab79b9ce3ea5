// Package sqlite registers the pure-Go SQLite driver under the name
// "sqlite3" so database/sql call sites stay driver-name compatible.
package sqlite

import (
	"database/sql"

	"modernc.org/sqlite"
)

//nolint:gochecknoinits
func init() {
	sql.Register("sqlite3", &sqlite.Driver{})
}
