//go:build !cgo

package sqlitedriver

import (
	"database/sql"

	"modernc.org/sqlite"
)

// Name is the database/sql driver the console database is opened with. The
// pure-Go driver registers itself as "sqlite" only, so it is aliased here
// to keep open paths identical across builds.
const Name = "sqlite3"

func init() {
	sql.Register(Name, &sqlite.Driver{})
}

// EncryptionSupported reports whether the active driver honors PRAGMA key.
// False for the pure-Go build; console.db stays plaintext.
const EncryptionSupported = false
