//go:build cgo

package sqlitedriver

import (
	_ "github.com/mutecomm/go-sqlcipher/v4" // registers "sqlite3" with SQLCipher support
)

// Name is the database/sql driver the console database is opened with.
const Name = "sqlite3"

// EncryptionSupported reports whether the active driver honors PRAGMA key,
// so console.db can be kept encrypted at rest. True when built with CGO
// against SQLCipher.
const EncryptionSupported = true
