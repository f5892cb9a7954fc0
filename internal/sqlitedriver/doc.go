// Package sqlitedriver registers the SQLite database/sql driver the console
// database is opened with and exports its registration name as Name. When
// built with CGO (the default on macOS/Linux) it uses go-sqlcipher, which
// adds SQLCipher encryption. When CGO is unavailable (typical on Windows
// without GCC) it falls back to the pure-Go modernc.org/sqlite driver,
// functional but without encryption support.
package sqlitedriver
