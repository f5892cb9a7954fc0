// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sqlite is the storage layer for the console: it opens the
// database with the pragmas the rest of the system assumes, applies
// embedded schema migrations, and produces verified online backups.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Common-Nat/OpenRouter-LLM-Console/internal/sqlitedriver"
)

// Open opens (creating if necessary) the console database at path and
// applies the connection pragmas every handle must carry: foreign keys on,
// WAL journaling, and a busy timeout so concurrent readers wait instead of
// failing. The pool is capped at a single connection, which makes the
// pragmas stick and matches SQLite's single-writer model.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory for %q: %w", path, err)
		}
	}

	db, err := sql.Open(sqlitedriver.Name, path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	// Pragmas are per-connection; one pooled connection keeps them in force.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q on %q: %w", pragma, path, err)
		}
	}

	return db, nil
}
