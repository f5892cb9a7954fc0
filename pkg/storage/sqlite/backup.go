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

package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Common-Nat/OpenRouter-LLM-Console/internal/sqlitedriver"
)

// Backup creates a safe online backup of a SQLite database using VACUUM INTO.
// VACUUM INTO produces a clean, defragmented copy of the database while allowing
// concurrent reads on the source. The backup file is written to destDir (or
// alongside the database when destDir is empty) and named with a timestamp
// suffix (e.g., "console.db.backup.20260825T153000"). On failure, any partially
// written backup file is removed before returning.
func Backup(dbPath, destDir string) (backupPath string, err error) {
	name := filepath.Base(dbPath) + ".backup." + time.Now().Format("20060102T150405")
	if destDir == "" {
		backupPath = filepath.Join(filepath.Dir(dbPath), name)
	} else {
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return "", fmt.Errorf("backup: create destination directory %q: %w", destDir, err)
		}
		backupPath = filepath.Join(destDir, name)
	}

	srcDB, err := sql.Open(sqlitedriver.Name, dbPath)
	if err != nil {
		return "", fmt.Errorf("backup: open source database %q: %w", dbPath, err)
	}
	defer func() { _ = srcDB.Close() }()

	if _, err := srcDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return "", fmt.Errorf("backup: set busy_timeout on %q: %w", dbPath, err)
	}

	if _, err := srcDB.Exec("VACUUM INTO ?", backupPath); err != nil {
		_ = os.Remove(backupPath) // best-effort cleanup
		return "", fmt.Errorf("backup: vacuum into %q from %q: %w", backupPath, dbPath, err)
	}

	if err := srcDB.Close(); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("backup: close source database %q: %w", dbPath, err)
	}

	if err := VerifyBackup(backupPath); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("backup: verification failed for %q: %w", backupPath, err)
	}

	return backupPath, nil
}

// VerifyBackup opens a SQLite database file and runs PRAGMA integrity_check to
// confirm the file is a valid, uncorrupted SQLite database.
func VerifyBackup(backupPath string) error {
	db, err := sql.Open(sqlitedriver.Name, backupPath)
	if err != nil {
		return fmt.Errorf("verify backup: open %q: %w", backupPath, err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("verify backup: integrity check on %q: %w", backupPath, err)
	}

	if result != "ok" {
		return fmt.Errorf("verify backup: integrity check failed on %q: %s", backupPath, result)
	}

	return nil
}

// BackupInfo describes a single backup file on disk.
type BackupInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// ListBackups returns the backup files for the named database found in dir,
// newest first. Files are matched by the "<base>.backup." prefix that Backup
// uses.
func ListBackups(dbPath, dir string) ([]BackupInfo, error) {
	if dir == "" {
		dir = filepath.Dir(dbPath)
	}
	prefix := filepath.Base(dbPath) + ".backup."

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list backups: read directory %q: %w", dir, err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Name:      entry.Name(),
			Path:      filepath.Join(dir, entry.Name()),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}
