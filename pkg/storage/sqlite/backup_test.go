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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDBWithData creates a temporary database populated with a single
// session row. It returns the path to the database file.
func createTestDBWithData(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "console.db")
	db, err := Open(dbPath)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE sessions (id TEXT PRIMARY KEY, session_type TEXT NOT NULL, title TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO sessions (id, session_type, title) VALUES ('sess-001', 'chat', 'backup me')")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return dbPath
}

func TestBackup_CreatesValidFile(t *testing.T) {
	dbPath := createTestDBWithData(t)

	backupPath, err := Backup(dbPath, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(backupPath) })

	// Verify the backup file exists on disk
	info, err := os.Stat(backupPath)
	require.NoError(t, err)
	assert.True(t, info.Size() > 0, "backup file should not be empty")

	// Verify the path contains the ".backup." marker
	assert.True(t, strings.Contains(backupPath, ".backup."),
		"backup path %q should contain '.backup.' timestamp segment", backupPath)

	// Verify the backup passes integrity verification
	err = VerifyBackup(backupPath)
	assert.NoError(t, err, "backup should pass integrity check")
}

func TestBackup_ContainsData(t *testing.T) {
	dbPath := createTestDBWithData(t)

	backupPath, err := Backup(dbPath, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(backupPath) })

	// Open the backup and verify the original data is present
	backupDB, err := sql.Open("sqlite3", backupPath)
	require.NoError(t, err)
	defer func() { _ = backupDB.Close() }()

	var title string
	err = backupDB.QueryRow("SELECT title FROM sessions WHERE id = 'sess-001'").Scan(&title)
	require.NoError(t, err)
	assert.Equal(t, "backup me", title,
		"backup database should contain the same data as the source")
}

func TestBackup_IntoDirectory(t *testing.T) {
	dbPath := createTestDBWithData(t)
	destDir := filepath.Join(t.TempDir(), "backups")

	backupPath, err := Backup(dbPath, destDir)
	require.NoError(t, err)

	assert.Equal(t, destDir, filepath.Dir(backupPath),
		"backup should land in the requested directory")
	assert.True(t, strings.HasPrefix(filepath.Base(backupPath), "console.db.backup."),
		"backup name should start with the database base name")

	_, err = os.Stat(backupPath)
	require.NoError(t, err)
}

func TestBackup_NonexistentDB(t *testing.T) {
	// SQLite auto-creates database files in existing directories, so we use a
	// path under a nonexistent directory to force an error from VACUUM INTO.
	nonexistentPath := filepath.Join(t.TempDir(), "no_such_dir", "does_not_exist.db")

	_, err := Backup(nonexistentPath, "")
	require.Error(t, err, "backup of database in nonexistent directory should return an error")
}

func TestVerifyBackup_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	invalidPath := filepath.Join(dir, "invalid.db")

	// Write random garbage bytes to simulate a corrupt file
	err := os.WriteFile(invalidPath, []byte("this is not a sqlite database"), 0o644)
	require.NoError(t, err)

	err = VerifyBackup(invalidPath)
	require.Error(t, err, "VerifyBackup should fail on a non-SQLite file")
}

func TestListBackups(t *testing.T) {
	dbPath := createTestDBWithData(t)
	destDir := filepath.Join(t.TempDir(), "backups")

	newest, err := Backup(dbPath, destDir)
	require.NoError(t, err)

	// Fabricate an older backup and an unrelated file.
	older := filepath.Join(destDir, "console.db.backup.20250101T000000")
	require.NoError(t, os.WriteFile(older, []byte("old"), 0o644))
	oldTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(older, oldTime, oldTime))
	require.NoError(t, os.WriteFile(filepath.Join(destDir, "notes.txt"), []byte("x"), 0o644))

	backups, err := ListBackups(dbPath, destDir)
	require.NoError(t, err)
	require.Len(t, backups, 2, "only files with the backup prefix should be listed")

	assert.Equal(t, filepath.Base(newest), backups[0].Name, "newest backup should come first")
	assert.Equal(t, "console.db.backup.20250101T000000", backups[1].Name)
	assert.Equal(t, int64(3), backups[1].SizeBytes)
}

func TestListBackups_MissingDirectory(t *testing.T) {
	backups, err := ListBackups("/tmp/console.db", filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, backups)
}
