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

package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/gzip"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/apierror"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/storage/sqlite"
)

func (s *Server) handleCacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"caches": s.repo.CacheStats()})
}

func (s *Server) handleClearAllCaches(c echo.Context) error {
	s.repo.ClearCaches("all")
	return c.JSON(http.StatusOK, echo.Map{
		"message": "All caches cleared successfully",
		"cleared": []string{"profiles", "models"},
	})
}

func (s *Server) handleClearProfileCache(c echo.Context) error {
	s.repo.ClearCaches("profiles")
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile cache cleared successfully"})
}

func (s *Server) handleClearModelCache(c echo.Context) error {
	s.repo.ClearCaches("models")
	return c.JSON(http.StatusOK, echo.Map{"message": "Model cache cleared successfully"})
}

// handleDownloadBackup snapshots the live database into the backup
// directory and returns the snapshot as a download. ?compress=true wraps
// the file in gzip on the way out.
func (s *Server) handleDownloadBackup(c echo.Context) error {
	if _, err := os.Stat(s.config.DBPath); err != nil {
		return apierror.Internal(apierror.CodeFileSaveFailed,
			fmt.Sprintf("Backup failed: database file %s does not exist", s.config.DBPath)).WithCause(err)
	}

	path, err := sqlite.Backup(s.config.DBPath, s.config.BackupDir)
	if err != nil {
		return apierror.Internal(apierror.CodeFileSaveFailed,
			fmt.Sprintf("Backup failed: %v", err)).WithCause(err)
	}

	name := filepath.Base(path)
	info, err := os.Stat(path)
	if err != nil {
		return apierror.Internal(apierror.CodeFileSaveFailed,
			fmt.Sprintf("Backup failed: %v", err)).WithCause(err)
	}
	s.logger.Info("Database backup created",
		zap.String("request_id", requestID(c)),
		zap.String("backup_file", name),
		zap.Int64("size_bytes", info.Size()))

	if ok, _ := strconv.ParseBool(c.QueryParam("compress")); ok {
		return s.sendCompressedBackup(c, path, name)
	}

	c.Response().Header().Set(echo.HeaderContentType, "application/x-sqlite3")
	return c.Attachment(path, name)
}

// sendCompressedBackup streams the snapshot through gzip. The response is
// committed before compression starts, so write failures can only be
// logged.
func (s *Server) sendCompressedBackup(c echo.Context, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return apierror.Internal(apierror.CodeFileSaveFailed,
			fmt.Sprintf("Backup failed: %v", err)).WithCause(err)
	}
	defer f.Close() //nolint:errcheck

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "application/gzip")
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name+".gz"))
	c.Response().WriteHeader(http.StatusOK)

	gz := gzip.NewWriter(c.Response())
	if _, err := io.Copy(gz, f); err != nil {
		s.logger.Warn("Backup download interrupted",
			zap.String("request_id", requestID(c)),
			zap.String("backup_file", name),
			zap.Error(err))
		return nil
	}
	return gz.Close()
}

func (s *Server) handleListBackups(c echo.Context) error {
	backups, err := sqlite.ListBackups(s.config.DBPath, s.config.BackupDir)
	if err != nil {
		return err
	}
	if backups == nil {
		backups = []sqlite.BackupInfo{}
	}

	dir := s.config.BackupDir
	if dir == "" {
		dir = filepath.Dir(s.config.DBPath)
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}

	return c.JSON(http.StatusOK, echo.Map{
		"backups":          backups,
		"total":            len(backups),
		"backup_directory": dir,
	})
}
