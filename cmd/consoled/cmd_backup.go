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
package main

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/storage/sqlite"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a verified backup snapshot of the database",
	Long: heredoc.Doc(`
		Write a timestamped snapshot of the database into the backup
		directory. The snapshot is taken with VACUUM INTO and integrity
		checked before the command reports success, so it is safe to run
		against a live database.
	`),
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	path, err := sqlite.Backup(config.Database.Path, config.Database.BackupDir)
	if err != nil {
		return err
	}
	fmt.Printf("Backup written to %s\n", path)
	return nil
}
