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

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: heredoc.Doc(`
		Apply pending schema migrations to the database.

		The serve command migrates on startup, so this is mainly useful
		for preparing a database ahead of a deploy or for rolling back
		with --down. Rollbacks drop tables; take a backup first.
	`),
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().Int("down", 0, "roll back this many migrations instead of applying")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := sqlite.Open(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrator, err := sqlite.NewMigrator(db, nil)
	if err != nil {
		return err
	}

	down, err := cmd.Flags().GetInt("down")
	if err != nil {
		return err
	}

	if down > 0 {
		before, err := migrator.CurrentVersion(cmd.Context())
		if err != nil {
			return err
		}
		if err := migrator.MigrateDown(cmd.Context(), down); err != nil {
			return err
		}
		after, err := migrator.CurrentVersion(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Rolled back from version %d to %d\n", before, after)
		return nil
	}

	pending, err := migrator.PendingMigrations(cmd.Context())
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		version, err := migrator.CurrentVersion(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Database is up to date at version %d\n", version)
		return nil
	}

	if err := migrator.MigrateUp(cmd.Context()); err != nil {
		return err
	}
	version, err := migrator.CurrentVersion(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Applied %d migration(s), database now at version %d\n", len(pending), version)
	return nil
}
