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

	"github.com/Common-Nat/OpenRouter-LLM-Console/internal/log"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/openrouter"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/scheduler"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/storage/sqlite"
)

var syncModelsCmd = &cobra.Command{
	Use:   "sync-models",
	Short: "Refresh the model catalog from OpenRouter",
	Long: heredoc.Doc(`
		Fetch the OpenRouter model catalog and upsert it into the local
		database. Requires OPENROUTER_API_KEY. The serve command can run
		this on a cron schedule; this command is the one-shot form.
	`),
	RunE: runSyncModels,
}

func init() {
	rootCmd.AddCommand(syncModelsCmd)
}

func runSyncModels(cmd *cobra.Command, args []string) error {
	db, err := sqlite.Open(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// Migrate first so a fresh database has the models table.
	migrator, err := sqlite.NewMigrator(db, nil)
	if err != nil {
		return err
	}
	if err := migrator.MigrateUp(cmd.Context()); err != nil {
		return fmt.Errorf("failed to apply schema migrations: %w", err)
	}

	client := openrouter.NewClient(openrouter.Config{
		APIKey:      config.OpenRouter.APIKey,
		BaseURL:     config.OpenRouter.BaseURL,
		HTTPReferer: config.OpenRouter.HTTPReferer,
		XTitle:      config.OpenRouter.XTitle,
	})

	syncer := scheduler.NewModelSyncer(client, repo.New(db, nil), log.Logger(), nil)
	count, err := syncer.Sync(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Synced %d models\n", count)
	return nil
}
