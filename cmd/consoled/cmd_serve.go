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
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Common-Nat/OpenRouter-LLM-Console/internal/log"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/documents"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/observability"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/openrouter"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/scheduler"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/server"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the console gateway",
	Long: heredoc.Doc(`
		Run the console gateway.

		Applies pending schema migrations, then serves the browser API on
		the configured address: chat sessions with SSE token streaming,
		document Q&A, transcript search, usage accounting, the model
		catalog, and the admin backup endpoints. Cron-scheduled backups
		and catalog syncs run in the same process when configured.

		Press Ctrl+C to shut down gracefully.
	`),
	Run: runServe,
}

func init() {
	serveCmd.Flags().Bool("debug", false, "debug-level console logging")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	if err := config.Validate(); err != nil {
		log.Fatal("Configuration validation failed", zap.Error(err))
	}

	level, format := config.Logging.Level, config.Logging.Format
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level, format = "debug", "console"
	}
	if err := log.Init(level, format); err != nil {
		log.Fatal("Failed to configure logging", zap.Error(err))
	}
	logger := log.Logger()
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting console gateway",
		zap.String("version", rootCmd.Version),
		zap.String("addr", config.Server.Addr()))
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Info("Config file loaded", zap.String("path", used))
	} else {
		logger.Info("No config file found, using defaults and environment variables")
	}

	tracer := observability.NewNoOpTracer()

	db, err := sqlite.Open(config.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	migrator, err := sqlite.NewMigrator(db, tracer)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.MigrateUp(cmd.Context()); err != nil {
		logger.Fatal("Failed to apply schema migrations", zap.Error(err))
	}
	schemaVersion, err := migrator.CurrentVersion(cmd.Context())
	if err != nil {
		logger.Fatal("Failed to read schema version", zap.Error(err))
	}
	logger.Info("Database ready",
		zap.String("path", config.Database.Path),
		zap.Int("schema_version", schemaVersion))

	repository := repo.New(db, tracer)

	docs, err := documents.NewStore(config.Uploads.Dir, tracer)
	if err != nil {
		logger.Fatal("Failed to open uploads directory", zap.Error(err))
	}

	var watcher *documents.Watcher
	if config.Uploads.Watch {
		watcher, err = documents.NewWatcher(docs, documents.WatchConfig{
			Enabled: true,
			Logger:  logger,
		})
		if err == nil {
			err = watcher.Start(context.Background())
		}
		if err != nil {
			logger.Warn("Uploads watcher unavailable, listings refresh on API writes only", zap.Error(err))
			watcher = nil
		}
	}

	upstream := openrouter.NewClient(openrouter.Config{
		APIKey:      config.OpenRouter.APIKey,
		BaseURL:     config.OpenRouter.BaseURL,
		HTTPReferer: config.OpenRouter.HTTPReferer,
		XTitle:      config.OpenRouter.XTitle,
	})
	if !upstream.Configured() {
		logger.Warn("OPENROUTER_API_KEY is not set, streaming and model sync will report MISSING_API_KEY")
	}

	syncer := scheduler.NewModelSyncer(upstream, repository, logger, tracer)

	jobs, err := scheduler.New(scheduler.Config{
		BackupSchedule:    config.Jobs.BackupSchedule,
		ModelSyncSchedule: config.Jobs.ModelSyncSchedule,
		Backup: func(ctx context.Context) (string, error) {
			return sqlite.Backup(config.Database.Path, config.Database.BackupDir)
		},
		Syncer: syncer,
		Logger: logger,
		Tracer: tracer,
	})
	if err != nil {
		logger.Fatal("Invalid job schedule", zap.Error(err))
	}
	if err := jobs.Start(); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}

	srv, err := server.New(server.Config{
		Addr:             config.Server.Addr(),
		Origins:          config.Server.Origins,
		DBPath:           config.Database.Path,
		BackupDir:        config.Database.BackupDir,
		RateLimitEnabled: config.RateLimit.Enabled,
		RateLimits:       config.RateLimit.Policies(),
	}, server.Dependencies{
		Repo:      repository,
		Documents: docs,
		Upstream:  upstream,
		Syncer:    syncer,
		Logger:    logger,
		Tracer:    tracer,
	})
	if err != nil {
		logger.Fatal("Failed to build server", zap.Error(err))
	}

	go func() {
		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
		<-sigch
		logger.Info("Shutting down gracefully... (press Ctrl+C again to force)")

		go func() {
			<-sigch
			logger.Warn("Force shutdown requested")
			os.Exit(1)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		jobs.Stop(ctx)
		if watcher != nil {
			if err := watcher.Stop(); err != nil {
				logger.Warn("Error stopping uploads watcher", zap.Error(err))
			}
		}
		if err := srv.Stop(ctx); err != nil {
			logger.Warn("Error stopping HTTP server", zap.Error(err))
		}
	}()

	if err := srv.Start(); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Shutdown complete")
}
