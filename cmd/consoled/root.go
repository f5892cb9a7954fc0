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
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Common-Nat/OpenRouter-LLM-Console/internal/version"
)

var (
	cfgFile string
	config  *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "consoled",
	Short: "Local-first gateway for the OpenRouter LLM console",
	Long: heredoc.Doc(`
		consoled is the backend of the self-hosted OpenRouter LLM console.
		It serves the browser UI's API: chat sessions with SSE token
		streaming, document Q&A, transcript search, usage accounting, and
		a synced model catalog, all persisted in a single SQLite file.
	`),
	Version: version.Get(),
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.console/config.yaml)")

	// Server flags
	rootCmd.PersistentFlags().String("host", "0.0.0.0", "HTTP listen host")
	rootCmd.PersistentFlags().Int("port", 8000, "HTTP listen port")

	// Storage flags
	rootCmd.PersistentFlags().String("db", "./console.db", "SQLite database path")
	rootCmd.PersistentFlags().String("backup-dir", "./backups", "directory for backup snapshots")
	rootCmd.PersistentFlags().String("uploads-dir", "./uploads", "directory for uploaded documents")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	// Bind flags to viper
	_ = viper.BindPFlag("server.host", rootCmd.PersistentFlags().Lookup("host"))
	_ = viper.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("database.backup_dir", rootCmd.PersistentFlags().Lookup("backup-dir"))
	_ = viper.BindPFlag("uploads.dir", rootCmd.PersistentFlags().Lookup("uploads-dir"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in the config file and environment variables.
func initConfig() {
	var err error
	config, err = LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
