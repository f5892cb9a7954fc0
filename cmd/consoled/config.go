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
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/openrouter"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/server"
)

const (
	// ServiceName names the config directory ($HOME/.console) and the
	// prefix of CONSOLE_* environment variables.
	ServiceName = "console"

	// DefaultConfigFileName is the config file basename (config.yaml).
	DefaultConfigFileName = "config"
)

// Config is the full consoled configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Uploads    UploadsConfig    `mapstructure:"uploads"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host    string   `mapstructure:"host"`
	Port    int      `mapstructure:"port"`
	Origins []string `mapstructure:"origins"` // allowed CORS origins
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the SQLite file and backup locations.
type DatabaseConfig struct {
	Path      string `mapstructure:"path"`
	BackupDir string `mapstructure:"backup_dir"`
}

// UploadsConfig holds the document uploads root.
type UploadsConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"` // pick up files dropped into the directory outside the API
}

// OpenRouterConfig holds upstream credentials and attribution headers.
type OpenRouterConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	HTTPReferer string `mapstructure:"http_referer"`
	XTitle      string `mapstructure:"x_title"`
}

// RateLimitConfig holds the per-endpoint-group policies. Policies are
// "N per unit" strings, e.g. "20 per minute" or "5/hour".
type RateLimitConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Stream      string `mapstructure:"stream"`
	ModelSync   string `mapstructure:"model_sync"`
	Upload      string `mapstructure:"upload"`
	Sessions    string `mapstructure:"sessions"`
	Messages    string `mapstructure:"messages"`
	Profiles    string `mapstructure:"profiles"`
	ModelsList  string `mapstructure:"models_list"`
	UsageLogs   string `mapstructure:"usage_logs"`
	HealthCheck string `mapstructure:"health_check"`
}

// Policies maps the configured strings onto the server's rate limit set.
func (c RateLimitConfig) Policies() server.RateLimits {
	return server.RateLimits{
		Stream:      c.Stream,
		ModelSync:   c.ModelSync,
		Upload:      c.Upload,
		Sessions:    c.Sessions,
		Messages:    c.Messages,
		Profiles:    c.Profiles,
		ModelsList:  c.ModelsList,
		UsageLogs:   c.UsageLogs,
		HealthCheck: c.HealthCheck,
	}
}

// JobsConfig holds cron expressions for the background jobs. An empty
// expression leaves that job disabled.
type JobsConfig struct {
	BackupSchedule    string `mapstructure:"backup_schedule"`
	ModelSyncSchedule string `mapstructure:"model_sync_schedule"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
}

// LoadConfig loads configuration from multiple sources with proper priority:
// 1. Command line flags (highest priority)
// 2. Environment variables
// 3. Config file
// 4. Defaults (lowest priority)
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, "."+ServiceName))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// No config file; defaults, env vars, and flags still apply.
	}

	viper.SetEnvPrefix(strings.ToUpper(ServiceName))
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindBareEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// bindBareEnv binds the unprefixed environment names the deployment docs
// use, alongside the CONSOLE_-prefixed forms AutomaticEnv resolves.
func bindBareEnv() {
	for key, env := range map[string]string{
		"server.host":              "HOST",
		"server.port":              "PORT",
		"server.origins":           "APP_ORIGINS",
		"database.path":            "DB_PATH",
		"database.backup_dir":      "BACKUP_DIR",
		"uploads.dir":              "UPLOADS_DIR",
		"uploads.watch":            "WATCH_UPLOADS",
		"openrouter.api_key":       "OPENROUTER_API_KEY",
		"openrouter.base_url":      "OPENROUTER_BASE_URL",
		"openrouter.http_referer":  "OPENROUTER_HTTP_REFERER",
		"openrouter.x_title":       "OPENROUTER_X_TITLE",
		"rate_limit.enabled":       "RATE_LIMIT_ENABLED",
		"rate_limit.stream":        "RATE_LIMIT_STREAM",
		"rate_limit.model_sync":    "RATE_LIMIT_MODEL_SYNC",
		"rate_limit.upload":        "RATE_LIMIT_UPLOAD",
		"rate_limit.sessions":      "RATE_LIMIT_SESSIONS",
		"rate_limit.messages":      "RATE_LIMIT_MESSAGES",
		"rate_limit.profiles":      "RATE_LIMIT_PROFILES",
		"rate_limit.models_list":   "RATE_LIMIT_MODELS_LIST",
		"rate_limit.usage_logs":    "RATE_LIMIT_USAGE_LOGS",
		"rate_limit.health_check":  "RATE_LIMIT_HEALTH_CHECK",
		"jobs.backup_schedule":     "BACKUP_SCHEDULE",
		"jobs.model_sync_schedule": "MODEL_SYNC_SCHEDULE",
		"logging.level":            "LOG_LEVEL",
	} {
		_ = viper.BindEnv(key, env)
	}
}

// setDefaults sets default configuration values.
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.origins", []string{"http://localhost:5173"})

	// Database defaults
	viper.SetDefault("database.path", "./console.db")
	viper.SetDefault("database.backup_dir", "./backups")

	// Uploads defaults
	viper.SetDefault("uploads.dir", "./uploads")
	viper.SetDefault("uploads.watch", true)

	// OpenRouter defaults. The API key stays empty until the operator
	// provides one; the gateway still serves and reports MISSING_API_KEY
	// on the endpoints that need upstream access.
	viper.SetDefault("openrouter.api_key", "")
	viper.SetDefault("openrouter.base_url", openrouter.DefaultBaseURL)
	viper.SetDefault("openrouter.http_referer", openrouter.DefaultHTTPReferer)
	viper.SetDefault("openrouter.x_title", openrouter.DefaultXTitle)

	// Rate limit defaults mirror the server's stock policies.
	rl := server.DefaultRateLimits()
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.stream", rl.Stream)
	viper.SetDefault("rate_limit.model_sync", rl.ModelSync)
	viper.SetDefault("rate_limit.upload", rl.Upload)
	viper.SetDefault("rate_limit.sessions", rl.Sessions)
	viper.SetDefault("rate_limit.messages", rl.Messages)
	viper.SetDefault("rate_limit.profiles", rl.Profiles)
	viper.SetDefault("rate_limit.models_list", rl.ModelsList)
	viper.SetDefault("rate_limit.usage_logs", rl.UsageLogs)
	viper.SetDefault("rate_limit.health_check", rl.HealthCheck)

	// Background jobs are opt-in; empty cron expressions disable them.
	viper.SetDefault("jobs.backup_schedule", "")
	viper.SetDefault("jobs.model_sync_schedule", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// Validate checks the configuration for values that cannot work. The
// OpenRouter API key is not required here: an unconfigured gateway still
// serves local data and reports MISSING_API_KEY on upstream endpoints.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if len(c.Server.Origins) == 0 {
		return fmt.Errorf("server.origins is required (set APP_ORIGINS to the frontend origin)")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required (set DB_PATH)")
	}
	if c.Uploads.Dir == "" {
		return fmt.Errorf("uploads.dir is required (set UPLOADS_DIR)")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported logging.format: %q (must be json or console)", c.Logging.Format)
	}
	return nil
}
