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

// Package repo is the typed access layer over the console database. It owns
// the read-through caches for profiles and the model catalog and is the only
// package that issues SQL against the domain tables.
package repo

import (
	"database/sql"
	"time"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/cache"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/observability"
)

// Cache lifetimes. Profiles change interactively so they expire fast; the
// model catalog only moves on sync.
const (
	profileCacheTTL = 60 * time.Second
	modelCacheTTL   = 5 * time.Minute
)

// Repository provides typed access to sessions, messages, profiles, the
// model catalog, and usage accounting. Safe for concurrent use; the
// underlying pool serializes writes.
type Repository struct {
	db       *sql.DB
	tracer   observability.Tracer
	profiles *cache.Cache
	models   *cache.Cache
}

// New creates a Repository over an already-opened and migrated database.
func New(db *sql.DB, tracer observability.Tracer) *Repository {
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &Repository{
		db:       db,
		tracer:   tracer,
		profiles: cache.New("profiles", profileCacheTTL).WithTracer(tracer),
		models:   cache.New("models", modelCacheTTL).WithTracer(tracer),
	}
}

// CacheStats returns a snapshot of every cache instance the repository owns.
func (r *Repository) CacheStats() []cache.Stats {
	return []cache.Stats{r.profiles.Stats(), r.models.Stats()}
}

// ClearCaches drops cached entries for the given scope: "profiles", "models",
// or "all". Unknown scopes are a no-op and return false.
func (r *Repository) ClearCaches(scope string) bool {
	switch scope {
	case "profiles":
		r.profiles.Clear()
	case "models":
		r.models.Clear()
	case "all", "":
		r.profiles.Clear()
		r.models.Clear()
	default:
		return false
	}
	return true
}
