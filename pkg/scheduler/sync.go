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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/observability"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/openrouter"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
)

// CatalogSource fetches the upstream model catalog.
type CatalogSource interface {
	Configured() bool
	ListModels(ctx context.Context) ([]openrouter.CatalogModel, error)
}

// CatalogStore persists a fetched catalog.
type CatalogStore interface {
	UpsertModels(ctx context.Context, batch []repo.ModelUpsert) (int, error)
}

const syncRetryMaxElapsed = 30 * time.Second

func newSyncBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = syncRetryMaxElapsed
	return bo
}

// ModelSyncer fetches the OpenRouter catalog and upserts it into the
// repository. Transient upstream failures are retried with exponential
// backoff; client errors (4xx other than 429) fail immediately.
type ModelSyncer struct {
	source CatalogSource
	store  CatalogStore
	logger *zap.Logger
	tracer observability.Tracer

	newBackoff func() backoff.BackOff
}

// NewModelSyncer builds a syncer over the given source and store.
func NewModelSyncer(source CatalogSource, store CatalogStore, logger *zap.Logger, tracer observability.Tracer) *ModelSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = observability.NewNoOpTracer()
	}
	return &ModelSyncer{
		source:     source,
		store:      store,
		logger:     logger,
		tracer:     tracer,
		newBackoff: newSyncBackoff,
	}
}

// Sync fetches the catalog and upserts it, returning the number of models
// written. Returns openrouter.ErrMissingAPIKey when no key is configured.
func (ms *ModelSyncer) Sync(ctx context.Context) (int, error) {
	ctx, span := ms.tracer.StartSpan(ctx, "scheduler.model_sync")
	defer ms.tracer.EndSpan(span)

	if !ms.source.Configured() {
		return 0, openrouter.ErrMissingAPIKey
	}

	var catalog []openrouter.CatalogModel
	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		models, err := ms.source.ListModels(ctx)
		if err != nil {
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			ms.logger.Warn("Catalog fetch failed, retrying",
				zap.Int("attempt", attempts),
				zap.Error(err))
			return err
		}
		catalog = models
		return nil
	}, backoff.WithContext(ms.newBackoff(), ctx))
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to fetch model catalog: %w", err)
	}

	batch := make([]repo.ModelUpsert, 0, len(catalog))
	for _, m := range catalog {
		batch = append(batch, repo.ModelUpsert{
			OpenRouterID:      m.ID,
			Name:              m.Name,
			ContextLength:     m.ContextLength,
			PricingPrompt:     m.PricingPrompt,
			PricingCompletion: m.PricingCompletion,
			IsReasoning:       m.IsReasoning,
		})
	}

	count, err := ms.store.UpsertModels(ctx, batch)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to store model catalog: %w", err)
	}

	span.SetAttribute("models", count)
	span.SetAttribute("attempts", attempts)
	return count, nil
}

// retryable reports whether a catalog fetch error is worth retrying.
// Client errors will not heal on their own; transport failures, 429 and
// 5xx can.
func retryable(err error) bool {
	var statusErr *openrouter.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Status == http.StatusTooManyRequests {
			return true
		}
		return statusErr.Status >= 500
	}
	return true
}
