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

package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// UpsertModels writes a synced catalog batch. Conflicts on the external id
// update the mutable columns but preserve the surrogate id, so references
// stay stable across syncs. The model cache is cleared afterwards.
func (r *Repository) UpsertModels(ctx context.Context, batch []ModelUpsert) (int, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.upsert_models")
	defer r.tracer.EndSpan(span)
	span.SetAttribute("batch_size", len(batch))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to begin catalog transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO models (id, openrouter_id, name, context_length, pricing_prompt, pricing_completion, is_reasoning)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (openrouter_id) DO UPDATE SET
			name = excluded.name,
			context_length = excluded.context_length,
			pricing_prompt = excluded.pricing_prompt,
			pricing_completion = excluded.pricing_completion,
			is_reasoning = excluded.is_reasoning
	`)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to prepare catalog upsert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	synced := 0
	for _, m := range batch {
		if m.OpenRouterID == "" {
			continue
		}
		reasoning := 0
		if m.IsReasoning {
			reasoning = 1
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), m.OpenRouterID, m.Name,
			m.ContextLength, m.PricingPrompt, m.PricingCompletion, reasoning,
		); err != nil {
			span.RecordError(err)
			return 0, fmt.Errorf("failed to upsert model %q: %w", m.OpenRouterID, err)
		}
		synced++
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to commit catalog upsert: %w", err)
	}

	r.models.Clear()
	span.SetAttribute("synced", synced)
	return synced, nil
}

// ListModels returns catalog rows matching the filter, ordered by name
// case-insensitively. Rows with NULL context length or NULL prompt price are
// not excluded by the corresponding constraints. Results are cached per
// filter combination.
func (r *Repository) ListModels(ctx context.Context, filter ModelFilter) ([]Model, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.list_models")
	defer r.tracer.EndSpan(span)

	key := fmt.Sprintf("models_r%t_ctx%d_price%g",
		filter.ReasoningOnly, filter.MinContext, filter.MaxPrice)
	if cached, ok := r.models.Get(key); ok {
		return cached.([]Model), nil
	}

	query := `
		SELECT id, openrouter_id, name, context_length, pricing_prompt, pricing_completion, is_reasoning, created_at
		FROM models
		WHERE 1=1
	`
	var args []any
	if filter.ReasoningOnly {
		query += " AND is_reasoning = 1"
	}
	if filter.MinContext > 0 {
		query += " AND (context_length IS NULL OR context_length >= ?)"
		args = append(args, filter.MinContext)
	}
	if filter.MaxPrice > 0 {
		query += " AND (pricing_prompt IS NULL OR pricing_prompt <= ?)"
		args = append(args, filter.MaxPrice)
	}
	query += " ORDER BY name COLLATE NOCASE"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	models := []Model{}
	for rows.Next() {
		m, err := scanModel(rows.Scan)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan model row: %w", err)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate model rows: %w", err)
	}

	r.models.Set(key, models)
	span.SetAttribute("count", len(models))
	return models, nil
}

// GetModelByExternalID looks a model up by its OpenRouter identifier.
// Returns nil (no error) when the identifier is not in the catalog; pricing
// then contributes zero to usage costs.
func (r *Repository) GetModelByExternalID(ctx context.Context, openrouterID string) (*Model, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.get_model")
	defer r.tracer.EndSpan(span)

	row := r.db.QueryRowContext(ctx, `
		SELECT id, openrouter_id, name, context_length, pricing_prompt, pricing_completion, is_reasoning, created_at
		FROM models
		WHERE openrouter_id = ?
	`, openrouterID)

	m, err := scanModel(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load model %q: %w", openrouterID, err)
	}
	return &m, nil
}

func scanModel(scan func(dest ...any) error) (Model, error) {
	var (
		m         Model
		ctxLen    sql.NullInt64
		promptP   sql.NullFloat64
		completeP sql.NullFloat64
		reasoning int
	)
	err := scan(&m.ID, &m.OpenRouterID, &m.Name, &ctxLen, &promptP, &completeP, &reasoning, &m.CreatedAt)
	if err != nil {
		return Model{}, err
	}
	if ctxLen.Valid {
		m.ContextLength = &ctxLen.Int64
	}
	if promptP.Valid {
		m.PricingPrompt = &promptP.Float64
	}
	if completeP.Valid {
		m.PricingCompletion = &completeP.Float64
	}
	m.IsReasoning = reasoning != 0
	return m, nil
}
