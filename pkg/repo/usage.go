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
	"strings"

	"github.com/google/uuid"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/apierror"
)

const usageColumns = "id, session_id, profile_id, model_id, prompt_tokens, completion_tokens, total_tokens, cost_usd, created_at"

// timelineFormats maps timeline periods to strftime bucket formats.
var timelineFormats = map[string]string{
	"day":   "%Y-%m-%d",
	"week":  "%Y-W%W",
	"month": "%Y-%m",
}

// InsertUsageLog records token usage for a session. Negative counts are
// coerced to zero and the total is recomputed as prompt+completion. Cost is
// prompt×unit + completion×unit using the catalog's per-token USD prices for
// the base model (any "@preset/<label>" suffix is ignored for pricing); a
// missing model or missing price contributes zero.
func (r *Repository) InsertUsageLog(ctx context.Context, u NewUsageLog) (*UsageLog, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.insert_usage_log")
	defer r.tracer.EndSpan(span)
	span.SetAttribute("session_id", u.SessionID)
	span.SetAttribute("model_id", u.ModelID)

	if _, err := r.GetSession(ctx, u.SessionID); err != nil {
		return nil, err
	}

	promptTokens := max(u.PromptTokens, 0)
	completionTokens := max(u.CompletionTokens, 0)
	totalTokens := promptTokens + completionTokens

	var cost float64
	if u.ModelID != "" {
		model, err := r.GetModelByExternalID(ctx, baseModelID(u.ModelID))
		if err != nil {
			return nil, err
		}
		if model != nil {
			if model.PricingPrompt != nil {
				cost += float64(promptTokens) * *model.PricingPrompt
			}
			if model.PricingCompletion != nil {
				cost += float64(completionTokens) * *model.PricingCompletion
			}
		}
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO usage_logs (id, session_id, profile_id, model_id, prompt_tokens, completion_tokens, total_tokens, cost_usd)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, u.SessionID, u.ProfileID, nullString(u.ModelID), promptTokens, completionTokens, totalTokens, cost)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert usage log: %w", err)
	}

	span.SetAttribute("cost_usd", cost)
	return r.GetUsageLog(ctx, id)
}

// GetUsageLog returns one usage row by id.
func (r *Repository) GetUsageLog(ctx context.Context, id string) (*UsageLog, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.get_usage_log")
	defer r.tracer.EndSpan(span)

	row := r.db.QueryRowContext(ctx,
		"SELECT "+usageColumns+" FROM usage_logs WHERE id = ?", id)
	u, err := scanUsageLog(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound(apierror.CodeUsageLogNotFound, "usage_log", id, "Usage log not found")
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load usage log %s: %w", id, err)
	}
	return &u, nil
}

// ListUsageBySession returns a session's usage rows in chronological order.
func (r *Repository) ListUsageBySession(ctx context.Context, sessionID string) ([]UsageLog, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.list_usage_by_session")
	defer r.tracer.EndSpan(span)
	span.SetAttribute("session_id", sessionID)

	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+usageColumns+" FROM usage_logs WHERE session_id = ? ORDER BY created_at ASC, rowid ASC",
		sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list usage logs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	logs := []UsageLog{}
	for rows.Next() {
		u, err := scanUsageLog(rows.Scan)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		logs = append(logs, u)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate usage rows: %w", err)
	}

	span.SetAttribute("count", len(logs))
	return logs, nil
}

// AggregateUsageByModel groups usage rows by the effective model identifier,
// most expensive first. Catalog name and external id resolve through the
// base model so preset variants still display their model name.
func (r *Repository) AggregateUsageByModel(ctx context.Context) ([]ModelUsage, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.aggregate_usage_by_model")
	defer r.tracer.EndSpan(span)

	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(ul.model_id, ''),
		       m.name, m.openrouter_id,
		       COUNT(*),
		       COALESCE(SUM(ul.prompt_tokens), 0),
		       COALESCE(SUM(ul.completion_tokens), 0),
		       COALESCE(SUM(ul.total_tokens), 0),
		       COALESCE(SUM(ul.cost_usd), 0)
		FROM usage_logs ul
		LEFT JOIN models m ON m.openrouter_id = CASE
			WHEN instr(ul.model_id, '@preset/') > 0
			THEN substr(ul.model_id, 1, instr(ul.model_id, '@preset/') - 1)
			ELSE ul.model_id
		END
		GROUP BY ul.model_id
		ORDER BY SUM(ul.cost_usd) DESC, SUM(ul.total_tokens) DESC
	`)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate usage by model: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	usage := []ModelUsage{}
	for rows.Next() {
		var (
			mu           ModelUsage
			name         sql.NullString
			openrouterID sql.NullString
		)
		if err := rows.Scan(&mu.ModelID, &name, &openrouterID, &mu.Requests,
			&mu.PromptTokens, &mu.CompletionTokens, &mu.TotalTokens, &mu.CostUSD); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan model usage row: %w", err)
		}
		if name.Valid {
			mu.ModelName = &name.String
		}
		if openrouterID.Valid {
			mu.OpenRouterID = &openrouterID.String
		}
		usage = append(usage, mu)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate model usage rows: %w", err)
	}

	span.SetAttribute("models", len(usage))
	return usage, nil
}

// UsageTimeline buckets usage rows by day, week, or month within an optional
// date range, oldest bucket first.
func (r *Repository) UsageTimeline(ctx context.Context, period, startDate, endDate string) ([]UsagePeriod, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.usage_timeline")
	defer r.tracer.EndSpan(span)
	span.SetAttribute("period", period)

	format, ok := timelineFormats[period]
	if !ok {
		return nil, fmt.Errorf("invalid period %q (want day, week, or month)", period)
	}

	query := `
		SELECT strftime(?, created_at) AS bucket,
		       COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_usd), 0)
		FROM usage_logs
		WHERE 1=1
	`
	args := []any{format}
	if startDate != "" {
		query += " AND created_at >= ?"
		args = append(args, startDate)
	}
	if endDate != "" {
		query += " AND created_at <= ?"
		args = append(args, inclusiveEnd(endDate))
	}
	query += " GROUP BY bucket ORDER BY bucket ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query usage timeline: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	timeline := []UsagePeriod{}
	for rows.Next() {
		var p UsagePeriod
		if err := rows.Scan(&p.Period, &p.Requests, &p.PromptTokens,
			&p.CompletionTokens, &p.TotalTokens, &p.CostUSD); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan timeline row: %w", err)
		}
		timeline = append(timeline, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate timeline rows: %w", err)
	}

	span.SetAttribute("buckets", len(timeline))
	return timeline, nil
}

// UsageTotals summarizes every usage row.
func (r *Repository) UsageTotals(ctx context.Context) (*UsageTotals, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.usage_totals")
	defer r.tracer.EndSpan(span)

	var t UsageTotals
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_usd), 0),
		       COUNT(DISTINCT session_id)
		FROM usage_logs
	`).Scan(&t.Requests, &t.PromptTokens, &t.CompletionTokens,
		&t.TotalTokens, &t.CostUSD, &t.Sessions)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to compute usage totals: %w", err)
	}
	return &t, nil
}

func scanUsageLog(scan func(dest ...any) error) (UsageLog, error) {
	var (
		u         UsageLog
		profileID sql.NullInt64
		modelID   sql.NullString
	)
	err := scan(&u.ID, &u.SessionID, &profileID, &modelID,
		&u.PromptTokens, &u.CompletionTokens, &u.TotalTokens, &u.CostUSD, &u.CreatedAt)
	if err != nil {
		return UsageLog{}, err
	}
	if profileID.Valid {
		u.ProfileID = &profileID.Int64
	}
	if modelID.Valid {
		u.ModelID = &modelID.String
	}
	return u, nil
}

// baseModelID strips a "@preset/<label>" suffix from an effective model
// identifier, leaving the catalog id used for pricing lookups.
func baseModelID(effective string) string {
	if i := strings.Index(effective, "@preset/"); i >= 0 {
		return effective[:i]
	}
	return effective
}
