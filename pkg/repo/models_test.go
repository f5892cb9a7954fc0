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

//go:build fts5

package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedCatalog(t *testing.T, r *Repository) {
	t.Helper()
	_, err := r.UpsertModels(context.Background(), []ModelUpsert{
		{
			OpenRouterID:      "openai/gpt-4o",
			Name:              "GPT-4o",
			ContextLength:     ptr(int64(128000)),
			PricingPrompt:     ptr(0.0000025),
			PricingCompletion: ptr(0.00001),
		},
		{
			OpenRouterID:      "anthropic/claude-sonnet",
			Name:              "claude Sonnet",
			ContextLength:     ptr(int64(200000)),
			PricingPrompt:     ptr(0.000003),
			PricingCompletion: ptr(0.000015),
			IsReasoning:       true,
		},
		{
			OpenRouterID: "mistral/tiny-free",
			Name:         "Tiny Free",
			// context length and prices unreported by the provider
		},
	})
	require.NoError(t, err)
}

func TestUpsertModels_PreservesSurrogateID(t *testing.T) {
	r, db := newTestRepo(t)
	ctx := context.Background()
	seedCatalog(t, r)

	var originalID string
	require.NoError(t, db.QueryRow(
		"SELECT id FROM models WHERE openrouter_id = 'openai/gpt-4o'").Scan(&originalID))
	require.NotEmpty(t, originalID)

	// Re-sync with a new price; the surrogate id must not change.
	_, err := r.UpsertModels(ctx, []ModelUpsert{{
		OpenRouterID:  "openai/gpt-4o",
		Name:          "GPT-4o",
		PricingPrompt: ptr(0.000005),
	}})
	require.NoError(t, err)

	m, err := r.GetModelByExternalID(ctx, "openai/gpt-4o")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, originalID, m.ID)
	require.NotNil(t, m.PricingPrompt)
	assert.Equal(t, 0.000005, *m.PricingPrompt)
	assert.Nil(t, m.ContextLength, "re-sync overwrote context length with the new (absent) value")
}

func TestUpsertModels_SkipsEmptyExternalID(t *testing.T) {
	r, _ := newTestRepo(t)

	synced, err := r.UpsertModels(context.Background(), []ModelUpsert{
		{OpenRouterID: "", Name: "nameless"},
		{OpenRouterID: "real/model", Name: "Real"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, synced)
}

func TestListModels_Filters(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedCatalog(t, r)

	names := func(models []Model) []string {
		out := make([]string, len(models))
		for i, m := range models {
			out[i] = m.OpenRouterID
		}
		return out
	}

	all, err := r.ListModels(ctx, ModelFilter{})
	require.NoError(t, err)
	// Ordered by name, case-insensitively: claude Sonnet, GPT-4o, Tiny Free.
	assert.Equal(t, []string{"anthropic/claude-sonnet", "openai/gpt-4o", "mistral/tiny-free"}, names(all))

	reasoning, err := r.ListModels(ctx, ModelFilter{ReasoningOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic/claude-sonnet"}, names(reasoning))

	// NULL context length is tolerated by the min-context constraint.
	bigCtx, err := r.ListModels(ctx, ModelFilter{MinContext: 150000})
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic/claude-sonnet", "mistral/tiny-free"}, names(bigCtx))

	// NULL prompt price is tolerated by the max-price constraint.
	cheap, err := r.ListModels(ctx, ModelFilter{MaxPrice: 0.0000026})
	require.NoError(t, err)
	assert.Equal(t, []string{"openai/gpt-4o", "mistral/tiny-free"}, names(cheap))
}

func TestListModels_CachedUntilSync(t *testing.T) {
	r, _ := newTestRepo(t)
	ctx := context.Background()
	seedCatalog(t, r)

	_, err := r.ListModels(ctx, ModelFilter{})
	require.NoError(t, err)
	_, err = r.ListModels(ctx, ModelFilter{})
	require.NoError(t, err)

	modelStats := r.CacheStats()[1]
	assert.Equal(t, uint64(1), modelStats.Hits, "second identical list should hit the cache")

	// Sync clears the cache, so the next list misses.
	_, err = r.UpsertModels(ctx, []ModelUpsert{{OpenRouterID: "new/model", Name: "New"}})
	require.NoError(t, err)

	listed, err := r.ListModels(ctx, ModelFilter{})
	require.NoError(t, err)
	assert.Len(t, listed, 4)
}

func TestGetModelByExternalID_MissReturnsNil(t *testing.T) {
	r, _ := newTestRepo(t)

	m, err := r.GetModelByExternalID(context.Background(), "ghost/model")
	require.NoError(t, err)
	assert.Nil(t, m)
}
