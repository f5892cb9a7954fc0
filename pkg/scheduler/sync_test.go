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
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/openrouter"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
)

type fakeSource struct {
	unconfigured bool
	models       []openrouter.CatalogModel
	failures     int
	err          error
	calls        int
}

func (f *fakeSource) Configured() bool { return !f.unconfigured }

func (f *fakeSource) ListModels(ctx context.Context) ([]openrouter.CatalogModel, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return f.models, nil
}

type fakeStore struct {
	batch []repo.ModelUpsert
	err   error
	calls int
}

func (f *fakeStore) UpsertModels(ctx context.Context, batch []repo.ModelUpsert) (int, error) {
	f.calls++
	f.batch = batch
	if f.err != nil {
		return 0, f.err
	}
	return len(batch), nil
}

func newTestSyncer(source *fakeSource, store *fakeStore) *ModelSyncer {
	ms := NewModelSyncer(source, store, nil, nil)
	ms.newBackoff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 5)
	}
	return ms
}

func TestModelSyncer_Sync_MapsCatalog(t *testing.T) {
	ctxLen := int64(200000)
	prompt := 0.000003
	completion := 0.000015

	source := &fakeSource{models: []openrouter.CatalogModel{
		{
			ID:                "anthropic/claude-sonnet",
			Name:              "Claude Sonnet",
			ContextLength:     &ctxLen,
			PricingPrompt:     &prompt,
			PricingCompletion: &completion,
			IsReasoning:       true,
		},
		{ID: "mistral/tiny", Name: "mistral/tiny"},
	}}
	store := &fakeStore{}

	count, err := newTestSyncer(source, store).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, source.calls)

	require.Len(t, store.batch, 2)
	first := store.batch[0]
	assert.Equal(t, "anthropic/claude-sonnet", first.OpenRouterID)
	assert.Equal(t, "Claude Sonnet", first.Name)
	require.NotNil(t, first.ContextLength)
	assert.Equal(t, int64(200000), *first.ContextLength)
	require.NotNil(t, first.PricingPrompt)
	assert.InEpsilon(t, 0.000003, *first.PricingPrompt, 1e-12)
	assert.True(t, first.IsReasoning)

	second := store.batch[1]
	assert.Nil(t, second.ContextLength)
	assert.Nil(t, second.PricingPrompt)
	assert.Nil(t, second.PricingCompletion)
	assert.False(t, second.IsReasoning)
}

func TestModelSyncer_Sync_Unconfigured(t *testing.T) {
	source := &fakeSource{unconfigured: true}
	store := &fakeStore{}

	_, err := newTestSyncer(source, store).Sync(context.Background())
	require.ErrorIs(t, err, openrouter.ErrMissingAPIKey)
	assert.Zero(t, source.calls)
	assert.Zero(t, store.calls)
}

func TestModelSyncer_Sync_RetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		failures  int
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "5xx retries until success",
			err:       &openrouter.StatusError{Status: 503, Body: "unavailable"},
			failures:  2,
			wantCalls: 3,
		},
		{
			name:      "429 retries",
			err:       &openrouter.StatusError{Status: 429, Body: "slow down"},
			failures:  1,
			wantCalls: 2,
		},
		{
			name:      "transport errors retry",
			err:       errors.New("connection reset"),
			failures:  1,
			wantCalls: 2,
		},
		{
			name:      "4xx fails immediately",
			err:       &openrouter.StatusError{Status: 401, Body: "bad key"},
			failures:  10,
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &fakeSource{
				models:   []openrouter.CatalogModel{{ID: "m", Name: "m"}},
				failures: tt.failures,
				err:      tt.err,
			}
			store := &fakeStore{}

			count, err := newTestSyncer(source, store).Sync(context.Background())
			assert.Equal(t, tt.wantCalls, source.calls)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "failed to fetch model catalog")
				var statusErr *openrouter.StatusError
				assert.ErrorAs(t, err, &statusErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestModelSyncer_Sync_StoreError(t *testing.T) {
	source := &fakeSource{models: []openrouter.CatalogModel{{ID: "m", Name: "m"}}}
	store := &fakeStore{err: errors.New("disk full")}

	_, err := newTestSyncer(source, store).Sync(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store model catalog")
}
