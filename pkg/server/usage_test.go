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

package server

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
)

func seedUsageFixtures(t *testing.T, ts *testServer) *repo.Session {
	t.Helper()
	ctx := context.Background()
	_, err := ts.repo.UpsertModels(ctx, []repo.ModelUpsert{{
		OpenRouterID:      "m",
		Name:              "Model M",
		PricingPrompt:     ptr(1e-6),
		PricingCompletion: ptr(2e-6),
	}})
	require.NoError(t, err)
	session, err := ts.repo.CreateSession(ctx, repo.NewSession{})
	require.NoError(t, err)
	return session
}

func TestCreateUsageLog(t *testing.T) {
	ts := newTestServer(t)
	session := seedUsageFixtures(t, ts)

	rec := ts.do(http.MethodPost, "/api/usage", map[string]any{
		"session_id":        session.ID,
		"model_id":          "m",
		"prompt_tokens":     1000,
		"completion_tokens": 500,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var log repo.UsageLog
	decodeBody(t, rec, &log)
	assert.Equal(t, session.ID, log.SessionID)
	assert.Equal(t, 1500, log.TotalTokens)
	assert.InDelta(t, 0.002, log.CostUSD, 1e-12)
}

func TestCreateUsageLogPresetPricesAsBaseModel(t *testing.T) {
	ts := newTestServer(t)
	session := seedUsageFixtures(t, ts)

	rec := ts.do(http.MethodPost, "/api/usage", map[string]any{
		"session_id":        session.ID,
		"model_id":          "m@preset/fast",
		"prompt_tokens":     100,
		"completion_tokens": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var log repo.UsageLog
	decodeBody(t, rec, &log)
	require.NotNil(t, log.ModelID)
	assert.Equal(t, "m@preset/fast", *log.ModelID, "the effective id is recorded as sent upstream")
	assert.InDelta(t, 3e-4, log.CostUSD, 1e-12, "pricing resolves through the base model")
}

func TestCreateUsageLogUnknownSession(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/usage", map[string]any{
		"session_id": "missing",
		"model_id":   "m",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body envelope
	decodeBody(t, rec, &body)
	assert.Equal(t, "SESSION_NOT_FOUND", body.ErrorCode)
}

func TestUsageBySession(t *testing.T) {
	ts := newTestServer(t)
	session := seedUsageFixtures(t, ts)
	ctx := context.Background()
	for _, tokens := range []int{10, 20} {
		_, err := ts.repo.InsertUsageLog(ctx, repo.NewUsageLog{
			SessionID: session.ID, ModelID: "m", PromptTokens: tokens,
		})
		require.NoError(t, err)
	}

	rec := ts.do(http.MethodGet, "/api/usage/sessions/"+session.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs []repo.UsageLog
	decodeBody(t, rec, &logs)
	require.Len(t, logs, 2)
	assert.Equal(t, 10, logs[0].PromptTokens)
	assert.Equal(t, 20, logs[1].PromptTokens)

	rec = ts.do(http.MethodGet, "/api/usage/sessions/missing", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body envelope
	decodeBody(t, rec, &body)
	assert.Equal(t, "SESSION_NOT_FOUND", body.ErrorCode)
}

func TestUsageByModel(t *testing.T) {
	ts := newTestServer(t)
	session := seedUsageFixtures(t, ts)
	ctx := context.Background()
	_, err := ts.repo.InsertUsageLog(ctx, repo.NewUsageLog{
		SessionID: session.ID, ModelID: "m", PromptTokens: 1000,
	})
	require.NoError(t, err)
	_, err = ts.repo.InsertUsageLog(ctx, repo.NewUsageLog{
		SessionID: session.ID, ModelID: "gone/model", PromptTokens: 5,
	})
	require.NoError(t, err)

	rec := ts.do(http.MethodGet, "/api/usage/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var usage []repo.ModelUsage
	decodeBody(t, rec, &usage)
	require.Len(t, usage, 2)

	// Most expensive first; catalog fields resolve only for synced models.
	assert.Equal(t, "m", usage[0].ModelID)
	require.NotNil(t, usage[0].ModelName)
	assert.Equal(t, "Model M", *usage[0].ModelName)
	assert.Equal(t, 1, usage[0].Requests)
	assert.InDelta(t, 0.001, usage[0].CostUSD, 1e-12)

	assert.Equal(t, "gone/model", usage[1].ModelID)
	assert.Nil(t, usage[1].ModelName)
}

func TestUsageTimeline(t *testing.T) {
	ts := newTestServer(t)
	session := seedUsageFixtures(t, ts)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := ts.repo.InsertUsageLog(ctx, repo.NewUsageLog{
			SessionID: session.ID, ModelID: "m", PromptTokens: 10,
		})
		require.NoError(t, err)
	}

	rec := ts.do(http.MethodGet, "/api/usage/timeline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var timeline []repo.UsagePeriod
	decodeBody(t, rec, &timeline)
	require.Len(t, timeline, 1, "rows created together land in one daily bucket")
	assert.Equal(t, 3, timeline[0].Requests)
	assert.Equal(t, 30, timeline[0].TotalTokens)

	rec = ts.do(http.MethodGet, "/api/usage/timeline?period=month", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &timeline)
	require.Len(t, timeline, 1)

	rec = ts.do(http.MethodGet, "/api/usage/timeline?period=fortnight", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body envelope
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Message, "period")
}

func TestUsageTotals(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	_ = seedUsageFixtures(t, ts)
	for i := 0; i < 2; i++ {
		session, err := ts.repo.CreateSession(ctx, repo.NewSession{})
		require.NoError(t, err)
		_, err = ts.repo.InsertUsageLog(ctx, repo.NewUsageLog{
			SessionID: session.ID, ModelID: "m",
			PromptTokens: 100, CompletionTokens: 50,
		})
		require.NoError(t, err)
	}

	rec := ts.do(http.MethodGet, "/api/usage/totals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var totals repo.UsageTotals
	decodeBody(t, rec, &totals)
	assert.Equal(t, 2, totals.Requests)
	assert.Equal(t, 300, totals.TotalTokens)
	assert.Equal(t, 2, totals.Sessions)
	assert.InDelta(t, 2*(100*1e-6+50*2e-6), totals.CostUSD, 1e-12)
}
