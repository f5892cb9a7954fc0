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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	sseclient "github.com/r3labs/sse/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/openrouter"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/sse"
)

// streamFrames runs a stream request and decodes the SSE body.
func streamFrames(t *testing.T, ts *testServer, path string) (*httptest.ResponseRecorder, []sse.Frame) {
	t.Helper()
	rec := ts.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, "stream endpoint must answer 200, got %d: %s", rec.Code, rec.Body.String())
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	// Decode a copy so rec.Body stays readable for raw-wire assertions.
	frames, err := sse.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	return rec, frames
}

func frameJSON(t *testing.T, frame sse.Frame, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(frame.Data), dst), "frame data: %s", frame.Data)
}

// seedChat creates a priced model, a profile, and a session holding one user
// message, mirroring a console conversation ready to stream.
func seedChat(t *testing.T, ts *testServer) (*repo.Profile, *repo.Session) {
	t.Helper()
	ctx := context.Background()

	_, err := ts.repo.UpsertModels(ctx, []repo.ModelUpsert{{
		OpenRouterID:      "m",
		Name:              "Model M",
		ContextLength:     ptr(int64(8192)),
		PricingPrompt:     ptr(1e-6),
		PricingCompletion: ptr(2e-6),
	}})
	require.NoError(t, err)

	profile, err := ts.repo.CreateProfile(ctx, repo.NewProfile{
		Name:         "helpful",
		SystemPrompt: "You are helpful.",
		Temperature:  ptr(0.5),
	})
	require.NoError(t, err)

	session, err := ts.repo.CreateSession(ctx, repo.NewSession{ProfileID: &profile.ID})
	require.NoError(t, err)
	_, err = ts.repo.AddMessage(ctx, session.ID, "user", "hi")
	require.NoError(t, err)

	return profile, session
}

func TestStreamHappyPath(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)
	ts.upstream.tokens = []string{"H", "i"}
	ts.upstream.result = &openrouter.StreamResult{
		Content: "Hi",
		Usage:   &openrouter.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}

	_, frames := streamFrames(t, ts, "/api/stream?session_id="+session.ID+"&model_id=m")

	require.Len(t, frames, 4)
	assert.Equal(t, sse.EventStart, frames[0].Event)
	assert.JSONEq(t, `{"session_id":"`+session.ID+`","model_id":"m"}`, frames[0].Data)
	assert.Equal(t, sse.EventToken, frames[1].Event)
	assert.JSONEq(t, `{"token":"H"}`, frames[1].Data)
	assert.Equal(t, sse.EventToken, frames[2].Event)
	assert.JSONEq(t, `{"token":"i"}`, frames[2].Data)
	assert.Equal(t, sse.EventDone, frames[3].Event)
	assert.JSONEq(t, `{"assistant":"Hi","usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`, frames[3].Data)

	// Profile values flowed upstream, system prompt first.
	assert.Equal(t, "m", ts.upstream.gotReq.Model)
	assert.Equal(t, 0.5, ts.upstream.gotReq.Temperature)
	require.Len(t, ts.upstream.gotReq.Messages, 2)
	assert.Equal(t, openrouter.Message{Role: "system", Content: "You are helpful."}, ts.upstream.gotReq.Messages[0])
	assert.Equal(t, openrouter.Message{Role: "user", Content: "hi"}, ts.upstream.gotReq.Messages[1])

	ctx := context.Background()
	messages, err := ts.repo.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "Hi", messages[1].Content)

	logs, err := ts.repo.ListUsageBySession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 5, logs[0].TotalTokens)
	assert.InDelta(t, 7e-6, logs[0].CostUSD, 1e-12)
}

func TestStreamMissingKey(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)
	ts.upstream.configured = false

	rec, frames := streamFrames(t, ts, "/api/stream?session_id="+session.ID+"&model_id=m")

	assert.Regexp(t,
		`^event: error\ndata: \{"error_code":"MISSING_API_KEY","status":400,"message":"OpenRouter API key is not configured","request_id":"[^"]+"\}\n\n$`,
		rec.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, sse.EventError, frames[0].Event)

	messages, err := ts.repo.ListMessages(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1) // only the seeded user turn
}

func TestStreamUnknownSession(t *testing.T) {
	ts := newTestServer(t)

	_, frames := streamFrames(t, ts, "/api/stream?session_id=missing&model_id=m")

	require.Len(t, frames, 1)
	require.Equal(t, sse.EventError, frames[0].Event)
	var payload struct {
		ErrorCode  string `json:"error_code"`
		Status     int    `json:"status"`
		RequestID  string `json:"request_id"`
		ResourceID string `json:"resource_id"`
	}
	frameJSON(t, frames[0], &payload)
	assert.Equal(t, "SESSION_NOT_FOUND", payload.ErrorCode)
	assert.Equal(t, 404, payload.Status)
	assert.Equal(t, "missing", payload.ResourceID)
	assert.NotEmpty(t, payload.RequestID)
}

func TestStreamUpstreamFailureDropsPersistence(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)
	ts.upstream.tokens = []string{"par", "tial"}
	ts.upstream.err = &openrouter.StatusError{Status: 429, Body: "quota exhausted"}

	_, frames := streamFrames(t, ts, "/api/stream?session_id="+session.ID+"&model_id=m")

	require.Len(t, frames, 4) // start, two tokens, error
	require.Equal(t, sse.EventError, frames[3].Event)
	var payload struct {
		ErrorCode string         `json:"error_code"`
		Status    int            `json:"status"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details"`
	}
	frameJSON(t, frames[3], &payload)
	assert.Equal(t, "OPENROUTER_ERROR", payload.ErrorCode)
	assert.Equal(t, 502, payload.Status)
	assert.Equal(t, "quota exhausted", payload.Message)
	assert.EqualValues(t, 429, payload.Details["upstream_status"])

	ctx := context.Background()
	messages, err := ts.repo.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
	logs, err := ts.repo.ListUsageBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestStreamCancelEmitsNothingFurther(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)

	req := httptest.NewRequest(http.MethodGet, "/api/stream?session_id="+session.ID+"&model_id=m", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	ts.upstream.tokens = []string{"He"}
	ts.upstream.hook = cancel
	ts.upstream.err = context.Canceled

	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)

	frames, err := sse.Decode(rec.Body)
	require.NoError(t, err)
	require.Len(t, frames, 2) // start and the relayed token, then silence
	assert.Equal(t, sse.EventStart, frames[0].Event)
	assert.Equal(t, sse.EventToken, frames[1].Event)

	background := context.Background()
	messages, merr := ts.repo.ListMessages(background, session.ID)
	require.NoError(t, merr)
	assert.Len(t, messages, 1)
	logs, lerr := ts.repo.ListUsageBySession(background, session.ID)
	require.NoError(t, lerr)
	assert.Empty(t, logs)
}

func TestStreamNoUsageReported(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)
	ts.upstream.tokens = []string{"ok"}
	ts.upstream.result = &openrouter.StreamResult{Content: "ok"}

	_, frames := streamFrames(t, ts, "/api/stream?session_id="+session.ID+"&model_id=m")

	last := frames[len(frames)-1]
	require.Equal(t, sse.EventDone, last.Event)
	assert.JSONEq(t, `{"assistant":"ok","usage":null}`, last.Data)

	logs, err := ts.repo.ListUsageBySession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestStreamEmptyAssistantNotPersisted(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)
	ts.upstream.result = &openrouter.StreamResult{
		Content: "",
		Usage:   &openrouter.Usage{PromptTokens: 3, TotalTokens: 3},
	}

	_, frames := streamFrames(t, ts, "/api/stream?session_id="+session.ID+"&model_id=m")

	require.Equal(t, sse.EventDone, frames[len(frames)-1].Event)

	ctx := context.Background()
	messages, err := ts.repo.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1, "blank assistant output must not be persisted")
	logs, err := ts.repo.ListUsageBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "usage was reported and must be recorded")
}

func TestStreamExplicitProfileWins(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)
	ctx := context.Background()

	terse, err := ts.repo.CreateProfile(ctx, repo.NewProfile{
		Name:             "terse",
		SystemPrompt:     "Answer in one word.",
		Temperature:      ptr(0.1),
		MaxTokens:        ptr(64),
		OpenRouterPreset: "fast",
	})
	require.NoError(t, err)

	ts.upstream.result = &openrouter.StreamResult{Content: "ok"}

	streamFrames(t, ts, "/api/stream?session_id="+session.ID+"&model_id=m&profile_id="+
		strconv.FormatInt(terse.ID, 10))

	assert.Equal(t, "m@preset/fast", ts.upstream.gotReq.Model)
	assert.Equal(t, 0.1, ts.upstream.gotReq.Temperature)
	assert.Equal(t, 64, ts.upstream.gotReq.MaxTokens)
	require.NotEmpty(t, ts.upstream.gotReq.Messages)
	assert.Equal(t, "Answer in one word.", ts.upstream.gotReq.Messages[0].Content)
}

func TestStreamQueryOverridesBeatProfile(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)
	ts.upstream.result = &openrouter.StreamResult{Content: "ok"}

	streamFrames(t, ts, "/api/stream?session_id="+session.ID+"&model_id=m&temperature=1.5&max_tokens=99")

	assert.Equal(t, 1.5, ts.upstream.gotReq.Temperature)
	assert.Equal(t, 99, ts.upstream.gotReq.MaxTokens)
}

func TestStreamRejectsBadParams(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)

	for _, tt := range []struct {
		name  string
		query string
	}{
		{"temperature not a number", "&temperature=warm"},
		{"temperature out of range", "&temperature=2.5"},
		{"max_tokens out of range", "&max_tokens=0"},
		{"profile_id not an integer", "&profile_id=abc"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, frames := streamFrames(t, ts, "/api/stream?session_id="+session.ID+"&model_id=m"+tt.query)
			require.Len(t, frames, 1)
			require.Equal(t, sse.EventError, frames[0].Event)
			var payload struct {
				ErrorCode string `json:"error_code"`
			}
			frameJSON(t, frames[0], &payload)
			assert.Equal(t, "STREAM_ERROR", payload.ErrorCode)
		})
	}
}

func TestStreamPersistFailureEmitsErrorFrame(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)
	ts.upstream.tokens = []string{"Hi"}
	ts.upstream.result = &openrouter.StreamResult{Content: "Hi"}
	// Deleting the session mid-stream makes the assistant insert fail.
	ts.upstream.hook = func() {
		require.NoError(t, ts.repo.DeleteSession(context.Background(), session.ID))
	}

	_, frames := streamFrames(t, ts, "/api/stream?session_id="+session.ID+"&model_id=m")

	last := frames[len(frames)-1]
	require.Equal(t, sse.EventError, last.Event)
	var payload struct {
		ErrorCode string `json:"error_code"`
		Message   string `json:"message"`
	}
	frameJSON(t, last, &payload)
	assert.Equal(t, "STREAM_ERROR", payload.ErrorCode)
	assert.Equal(t, "Failed to persist assistant message", payload.Message)
}

// TestStreamEndToEndClient consumes the stream over a real TCP connection
// with an EventSource-style client, so header flushing and frame layout get
// exercised the way a browser sees them.
func TestStreamEndToEndClient(t *testing.T) {
	ts := newTestServer(t)
	_, session := seedChat(t, ts)
	ts.upstream.tokens = []string{"He", "llo"}
	ts.upstream.result = &openrouter.StreamResult{
		Content: "Hello",
		Usage:   &openrouter.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}

	httpSrv := httptest.NewServer(ts.server.Handler())
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	type frame struct{ event, data string }
	var frames []frame
	client := sseclient.NewClient(httpSrv.URL + "/api/stream?session_id=" + session.ID + "&model_id=m")
	err := client.SubscribeRawWithContext(ctx, func(msg *sseclient.Event) {
		frames = append(frames, frame{string(msg.Event), string(msg.Data)})
	})
	require.NoError(t, err)

	require.Len(t, frames, 4)
	assert.Equal(t, sse.EventStart, frames[0].event)
	assert.JSONEq(t, `{"session_id":"`+session.ID+`","model_id":"m"}`, frames[0].data)
	assert.Equal(t, sse.EventToken, frames[1].event)
	assert.JSONEq(t, `{"token":"He"}`, frames[1].data)
	assert.Equal(t, sse.EventToken, frames[2].event)
	assert.JSONEq(t, `{"token":"llo"}`, frames[2].data)
	assert.Equal(t, sse.EventDone, frames[3].event)
	assert.JSONEq(t, `{"assistant":"Hello","usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`, frames[3].data)
}
