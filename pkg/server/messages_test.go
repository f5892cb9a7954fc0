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

func TestCreateMessage(t *testing.T) {
	ts := newTestServer(t)
	session, err := ts.repo.CreateSession(context.Background(), repo.NewSession{})
	require.NoError(t, err)

	rec := ts.do(http.MethodPost, "/api/messages", map[string]any{
		"session_id": session.ID,
		"role":       "user",
		"content":    "hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var message repo.Message
	decodeBody(t, rec, &message)
	assert.NotEmpty(t, message.ID)
	assert.Equal(t, session.ID, message.SessionID)
	assert.Equal(t, "user", message.Role)
	assert.Equal(t, "hello", message.Content)
}

func TestCreateMessageValidation(t *testing.T) {
	ts := newTestServer(t)
	session, err := ts.repo.CreateSession(context.Background(), repo.NewSession{})
	require.NoError(t, err)

	rec := ts.do(http.MethodPost, "/api/messages", map[string]any{
		"session_id": session.ID, "role": "narrator", "content": "x",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body envelope
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Message, "role")

	rec = ts.do(http.MethodPost, "/api/messages", map[string]any{
		"session_id": session.ID, "role": "user", "content": "",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decodeBody(t, rec, &body)
	assert.Contains(t, body.Message, "content")

	rec = ts.do(http.MethodPost, "/api/messages", map[string]any{
		"session_id": "missing", "role": "user", "content": "x",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	decodeBody(t, rec, &body)
	assert.Equal(t, "SESSION_NOT_FOUND", body.ErrorCode)
}

func TestDeleteMessage(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	session, err := ts.repo.CreateSession(ctx, repo.NewSession{})
	require.NoError(t, err)
	message, err := ts.repo.AddMessage(ctx, session.ID, "user", "short lived")
	require.NoError(t, err)

	rec := ts.do(http.MethodDelete, "/api/messages/"+message.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"message":"Message deleted successfully","id":"`+message.ID+`"}`,
		rec.Body.String())

	rec = ts.do(http.MethodDelete, "/api/messages/"+message.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body envelope
	decodeBody(t, rec, &body)
	assert.Equal(t, "MESSAGE_NOT_FOUND", body.ErrorCode)
}

func TestSearchMessages(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	chat, err := ts.repo.CreateSession(ctx, repo.NewSession{})
	require.NoError(t, err)
	docs, err := ts.repo.CreateSession(ctx, repo.NewSession{SessionType: "documents"})
	require.NoError(t, err)
	_, err = ts.repo.AddMessage(ctx, chat.ID, "user", "the quick brown fox")
	require.NoError(t, err)
	_, err = ts.repo.AddMessage(ctx, docs.ID, "assistant", "a fox appears in chapter two")
	require.NoError(t, err)
	_, err = ts.repo.AddMessage(ctx, chat.ID, "user", "lazy dogs sleep all day")
	require.NoError(t, err)

	rec := ts.do(http.MethodGet, "/api/messages/search?query=fox", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var results []repo.SearchResult
	decodeBody(t, rec, &results)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Contains(t, r.Snippet, "<mark>fox</mark>")
	}

	rec = ts.do(http.MethodGet, "/api/messages/search?query=fox&session_id="+chat.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &results)
	require.Len(t, results, 1)
	assert.Equal(t, chat.ID, results[0].SessionID)

	rec = ts.do(http.MethodGet, "/api/messages/search?query=fox&session_type=documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &results)
	require.Len(t, results, 1)
	assert.Equal(t, "documents", results[0].SessionType)

	// Ignored for compatibility with older frontends.
	rec = ts.do(http.MethodGet, "/api/messages/search?query=fox&model_id=m", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchMessagesRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	for _, tt := range []struct {
		name  string
		query string
	}{
		{"empty query", "query="},
		{"unbalanced fts syntax", `query=fox+AND+(`},
		{"limit garbage", "query=fox&limit=nope"},
		{"offset garbage", "query=fox&offset=nope"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, "/api/messages/search?"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}
