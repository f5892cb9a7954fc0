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

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/apierror"
)

const messageColumns = "id, session_id, role, content, created_at"

var validRoles = map[string]bool{
	"system":    true,
	"user":      true,
	"assistant": true,
	"tool":      true,
}

// AddMessage appends a message to a session. The role must be one of
// system, user, assistant, tool. The session must exist.
func (r *Repository) AddMessage(ctx context.Context, sessionID, role, content string) (*Message, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.add_message")
	defer r.tracer.EndSpan(span)
	span.SetAttribute("session_id", sessionID)
	span.SetAttribute("role", role)

	if !validRoles[role] {
		return nil, fmt.Errorf("invalid message role %q", role)
	}
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content)
		VALUES (?, ?, ?, ?)
	`, id, sessionID, role, content)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	return r.GetMessage(ctx, id)
}

// GetMessage returns one message by id.
func (r *Repository) GetMessage(ctx context.Context, id string) (*Message, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.get_message")
	defer r.tracer.EndSpan(span)

	row := r.db.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = ?", id)

	var m Message
	err := row.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound(apierror.CodeMessageNotFound, "message", id, "")
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load message %s: %w", id, err)
	}
	return &m, nil
}

// ListMessages returns a session's transcript in insertion order. The rowid
// tiebreak keeps turns written within the same created_at second in the
// order they were appended.
func (r *Repository) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.list_messages")
	defer r.tracer.EndSpan(span)
	span.SetAttribute("session_id", sessionID)

	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE session_id = ? ORDER BY created_at ASC, rowid ASC",
		sessionID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	messages := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}

	span.SetAttribute("count", len(messages))
	return messages, nil
}

// DeleteMessage removes one message. The search index drops the row via the
// delete trigger.
func (r *Repository) DeleteMessage(ctx context.Context, id string) error {
	ctx, span := r.tracer.StartSpan(ctx, "repo.delete_message")
	defer r.tracer.EndSpan(span)

	res, err := r.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return apierror.NotFound(apierror.CodeMessageNotFound, "message", id, "")
	}
	return nil
}
