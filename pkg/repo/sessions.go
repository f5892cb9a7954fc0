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

const sessionColumns = "id, session_type, title, profile_id, created_at"

// CreateSession inserts a session. An empty session type defaults to "chat".
// A non-nil profile id must reference an existing profile.
func (r *Repository) CreateSession(ctx context.Context, s NewSession) (*Session, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.create_session")
	defer r.tracer.EndSpan(span)

	sessionType := s.SessionType
	if sessionType == "" {
		sessionType = "chat"
	}

	if s.ProfileID != nil {
		if _, err := r.GetProfile(ctx, *s.ProfileID); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, session_type, title, profile_id)
		VALUES (?, ?, ?, ?)
	`, id, sessionType, nullString(s.Title), s.ProfileID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	span.SetAttribute("session_id", id)
	return r.GetSession(ctx, id)
}

// GetSession returns one session by id.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.get_session")
	defer r.tracer.EndSpan(span)
	span.SetAttribute("session_id", id)

	row := r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	s, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound(apierror.CodeSessionNotFound, "session", id, "")
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return &s, nil
}

// ListSessions returns sessions newest first, optionally filtered by type.
// A non-positive limit falls back to 50.
func (r *Repository) ListSessions(ctx context.Context, sessionType string, limit int) ([]Session, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.list_sessions")
	defer r.tracer.EndSpan(span)

	if limit <= 0 {
		limit = 50
	}

	query := "SELECT " + sessionColumns + " FROM sessions"
	var args []any
	if sessionType != "" {
		query += " WHERE session_type = ?"
		args = append(args, sessionType)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}

	span.SetAttribute("count", len(sessions))
	return sessions, nil
}

// UpdateSession applies the non-nil fields and returns the updated row.
// A pointer to an empty title clears it; a pointer to profile id 0 detaches
// the profile.
func (r *Repository) UpdateSession(ctx context.Context, id string, upd SessionUpdate) (*Session, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.update_session")
	defer r.tracer.EndSpan(span)
	span.SetAttribute("session_id", id)

	var (
		sets []string
		args []any
	)
	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, nullString(*upd.Title))
	}
	if upd.ProfileID != nil {
		if *upd.ProfileID == 0 {
			sets = append(sets, "profile_id = NULL")
		} else {
			if _, err := r.GetProfile(ctx, *upd.ProfileID); err != nil {
				return nil, err
			}
			sets = append(sets, "profile_id = ?")
			args = append(args, *upd.ProfileID)
		}
	}

	if len(sets) == 0 {
		return r.GetSession(ctx, id)
	}

	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update session %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return nil, apierror.NotFound(apierror.CodeSessionNotFound, "session", id, "")
	}

	return r.GetSession(ctx, id)
}

// DeleteSession removes a session; messages and usage rows cascade.
func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	ctx, span := r.tracer.StartSpan(ctx, "repo.delete_session")
	defer r.tracer.EndSpan(span)
	span.SetAttribute("session_id", id)

	res, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return apierror.NotFound(apierror.CodeSessionNotFound, "session", id, "")
	}
	return nil
}

func scanSession(scan func(dest ...any) error) (Session, error) {
	var (
		s         Session
		title     sql.NullString
		profileID sql.NullInt64
	)
	err := scan(&s.ID, &s.SessionType, &title, &profileID, &s.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	if title.Valid {
		s.Title = &title.String
	}
	if profileID.Valid {
		s.ProfileID = &profileID.Int64
	}
	return s, nil
}
