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
	"errors"
	"fmt"
	"strings"
)

// ErrBadQuery marks FTS5 syntax errors in user-supplied search queries so
// the HTTP layer can answer 400 instead of 500.
var ErrBadQuery = errors.New("invalid search query")

// Search limits. A non-positive requested limit falls back to the default.
const (
	searchDefaultLimit = 50
	searchMaxLimit     = 200
)

// snippetTokens is the FTS5 snippet window in tokens.
const snippetTokens = 32

// SearchMessages runs a full-text query over message content. The query
// supports FTS5 match syntax (phrases, prefix*, NOT). Results are ordered by
// relevance, then recency. Rank is exposed positive-is-better.
func (r *Repository) SearchMessages(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.search_messages")
	defer r.tracer.EndSpan(span)

	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrBadQuery)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = searchDefaultLimit
	}
	if limit > searchMaxLimit {
		limit = searchMaxLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT m.id, m.session_id, s.session_type, s.title, m.role, m.content,
		       snippet(messages_fts, 0, '<mark>', '</mark>', '…', %d),
		       bm25(messages_fts),
		       m.created_at
		FROM messages_fts
		JOIN messages m ON m.rowid = messages_fts.rowid
		JOIN sessions s ON s.id = m.session_id
		WHERE messages_fts MATCH ?
	`, snippetTokens)
	args := []any{params.Query}

	if params.SessionID != "" {
		query += " AND m.session_id = ?"
		args = append(args, params.SessionID)
	}
	if params.SessionType != "" {
		query += " AND s.session_type = ?"
		args = append(args, params.SessionType)
	}
	if params.StartDate != "" {
		query += " AND m.created_at >= ?"
		args = append(args, params.StartDate)
	}
	if params.EndDate != "" {
		query += " AND m.created_at <= ?"
		args = append(args, inclusiveEnd(params.EndDate))
	}

	query += " ORDER BY bm25(messages_fts) ASC, m.created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isFTSSyntaxError(err) {
			return nil, fmt.Errorf("%w: %v", ErrBadQuery, err)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	results := []SearchResult{}
	for rows.Next() {
		var (
			res   SearchResult
			title sql.NullString
			bm25  float64
		)
		if err := rows.Scan(&res.MessageID, &res.SessionID, &res.SessionType, &title,
			&res.Role, &res.Content, &res.Snippet, &bm25, &res.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		if title.Valid {
			res.SessionTitle = &title.String
		}
		// bm25 scores are better when smaller (and typically negative).
		res.Rank = -bm25
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		if isFTSSyntaxError(err) {
			return nil, fmt.Errorf("%w: %v", ErrBadQuery, err)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate search rows: %w", err)
	}

	span.SetAttribute("count", len(results))
	return results, nil
}

// inclusiveEnd widens a date-only upper bound to the end of that day so
// "end_date=2026-03-01" includes messages written during 2026-03-01.
func inclusiveEnd(date string) string {
	if len(date) == len("2006-01-02") {
		return date + " 23:59:59"
	}
	return date
}

// isFTSSyntaxError detects FTS5 query parse failures, which both drivers
// surface as generic SQL errors mentioning fts5.
func isFTSSyntaxError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "fts5: syntax error") ||
		strings.Contains(msg, "malformed match expression") ||
		strings.Contains(msg, "unterminated string")
}
