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

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/apierror"
)

const profileColumns = "id, name, system_prompt, temperature, max_tokens, openrouter_preset, created_at"

// CreateProfile inserts a profile. Nil temperature and max-tokens fall back
// to the schema defaults. Empty system prompt and preset persist as NULL.
func (r *Repository) CreateProfile(ctx context.Context, p NewProfile) (*Profile, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.create_profile")
	defer r.tracer.EndSpan(span)

	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("profile name is required")
	}

	temperature := 0.7
	if p.Temperature != nil {
		temperature = *p.Temperature
	}
	maxTokens := 2048
	if p.MaxTokens != nil {
		maxTokens = *p.MaxTokens
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (name, system_prompt, temperature, max_tokens, openrouter_preset)
		VALUES (?, ?, ?, ?, ?)
	`, p.Name, nullString(p.SystemPrompt), temperature, maxTokens, nullString(p.OpenRouterPreset))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to insert profile: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read new profile id: %w", err)
	}

	r.profiles.Invalidate("profiles_all")
	span.SetAttribute("profile_id", id)
	return r.loadProfile(ctx, id)
}

// GetProfile returns one profile, read-through cached under "profile_<id>".
func (r *Repository) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.get_profile")
	defer r.tracer.EndSpan(span)

	key := fmt.Sprintf("profile_%d", id)
	if cached, ok := r.profiles.Get(key); ok {
		p := cached.(Profile)
		return &p, nil
	}

	p, err := r.loadProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	r.profiles.Set(key, *p)
	return p, nil
}

// ListProfiles returns every profile, newest first, cached under
// "profiles_all".
func (r *Repository) ListProfiles(ctx context.Context) ([]Profile, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.list_profiles")
	defer r.tracer.EndSpan(span)

	if cached, ok := r.profiles.Get("profiles_all"); ok {
		return cached.([]Profile), nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+profileColumns+" FROM profiles ORDER BY created_at DESC, id DESC")
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	profiles := []Profile{}
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to iterate profile rows: %w", err)
	}

	r.profiles.Set("profiles_all", profiles)
	span.SetAttribute("count", len(profiles))
	return profiles, nil
}

// UpdateProfile applies the non-nil fields and returns the updated row.
// Pointer-to-empty-string clears the corresponding nullable column.
func (r *Repository) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*Profile, error) {
	ctx, span := r.tracer.StartSpan(ctx, "repo.update_profile")
	defer r.tracer.EndSpan(span)

	var (
		sets []string
		args []any
	)
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *upd.Name)
	}
	if upd.SystemPrompt != nil {
		sets = append(sets, "system_prompt = ?")
		args = append(args, nullString(*upd.SystemPrompt))
	}
	if upd.Temperature != nil {
		sets = append(sets, "temperature = ?")
		args = append(args, *upd.Temperature)
	}
	if upd.MaxTokens != nil {
		sets = append(sets, "max_tokens = ?")
		args = append(args, *upd.MaxTokens)
	}
	if upd.OpenRouterPreset != nil {
		sets = append(sets, "openrouter_preset = ?")
		args = append(args, nullString(*upd.OpenRouterPreset))
	}

	if len(sets) == 0 {
		return r.GetProfile(ctx, id)
	}

	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		"UPDATE profiles SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update profile %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return nil, apierror.NotFound(apierror.CodeProfileNotFound, "profile", id, "")
	}

	r.profiles.Invalidate(fmt.Sprintf("profile_%d", id))
	r.profiles.Invalidate("profiles_all")
	return r.loadProfile(ctx, id)
}

// DeleteProfile removes a profile. Sessions that referenced it fall back to
// no profile via the SET NULL foreign key.
func (r *Repository) DeleteProfile(ctx context.Context, id int64) error {
	ctx, span := r.tracer.StartSpan(ctx, "repo.delete_profile")
	defer r.tracer.EndSpan(span)

	res, err := r.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete profile %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return apierror.NotFound(apierror.CodeProfileNotFound, "profile", id, "")
	}

	r.profiles.Invalidate(fmt.Sprintf("profile_%d", id))
	r.profiles.Invalidate("profiles_all")
	return nil
}

func (r *Repository) loadProfile(ctx context.Context, id int64) (*Profile, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+profileColumns+" FROM profiles WHERE id = ?", id)
	p, err := scanProfile(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound(apierror.CodeProfileNotFound, "profile", id, "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %d: %w", id, err)
	}
	return &p, nil
}

func scanProfile(scan func(dest ...any) error) (Profile, error) {
	var (
		p      Profile
		prompt sql.NullString
		preset sql.NullString
	)
	err := scan(&p.ID, &p.Name, &prompt, &p.Temperature, &p.MaxTokens, &preset, &p.CreatedAt)
	if err != nil {
		return Profile{}, err
	}
	if prompt.Valid {
		p.SystemPrompt = &prompt.String
	}
	if preset.Valid {
		p.OpenRouterPreset = &preset.String
	}
	return p, nil
}

// nullString maps "" to NULL for optional text columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
