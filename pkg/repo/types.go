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

// Model is one row of the synced OpenRouter catalog. Prices are USD per
// token (normalized at sync time). Pointer fields are NULL in the database
// when the provider did not report them.
type Model struct {
	ID                string   `json:"id"`
	OpenRouterID      string   `json:"openrouter_id"`
	Name              string   `json:"name"`
	ContextLength     *int64   `json:"context_length"`
	PricingPrompt     *float64 `json:"pricing_prompt"`
	PricingCompletion *float64 `json:"pricing_completion"`
	IsReasoning       bool     `json:"is_reasoning"`
	CreatedAt         string   `json:"created_at"`
}

// ModelUpsert is the catalog sync input for a single model.
type ModelUpsert struct {
	OpenRouterID      string
	Name              string
	ContextLength     *int64
	PricingPrompt     *float64
	PricingCompletion *float64
	IsReasoning       bool
}

// ModelFilter narrows ListModels. Zero values mean "no constraint".
type ModelFilter struct {
	ReasoningOnly bool
	MinContext    int64
	MaxPrice      float64
}

// Profile is a reusable generation configuration.
type Profile struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	SystemPrompt     *string `json:"system_prompt"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	OpenRouterPreset *string `json:"openrouter_preset"`
	CreatedAt        string  `json:"created_at"`
}

// NewProfile is the CreateProfile input. Nil Temperature/MaxTokens take the
// schema defaults (0.7 / 2048). Empty strings persist as NULL.
type NewProfile struct {
	Name             string
	SystemPrompt     string
	Temperature      *float64
	MaxTokens        *int
	OpenRouterPreset string
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	Name             *string
	SystemPrompt     *string
	Temperature      *float64
	MaxTokens        *int
	OpenRouterPreset *string
}

// Session is one conversation. SessionType distinguishes plain chats from
// document Q&A sessions.
type Session struct {
	ID          string  `json:"id"`
	SessionType string  `json:"session_type"`
	Title       *string `json:"title"`
	ProfileID   *int64  `json:"profile_id"`
	CreatedAt   string  `json:"created_at"`
}

// NewSession is the CreateSession input.
type NewSession struct {
	SessionType string
	Title       string
	ProfileID   *int64
}

// SessionUpdate is a partial update; nil fields are left untouched.
type SessionUpdate struct {
	Title     *string
	ProfileID *int64
}

// Message is one turn of a session transcript.
type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// SearchParams drives full-text search over message content.
// Query uses FTS5 match syntax. Limit is clamped to [1,200]; a non-positive
// limit falls back to 50. Negative offsets are treated as zero.
type SearchParams struct {
	Query       string
	SessionID   string
	SessionType string
	StartDate   string
	EndDate     string
	Limit       int
	Offset      int
}

// SearchResult is one full-text hit, with a <mark>-highlighted snippet and
// its relevance rank (higher is better).
type SearchResult struct {
	MessageID    string  `json:"message_id"`
	SessionID    string  `json:"session_id"`
	SessionType  string  `json:"session_type"`
	SessionTitle *string `json:"session_title"`
	Role         string  `json:"role"`
	Content      string  `json:"content"`
	Snippet      string  `json:"snippet"`
	Rank         float64 `json:"rank"`
	CreatedAt    string  `json:"created_at"`
}

// UsageLog is one accounting row for a completed stream (or a manual entry).
// ModelID is the effective OpenRouter identifier, including any
// "@preset/<label>" suffix that was sent upstream.
type UsageLog struct {
	ID               string  `json:"id"`
	SessionID        string  `json:"session_id"`
	ProfileID        *int64  `json:"profile_id"`
	ModelID          *string `json:"model_id"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
	CreatedAt        string  `json:"created_at"`
}

// NewUsageLog is the InsertUsageLog input. Negative token counts are coerced
// to zero; the total is always recomputed as prompt+completion.
type NewUsageLog struct {
	SessionID        string
	ProfileID        *int64
	ModelID          string
	PromptTokens     int
	CompletionTokens int
}

// ModelUsage aggregates usage rows per effective model identifier. The
// catalog fields are nil when the identifier no longer resolves to a synced
// model.
type ModelUsage struct {
	ModelID          string  `json:"model_id"`
	ModelName        *string `json:"model_name"`
	OpenRouterID     *string `json:"openrouter_id"`
	Requests         int     `json:"requests"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// UsagePeriod is one bucket of the usage timeline.
type UsagePeriod struct {
	Period           string  `json:"period"`
	Requests         int     `json:"requests"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// UsageTotals summarizes all usage rows.
type UsageTotals struct {
	Requests         int     `json:"requests"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
	Sessions         int     `json:"sessions"`
}
