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
package observability

// Standard attribute keys for spans and events.
// Use these constants instead of hardcoding strings.
const (
	// Request/session attributes
	AttrRequestID = "request.id"
	AttrSessionID = "session.id"
	AttrProfileID = "profile.id"

	// LLM attributes
	AttrLLMModel       = "llm.model"
	AttrLLMTemperature = "llm.temperature"
	AttrLLMMaxTokens   = "llm.max_tokens" // #nosec G101 -- not a credential, just attribute name

	// Streaming attributes
	AttrStreamTokens     = "stream.tokens"
	AttrStreamPromptTok  = "stream.prompt_tokens"
	AttrStreamOutputTok  = "stream.completion_tokens"
	AttrStreamCostUSD    = "stream.cost_usd"
	AttrStreamTerminal   = "stream.terminal"
	AttrStreamCancelled  = "stream.cancelled"

	// Storage attributes
	AttrDBPath           = "db.path"
	AttrMigrationVersion = "migration.version"

	// Cache attributes
	AttrCacheName = "cache.name"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
	AttrErrorCode    = "error.code"
)
