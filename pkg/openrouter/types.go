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

package openrouter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// Message is one turn of a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one streaming completion call. Temperature and
// MaxTokens are the already-resolved effective values.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage mirrors the provider's token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamResult is the outcome of a stream that ran to completion.
type StreamResult struct {
	Content string
	Usage   *Usage // nil when the provider never reported usage
}

// CatalogModel is one entry of the provider's model catalog. Unknown
// prices and context lengths stay nil.
type CatalogModel struct {
	ID                string
	Name              string
	ContextLength     *int64
	PricingPrompt     *float64
	PricingCompletion *float64
	IsReasoning       bool
}

// chatCompletionRequest is the wire form of a chat completions call.
type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// streamChunk is one decoded "data:" payload of a streaming response.
type streamChunk struct {
	Choices []streamChoice `json:"choices"`
	Usage   *Usage         `json:"usage"`
	Error   *wireError     `json:"error"`
}

type streamChoice struct {
	Delta streamDelta `json:"delta"`
	Usage *Usage      `json:"usage"`
}

type streamDelta struct {
	Content   json.RawMessage `json:"content"`
	ToolCalls []toolCallDelta `json:"tool_calls"`
}

type toolCallDelta struct {
	Function struct {
		Arguments string `json:"arguments"`
	} `json:"function"`
	Text string `json:"text"`
}

// wireError is the provider's in-band error payload. Code arrives as a
// number or a string depending on the failure.
type wireError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

func (e *wireError) status() int {
	var code int
	if len(e.Code) > 0 && json.Unmarshal(e.Code, &code) == nil && code >= 400 && code < 600 {
		return code
	}
	return http.StatusBadGateway
}

// deltaText extracts the text fragment of a chunk. Content arrives as a
// plain string or as a list of parts; tool-call argument fragments are the
// fallback when no content is present.
func (c *streamChunk) deltaText() string {
	if len(c.Choices) == 0 {
		return ""
	}
	delta := c.Choices[0].Delta

	var text strings.Builder
	if len(delta.Content) > 0 {
		var s string
		if err := json.Unmarshal(delta.Content, &s); err == nil {
			text.WriteString(s)
		} else {
			var parts []json.RawMessage
			if err := json.Unmarshal(delta.Content, &parts); err == nil {
				for _, raw := range parts {
					text.WriteString(partText(raw))
				}
			}
		}
	}
	if text.Len() > 0 {
		return text.String()
	}

	for _, call := range delta.ToolCalls {
		text.WriteString(call.Function.Arguments)
		text.WriteString(call.Text)
	}
	return text.String()
}

// partText reads one element of a multi-part content list: either a bare
// string or an object carrying "text" or "content".
func partText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Text != "" {
			return obj.Text
		}
		return obj.Content
	}
	return ""
}

// usageSnapshot returns the usage block of a chunk, wherever the provider
// put it.
func (c *streamChunk) usageSnapshot() *Usage {
	if c.Usage != nil {
		return c.Usage
	}
	if len(c.Choices) > 0 && c.Choices[0].Usage != nil {
		return c.Choices[0].Usage
	}
	return nil
}

// refreshUsage folds a new provider snapshot into the running one. Later
// chunks may refine earlier counts; zero fields never erase known ones.
func refreshUsage(current, next *Usage) *Usage {
	if current == nil {
		current = &Usage{}
	}
	if next.PromptTokens > 0 {
		current.PromptTokens = next.PromptTokens
	}
	if next.CompletionTokens > 0 {
		current.CompletionTokens = next.CompletionTokens
	}
	if next.TotalTokens > 0 {
		current.TotalTokens = next.TotalTokens
	} else if current.TotalTokens == 0 {
		current.TotalTokens = current.PromptTokens + current.CompletionTokens
	}
	return current
}

// modelsResponse is the catalog envelope returned by GET /models.
type modelsResponse struct {
	Data []catalogEntry `json:"data"`
}

type catalogEntry struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	ContextLength *int64       `json:"context_length"`
	Pricing       entryPricing `json:"pricing"`
	Features      struct {
		Reasoning bool `json:"reasoning"`
	} `json:"features"`
	IsReasoning bool `json:"is_reasoning"`
}

type entryPricing struct {
	Prompt     json.RawMessage `json:"prompt"`
	Completion json.RawMessage `json:"completion"`
}

// parsePrice reads a per-token unit price that arrives as either a JSON
// string or a bare number. Anything unparseable stays unknown.
func parsePrice(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	return nil
}
