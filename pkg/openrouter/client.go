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

// Package openrouter is the upstream client: a streaming chat-completions
// consumer, the model catalog fetch behind the sync job, and the token
// estimator used for context-window warnings.
package openrouter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Default OpenRouter configuration values.
const (
	DefaultBaseURL     = "https://openrouter.ai/api/v1"
	DefaultHTTPReferer = "http://localhost:5173"
	DefaultXTitle      = "Self-Hosted LLM Console"
	DefaultReadTimeout = 5 * time.Minute
)

// ErrMissingAPIKey is returned when a call is attempted without a key.
var ErrMissingAPIKey = errors.New("OpenRouter API key is not configured")

// ErrInactivity is returned when the upstream connection goes quiet for
// longer than the configured per-read budget.
var ErrInactivity = errors.New("upstream stream idle past the inactivity budget")

// StatusError reports a non-success answer from OpenRouter, either as an
// HTTP status on the initial response or as an error payload streamed
// mid-response. Body holds at most a fragment of what the provider sent.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openrouter returned status %d: %s", e.Status, e.Body)
}

// Client talks to the OpenRouter API. The zero value is not usable; build
// one with NewClient.
type Client struct {
	apiKey      string
	baseURL     string
	httpReferer string
	xTitle      string
	readTimeout time.Duration
	httpClient  *http.Client
}

// Config holds configuration for the OpenRouter client.
type Config struct {
	APIKey      string
	BaseURL     string        // Default: https://openrouter.ai/api/v1
	HTTPReferer string        // Default: http://localhost:5173
	XTitle      string        // Default: Self-Hosted LLM Console
	ReadTimeout time.Duration // Per-read inactivity budget. Default: 5m
}

// NewClient creates a new OpenRouter client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.HTTPReferer == "" {
		config.HTTPReferer = DefaultHTTPReferer
	}
	if config.XTitle == "" {
		config.XTitle = DefaultXTitle
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = DefaultReadTimeout
	}

	return &Client{
		apiKey:      config.APIKey,
		baseURL:     strings.TrimRight(config.BaseURL, "/"),
		httpReferer: config.HTTPReferer,
		xTitle:      config.XTitle,
		readTimeout: config.ReadTimeout,
		// No overall timeout: streams legitimately run for minutes. The
		// watchdog in ChatStream bounds a stalled connection instead.
		httpClient: &http.Client{},
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.httpReferer)
	req.Header.Set("X-Title", c.xTitle)
}

// ChatStream opens a streaming chat completion and invokes onDelta for each
// decoded text fragment, in arrival order. The returned result carries the
// full accumulated assistant text and the provider's last usage snapshot
// (nil when none was reported).
//
// Failure modes: ErrMissingAPIKey before any connection, *StatusError for a
// non-200 response or an in-band error payload, ErrInactivity when the
// connection stalls past the read budget, ctx.Err() on cancellation, and
// wrapped transport errors otherwise.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, onDelta func(token string)) (*StreamResult, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Stream:      true,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// The watchdog cancels through this derived context so a stalled read
	// tears down the connection without leaking the socket.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: httpResp.StatusCode, Body: bodyFragment(httpResp.Body)}
	}

	var timedOut atomic.Bool
	watchdog := time.AfterFunc(c.readTimeout, func() {
		timedOut.Store(true)
		cancel()
	})
	defer watchdog.Stop()

	var content strings.Builder
	var usage *Usage

	scanner := bufio.NewScanner(httpResp.Body)
	for scanner.Scan() {
		watchdog.Reset(c.readTimeout)

		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if payload == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Providers interleave comments and keep-alives; skip what
			// does not decode and keep reading.
			continue
		}
		if chunk.Error != nil {
			return nil, &StatusError{Status: chunk.Error.status(), Body: chunk.Error.Message}
		}

		if token := chunk.deltaText(); token != "" {
			content.WriteString(token)
			if onDelta != nil {
				onDelta(token)
			}
		}
		if u := chunk.usageSnapshot(); u != nil {
			usage = refreshUsage(usage, u)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	if err := scanner.Err(); err != nil {
		if timedOut.Load() {
			return nil, ErrInactivity
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("error reading stream: %w", err)
	}
	if timedOut.Load() {
		return nil, ErrInactivity
	}

	return &StreamResult{Content: content.String(), Usage: usage}, nil
}

// ListModels fetches the provider's model catalog with prices normalized to
// USD per token.
func (c *Client) ListModels(ctx context.Context) ([]CatalogModel, error) {
	if !c.Configured() {
		return nil, ErrMissingAPIKey
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: httpResp.StatusCode, Body: bodyFragment(httpResp.Body)}
	}

	var payload modelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode models response: %w", err)
	}

	models := make([]CatalogModel, 0, len(payload.Data))
	for _, entry := range payload.Data {
		name := entry.Name
		if name == "" {
			name = entry.ID
		}
		models = append(models, CatalogModel{
			ID:                entry.ID,
			Name:              name,
			ContextLength:     entry.ContextLength,
			PricingPrompt:     parsePrice(entry.Pricing.Prompt),
			PricingCompletion: parsePrice(entry.Pricing.Completion),
			IsReasoning:       entry.Features.Reasoning || entry.IsReasoning,
		})
	}
	return models, nil
}

// ComposePresetModel appends a profile preset label to a model id as
// "<model>@preset/<label>". A model id already carrying a preset and an
// empty label both pass through unchanged.
func ComposePresetModel(modelID, preset string) string {
	if preset == "" || strings.Contains(modelID, "@preset/") {
		return modelID
	}
	if !strings.HasPrefix(preset, "@preset/") {
		preset = "@preset/" + preset
	}
	return modelID + preset
}

// bodyFragment reads at most 512 bytes of an error response body.
func bodyFragment(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
