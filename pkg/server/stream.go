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

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/apierror"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/observability"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/openrouter"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/sse"
)

// Effective generation parameters when neither the request nor a profile
// supplies them.
const (
	defaultTemperature = 0.7
	defaultMaxTokens   = 2048
)

// Upstream is the slice of the provider client the pipeline consumes.
// *openrouter.Client satisfies it; tests substitute a scripted fake.
type Upstream interface {
	Configured() bool
	ChatStream(ctx context.Context, req openrouter.ChatRequest, onDelta func(token string)) (*openrouter.StreamResult, error)
}

// streamJob is a fully resolved streaming request, ready to run against
// the upstream. DocumentID is set only on the document Q&A path.
type streamJob struct {
	SessionID   string
	ModelID     string // effective id, preset label already composed
	ProfileID   *int64
	Temperature float64
	MaxTokens   int
	Messages    []openrouter.Message
	DocumentID  string
}

// generation is the outcome of profile and parameter resolution.
type generation struct {
	ProfileID   *int64
	Profile     *repo.Profile
	Temperature float64
	MaxTokens   int
	ModelID     string
}

type startPayload struct {
	SessionID  string `json:"session_id"`
	ModelID    string `json:"model_id"`
	DocumentID string `json:"document_id,omitempty"`
}

type tokenPayload struct {
	Token string `json:"token"`
}

// donePayload closes a successful stream. Usage stays null when the
// provider never reported counters. SessionID and DocumentID repeat the
// start extras on the Q&A path, where the session may have been created on
// demand and the client needs its id.
type donePayload struct {
	Assistant  string            `json:"assistant"`
	Usage      *openrouter.Usage `json:"usage"`
	SessionID  string            `json:"session_id,omitempty"`
	DocumentID string            `json:"document_id,omitempty"`
}

// sseErrorPayload is the canonical envelope plus the SSE-only status and
// request_id fields. Field order mirrors the wire shape.
type sseErrorPayload struct {
	ErrorCode    apierror.Code  `json:"error_code"`
	Status       int            `json:"status"`
	Message      string         `json:"message"`
	RequestID    string         `json:"request_id"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// handleStream serves GET /api/stream. The response is always HTTP 200
// with an SSE body: browser EventSource clients surface non-2xx statuses
// as opaque connection failures, so preflight errors become a single
// error frame instead.
func (s *Server) handleStream(c echo.Context) error {
	job, apiErr := s.prepareChatStream(c)
	w := beginStream(c)
	if apiErr != nil {
		s.logger.Warn("Stream preflight failed",
			zap.String("request_id", requestID(c)),
			zap.String("error_code", string(apiErr.Code)),
			zap.Error(apiErr))
		s.writeStreamError(c, w, apiErr)
		return nil
	}
	s.runStream(c, w, job)
	return nil
}

// prepareChatStream runs the preflight for the chat endpoint: credentials,
// session, profile precedence, parameter resolution, and history assembly.
func (s *Server) prepareChatStream(c echo.Context) (*streamJob, *apierror.Error) {
	ctx := c.Request().Context()

	sessionID := c.QueryParam("session_id")
	modelID := c.QueryParam("model_id")

	var explicitProfile *int64
	if raw := c.QueryParam("profile_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apierror.Internal(apierror.CodeStreamError,
				fmt.Sprintf("profile_id %q is not an integer", raw))
		}
		explicitProfile = &id
	}
	var tempOverride *float64
	if raw := c.QueryParam("temperature"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 2 {
			return nil, apierror.Internal(apierror.CodeStreamError,
				fmt.Sprintf("temperature %q is not a number between 0 and 2", raw))
		}
		tempOverride = &v
	}
	var maxTokensOverride *int
	if raw := c.QueryParam("max_tokens"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 32768 {
			return nil, apierror.Internal(apierror.CodeStreamError,
				fmt.Sprintf("max_tokens %q is not an integer between 1 and 32768", raw))
		}
		maxTokensOverride = &v
	}

	if !s.upstream.Configured() {
		return nil, apierror.BadRequest(apierror.CodeMissingAPIKey, "OpenRouter API key is not configured")
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apierror.FromError(err)
	}

	gen, apiErr := s.resolveGeneration(ctx, session, explicitProfile, modelID, tempOverride, maxTokensOverride)
	if apiErr != nil {
		return nil, apiErr
	}

	messages, apiErr := s.historyMessages(ctx, session.ID, gen.Profile)
	if apiErr != nil {
		return nil, apiErr
	}
	s.warnIfOverContext(ctx, c, gen.ModelID, messages)

	return &streamJob{
		SessionID:   session.ID,
		ModelID:     gen.ModelID,
		ProfileID:   gen.ProfileID,
		Temperature: gen.Temperature,
		MaxTokens:   gen.MaxTokens,
		Messages:    messages,
	}, nil
}

// resolveGeneration applies the precedence rules for one stream: an
// explicit profile id beats the session default; explicit overrides beat
// profile values beat the stock defaults; the profile's preset label is
// appended to the model id.
func (s *Server) resolveGeneration(ctx context.Context, session *repo.Session, explicitProfile *int64, modelID string, tempOverride *float64, maxTokensOverride *int) (*generation, *apierror.Error) {
	profileID := explicitProfile
	if profileID == nil {
		profileID = session.ProfileID
	}

	var profile *repo.Profile
	if profileID != nil {
		p, err := s.repo.GetProfile(ctx, *profileID)
		if err != nil {
			return nil, apierror.FromError(err)
		}
		profile = p
	}

	temperature := defaultTemperature
	maxTokens := defaultMaxTokens
	if profile != nil {
		temperature = profile.Temperature
		maxTokens = profile.MaxTokens
	}
	if tempOverride != nil {
		temperature = *tempOverride
	}
	if maxTokensOverride != nil {
		maxTokens = *maxTokensOverride
	}

	effectiveModel := modelID
	if profile != nil && profile.OpenRouterPreset != nil {
		effectiveModel = openrouter.ComposePresetModel(modelID, *profile.OpenRouterPreset)
	}

	return &generation{
		ProfileID:   profileID,
		Profile:     profile,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		ModelID:     effectiveModel,
	}, nil
}

// historyMessages loads the session transcript oldest first and prepends
// the profile's system prompt when one is set. The synthetic system turn
// is never persisted.
func (s *Server) historyMessages(ctx context.Context, sessionID string, profile *repo.Profile) ([]openrouter.Message, *apierror.Error) {
	rows, err := s.repo.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, apierror.FromError(err)
	}

	messages := make([]openrouter.Message, 0, len(rows)+1)
	if profile != nil && profile.SystemPrompt != nil && *profile.SystemPrompt != "" {
		messages = append(messages, openrouter.Message{Role: "system", Content: *profile.SystemPrompt})
	}
	for _, m := range rows {
		messages = append(messages, openrouter.Message{Role: m.Role, Content: m.Content})
	}
	return messages, nil
}

// warnIfOverContext logs when the estimated prompt size exceeds the synced
// context length of the base model. Advisory only; the provider enforces
// the real limit.
func (s *Server) warnIfOverContext(ctx context.Context, c echo.Context, modelID string, messages []openrouter.Message) {
	model, err := s.repo.GetModelByExternalID(ctx, baseModel(modelID))
	if err != nil || model == nil || model.ContextLength == nil {
		return
	}
	estimate := openrouter.GetEstimator().EstimateMessagesTokens(messages)
	if int64(estimate) > *model.ContextLength {
		s.logger.Warn("Prompt likely exceeds model context window",
			zap.String("request_id", requestID(c)),
			zap.String("model_id", modelID),
			zap.Int("estimated_tokens", estimate),
			zap.Int64("context_length", *model.ContextLength))
	}
}

// baseModel strips a "@preset/<label>" suffix from an effective model id.
func baseModel(modelID string) string {
	if i := strings.Index(modelID, "@preset/"); i >= 0 {
		return modelID[:i]
	}
	return modelID
}

// beginStream commits the SSE response headers. From here on every
// outcome, including failure, is a frame on the 200 body.
func beginStream(c echo.Context) *sse.Writer {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()
	return sse.NewWriter(c.Response())
}

// runStream relays one upstream completion: start frame, token frames,
// then exactly one terminal frame. On success the assistant message is
// persisted, plus a usage row when the provider reported counters. Cancel
// and failure paths persist nothing.
func (s *Server) runStream(c echo.Context, w *sse.Writer, job *streamJob) {
	ctx := c.Request().Context()
	rid := requestID(c)

	_, span := s.tracer.StartSpan(ctx, "stream.completion",
		observability.WithSpanKind("stream"))
	defer s.tracer.EndSpan(span)
	span.SetAttribute(observability.AttrRequestID, rid)
	span.SetAttribute(observability.AttrSessionID, job.SessionID)
	span.SetAttribute(observability.AttrLLMModel, job.ModelID)

	s.logger.Info("Stream started",
		zap.String("request_id", rid),
		zap.String("session_id", job.SessionID),
		zap.String("model_id", job.ModelID))

	if err := w.WriteEvent(sse.EventStart, startPayload{
		SessionID:  job.SessionID,
		ModelID:    job.ModelID,
		DocumentID: job.DocumentID,
	}); err != nil {
		s.logger.Debug("Failed to write start frame",
			zap.String("request_id", rid), zap.Error(err))
		return
	}

	tokens := 0
	result, err := s.upstream.ChatStream(ctx, openrouter.ChatRequest{
		Model:       job.ModelID,
		Messages:    job.Messages,
		Temperature: job.Temperature,
		MaxTokens:   job.MaxTokens,
	}, func(token string) {
		tokens++
		// A failed relay means the client is gone; that surfaces as
		// request-context cancellation on the next upstream read.
		_ = w.WriteEvent(sse.EventToken, tokenPayload{Token: token})
	})
	span.SetAttribute(observability.AttrStreamTokens, tokens)

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			span.SetAttribute(observability.AttrStreamCancelled, true)
			s.logger.Info("Stream cancelled by client",
				zap.String("request_id", rid),
				zap.String("session_id", job.SessionID),
				zap.String("model_id", job.ModelID))
			return
		}
		span.RecordError(err)
		span.SetAttribute(observability.AttrStreamTerminal, "error")
		s.logger.Error("Stream failed",
			zap.String("request_id", rid),
			zap.String("session_id", job.SessionID),
			zap.String("model_id", job.ModelID),
			zap.Error(err))
		s.writeStreamError(c, w, upstreamError(err))
		return
	}

	// The reply is complete; a client that disconnects from here on must
	// not void persistence.
	persistCtx := context.WithoutCancel(ctx)

	if result.Content != "" {
		if _, perr := s.repo.AddMessage(persistCtx, job.SessionID, "assistant", result.Content); perr != nil {
			span.RecordError(perr)
			s.logger.Error("Failed to persist assistant message",
				zap.String("request_id", rid),
				zap.String("session_id", job.SessionID),
				zap.Error(perr))
			s.writeStreamError(c, w, apierror.Internal(apierror.CodeStreamError,
				"Failed to persist assistant message").WithCause(perr))
			return
		}
	}

	if result.Usage != nil {
		s.tracer.RecordMetric("stream.tokens", float64(result.Usage.TotalTokens),
			map[string]string{"model": baseModel(job.ModelID)})
		if _, perr := s.repo.InsertUsageLog(persistCtx, repo.NewUsageLog{
			SessionID:        job.SessionID,
			ProfileID:        job.ProfileID,
			ModelID:          job.ModelID,
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
		}); perr != nil {
			// The assistant row is already committed; failing the stream
			// now would make clients retry and duplicate it.
			span.RecordError(perr)
			s.logger.Error("Failed to record usage",
				zap.String("request_id", rid),
				zap.String("session_id", job.SessionID),
				zap.Error(perr))
		}
	}

	done := donePayload{Assistant: result.Content, Usage: result.Usage}
	if job.DocumentID != "" {
		done.SessionID = job.SessionID
		done.DocumentID = job.DocumentID
	}
	if werr := w.WriteEvent(sse.EventDone, done); werr != nil {
		s.logger.Debug("Failed to write done frame",
			zap.String("request_id", rid), zap.Error(werr))
	}
	span.SetAttribute(observability.AttrStreamTerminal, "done")

	s.logger.Info("Stream completed",
		zap.String("request_id", rid),
		zap.String("session_id", job.SessionID),
		zap.String("model_id", job.ModelID),
		zap.Int("tokens", tokens))
}

// writeStreamError emits the single terminal error frame.
func (s *Server) writeStreamError(c echo.Context, w *sse.Writer, apiErr *apierror.Error) {
	payload := sseErrorPayload{
		ErrorCode:    apiErr.Code,
		Status:       apiErr.HTTPStatus(),
		Message:      apiErr.Message,
		RequestID:    requestID(c),
		ResourceType: apiErr.ResourceType,
		ResourceID:   apiErr.ResourceID,
		Details:      apiErr.Details,
	}
	if err := w.WriteEvent(sse.EventError, payload); err != nil {
		s.logger.Debug("Failed to write error frame",
			zap.String("request_id", requestID(c)), zap.Error(err))
	}
}

// upstreamError maps a pipeline failure onto the closed taxonomy.
func upstreamError(err error) *apierror.Error {
	var st *openrouter.StatusError
	switch {
	case errors.Is(err, openrouter.ErrMissingAPIKey):
		return apierror.BadRequest(apierror.CodeMissingAPIKey, "OpenRouter API key is not configured")
	case errors.As(err, &st):
		msg := st.Body
		if msg == "" {
			msg = fmt.Sprintf("OpenRouter returned status %d", st.Status)
		}
		return apierror.Upstream(st.Status, msg).WithCause(err)
	case errors.Is(err, openrouter.ErrInactivity):
		return apierror.Internal(apierror.CodeStreamError,
			"Upstream connection went idle; stream aborted").WithCause(err)
	default:
		return apierror.FromError(err)
	}
}
