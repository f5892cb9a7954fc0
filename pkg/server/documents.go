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
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/apierror"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/documents"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/openrouter"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
)

// documentContext is the synthetic system turn that scopes the model to the
// uploaded document.
const documentContext = "You are assisting with questions about the uploaded document '%s'.\n\n" +
	"Document content:\n%s\n\n" +
	"Always answer using only the document content. If the answer is not present, say you don't have enough information."

type documentQARequest struct {
	Question    string   `json:"question"`
	ModelID     string   `json:"model_id"`
	SessionID   string   `json:"session_id"`
	ProfileID   *int64   `json:"profile_id"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

func (s *Server) handleUploadDocument(c echo.Context) error {
	header, err := c.FormFile("file")
	if err != nil {
		return apierror.BadRequest(apierror.CodeMissingFilename, "No filename provided")
	}

	src, err := header.Open()
	if err != nil {
		return apierror.Internal(apierror.CodeFileSaveFailed,
			fmt.Sprintf("Failed to save file: %v", err)).WithCause(err)
	}
	defer src.Close() //nolint:errcheck

	content, err := io.ReadAll(src)
	if err != nil {
		return apierror.Internal(apierror.CodeFileSaveFailed,
			fmt.Sprintf("Failed to save file: %v", err)).WithCause(err)
	}

	doc, err := s.docs.Save(c.Request().Context(), header.Filename, content)
	if err != nil {
		if errors.Is(err, documents.ErrInvalidExtension) || errors.Is(err, documents.ErrTooLarge) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

func (s *Server) handleListDocuments(c echo.Context) error {
	docs, err := s.docs.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, docs)
}

func (s *Server) handleGetDocument(c echo.Context) error {
	doc, err := s.docs.Load(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(c echo.Context) error {
	id := c.Param("id")
	if err := s.docs.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Document deleted successfully", "id": id})
}

// handleDocumentQA answers a question about an uploaded document over SSE.
// Unlike the chat endpoint, preflight failures here are plain JSON errors:
// the frontend drives this route with fetch, not EventSource, and can read
// error bodies.
func (s *Server) handleDocumentQA(c echo.Context) error {
	ctx := c.Request().Context()

	var req documentQARequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question must not be empty")
	}
	if req.ModelID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "model_id must not be empty")
	}
	if req.Temperature != nil {
		if err := validateTemperature(*req.Temperature); err != nil {
			return err
		}
	}
	if req.MaxTokens != nil {
		if err := validateMaxTokens(*req.MaxTokens); err != nil {
			return err
		}
	}

	if !s.upstream.Configured() {
		return apierror.BadRequest(apierror.CodeMissingAPIKey, "OpenRouter API key is not configured")
	}

	doc, err := s.docs.Load(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	var session *repo.Session
	if req.SessionID != "" {
		session, err = s.repo.GetSession(ctx, req.SessionID)
	} else {
		session, err = s.repo.CreateSession(ctx, repo.NewSession{
			SessionType: "documents",
			Title:       doc.Name,
			ProfileID:   req.ProfileID,
		})
	}
	if err != nil {
		return err
	}

	gen, apiErr := s.resolveGeneration(ctx, session, req.ProfileID, req.ModelID, req.Temperature, req.MaxTokens)
	if apiErr != nil {
		return apiErr
	}

	// History is captured before the question is persisted; the tagged copy
	// below is for the transcript, not for the model.
	history, apiErr := s.historyMessages(ctx, session.ID, gen.Profile)
	if apiErr != nil {
		return apiErr
	}
	messages := append(history,
		openrouter.Message{Role: "system", Content: fmt.Sprintf(documentContext, doc.Name, doc.Content)},
		openrouter.Message{Role: "user", Content: req.Question},
	)
	s.warnIfOverContext(ctx, c, gen.ModelID, messages)

	if _, err := s.repo.AddMessage(ctx, session.ID, "user",
		fmt.Sprintf("[Document:%s] %s", doc.ID, req.Question)); err != nil {
		return err
	}

	w := beginStream(c)
	s.runStream(c, w, &streamJob{
		SessionID:   session.ID,
		ModelID:     gen.ModelID,
		ProfileID:   gen.ProfileID,
		Temperature: gen.Temperature,
		MaxTokens:   gen.MaxTokens,
		Messages:    messages,
		DocumentID:  doc.ID,
	})
	return nil
}
