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
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
)

// sessionTypes are the conversation kinds the UI knows how to render.
var sessionTypes = map[string]bool{
	"chat": true, "code": true, "documents": true, "playground": true,
}

const (
	sessionsDefaultLimit = 50
	sessionsMaxLimit     = 500
)

type createSessionRequest struct {
	SessionType string `json:"session_type"`
	Title       string `json:"title"`
	ProfileID   *int64 `json:"profile_id"`
}

type updateSessionRequest struct {
	Title     *string `json:"title"`
	ProfileID *int64  `json:"profile_id"`
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.SessionType != "" && !sessionTypes[req.SessionType] {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("invalid session_type %q (want chat, code, documents, or playground)", req.SessionType))
	}

	session, err := s.repo.CreateSession(c.Request().Context(), repo.NewSession{
		SessionType: req.SessionType,
		Title:       req.Title,
		ProfileID:   req.ProfileID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, session)
}

func (s *Server) handleListSessions(c echo.Context) error {
	limit := sessionsDefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > sessionsMaxLimit {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("limit %q is not an integer between 1 and %d", raw, sessionsMaxLimit))
		}
		limit = n
	}
	sessionType := c.QueryParam("session_type")
	if sessionType != "" && !sessionTypes[sessionType] {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("invalid session_type %q (want chat, code, documents, or playground)", sessionType))
	}

	sessions, err := s.repo.ListSessions(c.Request().Context(), sessionType, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleGetSession(c echo.Context) error {
	session, err := s.repo.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleUpdateSession(c echo.Context) error {
	var req updateSessionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	session, err := s.repo.UpdateSession(c.Request().Context(), c.Param("id"), repo.SessionUpdate{
		Title:     req.Title,
		ProfileID: req.ProfileID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if err := s.repo.DeleteSession(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Session deleted successfully", "id": id})
}

func (s *Server) handleSessionMessages(c echo.Context) error {
	messages, err := s.repo.ListMessages(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messages)
}
