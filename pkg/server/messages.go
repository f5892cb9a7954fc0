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
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
)

var messageRoles = map[string]bool{
	"system": true, "user": true, "assistant": true, "tool": true,
}

type createMessageRequest struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

func (s *Server) handleCreateMessage(c echo.Context) error {
	var req createMessageRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if !messageRoles[req.Role] {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("invalid role %q (want system, user, assistant, or tool)", req.Role))
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content must not be empty")
	}

	message, err := s.repo.AddMessage(c.Request().Context(), req.SessionID, req.Role, req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, message)
}

func (s *Server) handleDeleteMessage(c echo.Context) error {
	id := c.Param("id")
	if err := s.repo.DeleteMessage(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Message deleted successfully", "id": id})
}

// handleSearchMessages runs a full-text query over message content. The
// model_id parameter is accepted for interface stability but ignored:
// messages do not record the model that produced them.
func (s *Server) handleSearchMessages(c echo.Context) error {
	params := repo.SearchParams{
		Query:       c.QueryParam("query"),
		SessionID:   c.QueryParam("session_id"),
		SessionType: c.QueryParam("session_type"),
		StartDate:   c.QueryParam("start_date"),
		EndDate:     c.QueryParam("end_date"),
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("limit %q is not an integer", raw))
		}
		params.Limit = n
	}
	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("offset %q is not an integer", raw))
		}
		params.Offset = n
	}

	results, err := s.repo.SearchMessages(c.Request().Context(), params)
	if err != nil {
		if errors.Is(err, repo.ErrBadQuery) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, results)
}
