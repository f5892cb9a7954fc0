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

	"github.com/labstack/echo/v4"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
)

var timelinePeriods = map[string]bool{"day": true, "week": true, "month": true}

type createUsageLogRequest struct {
	SessionID        string `json:"session_id"`
	ModelID          string `json:"model_id"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	ProfileID        *int64 `json:"profile_id"`
}

func (s *Server) handleCreateUsageLog(c echo.Context) error {
	var req createUsageLogRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	log, err := s.repo.InsertUsageLog(c.Request().Context(), repo.NewUsageLog{
		SessionID:        req.SessionID,
		ProfileID:        req.ProfileID,
		ModelID:          req.ModelID,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, log)
}

func (s *Server) handleUsageBySession(c echo.Context) error {
	logs, err := s.repo.ListUsageBySession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, logs)
}

func (s *Server) handleUsageByModel(c echo.Context) error {
	usage, err := s.repo.AggregateUsageByModel(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, usage)
}

func (s *Server) handleUsageTimeline(c echo.Context) error {
	period := c.QueryParam("period")
	if period == "" {
		period = "day"
	}
	if !timelinePeriods[period] {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("invalid period %q (want day, week, or month)", period))
	}

	timeline, err := s.repo.UsageTimeline(c.Request().Context(), period,
		c.QueryParam("start_date"), c.QueryParam("end_date"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, timeline)
}

func (s *Server) handleUsageTotals(c echo.Context) error {
	totals, err := s.repo.UsageTotals(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, totals)
}
