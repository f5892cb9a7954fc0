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

	"github.com/labstack/echo/v4"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/apierror"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/openrouter"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
)

// ModelSyncRunner refreshes the local model catalog from the provider.
// *scheduler.ModelSyncer satisfies it.
type ModelSyncRunner interface {
	Sync(ctx context.Context) (int, error)
}

func (s *Server) handleListModels(c echo.Context) error {
	var filter repo.ModelFilter

	if raw := c.QueryParam("reasoning"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("reasoning %q is not a boolean", raw))
		}
		filter.ReasoningOnly = v
	}
	if raw := c.QueryParam("min_context"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 1 {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("min_context %q is not a positive integer", raw))
		}
		filter.MinContext = v
	}
	if raw := c.QueryParam("max_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("max_price %q is not a non-negative number", raw))
		}
		filter.MaxPrice = v
	}

	models, err := s.repo.ListModels(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models)
}

func (s *Server) handleSyncModels(c echo.Context) error {
	count, err := s.syncer.Sync(c.Request().Context())
	if err != nil {
		var statusErr *openrouter.StatusError
		switch {
		case errors.Is(err, openrouter.ErrMissingAPIKey):
			return apierror.BadRequest(apierror.CodeMissingAPIKey, "OpenRouter API key is not configured")
		case errors.As(err, &statusErr):
			return apierror.Upstream(statusErr.Status,
				fmt.Sprintf("Model catalog fetch failed with status %d", statusErr.Status)).WithCause(err)
		default:
			return apierror.FromError(err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"synced": count})
}
