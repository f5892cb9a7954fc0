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
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
)

const (
	profileNameMaxLen = 120
	temperatureMin    = 0.0
	temperatureMax    = 2.0
	maxTokensMin      = 1
	maxTokensMax      = 32768
)

type createProfileRequest struct {
	Name             string   `json:"name"`
	SystemPrompt     string   `json:"system_prompt"`
	Temperature      *float64 `json:"temperature"`
	MaxTokens        *int     `json:"max_tokens"`
	OpenRouterPreset string   `json:"openrouter_preset"`
}

type updateProfileRequest struct {
	Name             *string  `json:"name"`
	SystemPrompt     *string  `json:"system_prompt"`
	Temperature      *float64 `json:"temperature"`
	MaxTokens        *int     `json:"max_tokens"`
	OpenRouterPreset *string  `json:"openrouter_preset"`
}

func validateProfileName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "profile name must not be empty")
	}
	if len(trimmed) > profileNameMaxLen {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("profile name must be at most %d characters", profileNameMaxLen))
	}
	return nil
}

func validateTemperature(t float64) error {
	if t < temperatureMin || t > temperatureMax {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("temperature must be between %g and %g", temperatureMin, temperatureMax))
	}
	return nil
}

func validateMaxTokens(n int) error {
	if n < maxTokensMin || n > maxTokensMax {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("max_tokens must be between %d and %d", maxTokensMin, maxTokensMax))
	}
	return nil
}

// profileID parses the :id path parameter.
func profileID(c echo.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("profile id %q is not an integer", raw))
	}
	return id, nil
}

func (s *Server) handleCreateProfile(c echo.Context) error {
	var req createProfileRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := validateProfileName(req.Name); err != nil {
		return err
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

	profile, err := s.repo.CreateProfile(c.Request().Context(), repo.NewProfile{
		Name:             req.Name,
		SystemPrompt:     req.SystemPrompt,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		OpenRouterPreset: req.OpenRouterPreset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, profile)
}

func (s *Server) handleListProfiles(c echo.Context) error {
	profiles, err := s.repo.ListProfiles(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profiles)
}

func (s *Server) handleGetProfile(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	profile, err := s.repo.GetProfile(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleUpdateProfile(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if req.Name != nil {
		if err := validateProfileName(*req.Name); err != nil {
			return err
		}
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

	profile, err := s.repo.UpdateProfile(c.Request().Context(), id, repo.ProfileUpdate{
		Name:             req.Name,
		SystemPrompt:     req.SystemPrompt,
		Temperature:      req.Temperature,
		MaxTokens:        req.MaxTokens,
		OpenRouterPreset: req.OpenRouterPreset,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (s *Server) handleDeleteProfile(c echo.Context) error {
	id, err := profileID(c)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProfile(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Profile deleted successfully", "id": id})
}
