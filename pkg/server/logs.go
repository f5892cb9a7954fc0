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
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type frontendLogEntry struct {
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta"`
	Context map[string]any `json:"context"`
}

type frontendLogsRequest struct {
	Logs []frontendLogEntry `json:"logs"`
}

// frontendLogLevels maps the browser logger's levels onto zap's. Unknown
// levels land on info.
var frontendLogLevels = map[string]zapcore.Level{
	"debug":    zapcore.DebugLevel,
	"info":     zapcore.InfoLevel,
	"warn":     zapcore.WarnLevel,
	"error":    zapcore.ErrorLevel,
	"critical": zapcore.ErrorLevel,
}

// handleFrontendLogs relays batched browser logs into the server log so a
// single stream covers both sides of a session.
func (s *Server) handleFrontendLogs(c echo.Context) error {
	var req frontendLogsRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	rid := requestID(c)
	for _, entry := range req.Logs {
		level, ok := frontendLogLevels[strings.ToLower(entry.Level)]
		if !ok {
			level = zapcore.InfoLevel
		}
		s.logger.Log(level, "[FRONTEND] "+entry.Message,
			zap.String("request_id", rid),
			zap.String("frontend_level", entry.Level),
			zap.Any("meta", entry.Meta),
			zap.Any("context", entry.Context))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":   true,
		"received":  len(req.Logs),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
