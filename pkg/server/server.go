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

// Package server is the HTTP surface of the console gateway. It wires an
// echo instance with request ids, structured request logging, CORS, body
// limits, per-endpoint IP rate limiting, and a custom error handler that
// renders the canonical error envelope. The streaming endpoints live in
// stream.go and documents.go; everything else is thin JSON handlers over
// the repository.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/apierror"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/documents"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/observability"
	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/repo"
)

// Default listen address and request body cap. The body limit leaves
// headroom over the 10 MiB document cap for multipart framing.
const (
	DefaultAddr      = ":8000"
	DefaultBodyLimit = "12M"
)

// Config holds the HTTP surface configuration.
type Config struct {
	Addr             string   // listen address, default ":8000"
	Origins          []string // allowed CORS origins
	BodyLimit        string   // echo body limit spec, default "12M"
	DBPath           string   // live database file, used by the admin backup endpoints
	BackupDir        string   // where backup snapshots land
	RateLimitEnabled bool
	RateLimits       RateLimits
}

// Dependencies are the collaborators the server drives. Repo, Documents,
// Upstream, and Syncer are required; Logger and Tracer fall back to no-ops.
type Dependencies struct {
	Repo      *repo.Repository
	Documents *documents.Store
	Upstream  Upstream
	Syncer    ModelSyncRunner
	Logger    *zap.Logger
	Tracer    observability.Tracer
}

// Server serves the console API.
type Server struct {
	echo     *echo.Echo
	repo     *repo.Repository
	docs     *documents.Store
	upstream Upstream
	syncer   ModelSyncRunner
	logger   *zap.Logger
	tracer   observability.Tracer
	config   Config
	limits   groupPolicies
}

// groupPolicies are the parsed per-group rate limit policies. The frontend
// log sink is not configurable and always runs at 60 per minute.
type groupPolicies struct {
	stream       Policy
	modelSync    Policy
	upload       Policy
	sessions     Policy
	messages     Policy
	profiles     Policy
	modelsList   Policy
	usageLogs    Policy
	healthCheck  Policy
	frontendLogs Policy
}

// New builds a Server. Rate limit policies are parsed eagerly so a bad
// configuration fails at startup, not on the first limited request.
func New(config Config, deps Dependencies) (*Server, error) {
	if deps.Repo == nil {
		return nil, errors.New("server: repository is required")
	}
	if deps.Documents == nil {
		return nil, errors.New("server: document store is required")
	}
	if deps.Upstream == nil {
		return nil, errors.New("server: upstream client is required")
	}
	if deps.Syncer == nil {
		return nil, errors.New("server: model syncer is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Tracer == nil {
		deps.Tracer = observability.NewNoOpTracer()
	}
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.BodyLimit == "" {
		config.BodyLimit = DefaultBodyLimit
	}

	limits, err := parseGroupPolicies(config.RateLimits)
	if err != nil {
		return nil, err
	}

	s := &Server{
		repo:     deps.Repo,
		docs:     deps.Documents,
		upstream: deps.Upstream,
		syncer:   deps.Syncer,
		logger:   deps.Logger,
		tracer:   deps.Tracer,
		config:   config,
		limits:   limits,
	}
	s.echo = s.buildEcho()
	return s, nil
}

// parseGroupPolicies validates every configured policy string up front.
func parseGroupPolicies(rl RateLimits) (groupPolicies, error) {
	var (
		limits groupPolicies
		err    error
	)
	for _, p := range []struct {
		name string
		raw  string
		dst  *Policy
	}{
		{"stream", rl.Stream, &limits.stream},
		{"model_sync", rl.ModelSync, &limits.modelSync},
		{"upload", rl.Upload, &limits.upload},
		{"sessions", rl.Sessions, &limits.sessions},
		{"messages", rl.Messages, &limits.messages},
		{"profiles", rl.Profiles, &limits.profiles},
		{"models_list", rl.ModelsList, &limits.modelsList},
		{"usage_logs", rl.UsageLogs, &limits.usageLogs},
		{"health_check", rl.HealthCheck, &limits.healthCheck},
		{"logs", frontendLogsPolicy, &limits.frontendLogs},
	} {
		if *p.dst, err = ParsePolicy(p.raw); err != nil {
			return groupPolicies{}, fmt.Errorf("server: rate limit for %s: %w", p.name, err)
		}
	}
	return limits, nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(s.requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(s.config.BodyLimit))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     s.config.Origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderXRequestID},
		AllowCredentials: true,
	}))

	s.registerRoutes(e)
	return e
}

// registerRoutes mounts every endpoint under /api. Each endpoint group
// shares one rate limit bucket so the configured policy bounds the group
// as a whole, not each route separately.
func (s *Server) registerRoutes(e *echo.Echo) {
	var (
		limitStream      = s.limit(s.limits.stream)
		limitModelSync   = s.limit(s.limits.modelSync)
		limitUpload      = s.limit(s.limits.upload)
		limitSessions    = s.limit(s.limits.sessions)
		limitMessages    = s.limit(s.limits.messages)
		limitProfiles    = s.limit(s.limits.profiles)
		limitModelsList  = s.limit(s.limits.modelsList)
		limitUsageLogs   = s.limit(s.limits.usageLogs)
		limitHealthCheck = s.limit(s.limits.healthCheck)
		limitLogs        = s.limit(s.limits.frontendLogs)
	)

	api := e.Group("/api")

	api.GET("/health", s.handleHealth, limitHealthCheck)
	api.GET("/stream", s.handleStream, limitStream)
	api.POST("/logs", s.handleFrontendLogs, limitLogs)

	api.POST("/sessions", s.handleCreateSession, limitSessions)
	api.GET("/sessions", s.handleListSessions, limitSessions)
	api.GET("/sessions/:id", s.handleGetSession, limitSessions)
	api.PATCH("/sessions/:id", s.handleUpdateSession, limitSessions)
	api.DELETE("/sessions/:id", s.handleDeleteSession, limitSessions)
	api.GET("/sessions/:id/messages", s.handleSessionMessages, limitMessages)

	api.POST("/messages", s.handleCreateMessage, limitMessages)
	api.DELETE("/messages/:id", s.handleDeleteMessage, limitMessages)
	api.GET("/messages/search", s.handleSearchMessages, limitMessages)

	api.POST("/profiles", s.handleCreateProfile, limitProfiles)
	api.GET("/profiles", s.handleListProfiles, limitProfiles)
	api.GET("/profiles/:id", s.handleGetProfile, limitProfiles)
	api.PATCH("/profiles/:id", s.handleUpdateProfile, limitProfiles)
	api.DELETE("/profiles/:id", s.handleDeleteProfile, limitProfiles)

	api.GET("/models", s.handleListModels, limitModelsList)
	api.POST("/models/sync", s.handleSyncModels, limitModelSync)

	api.POST("/usage", s.handleCreateUsageLog, limitUsageLogs)
	api.GET("/usage/sessions/:id", s.handleUsageBySession, limitUsageLogs)
	api.GET("/usage/models", s.handleUsageByModel, limitUsageLogs)
	api.GET("/usage/timeline", s.handleUsageTimeline, limitUsageLogs)
	api.GET("/usage/totals", s.handleUsageTotals, limitUsageLogs)

	api.POST("/documents/upload", s.handleUploadDocument, limitUpload)
	api.GET("/documents", s.handleListDocuments, limitUpload)
	api.GET("/documents/:id", s.handleGetDocument, limitUpload)
	api.DELETE("/documents/:id", s.handleDeleteDocument, limitUpload)
	api.POST("/documents/:id/qa", s.handleDocumentQA, limitStream)

	api.GET("/cache/stats", s.handleCacheStats, limitProfiles)
	api.POST("/cache/clear", s.handleClearAllCaches, limitProfiles)
	api.POST("/cache/clear/profiles", s.handleClearProfileCache, limitProfiles)
	api.POST("/cache/clear/models", s.handleClearModelCache, limitProfiles)

	api.GET("/admin/backup", s.handleDownloadBackup, limitProfiles)
	api.GET("/admin/backups", s.handleListBackups, limitProfiles)
}

// Start runs the server until it is shut down. Write timeout stays zero:
// streams legitimately run for minutes.
func (s *Server) Start() error {
	s.echo.Server.ReadTimeout = 30 * time.Second
	s.echo.Server.WriteTimeout = 0
	s.echo.Server.IdleTimeout = 120 * time.Second

	s.logger.Info("Starting HTTP server", zap.String("addr", s.config.Addr))
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server, waiting for in-flight requests
// until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// requestLogger emits one structured line per handled request.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogRequestID: true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request_id", v.RequestID),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			s.logger.Info("Request handled", fields...)
			return nil
		},
	})
}

// httpErrorHandler renders every handler error as the canonical envelope.
// Taxonomy errors keep their code and status; echo's own errors (binding,
// body limit, 404 routes) become a plain {"message": ...}; anything else
// is a 500 STREAM_ERROR envelope, logged with the request id.
func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		// Streaming endpoints report their own failures in-band.
		s.logger.Debug("Error after response committed",
			zap.String("request_id", requestID(c)), zap.Error(err))
		return
	}

	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		status := apiErr.HTTPStatus()
		log := s.logger.Warn
		if status >= http.StatusInternalServerError {
			log = s.logger.Error
		}
		log("Request failed",
			zap.String("request_id", requestID(c)),
			zap.String("error_code", string(apiErr.Code)),
			zap.Int("status", status),
			zap.Error(err))
		if jerr := c.JSON(status, apiErr); jerr != nil {
			s.logger.Error("Failed to write error response", zap.Error(jerr))
		}
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if jerr := c.JSON(httpErr.Code, echo.Map{"message": fmt.Sprint(httpErr.Message)}); jerr != nil {
			s.logger.Error("Failed to write error response", zap.Error(jerr))
		}
		return
	}

	s.logger.Error("Unhandled request error",
		zap.String("request_id", requestID(c)),
		zap.String("uri", c.Request().RequestURI),
		zap.Error(err))
	fallback := apierror.FromError(err)
	if jerr := c.JSON(fallback.HTTPStatus(), fallback); jerr != nil {
		s.logger.Error("Failed to write error response", zap.Error(jerr))
	}
}

// requestID returns the id the RequestID middleware attached to this
// request.
func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
