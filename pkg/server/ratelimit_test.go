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

//go:build fts5

package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		raw      string
		requests int
		period   time.Duration
	}{
		{"20 per minute", 20, time.Minute},
		{"5 per hour", 5, time.Hour},
		{"1 per second", 1, time.Second},
		{"300 per day", 300, 24 * time.Hour},
		{"100/minute", 100, time.Minute},
		{"10 per minutes", 10, time.Minute},
		{"  60 per minute  ", 60, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := ParsePolicy(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.requests, p.Requests)
			assert.Equal(t, tt.period, p.Period)
		})
	}
}

func TestParsePolicyRejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		"",
		"per minute",
		"0 per minute",
		"-3 per minute",
		"ten per minute",
		"10 per fortnight",
		"10",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParsePolicy(raw)
			assert.Error(t, err)
		})
	}
}

func TestPolicyRetryAfter(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"20 per minute", 3},
		{"5 per hour", 720},
		{"120 per minute", 1},
		{"1 per second", 1},
	}
	for _, tt := range tests {
		p, err := ParsePolicy(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.RetryAfter(), tt.raw)
	}
}

func TestDefaultRateLimitsParse(t *testing.T) {
	_, err := parseGroupPolicies(DefaultRateLimits())
	assert.NoError(t, err)
}

func TestRateLimitExceeded(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.RateLimitEnabled = true
		cfg.RateLimits.HealthCheck = "2 per minute"
	})

	for i := 0; i < 2; i++ {
		rec := ts.do(http.MethodGet, "/api/health", nil)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		assert.Equal(t, "2 per minute", rec.Header().Get(HeaderRateLimitLimit))
	}

	rec := ts.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "2 per minute", rec.Header().Get(HeaderRateLimitLimit))

	var env envelope
	decodeBody(t, rec, &env)
	assert.Equal(t, "RATE_LIMITED", env.ErrorCode)
	assert.Equal(t, "Rate limit exceeded: 2 per minute", env.Message)
	assert.Equal(t, "2 per minute", env.Details["policy"])
	assert.EqualValues(t, 30, env.Details["retry_after"])
}

func TestRateLimitGroupsAreIndependent(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.RateLimitEnabled = true
		cfg.RateLimits.HealthCheck = "1 per minute"
	})

	rec := ts.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other groups still serve.
	rec = ts.do(http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitDisabledAddsNoHeaders(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderRateLimitLimit))
}
