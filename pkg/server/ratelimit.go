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
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/apierror"
)

// HeaderRateLimitLimit echoes the policy string governing the endpoint.
const HeaderRateLimitLimit = "X-RateLimit-Limit"

// frontendLogsPolicy bounds the frontend log sink. It is deliberately not
// configurable; a misbehaving frontend should not be able to raise it.
const frontendLogsPolicy = "60 per minute"

// RateLimits holds the policy string for each endpoint group, in the form
// "N per unit" (unit one of second, minute, hour, day). "N/unit" is also
// accepted.
type RateLimits struct {
	Stream      string
	ModelSync   string
	Upload      string
	Sessions    string
	Messages    string
	Profiles    string
	ModelsList  string
	UsageLogs   string
	HealthCheck string
}

// DefaultRateLimits returns the stock policies. Streaming and catalog sync
// are the expensive operations and get the tightest budgets.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Stream:      "20 per minute",
		ModelSync:   "5 per hour",
		Upload:      "30 per minute",
		Sessions:    "60 per minute",
		Messages:    "100 per minute",
		Profiles:    "60 per minute",
		ModelsList:  "120 per minute",
		UsageLogs:   "120 per minute",
		HealthCheck: "300 per minute",
	}
}

// Policy is one parsed rate limit: Requests per Period, per client IP.
type Policy struct {
	Requests int
	Period   time.Duration
	Raw      string
}

var policyUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParsePolicy reads a policy string such as "20 per minute" or "20/minute".
// A trailing "s" on the unit is tolerated.
func ParsePolicy(s string) (Policy, error) {
	raw := strings.TrimSpace(s)

	var countPart, unitPart string
	switch {
	case strings.Contains(raw, " per "):
		parts := strings.SplitN(raw, " per ", 2)
		countPart, unitPart = parts[0], parts[1]
	case strings.Contains(raw, "/"):
		parts := strings.SplitN(raw, "/", 2)
		countPart, unitPart = parts[0], parts[1]
	default:
		return Policy{}, fmt.Errorf("invalid rate limit policy %q (want \"N per unit\")", s)
	}

	n, err := strconv.Atoi(strings.TrimSpace(countPart))
	if err != nil || n <= 0 {
		return Policy{}, fmt.Errorf("invalid request count in rate limit policy %q", s)
	}

	unit := strings.TrimSuffix(strings.TrimSpace(unitPart), "s")
	period, ok := policyUnits[unit]
	if !ok {
		return Policy{}, fmt.Errorf("invalid unit in rate limit policy %q (want second, minute, hour, or day)", s)
	}

	return Policy{Requests: n, Period: period, Raw: raw}, nil
}

// RetryAfter is the suggested wait before retrying: the token refill
// interval, rounded up to whole seconds.
func (p Policy) RetryAfter() int {
	retry := int(math.Ceil(p.Period.Seconds() / float64(p.Requests)))
	if retry < 1 {
		retry = 1
	}
	return retry
}

// limit returns the middleware enforcing pol, or a pass-through when rate
// limiting is disabled.
func (s *Server) limit(pol Policy) echo.MiddlewareFunc {
	if !s.config.RateLimitEnabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return s.limiter(pol)
}

// limiter builds an IP-keyed token bucket for one endpoint group: a burst
// of Requests, refilling at Requests per Period. Every response carries
// X-RateLimit-Limit; a rejected request additionally carries Retry-After
// and the RATE_LIMITED envelope.
func (s *Server) limiter(pol Policy) echo.MiddlewareFunc {
	expiry := pol.Period
	if expiry < 3*time.Minute {
		expiry = 3 * time.Minute
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(pol.Requests) / pol.Period.Seconds()),
		Burst:     pol.Requests,
		ExpiresIn: expiry,
	})

	retryAfter := pol.RetryAfter()
	limit := middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "Failed to identify client for rate limiting").SetInternal(err)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
			s.logger.Warn("Rate limit exceeded",
				zap.String("request_id", requestID(c)),
				zap.String("client_ip", identifier),
				zap.String("policy", pol.Raw))
			return apierror.RateLimited(pol.Raw, retryAfter)
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		inner := limit(next)
		return func(c echo.Context) error {
			c.Response().Header().Set(HeaderRateLimitLimit, pol.Raw)
			return inner(c)
		}
	}
}
