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

// Package apierror defines the closed set of error codes the gateway can
// return, with a single envelope shape shared by the JSON and SSE paths.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Code identifies one member of the closed error taxonomy.
type Code string

const (
	CodeSessionNotFound  Code = "SESSION_NOT_FOUND"
	CodeProfileNotFound  Code = "PROFILE_NOT_FOUND"
	CodeDocumentNotFound Code = "DOCUMENT_NOT_FOUND"
	CodeMessageNotFound  Code = "MESSAGE_NOT_FOUND"
	CodeUsageLogNotFound Code = "USAGE_LOG_NOT_FOUND"

	CodeMissingAPIKey   Code = "MISSING_API_KEY"
	CodeMissingFilename Code = "MISSING_FILENAME"

	CodeFileSaveFailed   Code = "FILE_SAVE_FAILED"
	CodeFileDeleteFailed Code = "FILE_DELETE_FAILED"

	CodeOpenRouterError Code = "OPENROUTER_ERROR"
	CodeStreamError     Code = "STREAM_ERROR"
	CodeRateLimited     Code = "RATE_LIMITED"
)

// httpStatus maps each code to its canonical HTTP status.
var httpStatus = map[Code]int{
	CodeSessionNotFound:  http.StatusNotFound,
	CodeProfileNotFound:  http.StatusNotFound,
	CodeDocumentNotFound: http.StatusNotFound,
	CodeMessageNotFound:  http.StatusNotFound,
	CodeUsageLogNotFound: http.StatusNotFound,
	CodeMissingAPIKey:    http.StatusBadRequest,
	CodeMissingFilename:  http.StatusBadRequest,
	CodeFileSaveFailed:   http.StatusInternalServerError,
	CodeFileDeleteFailed: http.StatusInternalServerError,
	CodeOpenRouterError:  http.StatusBadGateway,
	CodeStreamError:      http.StatusInternalServerError,
	CodeRateLimited:      http.StatusTooManyRequests,
}

// Error is a typed gateway error. It serializes to the canonical envelope:
// error_code, message, optional resource_type/resource_id/details, and on
// the SSE path also status and request_id.
type Error struct {
	Code         Code           `json:"error_code"`
	Message      string         `json:"message"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Is matches two taxonomy errors by code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// HTTPStatus returns the canonical HTTP status for the code.
// Unknown codes collapse to 500.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// WithCause attaches an underlying error without changing the envelope.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// WithDetails attaches the details bag.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// NotFound builds a 404-class error for a missing resource. When message is
// empty a default "<Resource> not found" message is generated.
func NotFound(code Code, resourceType string, resourceID any, message string) *Error {
	if message == "" {
		message = capitalize(resourceType) + " not found"
	}
	return &Error{
		Code:         code,
		Message:      message,
		ResourceType: resourceType,
		ResourceID:   fmt.Sprint(resourceID),
	}
}

// BadRequest builds a 400-class error.
func BadRequest(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Internal builds a 500-class error.
func Internal(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Upstream builds an OPENROUTER_ERROR carrying the provider status code in
// the details bag so the SSE path can re-expose it.
func Upstream(status int, message string) *Error {
	return &Error{
		Code:    CodeOpenRouterError,
		Message: message,
		Details: map[string]any{"upstream_status": status},
	}
}

// RateLimited builds a RATE_LIMITED error carrying the active policy and
// the suggested retry delay in seconds.
func RateLimited(policy string, retryAfter int) *Error {
	return &Error{
		Code:    CodeRateLimited,
		Message: "Rate limit exceeded: " + policy,
		Details: map[string]any{"policy": policy, "retry_after": retryAfter},
	}
}

// FromError coerces any error into a taxonomy error. Already-typed errors
// pass through; everything else becomes STREAM_ERROR with the original
// message preserved as the cause.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(CodeStreamError, "Unexpected error during request processing").WithCause(err)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
