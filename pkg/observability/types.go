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

// Package observability provides the tracing and metrics hooks for the
// console gateway. Streams, catalog syncs, migrations, and cache activity
// report through the Tracer interface; the default NoOpTracer keeps the
// hot path free when no backend is attached.
package observability

import (
	"time"
)

// StatusCode is the final status of a span.
type StatusCode int

const (
	// StatusUnset means no status was recorded.
	StatusUnset StatusCode = iota
	// StatusOK marks successful completion.
	StatusOK
	// StatusError marks a failed operation.
	StatusError
)

func (s StatusCode) String() string {
	switch s {
	case StatusUnset:
		return "unset"
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is a span's final status with an optional message.
type Status struct {
	Code    StatusCode
	Message string
}

// Event is a timestamped occurrence inside a span.
type Event struct {
	Timestamp  time.Time
	Name       string
	Attributes map[string]interface{}
}

// Span is one timed unit of work. Spans form a tree through ParentID.
type Span struct {
	TraceID  string
	SpanID   string
	ParentID string // empty for root spans

	Name       string // operation name, e.g. "stream.completion"
	Attributes map[string]interface{}

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration // set by EndSpan

	Events []Event
	Status Status
}

// SetAttribute sets one key-value attribute on the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	if s.Attributes == nil {
		s.Attributes = make(map[string]interface{})
	}
	s.Attributes[key] = value
}

// AddEvent appends a timestamped event to the span.
func (s *Span) AddEvent(name string, attrs map[string]interface{}) {
	s.Events = append(s.Events, Event{
		Timestamp:  time.Now(),
		Name:       name,
		Attributes: attrs,
	})
}

// RecordError marks the span failed and attaches the error text.
func (s *Span) RecordError(err error) {
	if err == nil {
		return
	}
	s.Status = Status{
		Code:    StatusError,
		Message: err.Error(),
	}
	s.SetAttribute(AttrErrorMessage, err.Error())
	s.SetAttribute(AttrErrorType, "error")
}

// SpanOption configures a span at StartSpan time.
type SpanOption func(*Span)

// WithAttribute sets an attribute when the span starts.
func WithAttribute(key string, value interface{}) SpanOption {
	return func(s *Span) {
		s.SetAttribute(key, value)
	}
}

// WithSpanKind sets the span.kind attribute. The gateway uses "stream",
// "llm", "storage", "scheduler", and "http".
func WithSpanKind(kind string) SpanOption {
	return func(s *Span) {
		s.SetAttribute("span.kind", kind)
	}
}
