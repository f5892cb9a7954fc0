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
package observability

import "context"

// Tracer instruments gateway operations: streams, repository calls,
// migrations, scheduled jobs, cache lookups. All methods are safe for
// concurrent use.
type Tracer interface {
	// StartSpan opens a span and returns a context carrying it; a span
	// already present in ctx becomes the parent. Pair with EndSpan:
	//
	//	ctx, span := tracer.StartSpan(ctx, "stream.completion",
	//	    WithAttribute(AttrLLMModel, "openai/gpt-4o"))
	//	defer tracer.EndSpan(span)
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, *Span)

	// EndSpan stamps the end time, computes the duration, and hands the
	// span to the backend.
	EndSpan(span *Span)

	// RecordMetric records a point-in-time value with labels (token
	// counts, costs, cache hit ratios, job outcomes).
	RecordMetric(name string, value float64, labels map[string]string)

	// RecordEvent records an occurrence not tied to any span. Prefer
	// span.AddEvent when a span is open.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})

	// Flush blocks until buffered spans and metrics are exported or ctx
	// expires. Called on graceful shutdown.
	Flush(ctx context.Context) error
}

// SpanFromContext returns the span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey).(*Span); ok {
		return span
	}
	return nil
}

// ContextWithSpan returns a context carrying span, making it the parent of
// spans started under the returned context.
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

type contextKey string

const spanContextKey contextKey = "console.span"
