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

// Package sse encodes and decodes Server-Sent Event frames in the exact
// wire shape the console frontend parses:
//
//	event: <name>\n
//	data: <compact-json-one-line>\n
//	\n
//
// Each frame is flushed immediately so the browser sees tokens as they
// arrive rather than when a buffer fills.
package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Event names understood by the frontend. A stream is zero or one
// EventStart, any number of EventToken, then exactly one terminal
// (EventDone or EventError).
const (
	EventStart = "start"
	EventToken = "token"
	EventDone  = "done"
	EventError = "error"
)

// Writer emits frames to an underlying stream, flushing after each frame
// when the stream supports it.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter wraps w. If w implements http.Flusher (as
// http.ResponseWriter does), every frame is flushed on write.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// WriteEvent marshals payload to compact JSON and writes one frame.
func (sw *Writer) WriteEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: marshal %s payload: %w", event, err)
	}
	return sw.WriteRaw(event, data)
}

// WriteRaw writes one frame with pre-serialized data. The data must be a
// single line; embedded newlines would desynchronize the frame grammar.
func (sw *Writer) WriteRaw(event string, data []byte) error {
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("sse: write %s frame: %w", event, err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// Frame is one decoded event/data pair.
type Frame struct {
	Event string
	Data  string
}

// Decode reads every frame from r. It recognizes "event:" and "data:"
// lines, joins multi-line data with newlines, and emits one frame per
// blank-line-separated block. Unknown field lines and comments are
// ignored. Used by tests that replay captured streams.
func Decode(r io.Reader) ([]Frame, error) {
	var (
		frames    []Frame
		event     string
		dataLines []string
	)

	flush := func() {
		if event == "" && len(dataLines) == 0 {
			return
		}
		frames = append(frames, Frame{
			Event: event,
			Data:  strings.Join(dataLines, "\n"),
		})
		event = ""
		dataLines = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(strings.TrimPrefix(line, "event:"), " ")
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return frames, fmt.Errorf("sse: scan stream: %w", err)
	}
	flush() // trailing block without final blank line

	return frames, nil
}
