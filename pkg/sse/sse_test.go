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
package sse

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushCounter struct {
	bytes.Buffer
	flushes int
}

func (f *flushCounter) Flush() { f.flushes++ }

func TestWriteEventExactWireFormat(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteEvent(EventToken, map[string]string{"token": " hello"}))
	assert.Equal(t, "event: token\ndata: {\"token\":\" hello\"}\n\n", buf.String())
}

func TestWriteEventCompactJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	payload := struct {
		Assistant string         `json:"assistant"`
		Usage     map[string]int `json:"usage"`
	}{"Hi", map[string]int{"total_tokens": 5}}

	require.NoError(t, w.WriteEvent(EventDone, payload))
	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "event: done\ndata: "))
	assert.NotContains(t, line, "\n ", "payload must be one compact line")
	assert.True(t, strings.HasSuffix(line, "\n\n"))
}

func TestWriterFlushesEveryFrame(t *testing.T) {
	fc := &flushCounter{}
	w := NewWriter(fc)

	require.NoError(t, w.WriteEvent(EventStart, map[string]string{"session_id": "s1"}))
	require.NoError(t, w.WriteEvent(EventToken, map[string]string{"token": "a"}))
	require.NoError(t, w.WriteEvent(EventDone, map[string]any{"assistant": "a"}))

	assert.Equal(t, 3, fc.flushes)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.WriteEvent(EventStart, map[string]string{"session_id": "s1", "model_id": "m"}))
	require.NoError(t, w.WriteEvent(EventToken, map[string]string{"token": "H"}))
	require.NoError(t, w.WriteEvent(EventToken, map[string]string{"token": "i"}))
	require.NoError(t, w.WriteEvent(EventDone, map[string]any{"assistant": "Hi", "usage": nil}))

	frames, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, frames, 4)

	assert.Equal(t, EventStart, frames[0].Event)
	assert.Equal(t, EventToken, frames[1].Event)
	assert.Equal(t, `{"token":"H"}`, frames[1].Data)
	assert.Equal(t, `{"token":"i"}`, frames[2].Data)
	assert.Equal(t, EventDone, frames[3].Event)
	assert.Equal(t, `{"assistant":"Hi","usage":null}`, frames[3].Data)
}

func TestDecodeJoinsMultiLineData(t *testing.T) {
	raw := "event: done\ndata: line1\ndata: line2\n\n"
	frames, err := Decode(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "line1\nline2", frames[0].Data)
}

func TestDecodeTrailingBlockWithoutBlankLine(t *testing.T) {
	raw := "event: error\ndata: {\"error_code\":\"STREAM_ERROR\"}"
	frames, err := Decode(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, EventError, frames[0].Event)
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	raw := ": comment\nid: 7\nevent: token\ndata: {\"token\":\"x\"}\n\n"
	frames, err := Decode(strings.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, EventToken, frames[0].Event)
	assert.Equal(t, `{"token":"x"}`, frames[0].Data)
}
