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

package openrouter

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Estimator approximates prompt sizes for context-window warnings.
// Uses tiktoken with cl100k_base encoding, which is close enough across
// the models OpenRouter fronts.
type Estimator struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	globalEstimator *Estimator
	estimatorOnce   sync.Once
)

// GetEstimator returns the singleton estimator instance.
func GetEstimator() *Estimator {
	estimatorOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			// Fall back to character-based estimation when the encoding
			// cannot be loaded.
			globalEstimator = &Estimator{encoder: nil}
			return
		}
		globalEstimator = &Estimator{encoder: tkm}
	})
	return globalEstimator
}

// CountTokens returns the token count for a given text.
func (e *Estimator) CountTokens(text string) int {
	if e.encoder == nil {
		return len(text) / 4
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.encoder.Encode(text, nil, nil))
}

// EstimateMessagesTokens estimates the prompt size of a conversation.
// Role and framing cost roughly 10 tokens per message.
func (e *Estimator) EstimateMessagesTokens(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += 10
		total += e.CountTokens(msg.Content)
	}
	return total
}
