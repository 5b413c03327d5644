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

// Package llm drives the streaming chat completion that turns a question and
// a schema context into a SQL envelope. Providers live in subpackages; this
// package owns the message types, the engine, and the strict JSON envelope
// extraction.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// StreamCallback receives each text delta as the provider produces it. It is
// called from the streaming goroutine; implementations must not block.
type StreamCallback func(delta string)

// Usage reports token accounting for one completion.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Completion is the accumulated result of one chat call.
type Completion struct {
	Content    string
	StopReason string
	Usage      Usage
}

// Provider is a streaming chat backend. Implementations are safe for
// concurrent use and are constructed once at startup.
type Provider interface {
	// ChatStream sends the conversation and streams text deltas to onToken
	// (which may be nil). It returns the full accumulated completion.
	ChatStream(ctx context.Context, messages []Message, onToken StreamCallback) (*Completion, error)

	// Name identifies the provider ("openai", "anthropic", "bedrock").
	Name() string

	// Model returns the configured model identifier.
	Model() string
}
