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

package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider replays a canned body as word-sized deltas.
type fakeProvider struct {
	body     string
	err      error
	seenMsgs []Message
}

func (f *fakeProvider) ChatStream(ctx context.Context, messages []Message, onToken StreamCallback) (*Completion, error) {
	f.seenMsgs = messages
	if f.err != nil {
		return nil, f.err
	}
	if onToken != nil {
		for _, word := range strings.SplitAfter(f.body, " ") {
			onToken(word)
		}
	}
	return &Completion{Content: f.body, StopReason: "end_turn"}, nil
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

type staticPrompts struct{ lastContext string }

func (s *staticPrompts) System(schemaContext string) string {
	s.lastContext = schemaContext
	return "SYSTEM with context:\n" + schemaContext
}

func TestGenerateStream_ForwardsDeltasAndExtracts(t *testing.T) {
	provider := &fakeProvider{body: `{"thinking": "group by city", "sql": "SELECT city FROM users", "chart_type": "pie"}`}
	engine := NewEngine(provider, &staticPrompts{}, EngineConfig{})

	var deltas []string
	env, err := engine.GenerateStream(context.Background(), "users per city?", "Table: users", func(d string) {
		deltas = append(deltas, d)
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT city FROM users", env.SQL)
	assert.Equal(t, ChartPie, env.ChartType)
	assert.Equal(t, provider.body, strings.Join(deltas, ""), "deltas must reassemble to the full body")
}

func TestGenerateStream_MessageLayout(t *testing.T) {
	provider := &fakeProvider{body: `{"sql": ""}`}
	prompts := &staticPrompts{}
	engine := NewEngine(provider, prompts, EngineConfig{})

	_, err := engine.GenerateStream(context.Background(), "the question", "the schema", nil)
	require.NoError(t, err)

	require.Len(t, provider.seenMsgs, 2)
	assert.Equal(t, RoleSystem, provider.seenMsgs[0].Role)
	assert.Contains(t, provider.seenMsgs[0].Content, "the schema")
	assert.Equal(t, RoleUser, provider.seenMsgs[1].Role)
	assert.Equal(t, "the question", provider.seenMsgs[1].Content)
}

func TestGenerateStream_TransportError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection reset")}
	engine := NewEngine(provider, &staticPrompts{}, EngineConfig{})

	_, err := engine.GenerateStream(context.Background(), "q", "", nil)

	var typed *Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, CodeLLMError, typed.Code)
	assert.Contains(t, typed.Message, "connection reset")
}

func TestGenerateStream_ParseFailure(t *testing.T) {
	provider := &fakeProvider{body: "sorry, no JSON here"}
	engine := NewEngine(provider, &staticPrompts{}, EngineConfig{})

	_, err := engine.GenerateStream(context.Background(), "q", "", nil)

	var typed *Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, CodeParseFailed, typed.Code)
}

func TestGenerateStream_CancelledContextPassesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &fakeProvider{err: context.Canceled}
	engine := NewEngine(provider, &staticPrompts{}, EngineConfig{})

	_, err := engine.GenerateStream(ctx, "q", "", nil)
	assert.ErrorIs(t, err, context.Canceled)

	var typed *Error
	assert.False(t, errors.As(err, &typed), "cancellation must not be wrapped as LLM_ERROR")
}

func TestGenerate_NonStreaming(t *testing.T) {
	provider := &fakeProvider{body: `{"sql": "SELECT 1"}`}
	engine := NewEngine(provider, &staticPrompts{}, EngineConfig{})

	env, err := engine.Generate(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", env.SQL)
}

func TestGenerateStream_ContextBudgetTrims(t *testing.T) {
	provider := &fakeProvider{body: `{"sql": ""}`}
	prompts := &staticPrompts{}
	engine := NewEngine(provider, prompts, EngineConfig{ContextBudget: 20})

	doc := strings.Repeat("orders and customers ", 10)
	schemaContext := doc + "\n\n" + doc + "\n\n" + doc

	_, err := engine.GenerateStream(context.Background(), "q", schemaContext, nil)
	require.NoError(t, err)
	assert.Less(t, len(prompts.lastContext), len(schemaContext), "context should have been trimmed to budget")
}
