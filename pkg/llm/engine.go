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

	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
)

// DefaultContextBudget caps the schema context portion of the system prompt,
// in tokens.
const DefaultContextBudget = 8000

// PromptRenderer builds the system prompt around a schema context. The
// prompt registry implements this.
type PromptRenderer interface {
	System(schemaContext string) string
}

// EngineConfig configures the engine.
type EngineConfig struct {
	// ContextBudget caps the schema context in tokens. <= 0 uses
	// DefaultContextBudget.
	ContextBudget int
}

// Engine issues the chat completion and extracts the envelope. It is
// stateless across runs; one engine serves all concurrent pipelines.
type Engine struct {
	provider      Provider
	prompts       PromptRenderer
	contextBudget int
}

// NewEngine creates an engine over the provider and prompt renderer.
func NewEngine(provider Provider, prompts PromptRenderer, cfg EngineConfig) *Engine {
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = DefaultContextBudget
	}
	return &Engine{
		provider:      provider,
		prompts:       prompts,
		contextBudget: cfg.ContextBudget,
	}
}

// GenerateStream streams the completion, forwarding each text delta to
// onDelta as it arrives, then extracts the envelope from the accumulated
// body. Errors are typed: LLM_ERROR for transport failures, PARSE_FAILED
// when no envelope can be extracted. A cancelled context passes through
// untranslated so callers can treat disconnects as silence.
func (e *Engine) GenerateStream(ctx context.Context, question, schemaContext string, onDelta StreamCallback) (*Envelope, error) {
	messages := []Message{
		{Role: RoleSystem, Content: e.prompts.System(FitContext(schemaContext, e.contextBudget))},
		{Role: RoleUser, Content: question},
	}

	completion, err := e.provider.ChatStream(ctx, messages, onDelta)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("LLM call failed",
			zap.String("provider", e.provider.Name()),
			zap.Error(err))
		return nil, &Error{Code: CodeLLMError, Message: "model call failed: " + err.Error()}
	}

	envelope, err := ExtractEnvelope(completion.Content)
	if err != nil {
		log.Warn("envelope extraction failed",
			zap.String("provider", e.provider.Name()),
			zap.Int("body_len", len(completion.Content)))
		return nil, err
	}

	log.Debug("envelope extracted",
		zap.Int("sql_len", len(envelope.SQL)),
		zap.String("chart_type", envelope.ChartType),
		zap.Int("output_tokens", completion.Usage.OutputTokens))
	return envelope, nil
}

// Generate is the non-streaming convenience: same contract, no delta
// forwarding.
func (e *Engine) Generate(ctx context.Context, question, schemaContext string) (*Envelope, error) {
	return e.GenerateStream(ctx, question, schemaContext, nil)
}
