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
package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
	"github.com/teradata-labs/prism/pkg/executor"
	"github.com/teradata-labs/prism/pkg/firewall"
	"github.com/teradata-labs/prism/pkg/limiter"
	"github.com/teradata-labs/prism/pkg/llm"
)

// DoneMessage closes every successful run.
const DoneMessage = "query complete"

// noSQLThinking is emitted when the model returns an empty sql with no
// thinking text of its own.
const noSQLThinking = "could not produce a SQL query for this question"

// SchemaRetriever supplies the schema context for a question. An empty
// context is valid; the prompt layer renders a fallback notice.
type SchemaRetriever interface {
	RetrieveContext(ctx context.Context, question string) (string, error)
}

// Generator streams a model completion and returns the parsed envelope.
type Generator interface {
	GenerateStream(ctx context.Context, question, schemaContext string, onDelta llm.StreamCallback) (*llm.Envelope, error)
}

// Validator is the SQL firewall boundary.
type Validator interface {
	Validate(sql string) (string, error)
}

// Admitter gates admission and bounds execution time.
type Admitter interface {
	CheckRate(clientID string) error
	ExecuteWithTimeout(ctx context.Context, fn func(ctx context.Context) error) error
}

// QueryExecutor runs validated SQL.
type QueryExecutor interface {
	Execute(ctx context.Context, sql string) (*executor.QueryResult, error)
}

// Emitter receives each event of a run in order. Returning an error aborts
// the run; the pipeline treats it as a client disconnect and emits nothing
// further.
type Emitter func(Event) error

// Pipeline orchestrates one query run per Run call. All collaborators are
// shared, thread-safe handles; per-run state lives on the stack.
type Pipeline struct {
	retriever SchemaRetriever
	engine    Generator
	firewall  Validator
	limiter   Admitter
	executor  QueryExecutor
}

// New wires a pipeline from its five stages.
func New(retriever SchemaRetriever, engine Generator, fw Validator, lim Admitter, exec QueryExecutor) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		engine:    engine,
		firewall:  fw,
		limiter:   lim,
		executor:  exec,
	}
}

// Run executes the full flow for one question, emitting events in stage
// order. Terminal failures surface as a single error event; a cancelled
// context or a failing emitter ends the run silently. The returned error is
// non-nil only for transport-level trouble (emitter failure or
// cancellation), never for taxonomy errors, which are part of the stream.
func (p *Pipeline) Run(ctx context.Context, question, clientID string, emit Emitter) error {
	runID := uuid.NewString()
	logger := log.With(zap.String("run_id", runID), zap.String("client_id", clientID))

	// Admission happens before any event reaches the client.
	if err := p.limiter.CheckRate(clientID); err != nil {
		logger.Warn("run rejected", zap.Error(err))
		return emit(errorEvent(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// send cancels the run when the emitter fails, so in-flight stages
	// observe the disconnect instead of streaming into the void.
	var emitErr error
	send := func(ev Event) bool {
		if emitErr != nil || runCtx.Err() != nil {
			return false
		}
		if err := emit(ev); err != nil {
			emitErr = err
			cancel()
			return false
		}
		return true
	}

	// Stage: schema retrieval.
	if !send(stateEvent(StateSchemaRetrieval)) {
		return runErr(runCtx, emitErr)
	}
	schemaContext, err := p.retriever.RetrieveContext(runCtx, question)
	if err != nil {
		if runCtx.Err() != nil {
			return runErr(runCtx, emitErr)
		}
		// Retrieval trouble degrades to an empty context; the model is told
		// the schema is unknown rather than the run failing outright.
		logger.Warn("schema retrieval failed, continuing without context", zap.Error(err))
		schemaContext = ""
	}
	logger.Info("schema context retrieved", zap.Int("chars", len(schemaContext)))

	// Stage: model generation.
	if !send(stateEvent(StateLLMGeneration)) {
		return runErr(runCtx, emitErr)
	}
	env, err := p.engine.GenerateStream(runCtx, question, schemaContext, func(delta string) {
		send(newEvent(EventThought, ThoughtPayload{Content: delta}))
	})
	if err != nil {
		if runCtx.Err() != nil {
			return runErr(runCtx, emitErr)
		}
		logger.Warn("generation failed", zap.Error(err))
		send(errorEvent(err))
		return runErr(runCtx, emitErr)
	}
	send(newEvent(EventThought, ThoughtPayload{Content: env.Thinking, Done: true}))

	if env.SQL == "" {
		thinking := env.Thinking
		if thinking == "" {
			thinking = noSQLThinking
		}
		send(newEvent(EventThought, ThoughtPayload{Content: thinking, Done: true}))
		send(newEvent(EventError, ErrorPayload{Code: llm.CodeNoSQL, Message: "the model produced no usable SQL"}))
		return runErr(runCtx, emitErr)
	}

	// Stage: validation. One attempt; a rejection is terminal.
	if !send(stateEvent(StateSQLValidation)) {
		return runErr(runCtx, emitErr)
	}
	safeSQL, err := p.firewall.Validate(env.SQL)
	if err != nil {
		logger.Warn("sql rejected", zap.String("sql", env.SQL), zap.Error(err))
		send(errorEvent(err))
		return runErr(runCtx, emitErr)
	}
	send(newEvent(EventSQL, SQLPayload{Content: safeSQL, Raw: env.SQL}))

	// Stage: execution under the deadline.
	if !send(stateEvent(StateSQLExecution)) {
		return runErr(runCtx, emitErr)
	}
	var result *executor.QueryResult
	err = p.limiter.ExecuteWithTimeout(runCtx, func(execCtx context.Context) error {
		r, execErr := p.executor.Execute(execCtx, safeSQL)
		result = r
		return execErr
	})
	if err != nil {
		if runCtx.Err() != nil {
			return runErr(runCtx, emitErr)
		}
		logger.Error("execution failed", zap.Error(err))
		send(errorEvent(err))
		return runErr(runCtx, emitErr)
	}
	logger.Info("query executed",
		zap.Int("rows", result.RowCount),
		zap.Float64("execution_ms", result.ExecutionTimeMS))

	// Stage: result streaming. data, then chart_type, then viz_config.
	if !send(stateEvent(StateResultStreaming)) {
		return runErr(runCtx, emitErr)
	}
	send(newEvent(EventData, result))
	send(newEvent(EventChartType, ChartTypePayload{Type: llm.NormalizeChartType(env.ChartType)}))

	if len(env.VizConfig) > 0 {
		filled, fillErr := FillOption(env.VizConfig, result.ChartData())
		if fillErr != nil {
			// A broken option skips visualization; it never fails the run.
			logger.Warn("viz config unusable, skipping visualization", zap.Error(fillErr))
		} else {
			send(Event{Type: EventVizConfig, Data: filled})
		}
	}

	send(stateEvent(StateCompleted))
	send(newEvent(EventDone, DonePayload{Message: DoneMessage}))
	return runErr(runCtx, emitErr)
}

// runErr reports why a run stopped emitting: the emitter's failure, the
// caller's cancellation, or nothing.
func runErr(ctx context.Context, emitErr error) error {
	if emitErr != nil {
		return emitErr
	}
	return ctx.Err()
}

func stateEvent(state string) Event {
	return newEvent(EventState, StatePayload{State: state})
}

// errorEvent maps a stage error onto the wire taxonomy. Typed errors carry
// their own codes; anything else from the executor path is EXECUTION_ERROR.
func errorEvent(err error) Event {
	var (
		limErr *limiter.Error
		fwErr  *firewall.Error
		llmErr *llm.Error
	)
	switch {
	case errors.As(err, &limErr):
		return newEvent(EventError, ErrorPayload{Code: limErr.Code, Message: limErr.Message})
	case errors.As(err, &fwErr):
		return newEvent(EventError, ErrorPayload{Code: fwErr.Code, Message: fwErr.Message})
	case errors.As(err, &llmErr):
		return newEvent(EventError, ErrorPayload{Code: llmErr.Code, Message: llmErr.Message})
	default:
		return newEvent(EventError, ErrorPayload{Code: "EXECUTION_ERROR", Message: "query execution failed: " + err.Error()})
	}
}
