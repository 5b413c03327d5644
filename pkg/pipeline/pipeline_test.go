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
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/teradata-labs/prism/pkg/executor"
	"github.com/teradata-labs/prism/pkg/firewall"
	"github.com/teradata-labs/prism/pkg/limiter"
	"github.com/teradata-labs/prism/pkg/llm"
)

type fakeRetriever struct {
	context string
	err     error
}

func (f *fakeRetriever) RetrieveContext(ctx context.Context, question string) (string, error) {
	return f.context, f.err
}

type fakeGenerator struct {
	envelope *llm.Envelope
	err      error
	deltas   []string
}

func (f *fakeGenerator) GenerateStream(ctx context.Context, question, schemaContext string, onDelta llm.StreamCallback) (*llm.Envelope, error) {
	if f.err != nil {
		return nil, f.err
	}
	if onDelta != nil {
		for _, d := range f.deltas {
			onDelta(d)
		}
	}
	return f.envelope, nil
}

type fakeValidator struct {
	err   error
	calls int
}

func (f *fakeValidator) Validate(sql string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return sql + " LIMIT 1000", nil
}

type fakeAdmitter struct {
	rateErr error
	execErr error
}

func (f *fakeAdmitter) CheckRate(clientID string) error { return f.rateErr }

func (f *fakeAdmitter) ExecuteWithTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if f.execErr != nil {
		return f.execErr
	}
	return fn(ctx)
}

type fakeExecutor struct {
	result *executor.QueryResult
	err    error
}

func (f *fakeExecutor) Execute(ctx context.Context, sql string) (*executor.QueryResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func sampleResult() *executor.QueryResult {
	return &executor.QueryResult{
		Columns:         []string{"city", "c"},
		Rows:            [][]any{{"BJ", int64(3)}, {"SH", int64(2)}},
		RowCount:        2,
		ExecutionTimeMS: 1.5,
	}
}

func sampleEnvelope() *llm.Envelope {
	return &llm.Envelope{
		Thinking:  "count users per city",
		SQL:       "SELECT city, COUNT(*) c FROM users GROUP BY city",
		ChartType: "bar",
		VizConfig: json.RawMessage(`{"xAxis":{"type":"category","data":[]},"yAxis":{"type":"value"},"series":[{"type":"bar","data":[]}]}`),
	}
}

// collect runs the pipeline and gathers the emitted events.
func collect(t *testing.T, p *Pipeline, question string) []Event {
	t.Helper()
	var events []Event
	err := p.Run(context.Background(), question, "client-1", func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	return events
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func newTestPipeline() (*Pipeline, *fakeValidator) {
	v := &fakeValidator{}
	p := New(
		&fakeRetriever{context: "Table: users"},
		&fakeGenerator{envelope: sampleEnvelope(), deltas: []string{"{\"thinking\":", " ...}"}},
		v,
		&fakeAdmitter{},
		&fakeExecutor{result: sampleResult()},
	)
	return p, v
}

func TestRun_HappyPathOrdering(t *testing.T) {
	p, _ := newTestPipeline()
	events := collect(t, p, "users per city?")

	assert.Equal(t, []EventType{
		EventState,   // schema_retrieval
		EventState,   // llm_generation
		EventThought, // delta
		EventThought, // delta
		EventThought, // done
		EventState,   // sql_validation
		EventSQL,
		EventState, // sql_execution
		EventState, // result_streaming
		EventData,
		EventChartType,
		EventVizConfig,
		EventState, // completed
		EventDone,
	}, eventTypes(events))

	states := []string{}
	for _, ev := range events {
		if ev.Type == EventState {
			states = append(states, gjson.GetBytes(ev.Data, "state").String())
		}
	}
	assert.Equal(t, []string{
		StateSchemaRetrieval, StateLLMGeneration, StateSQLValidation,
		StateSQLExecution, StateResultStreaming, StateCompleted,
	}, states)

	last := events[len(events)-1]
	assert.Equal(t, DoneMessage, gjson.GetBytes(last.Data, "message").String())
}

func TestRun_ThoughtDeltasThenFinal(t *testing.T) {
	p, _ := newTestPipeline()
	events := collect(t, p, "q")

	var thoughts []Event
	for _, ev := range events {
		if ev.Type == EventThought {
			thoughts = append(thoughts, ev)
		}
	}
	require.Len(t, thoughts, 3)
	assert.False(t, gjson.GetBytes(thoughts[0].Data, "done").Bool())
	assert.False(t, gjson.GetBytes(thoughts[1].Data, "done").Bool())
	assert.True(t, gjson.GetBytes(thoughts[2].Data, "done").Bool())
	assert.Equal(t, "count users per city", gjson.GetBytes(thoughts[2].Data, "content").String())
}

func TestRun_SQLEventCarriesSafeAndRaw(t *testing.T) {
	p, _ := newTestPipeline()
	events := collect(t, p, "q")

	var sqlEv *Event
	for i := range events {
		if events[i].Type == EventSQL {
			sqlEv = &events[i]
		}
	}
	require.NotNil(t, sqlEv)
	assert.Equal(t, "SELECT city, COUNT(*) c FROM users GROUP BY city LIMIT 1000",
		gjson.GetBytes(sqlEv.Data, "content").String())
	assert.Equal(t, "SELECT city, COUNT(*) c FROM users GROUP BY city",
		gjson.GetBytes(sqlEv.Data, "raw").String())
}

func TestRun_VizConfigFilledFromResult(t *testing.T) {
	p, _ := newTestPipeline()
	events := collect(t, p, "q")

	var viz *Event
	for i := range events {
		if events[i].Type == EventVizConfig {
			viz = &events[i]
		}
	}
	require.NotNil(t, viz)
	assert.Equal(t, `["BJ","SH"]`, gjson.GetBytes(viz.Data, "xAxis.data").Raw)
	assert.Equal(t, `[3,2]`, gjson.GetBytes(viz.Data, "series.0.data").Raw)
	assert.Equal(t, "c", gjson.GetBytes(viz.Data, "series.0.name").String())
}

func TestRun_RateLimited(t *testing.T) {
	p := New(
		&fakeRetriever{},
		&fakeGenerator{envelope: sampleEnvelope()},
		&fakeValidator{},
		&fakeAdmitter{rateErr: &limiter.Error{Code: limiter.CodeRateLimit, Message: "rate limit exceeded"}},
		&fakeExecutor{result: sampleResult()},
	)
	events := collect(t, p, "q")

	require.Len(t, events, 1, "a rejected run emits only the error")
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, limiter.CodeRateLimit, gjson.GetBytes(events[0].Data, "code").String())
}

func TestRun_NoSQL(t *testing.T) {
	tests := []struct {
		name         string
		thinking     string
		wantThinking string
	}{
		{name: "model explains itself", thinking: "not a database question", wantThinking: "not a database question"},
		{name: "default message", thinking: "", wantThinking: noSQLThinking},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(
				&fakeRetriever{},
				&fakeGenerator{envelope: &llm.Envelope{Thinking: tt.thinking, SQL: "", ChartType: "bar"}},
				&fakeValidator{},
				&fakeAdmitter{},
				&fakeExecutor{},
			)
			events := collect(t, p, "what is the weather?")
			types := eventTypes(events)

			require.Equal(t, EventError, types[len(types)-1])
			last := events[len(events)-1]
			assert.Equal(t, llm.CodeNoSQL, gjson.GetBytes(last.Data, "code").String())

			finalThought := events[len(events)-2]
			require.Equal(t, EventThought, finalThought.Type)
			assert.True(t, gjson.GetBytes(finalThought.Data, "done").Bool())
			assert.Equal(t, tt.wantThinking, gjson.GetBytes(finalThought.Data, "content").String())

			assert.NotContains(t, types, EventSQL)
			assert.NotContains(t, types, EventData)
		})
	}
}

func TestRun_LLMError(t *testing.T) {
	p := New(
		&fakeRetriever{},
		&fakeGenerator{err: &llm.Error{Code: llm.CodeLLMError, Message: "connection refused"}},
		&fakeValidator{},
		&fakeAdmitter{},
		&fakeExecutor{},
	)
	events := collect(t, p, "q")

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, llm.CodeLLMError, gjson.GetBytes(last.Data, "code").String())
}

func TestRun_FirewallRejectionFailsFast(t *testing.T) {
	v := &fakeValidator{err: &firewall.Error{Code: firewall.CodeBlockedStatement, Message: "statement type not allowed: DeleteStmt"}}
	p := New(
		&fakeRetriever{},
		&fakeGenerator{envelope: sampleEnvelope()},
		v,
		&fakeAdmitter{},
		&fakeExecutor{},
	)
	events := collect(t, p, "q")

	assert.Equal(t, 1, v.calls, "a rejection is terminal, the same SQL is never re-validated")

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, firewall.CodeBlockedStatement, gjson.GetBytes(last.Data, "code").String())
	assert.NotContains(t, eventTypes(events), EventSQL)
}

func TestRun_QueryTimeout(t *testing.T) {
	p := New(
		&fakeRetriever{},
		&fakeGenerator{envelope: sampleEnvelope()},
		&fakeValidator{},
		&fakeAdmitter{execErr: &limiter.Error{Code: limiter.CodeQueryTimeout, Message: "query timed out"}},
		&fakeExecutor{},
	)
	events := collect(t, p, "q")

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, limiter.CodeQueryTimeout, gjson.GetBytes(last.Data, "code").String())
}

func TestRun_ExecutionError(t *testing.T) {
	p := New(
		&fakeRetriever{},
		&fakeGenerator{envelope: sampleEnvelope()},
		&fakeValidator{},
		&fakeAdmitter{},
		&fakeExecutor{err: errors.New(`relation "userz" does not exist`)},
	)
	events := collect(t, p, "q")

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
	assert.Equal(t, "EXECUTION_ERROR", gjson.GetBytes(last.Data, "code").String())
	assert.True(t, strings.Contains(gjson.GetBytes(last.Data, "message").String(), "userz"))
}

func TestRun_BrokenVizConfigSkipsVisualization(t *testing.T) {
	env := sampleEnvelope()
	env.VizConfig = json.RawMessage(`{"xAxis": nope`)
	p := New(
		&fakeRetriever{},
		&fakeGenerator{envelope: env},
		&fakeValidator{},
		&fakeAdmitter{},
		&fakeExecutor{result: sampleResult()},
	)
	events := collect(t, p, "q")
	types := eventTypes(events)

	assert.NotContains(t, types, EventVizConfig)
	assert.Equal(t, EventDone, types[len(types)-1], "a broken option never fails the run")
}

func TestRun_RetrievalFailureDegradesToEmptyContext(t *testing.T) {
	p := New(
		&fakeRetriever{err: errors.New("index unavailable")},
		&fakeGenerator{envelope: sampleEnvelope()},
		&fakeValidator{},
		&fakeAdmitter{},
		&fakeExecutor{result: sampleResult()},
	)
	events := collect(t, p, "q")
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestRun_EmitterFailureStopsRun(t *testing.T) {
	p, _ := newTestPipeline()

	var count int
	err := p.Run(context.Background(), "q", "c", func(ev Event) error {
		count++
		if count == 2 {
			return errors.New("client went away")
		}
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, 2, count, "no events are emitted after the sink fails")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := newTestPipeline()
	var events []Event
	err := p.Run(ctx, "q", "c", func(ev Event) error {
		events = append(events, ev)
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, events, "a cancelled run emits nothing")
}
