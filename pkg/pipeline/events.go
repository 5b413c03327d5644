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

// Package pipeline runs one natural-language question through the staged
// query flow and emits the event stream clients consume.
package pipeline

import (
	"encoding/json"
)

// EventType names one SSE event on the wire.
type EventType string

const (
	EventState     EventType = "state"
	EventThought   EventType = "thought"
	EventSQL       EventType = "sql"
	EventData      EventType = "data"
	EventChartType EventType = "chart_type"
	EventVizConfig EventType = "viz_config"
	EventError     EventType = "error"
	EventDone      EventType = "done"
)

// Pipeline stages, in happy-path order. Error is absorbing.
const (
	StateInit            = "init"
	StateSchemaRetrieval = "schema_retrieval"
	StateLLMGeneration   = "llm_generation"
	StateSQLValidation   = "sql_validation"
	StateSQLExecution    = "sql_execution"
	StateResultStreaming = "result_streaming"
	StateCompleted       = "completed"
	StateError           = "error"
)

// Event is one emission of a run. Data is the JSON-encoded payload, ready
// for an SSE data: line.
type Event struct {
	Type EventType
	Data json.RawMessage
}

// StatePayload announces entry into a stage.
type StatePayload struct {
	State string `json:"state"`
}

// ThoughtPayload carries model reasoning. Done is false for incremental
// deltas and true exactly when the content is the complete thinking text.
type ThoughtPayload struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// SQLPayload carries the validated statement and the model's original.
type SQLPayload struct {
	Content string `json:"content"`
	Raw     string `json:"raw"`
}

// ChartTypePayload carries the recommended chart type.
type ChartTypePayload struct {
	Type string `json:"type"`
}

// ErrorPayload is the terminal failure payload. Code is one of the stable
// taxonomy codes surfaced by the firewall, limiter, model layer, or
// executor wrapper.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DonePayload closes a successful run.
type DonePayload struct {
	Message string `json:"message"`
}

// newEvent marshals the payload once at construction so downstream writers
// only copy bytes.
func newEvent(t EventType, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		// Payload types are all marshal-safe structs; a failure here is a
		// programming error, surfaced rather than dropped.
		data = []byte(`{"code":"INTERNAL","message":"event payload could not be encoded"}`)
		t = EventError
	}
	return Event{Type: t, Data: data}
}
