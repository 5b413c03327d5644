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
	"encoding/json"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Chart types the pipeline understands. Anything else coerces to bar.
const (
	ChartBar  = "bar"
	ChartLine = "line"
	ChartPie  = "pie"
)

// Envelope is the structured object the model is instructed to emit. An
// empty SQL signals that no query could be produced for the question.
type Envelope struct {
	Thinking  string          `json:"thinking"`
	SQL       string          `json:"sql"`
	ChartType string          `json:"chart_type"`
	VizConfig json.RawMessage `json:"echarts_option"`
}

// envelopeSchema rejects candidates that parse as JSON but have the wrong
// shape (e.g. a bare array, or sql as a number). All fields are optional;
// absence is handled by defaults, not by the schema.
const envelopeSchema = `{
	"type": "object",
	"properties": {
		"thinking":       {"type": "string"},
		"sql":            {"type": "string"},
		"chart_type":     {"type": "string"},
		"echarts_option": {"type": "object"}
	}
}`

var envelopeSchemaLoader = gojsonschema.NewStringLoader(envelopeSchema)

// fencedBlock matches the first ``` code fence, optionally tagged json.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")

// ExtractEnvelope pulls the JSON envelope out of a model response. Candidates
// are tried in order: the whole body, the first fenced code block, the
// substring between the first "{" and the last "}". The first candidate that
// parses as JSON wins and is then shape-checked; anything else is a typed
// PARSE_FAILED error.
func ExtractEnvelope(body string) (*Envelope, error) {
	for _, candidate := range extractionCandidates(body) {
		env, ok := parseCandidate(candidate)
		if !ok {
			continue
		}
		if err := checkShape(candidate); err != nil {
			return nil, err
		}
		env.ChartType = NormalizeChartType(env.ChartType)
		env.SQL = strings.TrimSpace(env.SQL)
		return env, nil
	}
	return nil, &Error{
		Code:    CodeParseFailed,
		Message: "model output could not be parsed as a structured JSON envelope",
	}
}

// NormalizeChartType coerces absent or unknown chart types to bar. Arbitrary
// model strings never propagate downstream.
func NormalizeChartType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case ChartLine:
		return ChartLine
	case ChartPie:
		return ChartPie
	default:
		return ChartBar
	}
}

func extractionCandidates(body string) []string {
	candidates := []string{strings.TrimSpace(body)}

	if m := fencedBlock.FindStringSubmatch(body); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start != -1 && end > start {
		candidates = append(candidates, body[start:end+1])
	}

	return candidates
}

func parseCandidate(candidate string) (*Envelope, bool) {
	if candidate == "" {
		return nil, false
	}
	var env Envelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		// A valid JSON document that is not an object (array, scalar)
		// still counts as parseable for the shape check to reject.
		var any interface{}
		if json.Unmarshal([]byte(candidate), &any) != nil {
			return nil, false
		}
		return &Envelope{}, true
	}
	return &env, true
}

func checkShape(candidate string) error {
	result, err := gojsonschema.Validate(envelopeSchemaLoader, gojsonschema.NewStringLoader(candidate))
	if err != nil || !result.Valid() {
		return &Error{
			Code:    CodeParseFailed,
			Message: "model output parsed as JSON but does not match the envelope shape",
		}
	}
	return nil
}
