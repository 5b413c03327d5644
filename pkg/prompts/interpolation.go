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
package prompts

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// Interpolate substitutes {{.variable}} placeholders in a prompt template.
// Placeholders with no matching variable are left untouched so a broken
// override file stays visible instead of silently rendering an empty slot.
func Interpolate(template string, vars map[string]string) string {
	if len(vars) == 0 {
		return template
	}

	return placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(match, "{{."), "}}")
		value, ok := vars[name]
		if !ok {
			return match
		}
		return sanitizeValue(value)
	})
}

// sanitizeValue cleans an interpolated value. Multi-line values such as the
// schema context keep their layout; only bytes that could corrupt the prompt
// structure are rewritten.
func sanitizeValue(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ToValidUTF8(s, "")
	// A fence inside the value would terminate the JSON example block.
	s = strings.ReplaceAll(s, "```", "'''")
	return s
}
