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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountTokens_Monotonic(t *testing.T) {
	tc := GetTokenCounter()

	short := tc.CountTokens("users")
	long := tc.CountTokens("users orders customers products invoices")
	assert.Greater(t, long, short)
	assert.Equal(t, 0, tc.CountTokens(""))
}

func TestFitContext_UnderBudgetUnchanged(t *testing.T) {
	ctx := "Table: users\n\nTable: orders"
	assert.Equal(t, ctx, FitContext(ctx, 1_000_000))
}

func TestFitContext_DisabledBudget(t *testing.T) {
	ctx := strings.Repeat("word ", 10000)
	assert.Equal(t, ctx, FitContext(ctx, 0))
}

func TestFitContext_DropsWholeDocuments(t *testing.T) {
	doc := strings.Repeat("column description text ", 50)
	full := doc + "\n\n" + doc + "\n\n" + doc

	trimmed := FitContext(full, GetTokenCounter().CountTokens(doc)+10)

	assert.Less(t, len(trimmed), len(full))
	// Every surviving block is a complete document, never a prefix.
	for _, block := range strings.Split(trimmed, "\n\n") {
		assert.Equal(t, doc, block)
	}
}

func TestFitContext_SingleDocumentKept(t *testing.T) {
	// A single oversized document is kept whole: the budget governs how
	// many documents survive, not mid-document truncation.
	doc := strings.Repeat("oversized ", 500)
	assert.Equal(t, doc, FitContext(doc, 5))
}
