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
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts prompt tokens with tiktoken (cl100k_base). When the
// encoding cannot be loaded it estimates at four characters per token.
type TokenCounter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	globalTokenCounter *TokenCounter
	counterInitOnce    sync.Once
)

// GetTokenCounter returns the process-wide token counter.
func GetTokenCounter() *TokenCounter {
	counterInitOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			globalTokenCounter = &TokenCounter{encoder: nil}
			return
		}
		globalTokenCounter = &TokenCounter{encoder: tkm}
	})
	return globalTokenCounter
}

// CountTokens returns the token count for text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.encoder == nil {
		return len(text) / 4
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.encoder.Encode(text, nil, nil))
}

// FitContext trims a schema context to the token budget, dropping whole
// documents from the end. Documents are the blank-line-separated blocks the
// retriever assembled; partial documents are worse than absent ones, so the
// cut is never mid-document. budget <= 0 disables trimming.
func FitContext(schemaContext string, budget int) string {
	if budget <= 0 || schemaContext == "" {
		return schemaContext
	}

	tc := GetTokenCounter()
	if tc.CountTokens(schemaContext) <= budget {
		return schemaContext
	}

	docs := strings.Split(schemaContext, "\n\n")
	for len(docs) > 1 {
		docs = docs[:len(docs)-1]
		trimmed := strings.Join(docs, "\n\n")
		if tc.CountTokens(trimmed) <= budget {
			return trimmed
		}
	}
	return docs[0]
}
