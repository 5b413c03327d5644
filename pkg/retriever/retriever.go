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

// Package retriever turns a user question into the schema context string the
// LLM prompt embeds: the bodies of the top-k nearest schema documents.
package retriever

import (
	"context"
	"strings"

	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
	"github.com/teradata-labs/prism/pkg/vectorstore"
)

// DefaultTopK is the number of schema documents included in the prompt.
const DefaultTopK = 5

// Retriever queries the schema index for documents relevant to a question.
type Retriever struct {
	store *vectorstore.Store
	topK  int
}

// New creates a retriever over the store. topK <= 0 uses DefaultTopK.
func New(store *vectorstore.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: store, topK: topK}
}

// Retrieve returns the top-k hits for the question, ascending by distance.
// When the vector query fails (embedding endpoint down, index unreadable by
// the current embedder) it degrades to lexical fuzzy matching over document
// bodies rather than failing the run.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]vectorstore.Hit, error) {
	hits, err := r.store.QueryByText(ctx, question, r.topK)
	if err != nil {
		log.Warn("vector query failed, falling back to lexical matching", zap.Error(err))
		return r.lexical(ctx, question)
	}
	return hits, nil
}

// RetrieveContext concatenates the hit bodies, separated by blank lines.
// An empty index yields the empty string; the pipeline still proceeds and
// the system prompt instructs the model to signal an empty SQL.
func (r *Retriever) RetrieveContext(ctx context.Context, question string) (string, error) {
	hits, err := r.Retrieve(ctx, question)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}

	bodies := make([]string, len(hits))
	for i, h := range hits {
		bodies[i] = h.Body
	}

	log.Debug("schema context assembled",
		zap.Int("documents", len(hits)),
		zap.String("question", truncate(question, 50)))
	return strings.Join(bodies, "\n\n"), nil
}

func (r *Retriever) lexical(ctx context.Context, question string) ([]vectorstore.Hit, error) {
	docs, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return []vectorstore.Hit{}, nil
	}

	bodies := make([]string, len(docs))
	for i, d := range docs {
		bodies[i] = d.Body
	}

	matches := fuzzy.Find(question, bodies)
	if len(matches) > r.topK {
		matches = matches[:r.topK]
	}

	hits := make([]vectorstore.Hit, 0, len(matches))
	for _, m := range matches {
		doc := docs[m.Index]
		hits = append(hits, vectorstore.Hit{
			ID:       doc.ID,
			Body:     doc.Body,
			Metadata: doc.Metadata,
			// Fuzzy scores rank descending; map onto an ascending
			// surrogate so callers see the usual distance ordering.
			Distance: 1.0 / float64(1+max(m.Score, 0)),
		})
	}
	return hits, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
