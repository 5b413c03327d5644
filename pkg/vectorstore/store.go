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

// Package vectorstore is an embedded vector store over SQLite. One document
// per table, embeddings as float32 blobs, brute-force cosine search. Schema
// indexes hold tens to low hundreds of documents, so exact scan beats an ANN
// structure both in code and in recall.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
	"github.com/teradata-labs/prism/internal/sqlitedriver"
)

// DefaultCollection is the collection holding schema documents.
const DefaultCollection = "schema_embeddings"

// Embedder turns text into vectors. Implementations live in pkg/embeddings.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is one embeddable unit, keyed by id within a collection.
// Upserting an existing id replaces the prior content.
type Document struct {
	ID        string
	Body      string
	Metadata  map[string]any
	Embedding []float32
}

// Hit is one nearest-neighbor result, ordered by ascending cosine distance.
type Hit struct {
	ID       string
	Body     string
	Metadata map[string]any
	Distance float64
}

// Config configures the store location and optional at-rest encryption.
type Config struct {
	// Dir is the persistence directory; the store file is <Dir>/index.db.
	Dir string

	// Collection names the document set. Defaults to DefaultCollection.
	Collection string

	// Encrypt enables SQLCipher encryption. Requires a CGO build
	// (sqlitedriver.EncryptionSupported) and a non-empty key.
	Encrypt       bool
	EncryptionKey string
}

// Store persists documents and serves nearest-neighbor queries.
// Single writer, concurrent readers.
type Store struct {
	mu         sync.RWMutex
	db         *sql.DB
	collection string
	embedder   Embedder
}

// New opens (creating if needed) the store under cfg.Dir.
func New(cfg Config, embedder Embedder) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("vector store requires a persistence directory")
	}
	if embedder == nil {
		return nil, fmt.Errorf("vector store requires an embedder")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}

	dbPath := filepath.Join(cfg.Dir, "index.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	if cfg.Encrypt {
		if !sqlitedriver.EncryptionSupported {
			db.Close()
			return nil, fmt.Errorf("store encryption requires a CGO build with SQLCipher")
		}
		if cfg.EncryptionKey == "" {
			db.Close()
			return nil, fmt.Errorf("store encryption enabled but no key provided")
		}
		// Must be the first operation after opening the database.
		if _, err := db.Exec(fmt.Sprintf("PRAGMA key = '%s'", cfg.EncryptionKey)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set encryption key: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 10000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db, collection: collection, embedder: embedder}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS collections (
			name       TEXT PRIMARY KEY,
			dimension  INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			body       TEXT NOT NULL,
			metadata   TEXT NOT NULL DEFAULT '{}',
			embedding  BLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (collection, id)
		);`
	if _, err := s.db.Exec(createSQL); err != nil {
		return fmt.Errorf("failed to create vector store tables: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection returns the collection name this store serves.
func (s *Store) Collection() string {
	return s.collection
}

// Upsert embeds any document lacking a vector and inserts or replaces
// documents by id. The collection's dimension is fixed by the first upsert;
// a differently-sized embedding afterwards is an error (reset the index
// when changing embedders).
func (s *Store) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []int
	var bodies []string
	for i := range docs {
		if docs[i].Embedding == nil {
			pending = append(pending, i)
			bodies = append(bodies, docs[i].Body)
		}
	}
	if len(pending) > 0 {
		vectors, err := s.embedder.Embed(ctx, bodies)
		if err != nil {
			return fmt.Errorf("failed to embed %d documents: %w", len(bodies), err)
		}
		if len(vectors) != len(pending) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(pending))
		}
		for j, i := range pending {
			docs[i].Embedding = vectors[j]
		}
	}

	dim, err := s.ensureCollection(ctx, len(docs[0].Embedding))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is no-op

	const upsertSQL = `
		INSERT INTO documents (collection, id, body, metadata, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (collection, id) DO UPDATE SET
			body       = excluded.body,
			metadata   = excluded.metadata,
			embedding  = excluded.embedding,
			updated_at = CURRENT_TIMESTAMP`

	for _, doc := range docs {
		if len(doc.Embedding) != dim {
			return fmt.Errorf("document %q has dimension %d, collection %q has %d (reset the index to change embedders)",
				doc.ID, len(doc.Embedding), s.collection, dim)
		}
		md, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata of %q: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx, upsertSQL, s.collection, doc.ID, doc.Body, string(md), encodeVector(doc.Embedding)); err != nil {
			return fmt.Errorf("failed to upsert document %q: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}

	log.Debug("documents upserted",
		zap.String("collection", s.collection),
		zap.Int("count", len(docs)))
	return nil
}

// ensureCollection registers the collection and returns its dimension,
// recording dim on first contact.
func (s *Store) ensureCollection(ctx context.Context, dim int) (int, error) {
	var existing int
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension FROM collections WHERE name = ?", s.collection).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO collections (name, dimension) VALUES (?, ?)", s.collection, dim); err != nil {
			return 0, fmt.Errorf("failed to register collection %q: %w", s.collection, err)
		}
		return dim, nil
	case err != nil:
		return 0, fmt.Errorf("failed to look up collection %q: %w", s.collection, err)
	case existing == 0:
		if _, err := s.db.ExecContext(ctx,
			"UPDATE collections SET dimension = ? WHERE name = ?", dim, s.collection); err != nil {
			return 0, fmt.Errorf("failed to record collection dimension: %w", err)
		}
		return dim, nil
	default:
		return existing, nil
	}
}

// Count returns the number of documents in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(ctx)
}

func (s *Store) countLocked(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE collection = ?", s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// QueryByText embeds the query text and returns the top-k documents by
// ascending cosine distance. k greater than the document count clamps to the
// count; an empty collection returns an empty slice, never an error.
func (s *Store) QueryByText(ctx context.Context, text string, k int) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count, err := s.countLocked(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 || k <= 0 {
		return []Hit{}, nil
	}
	if k > count {
		k = count
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}

	return s.queryLocked(ctx, vectors[0], k)
}

func (s *Store) queryLocked(ctx context.Context, query []float32, k int) ([]Hit, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, body, metadata, embedding FROM documents WHERE collection = ?", s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var id, body, md string
		var blob []byte
		if err := rows.Scan(&id, &body, &md, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		embedding, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding of %q: %w", id, err)
		}
		if len(embedding) != len(query) {
			return nil, fmt.Errorf("query dimension %d does not match index dimension %d (rebuild the index)",
				len(query), len(embedding))
		}

		var metadata map[string]any
		if err := json.Unmarshal([]byte(md), &metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %q: %w", id, err)
		}

		hits = append(hits, Hit{
			ID:       id,
			Body:     body,
			Metadata: metadata,
			Distance: cosineDistance(query, embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// List returns every document's id, body, and metadata (no embeddings),
// ordered by id.
func (s *Store) List(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, body, metadata FROM documents WHERE collection = ? ORDER BY id", s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var md string
		if err := rows.Scan(&doc.ID, &doc.Body, &md); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(md), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of %q: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Reset drops the collection and its documents. The next upsert recreates it.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ?", s.collection); err != nil {
		return fmt.Errorf("failed to drop documents: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM collections WHERE name = ?", s.collection); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	log.Info("vector store collection reset", zap.String("collection", s.collection))
	return nil
}
