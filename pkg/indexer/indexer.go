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

// Package indexer builds and maintains the schema vector index: it extracts
// the live catalog, renders each table into an embeddable document, and
// upserts the documents into the store. Builds can run on demand or on a
// cron schedule.
package indexer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
	"github.com/teradata-labs/prism/pkg/schema"
	"github.com/teradata-labs/prism/pkg/vectorstore"
)

// buildTimeout bounds one scheduled build; manual builds use the caller's
// context.
const buildTimeout = 10 * time.Minute

// SchemaSource supplies the live catalog.
type SchemaSource interface {
	Extract(ctx context.Context) ([]schema.Table, error)
	Namespace() string
}

// DocumentStore is the index write/inspect surface the builder needs.
type DocumentStore interface {
	Upsert(ctx context.Context, docs []vectorstore.Document) error
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

// Report summarizes one completed build.
type Report struct {
	Tables     int     `json:"tables"`
	DurationMS float64 `json:"duration_ms"`
}

// Status is the admin view of the index.
type Status struct {
	Namespace   string  `json:"namespace"`
	Documents   int     `json:"documents"`
	Building    bool    `json:"building"`
	LastBuild   string  `json:"last_build,omitempty"`
	LastError   string  `json:"last_error,omitempty"`
	LastTables  int     `json:"last_tables"`
	NextRefresh string  `json:"next_refresh,omitempty"`
	DurationMS  float64 `json:"last_duration_ms"`
}

// Indexer is the single writer of the schema index.
type Indexer struct {
	source SchemaSource
	store  DocumentStore

	mu         sync.Mutex
	building   bool
	lastBuild  time.Time
	lastTables int
	lastTookMS float64
	lastErr    error

	cron *cron.Cron
}

// New creates an indexer over the given source and store.
func New(source SchemaSource, store DocumentStore) *Indexer {
	return &Indexer{source: source, store: store}
}

// Build extracts the catalog and upserts one document per table. Concurrent
// builds are rejected; retrieval reads stay served throughout.
func (ix *Indexer) Build(ctx context.Context) (*Report, error) {
	ix.mu.Lock()
	if ix.building {
		ix.mu.Unlock()
		return nil, fmt.Errorf("an index build is already running")
	}
	ix.building = true
	ix.mu.Unlock()

	report, err := ix.build(ctx)

	ix.mu.Lock()
	ix.building = false
	ix.lastErr = err
	if err == nil {
		ix.lastBuild = time.Now()
		ix.lastTables = report.Tables
		ix.lastTookMS = report.DurationMS
	}
	ix.mu.Unlock()

	return report, err
}

func (ix *Indexer) build(ctx context.Context) (*Report, error) {
	start := time.Now()

	tables, err := ix.source.Extract(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema extraction failed: %w", err)
	}
	if len(tables) == 0 {
		log.Warn("schema extraction returned no tables",
			zap.String("namespace", ix.source.Namespace()))
	}

	docs := make([]vectorstore.Document, 0, len(tables))
	for _, t := range tables {
		docs = append(docs, vectorstore.Document{
			ID:       t.DocumentID(),
			Body:     t.FormatForEmbedding(),
			Metadata: t.Metadata(),
		})
	}
	if err := ix.store.Upsert(ctx, docs); err != nil {
		return nil, fmt.Errorf("index upsert failed: %w", err)
	}

	report := &Report{
		Tables:     len(tables),
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	log.Info("schema index built",
		zap.String("namespace", ix.source.Namespace()),
		zap.Int("tables", report.Tables),
		zap.Float64("duration_ms", report.DurationMS))
	return report, nil
}

// Reset drops every indexed document. The next build starts from scratch,
// which is required when changing embedders.
func (ix *Indexer) Reset(ctx context.Context) error {
	if err := ix.store.Reset(ctx); err != nil {
		return fmt.Errorf("index reset failed: %w", err)
	}
	log.Info("schema index reset", zap.String("namespace", ix.source.Namespace()))
	return nil
}

// Status reports document count and last-build bookkeeping.
func (ix *Indexer) Status(ctx context.Context) (*Status, error) {
	count, err := ix.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("index count failed: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	st := &Status{
		Namespace:  ix.source.Namespace(),
		Documents:  count,
		Building:   ix.building,
		LastTables: ix.lastTables,
		DurationMS: ix.lastTookMS,
	}
	if !ix.lastBuild.IsZero() {
		st.LastBuild = ix.lastBuild.Format(time.RFC3339)
	}
	if ix.lastErr != nil {
		st.LastError = ix.lastErr.Error()
	}
	if ix.cron != nil {
		if entries := ix.cron.Entries(); len(entries) > 0 {
			st.NextRefresh = entries[0].Next.Format(time.RFC3339)
		}
	}
	return st, nil
}

// StartSchedule runs Build on the given 5-field cron spec until Stop is
// called. A failed refresh keeps the previous index and is retried at the
// next tick.
func (ix *Indexer) StartSchedule(spec string) error {
	if ix.cron != nil {
		return fmt.Errorf("refresh schedule already started")
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
		defer cancel()
		if _, err := ix.Build(ctx); err != nil {
			log.Error("scheduled index refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh cron spec %q: %w", spec, err)
	}

	c.Start()
	ix.cron = c
	log.Info("scheduled index refresh started", zap.String("cron", spec))
	return nil
}

// Stop halts the refresh schedule, waiting for an in-flight build to finish.
func (ix *Indexer) Stop() {
	if ix.cron == nil {
		return
	}
	<-ix.cron.Stop().Done()
	ix.cron = nil
}
