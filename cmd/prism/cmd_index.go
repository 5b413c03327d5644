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
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/prism/internal/pgxdriver"
	"github.com/teradata-labs/prism/pkg/indexer"
	"github.com/teradata-labs/prism/pkg/schema"
	"github.com/teradata-labs/prism/pkg/vectorstore"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the schema index",
	Long: heredoc.Doc(`
		Manage the vector index of database schema documents.

		The index holds one embedded document per table and backs schema
		retrieval during query generation. It lives on disk under
		embedding.dir and can be rebuilt at any time; rebuilding replaces
		documents in place, so stale tables disappear only after a reset.
	`),
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Extract the schema and (re)build the index",
	Run:   runIndexBuild,
}

var indexResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop all indexed documents",
	Run:   runIndexReset,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	Run:   runIndexStatus,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexResetCmd)
	indexCmd.AddCommand(indexStatusCmd)
}

// openIndexer wires the extract-embed-store stack for one-shot CLI use.
// The caller must invoke the returned cleanup function.
func openIndexer(ctx context.Context) (*indexer.Indexer, func(), error) {
	pool, err := pgxdriver.NewPool(ctx, databaseConfig(config))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store, err := vectorstore.New(vectorstore.Config{
		Dir:           config.Embedding.Dir,
		Collection:    "schema_embeddings",
		Encrypt:       config.Store.Encrypt,
		EncryptionKey: config.Store.EncryptionKey,
	}, buildEmbedder(config))
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to open schema index: %w", err)
	}

	ix := indexer.New(schema.NewExtractor(pool, config.Schema.Namespace), store)
	cleanup := func() {
		_ = store.Close()
		pool.Close()
	}
	return ix, cleanup, nil
}

func indexContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Minute)
}

func runIndexBuild(cmd *cobra.Command, args []string) {
	ctx, cancel := indexContext()
	defer cancel()

	ix, cleanup, err := openIndexer(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	fmt.Printf("Building schema index (namespace %s)...\n", config.Schema.Namespace)
	report, err := ix.Build(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Indexed %d tables in %.0f ms\n", report.Tables, report.DurationMS)
}

func runIndexReset(cmd *cobra.Command, args []string) {
	ctx, cancel := indexContext()
	defer cancel()

	ix, cleanup, err := openIndexer(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	if err := ix.Reset(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ Index reset")
}

func runIndexStatus(cmd *cobra.Command, args []string) {
	ctx, cancel := indexContext()
	defer cancel()

	ix, cleanup, err := openIndexer(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	status, err := ix.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}
