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
package schema

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
)

const (
	tablesQuery = `
		SELECT t.table_name,
		       obj_description((quote_ident(t.table_schema) || '.' || quote_ident(t.table_name))::regclass, 'pg_class') AS table_comment
		FROM information_schema.tables t
		WHERE t.table_schema = $1
		  AND t.table_type = 'BASE TABLE'
		ORDER BY t.table_name`

	columnsQuery = `
		SELECT c.column_name,
		       c.data_type,
		       c.is_nullable,
		       c.column_default,
		       col_description((quote_ident(c.table_schema) || '.' || quote_ident(c.table_name))::regclass, c.ordinal_position) AS col_comment
		FROM information_schema.columns c
		WHERE c.table_schema = $1
		  AND c.table_name = $2
		ORDER BY c.ordinal_position`

	foreignKeysQuery = `
		SELECT kcu.column_name,
		       ccu.table_name  AS ref_table,
		       ccu.column_name AS ref_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		  AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name
		  AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
		  AND tc.table_name = $2`
)

// Extractor reads catalog metadata for one namespace. It is a pure function
// of the catalog at call time and performs no mutation.
type Extractor struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewExtractor creates an extractor for the given namespace. An empty
// namespace defaults to "public".
func NewExtractor(pool *pgxpool.Pool, namespace string) *Extractor {
	if namespace == "" {
		namespace = "public"
	}
	return &Extractor{pool: pool, namespace: namespace}
}

// Namespace returns the schema namespace this extractor reads.
func (e *Extractor) Namespace() string {
	return e.namespace
}

// Extract returns one Table per base table in the namespace, columns in
// ordinal order. Any catalog error fails the whole extraction; callers may
// proceed in degraded mode with an empty schema context.
func (e *Extractor) Extract(ctx context.Context) ([]Table, error) {
	rows, err := e.pool.Query(ctx, tablesQuery, e.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %q: %w", e.namespace, err)
	}

	var tables []Table
	for rows.Next() {
		var name string
		var comment *string
		if err := rows.Scan(&name, &comment); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan table row: %w", err)
		}
		t := Table{Name: name}
		if comment != nil {
			t.Comment = *comment
		}
		tables = append(tables, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read table list: %w", err)
	}

	for i := range tables {
		if tables[i].Columns, err = e.extractColumns(ctx, tables[i].Name); err != nil {
			return nil, err
		}
		if tables[i].ForeignKeys, err = e.extractForeignKeys(ctx, tables[i].Name); err != nil {
			return nil, err
		}
	}

	log.Info("schema extraction complete",
		zap.String("namespace", e.namespace),
		zap.Int("tables", len(tables)))
	return tables, nil
}

func (e *Extractor) extractColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := e.pool.Query(ctx, columnsQuery, e.namespace, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %q: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, dataType, isNullable string
		var colDefault, comment *string
		if err := rows.Scan(&name, &dataType, &isNullable, &colDefault, &comment); err != nil {
			return nil, fmt.Errorf("failed to scan column row of %q: %w", table, err)
		}
		col := Column{
			Name:     name,
			Type:     dataType,
			Nullable: isNullable == "YES",
		}
		if colDefault != nil {
			col.Default = *colDefault
		}
		if comment != nil {
			col.Comment = *comment
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (e *Extractor) extractForeignKeys(ctx context.Context, table string) ([]ForeignKey, error) {
	rows, err := e.pool.Query(ctx, foreignKeysQuery, e.namespace, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list foreign keys of %q: %w", table, err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key row of %q: %w", table, err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
