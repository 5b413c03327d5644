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

// Package schema extracts PostgreSQL catalog metadata (tables, columns,
// comments, foreign keys) and renders it into embeddable documents for
// semantic retrieval.
package schema

import (
	"fmt"
	"strings"
)

// Table describes one base table in the target namespace.
type Table struct {
	Name        string       `json:"table_name"`
	Comment     string       `json:"table_comment"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Column describes one column in catalog ordinal order.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
	Comment  string `json:"comment"`
}

// ForeignKey is one outgoing reference edge from this table.
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// FormatForEmbedding renders the table into the document body the embedder
// sees. Column comments carry most of the retrieval signal, so every column
// line includes them verbatim.
func (t Table) FormatForEmbedding() string {
	var b strings.Builder

	if t.Comment != "" {
		fmt.Fprintf(&b, "Table %s (%s) has the following columns:\n", t.Name, t.Comment)
	} else {
		fmt.Fprintf(&b, "Table %s has the following columns:\n", t.Name)
	}

	for i, col := range t.Columns {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s(%s): %s", col.Name, col.Type, col.Comment)
	}

	if len(t.ForeignKeys) > 0 {
		edges := make([]string, len(t.ForeignKeys))
		for i, fk := range t.ForeignKeys {
			edges[i] = fmt.Sprintf("%s → %s.%s", fk.Column, fk.RefTable, fk.RefColumn)
		}
		b.WriteString("\nForeign keys: ")
		b.WriteString(strings.Join(edges, "; "))
	}

	return b.String()
}

// FormatForPrompt renders the table as a markdown table for human display
// (CLI listing, debugging). Not used for embedding.
func (t Table) FormatForPrompt() string {
	var b strings.Builder

	fmt.Fprintf(&b, "### Table: %s  (%s)\n", t.Name, t.Comment)
	b.WriteString("| column | type | nullable | comment |\n")
	b.WriteString("|--------|------|----------|---------|\n")
	for _, col := range t.Columns {
		nullable := "no"
		if col.Nullable {
			nullable = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", col.Name, col.Type, nullable, col.Comment)
	}

	if len(t.ForeignKeys) > 0 {
		edges := make([]string, len(t.ForeignKeys))
		for i, fk := range t.ForeignKeys {
			edges[i] = fmt.Sprintf("%s → %s.%s", fk.Column, fk.RefTable, fk.RefColumn)
		}
		fmt.Fprintf(&b, "Foreign keys: %s\n", strings.Join(edges, ", "))
	}

	return b.String()
}

// DocumentID returns the vector store document id for this table. Table
// names are unique within a namespace, so the name is the id.
func (t Table) DocumentID() string {
	return t.Name
}

// Metadata returns the document metadata persisted alongside the embedding.
func (t Table) Metadata() map[string]any {
	return map[string]any{
		"table_name":    t.Name,
		"table_comment": t.Comment,
		"column_count":  len(t.Columns),
	}
}
