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
package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/prism/internal/pgxdriver"
	"github.com/teradata-labs/prism/pkg/schema"
)

func TestSchemaExtractor_RealCatalog(t *testing.T) {
	url := startPostgres(t)
	seedSchema(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := pgxdriver.DefaultConfig()
	cfg.URL = url
	pool, err := pgxdriver.NewPool(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()

	ex := schema.NewExtractor(pool, "public")
	tables, err := ex.Extract(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)

	byName := map[string]schema.Table{}
	for _, tab := range tables {
		byName[tab.Name] = tab
	}

	regions, ok := byName["regions"]
	require.True(t, ok)
	require.Len(t, regions.Columns, 2)
	assert.Equal(t, "id", regions.Columns[0].Name)
	assert.Equal(t, "integer", regions.Columns[0].Type)
	assert.False(t, regions.Columns[0].Nullable)
	assert.Equal(t, "name", regions.Columns[1].Name)
	assert.Equal(t, "text", regions.Columns[1].Type)
	assert.Empty(t, regions.ForeignKeys)

	sales, ok := byName["sales"]
	require.True(t, ok)
	require.Len(t, sales.Columns, 4)
	assert.Equal(t, "numeric", sales.Columns[2].Type)
	assert.Contains(t, sales.Columns[3].Default, "now()")

	require.Len(t, sales.ForeignKeys, 1)
	assert.Equal(t, "region_id", sales.ForeignKeys[0].Column)
	assert.Equal(t, "regions", sales.ForeignKeys[0].RefTable)
	assert.Equal(t, "id", sales.ForeignKeys[0].RefColumn)
}

func TestSchemaExtractor_EmptyNamespace(t *testing.T) {
	url := startPostgres(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := pgxdriver.DefaultConfig()
	cfg.URL = url
	pool, err := pgxdriver.NewPool(ctx, cfg)
	require.NoError(t, err)
	defer pool.Close()

	ex := schema.NewExtractor(pool, "nonexistent_schema")
	tables, err := ex.Extract(ctx)
	require.NoError(t, err)
	assert.Empty(t, tables)
}
