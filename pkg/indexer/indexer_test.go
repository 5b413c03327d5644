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
package indexer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/prism/pkg/schema"
	"github.com/teradata-labs/prism/pkg/vectorstore"
)

type fakeSource struct {
	tables []schema.Table
	err    error
}

func (f *fakeSource) Extract(ctx context.Context) ([]schema.Table, error) {
	return f.tables, f.err
}

func (f *fakeSource) Namespace() string { return "public" }

type fakeStore struct {
	mu     sync.Mutex
	docs   map[string]vectorstore.Document
	upErr  error
	rstErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]vectorstore.Document{}}
}

func (f *fakeStore) Upsert(ctx context.Context, docs []vectorstore.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upErr != nil {
		return f.upErr
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return nil
}

func (f *fakeStore) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs), nil
}

func (f *fakeStore) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rstErr != nil {
		return f.rstErr
	}
	f.docs = map[string]vectorstore.Document{}
	return nil
}

func sampleTables() []schema.Table {
	return []schema.Table{
		{
			Name:    "users",
			Comment: "registered users",
			Columns: []schema.Column{
				{Name: "id", Type: "integer", Comment: "primary key"},
				{Name: "city", Type: "text", Comment: "city of residence"},
			},
		},
		{
			Name: "orders",
			Columns: []schema.Column{
				{Name: "id", Type: "integer"},
				{Name: "user_id", Type: "integer"},
			},
		},
	}
}

func TestBuild_UpsertsOneDocumentPerTable(t *testing.T) {
	store := newFakeStore()
	ix := New(&fakeSource{tables: sampleTables()}, store)

	report, err := ix.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Tables)

	require.Len(t, store.docs, 2)
	users, ok := store.docs[schema.Table{Name: "users"}.DocumentID()]
	require.True(t, ok)
	assert.Contains(t, users.Body, "users")
	assert.Contains(t, users.Body, "city of residence")
	assert.Equal(t, "users", users.Metadata["table_name"])
}

func TestBuild_RebuildReplacesDocuments(t *testing.T) {
	store := newFakeStore()
	ix := New(&fakeSource{tables: sampleTables()}, store)

	_, err := ix.Build(context.Background())
	require.NoError(t, err)
	_, err = ix.Build(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.docs, 2, "rebuilding upserts by id, it does not duplicate")
}

func TestBuild_ExtractError(t *testing.T) {
	ix := New(&fakeSource{err: errors.New("connection refused")}, newFakeStore())

	_, err := ix.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema extraction failed")

	st, stErr := ix.Status(context.Background())
	require.NoError(t, stErr)
	assert.Contains(t, st.LastError, "connection refused")
	assert.Empty(t, st.LastBuild)
}

func TestBuild_UpsertError(t *testing.T) {
	store := newFakeStore()
	store.upErr = errors.New("disk full")
	ix := New(&fakeSource{tables: sampleTables()}, store)

	_, err := ix.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index upsert failed")
}

func TestReset(t *testing.T) {
	store := newFakeStore()
	ix := New(&fakeSource{tables: sampleTables()}, store)

	_, err := ix.Build(context.Background())
	require.NoError(t, err)
	require.NoError(t, ix.Reset(context.Background()))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStatus(t *testing.T) {
	store := newFakeStore()
	ix := New(&fakeSource{tables: sampleTables()}, store)

	st, err := ix.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "public", st.Namespace)
	assert.Zero(t, st.Documents)
	assert.False(t, st.Building)
	assert.Empty(t, st.LastBuild)

	_, err = ix.Build(context.Background())
	require.NoError(t, err)

	st, err = ix.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, 2, st.LastTables)
	assert.NotEmpty(t, st.LastBuild)
	assert.Empty(t, st.LastError)
}

func TestStartSchedule_InvalidSpec(t *testing.T) {
	ix := New(&fakeSource{}, newFakeStore())
	err := ix.StartSchedule("not a cron line")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid refresh cron spec")
}

func TestStartSchedule_StartAndStop(t *testing.T) {
	ix := New(&fakeSource{tables: sampleTables()}, newFakeStore())

	require.NoError(t, ix.StartSchedule("0 3 * * *"))
	assert.Error(t, ix.StartSchedule("0 3 * * *"), "double start is rejected")

	st, err := ix.Status(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, st.NextRefresh)

	ix.Stop()
	require.NoError(t, ix.StartSchedule("0 3 * * *"), "restart after stop")
	ix.Stop()
}
