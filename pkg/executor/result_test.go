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
package executor

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceCell(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name string
		in   any
		want any
	}{
		{name: "nil", in: nil, want: nil},
		{name: "bool", in: true, want: true},
		{name: "string", in: "BJ", want: "BJ"},
		{name: "int16 widens", in: int16(7), want: int64(7)},
		{name: "int32 widens", in: int32(7), want: int64(7)},
		{name: "int64", in: int64(-3), want: int64(-3)},
		{name: "uint32 widens", in: uint32(9), want: int64(9)},
		{name: "float32 widens", in: float32(0.5), want: float64(0.5)},
		{name: "float64", in: 2.25, want: 2.25},
		{name: "time renders RFC3339", in: ts, want: "2026-03-14T09:26:53Z"},
		{name: "uuid bytes render as string", in: [16]byte(id), want: id.String()},
		{name: "bytea renders as string", in: []byte("raw"), want: "raw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, coerceCell(tt.in))
		})
	}
}

func TestCoerceCell_Numeric(t *testing.T) {
	n := pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}
	assert.InDelta(t, 123.45, coerceCell(n), 1e-9)

	assert.Nil(t, coerceCell(pgtype.Numeric{Valid: false}))
}

func TestCoerceCell_FallbackString(t *testing.T) {
	type opaque struct{ A int }
	got := coerceCell(opaque{A: 1})
	_, isString := got.(string)
	assert.True(t, isString, "unrecognized driver types fall back to their string form")
}

func TestQueryResult_JSONShape(t *testing.T) {
	r := QueryResult{
		Columns:         []string{"city", "c"},
		Rows:            [][]any{{"BJ", int64(3)}},
		RowCount:        1,
		ExecutionTimeMS: 12.34,
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"columns":["city","c"],"rows":[["BJ",3]],"row_count":1,"execution_time_ms":12.34}`, string(data))
}

func TestChartData_Projection(t *testing.T) {
	r := QueryResult{
		Columns: []string{"city", "orders", "users"},
		Rows: [][]any{
			{"BJ", int64(3), int64(10)},
			{"SH", int64(2), int64(7)},
		},
	}

	cd := r.ChartData()
	assert.Equal(t, []string{"BJ", "SH"}, cd.Categories)
	require.Len(t, cd.Series, 2)
	assert.Equal(t, "orders", cd.Series[0].Name)
	assert.Equal(t, []any{int64(3), int64(2)}, cd.Series[0].Values)
	assert.Equal(t, "users", cd.Series[1].Name)
	assert.Equal(t, []any{int64(10), int64(7)}, cd.Series[1].Values)
}

func TestChartData_Empty(t *testing.T) {
	cd := (&QueryResult{}).ChartData()
	assert.Empty(t, cd.Categories)
	assert.Empty(t, cd.Series)
}

func TestChartData_NumericCategoriesStringified(t *testing.T) {
	r := QueryResult{
		Columns: []string{"year", "total"},
		Rows:    [][]any{{int64(2025), 1.5}, {int64(2026), 2.5}},
	}
	assert.Equal(t, []string{"2025", "2026"}, r.ChartData().Categories)
}

func TestChartData_ShortRowsPadded(t *testing.T) {
	r := QueryResult{
		Columns: []string{"city", "a", "b"},
		Rows:    [][]any{{"BJ", int64(1)}, {"SH", int64(2), int64(3)}},
	}

	cd := r.ChartData()
	assert.Equal(t, []any{int64(1), int64(2)}, cd.Series[0].Values)
	assert.Equal(t, []any{nil, int64(3)}, cd.Series[1].Values)
}

func TestChartData_NilCategoryCell(t *testing.T) {
	r := QueryResult{
		Columns: []string{"city", "c"},
		Rows:    [][]any{{nil, int64(1)}},
	}
	assert.Equal(t, []string{""}, r.ChartData().Categories)
}

func TestRoundMS(t *testing.T) {
	assert.InDelta(t, 12.35, roundMS(12_345_678*time.Nanosecond), 1e-9)
	assert.InDelta(t, 0.0, roundMS(0), 1e-9)
}
