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
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// QueryResult is the tabular payload of a data event. Every cell holds a
// JSON-safe value: nil, bool, int64, float64, or string.
type QueryResult struct {
	Columns         []string `json:"columns"`
	Rows            [][]any  `json:"rows"`
	RowCount        int      `json:"row_count"`
	ExecutionTimeMS float64  `json:"execution_time_ms"`
}

// SeriesColumn is one value column of a result, in result order.
type SeriesColumn struct {
	Name   string
	Values []any
}

// ChartData is the chart-oriented projection of a result: the first column
// becomes the category axis and each remaining column becomes a series.
type ChartData struct {
	Categories []string
	Series     []SeriesColumn
}

// ChartData projects the result for chart filling. Results with no rows or
// no columns yield empty categories and no series. Cells missing from short
// rows are padded with nil.
func (r *QueryResult) ChartData() ChartData {
	cd := ChartData{Categories: []string{}}
	if len(r.Rows) == 0 || len(r.Columns) == 0 {
		return cd
	}

	for _, row := range r.Rows {
		if len(row) == 0 || row[0] == nil {
			cd.Categories = append(cd.Categories, "")
			continue
		}
		cd.Categories = append(cd.Categories, fmt.Sprint(row[0]))
	}

	for i, name := range r.Columns[1:] {
		col := SeriesColumn{Name: name, Values: make([]any, 0, len(r.Rows))}
		for _, row := range r.Rows {
			if i+1 < len(row) {
				col.Values = append(col.Values, row[i+1])
			} else {
				col.Values = append(col.Values, nil)
			}
		}
		cd.Series = append(cd.Series, col)
	}
	return cd
}

// coerceCell maps driver values onto the JSON-safe cell types. Integers
// widen to int64, floats to float64, temporal values render as ISO-8601,
// and anything unrecognized falls back to its string form.
func coerceCell(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool:
		return val
	case string:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case uint:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		return int64(val)
	case float32:
		return float64(val)
	case float64:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return fmt.Sprint(v)
		}
		return f.Float64
	case [16]byte:
		return uuid.UUID(val).String()
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(v)
	}
}
