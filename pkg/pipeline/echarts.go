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
package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/teradata-labs/prism/pkg/executor"
)

// FillOption populates a model-produced ECharts option with actual query
// results: the first result column feeds the category axis, the remaining
// columns feed series in order. The model is told to leave data arrays
// empty; this is where they get filled. The option's own key layout is
// preserved, only data (and missing series names) are written.
func FillOption(option json.RawMessage, cd executor.ChartData) (json.RawMessage, error) {
	if !gjson.ValidBytes(option) {
		return nil, fmt.Errorf("echarts option is not valid JSON")
	}
	root := gjson.ParseBytes(option)
	if !root.IsObject() {
		return nil, fmt.Errorf("echarts option is not a JSON object")
	}

	out := []byte(option)
	var err error

	// Category axis. An xAxis object gets its data replaced; an xAxis list
	// gets only its first entry filled.
	xAxis := gjson.GetBytes(out, "xAxis")
	switch {
	case xAxis.IsObject():
		if out, err = sjson.SetBytes(out, "xAxis.data", cd.Categories); err != nil {
			return nil, err
		}
	case xAxis.IsArray() && len(xAxis.Array()) > 0:
		if out, err = sjson.SetBytes(out, "xAxis.0.data", cd.Categories); err != nil {
			return nil, err
		}
	}

	// Series data, one value column per series entry. Entries beyond the
	// available columns keep whatever the model put there.
	series := gjson.GetBytes(out, "series")
	if series.IsArray() && len(cd.Series) > 0 {
		for i := range series.Array() {
			if i >= len(cd.Series) {
				break
			}
			base := "series." + strconv.Itoa(i)
			if out, err = sjson.SetBytes(out, base+".data", cd.Series[i].Values); err != nil {
				return nil, err
			}
			if !gjson.GetBytes(out, base+".name").Exists() {
				if out, err = sjson.SetBytes(out, base+".name", cd.Series[i].Name); err != nil {
					return nil, err
				}
			}
		}
	}

	// Pie series use {name, value} pairs built from the category column and
	// the first value column, with null values dropped.
	series = gjson.GetBytes(out, "series")
	if series.IsArray() && len(cd.Series) > 0 {
		for i, item := range series.Array() {
			if item.Get("type").String() != "pie" {
				continue
			}
			pairs := piePairs(cd)
			if out, err = sjson.SetBytes(out, "series."+strconv.Itoa(i)+".data", pairs); err != nil {
				return nil, err
			}
		}
	}

	return out, nil
}

// piePair is one slice of a pie series.
type piePair struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

func piePairs(cd executor.ChartData) []piePair {
	values := cd.Series[0].Values
	pairs := make([]piePair, 0, len(values))
	for i, cat := range cd.Categories {
		if i >= len(values) || values[i] == nil {
			continue
		}
		pairs = append(pairs, piePair{Name: cat, Value: values[i]})
	}
	return pairs
}
