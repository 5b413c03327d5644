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
package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestHandleExport(t *testing.T) {
	srv := newTestServer(&stubRunner{}, nil, nil, nil)

	body := `{"columns":["city","c"],"rows":[["BJ",3],["SH",2.5]],"filename":"users by city"}`
	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="users_by_city.xlsx"`, rec.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"city", "c"}, rows[0])
	assert.Equal(t, "BJ", rows[1][0])
	assert.Equal(t, "3", rows[1][1])
	assert.Equal(t, "SH", rows[2][0])
}

func TestHandleExport_BadRequests(t *testing.T) {
	srv := newTestServer(&stubRunner{}, nil, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `nope`},
		{name: "no columns", body: `{"rows":[[1]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestExportFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report", "report.xlsx"},
		{"report.xlsx", "report.xlsx"},
		{"users by city", "users_by_city.xlsx"},
		{"../../etc/passwd", "etc_passwd.xlsx"},
		{"", "query_result.xlsx"},
		{"   ", "query_result.xlsx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exportFilename(tt.in), "input %q", tt.in)
	}
}
