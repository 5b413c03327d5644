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
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
)

// exportMaxRows caps one export; result sets are already LIMIT-capped by
// the firewall, this guards hand-crafted requests.
const exportMaxRows = 100_000

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

type exportRequest struct {
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	Filename string   `json:"filename"`
}

// handleExport renders a query result as an XLSX workbook. The client sends
// back the columns and rows it received in the data event.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Columns) == 0 {
		writeError(w, http.StatusBadRequest, "columns are required")
		return
	}
	if len(req.Rows) > exportMaxRows {
		writeError(w, http.StatusBadRequest, "too many rows to export")
		return
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn("closing export workbook failed", zap.Error(err))
		}
	}()

	sheet := f.GetSheetName(0)

	header := make([]any, len(req.Columns))
	for i, c := range req.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for i, row := range req.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename(req.Filename)+`"`)
	if err := f.Write(w); err != nil {
		log.Warn("writing export workbook failed", zap.Error(err))
	}
}

// exportFilename sanitizes the requested name and forces an .xlsx suffix.
func exportFilename(name string) string {
	name = unsafeFilename.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "query_result"
	}
	if !strings.HasSuffix(name, ".xlsx") {
		name += ".xlsx"
	}
	return name
}
