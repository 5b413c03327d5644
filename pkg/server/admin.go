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
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 3 * time.Second

// handleHealth reports liveness plus the state of the two dependencies a
// query needs: the database and the schema index.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]any{"status": "healthy"}

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = err.Error()
		} else {
			body["database"] = "ok"
		}
	}

	if s.index != nil {
		if st, err := s.index.Status(ctx); err == nil {
			body["index_documents"] = st.Documents
		}
	}

	writeJSON(w, status, body)
}

func (s *Server) handleSchemaStatus(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, http.StatusServiceUnavailable, "index management is not configured")
		return
	}
	st, err := s.index.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSchemaRefresh triggers a synchronous index rebuild. A `reset=true`
// query parameter drops the index first.
func (s *Server) handleSchemaRefresh(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, http.StatusServiceUnavailable, "index management is not configured")
		return
	}

	if r.URL.Query().Get("reset") == "true" {
		if err := s.index.Reset(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	report, err := s.index.Build(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type tableEntry struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleSchemaTables(w http.ResponseWriter, r *http.Request) {
	if s.lister == nil {
		writeError(w, http.StatusServiceUnavailable, "index management is not configured")
		return
	}

	docs, err := s.lister.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	tables := make([]tableEntry, 0, len(docs))
	for _, d := range docs {
		tables = append(tables, tableEntry{ID: d.ID, Metadata: d.Metadata})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables, "count": len(tables)})
}
