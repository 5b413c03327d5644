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
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	sse "github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
	"github.com/teradata-labs/prism/pkg/pipeline"
)

// asyncRunTimeout bounds a detached async run, which has no client
// disconnect to cancel it.
const asyncRunTimeout = 10 * time.Minute

type queryRequest struct {
	Question string `json:"question"`
}

func decodeQuestion(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return "", false
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return "", false
	}
	return question, true
}

// handleQuery streams one run directly over the response as SSE. The
// client's disconnect cancels the run via the request context.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	question, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		writeError(w, http.StatusInternalServerError, "streaming unsupported by connection")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering
	flusher.Flush()

	err := s.runner.Run(r.Context(), question, clientID(r), func(ev pipeline.Event) error {
		if _, werr := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Data); werr != nil {
			return werr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// The headers are gone; all we can do is log why the stream ended.
		log.Debug("query stream ended early", zap.Error(err))
	}
}

// handleQueryAsync starts a detached run and answers immediately with the
// stream id to subscribe to on /api/query/events.
func (s *Server) handleQueryAsync(w http.ResponseWriter, r *http.Request) {
	question, ok := decodeQuestion(w, r)
	if !ok {
		return
	}

	streamID := uuid.NewString()
	s.broker.CreateStream(streamID)
	client := clientID(r)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncRunTimeout)
		defer cancel()

		err := s.runner.Run(ctx, question, client, func(ev pipeline.Event) error {
			s.broker.Publish(streamID, &sse.Event{
				Event: []byte(ev.Type),
				Data:  ev.Data,
			})
			return nil
		})
		if err != nil {
			log.Warn("async query run ended early", zap.String("stream_id", streamID), zap.Error(err))
		}

		// Keep the finished stream replayable for late subscribers, then
		// drop it.
		time.AfterFunc(asyncStreamTTL, func() {
			s.broker.RemoveStream(streamID)
		})
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"stream_id":  streamID,
		"events_url": "/api/query/events?stream=" + streamID,
	})
}

// handleQueryEvents subscribes the caller to an async run's event stream.
func (s *Server) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	streamID := r.URL.Query().Get("stream")
	if streamID == "" {
		writeError(w, http.StatusBadRequest, "stream query parameter is required")
		return
	}
	if !s.broker.StreamExists(streamID) {
		writeError(w, http.StatusNotFound, "unknown stream id")
		return
	}
	s.broker.ServeHTTP(w, r)
}
