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

// Package server exposes the query pipeline over HTTP: a direct SSE query
// endpoint, an async variant backed by a stream broker, schema admin
// routes, result export, and health.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	sse "github.com/r3labs/sse/v2"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
	"github.com/teradata-labs/prism/pkg/indexer"
	"github.com/teradata-labs/prism/pkg/pipeline"
	"github.com/teradata-labs/prism/pkg/vectorstore"
)

// asyncStreamTTL keeps a finished async stream replayable before the broker
// drops it.
const asyncStreamTTL = 5 * time.Minute

// QueryRunner executes one pipeline run, emitting events to the sink.
type QueryRunner interface {
	Run(ctx context.Context, question, clientID string, emit pipeline.Emitter) error
}

// IndexAdmin is the schema index management surface.
type IndexAdmin interface {
	Build(ctx context.Context) (*indexer.Report, error)
	Status(ctx context.Context) (*indexer.Status, error)
	Reset(ctx context.Context) error
}

// DocumentLister lists the indexed table documents.
type DocumentLister interface {
	List(ctx context.Context) ([]vectorstore.Document, error)
}

// Pinger reports database liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures the HTTP server.
type Config struct {
	Addr string

	// RatePerMinute is the transport-level per-IP guard, in front of the
	// pipeline's per-client limiter. <= 0 disables it.
	RatePerMinute int

	CORS CORSConfig

	// TLSConfig enables HTTPS when non-nil.
	TLSConfig *tls.Config
}

// Server routes HTTP traffic onto the pipeline and admin surfaces.
type Server struct {
	cfg    Config
	runner QueryRunner
	index  IndexAdmin
	lister DocumentLister
	db     Pinger

	broker     *sse.Server
	httpServer *http.Server
}

// New wires a server. index, lister and db may be nil in reduced
// deployments; their routes then report unavailability.
func New(cfg Config, runner QueryRunner, index IndexAdmin, lister DocumentLister, db Pinger) *Server {
	broker := sse.New()
	broker.AutoReplay = true
	broker.AutoStream = false

	s := &Server{
		cfg:    cfg,
		runner: runner,
		index:  index,
		lister: lister,
		db:     db,
		broker: broker,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // no timeout for SSE
		IdleTimeout:  120 * time.Second,
		TLSConfig:    cfg.TLSConfig,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.cfg.CORS.Enabled {
		r.Use(corsMiddleware(s.cfg.CORS))
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.cfg.RatePerMinute > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RatePerMinute, time.Minute))
		}

		r.Post("/query", s.handleQuery)
		r.Post("/query/async", s.handleQueryAsync)
		r.Get("/query/events", s.handleQueryEvents)

		r.Get("/schema/status", s.handleSchemaStatus)
		r.Post("/schema/refresh", s.handleSchemaRefresh)
		r.Get("/schema/tables", s.handleSchemaTables)

		r.Post("/export", s.handleExport)
	})

	return r
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	log.Info("starting HTTP server",
		zap.String("addr", s.cfg.Addr),
		zap.Bool("tls", s.cfg.TLSConfig != nil))

	var err error
	if s.cfg.TLSConfig != nil {
		var ln net.Listener
		ln, err = tls.Listen("tcp", s.cfg.Addr, s.cfg.TLSConfig)
		if err == nil {
			err = s.httpServer.Serve(ln)
		}
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests and closes the broker.
func (s *Server) Stop(ctx context.Context) error {
	log.Info("stopping HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.broker.Close()
	return err
}

// clientID identifies the caller for rate accounting: an explicit header
// wins, otherwise the remote IP.
func clientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
