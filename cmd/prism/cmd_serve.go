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
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
	"github.com/teradata-labs/prism/internal/pgxdriver"
	"github.com/teradata-labs/prism/pkg/embeddings"
	"github.com/teradata-labs/prism/pkg/executor"
	"github.com/teradata-labs/prism/pkg/firewall"
	"github.com/teradata-labs/prism/pkg/indexer"
	"github.com/teradata-labs/prism/pkg/limiter"
	"github.com/teradata-labs/prism/pkg/llm"
	llmfactory "github.com/teradata-labs/prism/pkg/llm/factory"
	"github.com/teradata-labs/prism/pkg/pipeline"
	"github.com/teradata-labs/prism/pkg/prompts"
	"github.com/teradata-labs/prism/pkg/retriever"
	"github.com/teradata-labs/prism/pkg/schema"
	"github.com/teradata-labs/prism/pkg/server"
	prismtls "github.com/teradata-labs/prism/pkg/tls"
	"github.com/teradata-labs/prism/pkg/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Prism HTTP server",
	Long: `Start the Prism server with the HTTP/SSE API.

The server will:
- Connect to PostgreSQL with a read-only connection pool
- Open the schema index (building it on a schedule if configured)
- Stream query pipeline events over SSE

Press Ctrl+C to gracefully shutdown.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	if err := config.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	logger := log.Logger()
	defer func() { _ = log.Sync() }()

	logger.Info("starting prism", zap.String("version", rootCmd.Version))

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Info("config file loaded", zap.String("path", used))
	} else {
		logger.Info("no config file found, using defaults + environment variables",
			zap.String("searched", "$PRISM_DATA_DIR/prism.yaml, ./prism.yaml, /etc/prism/prism.yaml"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database pool. Read-only at the session level; the firewall is the
	// first line of defense, this is the authoritative one.
	pool, err := pgxdriver.NewPool(ctx, databaseConfig(config))
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	// Schema index.
	store, err := vectorstore.New(vectorstore.Config{
		Dir:           config.Embedding.Dir,
		Collection:    "schema_embeddings",
		Encrypt:       config.Store.Encrypt,
		EncryptionKey: config.Store.EncryptionKey,
	}, buildEmbedder(config))
	if err != nil {
		logger.Fatal("failed to open schema index", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	retr := retriever.New(store, config.Schema.TopK)

	// Prompt registry, optionally hot-reloading overrides.
	registry := prompts.NewRegistry(config.Prompts.Dir)
	if config.Prompts.Dir != "" && config.Prompts.Watch {
		if err := registry.Watch(ctx); err != nil {
			logger.Warn("prompt hot-reload unavailable", zap.Error(err))
		}
	}

	// LLM engine.
	provider, err := llmfactory.New(ctx, llmfactory.Config{
		Provider:               config.LLM.Provider,
		Endpoint:               config.LLM.Endpoint,
		APIKey:                 config.LLM.APIKey,
		Model:                  config.LLM.Model,
		MaxTokens:              config.LLM.MaxTokens,
		Temperature:            config.LLM.Temperature,
		Timeout:                time.Duration(config.LLM.TimeoutSeconds) * time.Second,
		BedrockRegion:          config.LLM.Bedrock.Region,
		BedrockProfile:         config.LLM.Bedrock.Profile,
		BedrockAccessKeyID:     config.LLM.Bedrock.AccessKeyID,
		BedrockSecretAccessKey: config.LLM.Bedrock.SecretAccessKey,
		BedrockSessionToken:    config.LLM.Bedrock.SessionToken,
	})
	if err != nil {
		logger.Fatal("failed to create LLM provider", zap.Error(err))
	}
	engine := llm.NewEngine(provider, registry, llm.EngineConfig{
		ContextBudget: config.LLM.ContextBudget,
	})

	// Pipeline stages.
	queryTimeout := time.Duration(config.SQL.TimeoutMS) * time.Millisecond
	fw := firewall.New(config.SQL.MaxRows)
	lim := limiter.New(limiter.Config{
		PerMinute: config.Rate.PerMinute,
		Timeout:   queryTimeout,
	})
	exec := executor.New(pool, queryTimeout)
	pipe := pipeline.New(retr, engine, fw, lim, exec)

	// Index builder with optional cron refresh.
	ix := indexer.New(schema.NewExtractor(pool, config.Schema.Namespace), store)
	if config.Schema.RefreshCron != "" {
		if err := ix.StartSchedule(config.Schema.RefreshCron); err != nil {
			logger.Fatal("invalid schema.refresh_cron", zap.Error(err))
		}
		logger.Info("schema refresh scheduled", zap.String("cron", config.Schema.RefreshCron))
	}

	// TLS.
	tlsManager, err := buildTLSManager(config)
	if err != nil {
		logger.Fatal("failed to configure TLS", zap.Error(err))
	}
	srvCfg := server.Config{
		Addr:          fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		RatePerMinute: config.Rate.IPPerMinute,
		CORS: server.CORSConfig{
			Enabled:        config.Server.CORS.Enabled,
			AllowedOrigins: config.Server.CORS.AllowedOrigins,
			AllowedMethods: config.Server.CORS.AllowedMethods,
			AllowedHeaders: config.Server.CORS.AllowedHeaders,
			MaxAge:         config.Server.CORS.MaxAge,
		},
	}
	if tlsManager != nil {
		if err := tlsManager.Start(ctx); err != nil {
			logger.Fatal("failed to start TLS manager", zap.Error(err))
		}
		srvCfg.TLSConfig = tlsManager.TLSConfig()
	}

	srv := server.New(srvCfg, pipe, ix, store, pool)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("prism ready", zap.String("addr", srvCfg.Addr))

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
		return
	case <-sigch:
		logger.Info("shutting down gracefully... (press Ctrl+C again to force)")
	}

	go func() {
		<-sigch
		logger.Warn("force shutdown requested")
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Warn("error stopping HTTP server", zap.Error(err))
	}
	ix.Stop()
	if tlsManager != nil {
		if err := tlsManager.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping TLS manager", zap.Error(err))
		}
	}
	cancel()

	logger.Info("shutdown complete")
}

// databaseConfig maps the CLI config onto pool settings.
func databaseConfig(c *Config) pgxdriver.Config {
	dc := pgxdriver.DefaultConfig()
	dc.URL = c.Database.URL
	dc.Host = c.Database.Host
	if c.Database.Port != 0 {
		dc.Port = c.Database.Port
	}
	dc.Database = c.Database.Name
	dc.User = c.Database.User
	dc.Password = c.Database.Password
	if c.Database.SSLMode != "" {
		dc.SSLMode = c.Database.SSLMode
	}
	if c.Database.MaxConns > 0 {
		dc.MaxConns = int32(c.Database.MaxConns)
	}
	if c.Database.MinConns > 0 {
		dc.MinConns = int32(c.Database.MinConns)
	}
	return dc
}

// buildEmbedder selects the embedding backend.
func buildEmbedder(c *Config) vectorstore.Embedder {
	if c.Embedding.Local {
		return embeddings.NewLocalEmbedder(c.Embedding.Dim)
	}
	cfg := embeddings.DefaultConfig()
	if c.Embedding.Endpoint != "" {
		cfg.Endpoint = c.Embedding.Endpoint
	}
	if c.Embedding.Model != "" {
		cfg.Model = c.Embedding.Model
	}
	cfg.APIKey = c.Embedding.APIKey
	return embeddings.NewHTTPEmbedder(cfg)
}

// buildTLSManager returns nil when TLS is disabled.
func buildTLSManager(c *Config) (*prismtls.Manager, error) {
	switch c.Server.TLS.Mode {
	case "", "none":
		return nil, nil
	case "static":
		return prismtls.NewManager(prismtls.Config{
			Enabled: true,
			Mode:    "manual",
			Manual: prismtls.ManualConfig{
				CertFile: c.Server.TLS.CertFile,
				KeyFile:  c.Server.TLS.KeyFile,
			},
		})
	case "letsencrypt":
		return prismtls.NewManager(prismtls.Config{
			Enabled: true,
			Mode:    "letsencrypt",
			LetsEncrypt: prismtls.LetsEncryptConfig{
				Domains:           c.Server.TLS.Domains,
				Email:             c.Server.TLS.Email,
				AcceptTOS:         c.Server.TLS.AcceptTOS,
				ACMEDirectoryURL:  c.Server.TLS.ACMEDirectoryURL,
				HTTPChallengePort: c.Server.TLS.HTTPChallengePort,
				CacheDir:          c.Server.TLS.CacheDir,
				RenewBeforeDays:   c.Server.TLS.RenewBeforeDays,
				AutoRenew:         c.Server.TLS.AutoRenew,
			},
		})
	default:
		return nil, fmt.Errorf("unsupported TLS mode: %s", c.Server.TLS.Mode)
	}
}
