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
	"fmt"
	"strings"

	"github.com/spf13/viper"
	prismconfig "github.com/teradata-labs/prism/pkg/config"
	"github.com/zalando/go-keyring"
)

const (
	// ServiceName for keyring storage
	ServiceName = "prism"
	// DefaultConfigFileName is the name of the config file
	DefaultConfigFileName = "prism"
)

// Config holds all configuration for the Prism server.
// Priority: CLI flags > config file > env vars > defaults
type Config struct {
	// DataDir is the Prism data directory. Set during initialization from
	// the PRISM_DATA_DIR environment variable, not the config file.
	DataDir string `mapstructure:"-"`

	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Store     StoreConfig     `mapstructure:"store"`
	Schema    SchemaConfig    `mapstructure:"schema"`
	SQL       SQLConfig       `mapstructure:"sql"`
	Rate      RateConfig      `mapstructure:"rate"`
	Prompts   PromptsConfig   `mapstructure:"prompts"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string          `mapstructure:"host"`
	Port int             `mapstructure:"port"`
	CORS CORSConfig      `mapstructure:"cors"`
	TLS  ServerTLSConfig `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration for HTTP endpoints.
//
// The default allows all origins, which suits development and purely
// public deployments. Production deployments should list explicit origins.
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// ServerTLSConfig holds TLS configuration for the server.
type ServerTLSConfig struct {
	// Mode is "none" (default), "static" (certificate files on disk),
	// or "letsencrypt" (ACME issuance).
	Mode string `mapstructure:"mode"`

	// Static mode
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`

	// Let's Encrypt mode
	Domains           []string `mapstructure:"domains"`
	Email             string   `mapstructure:"email"`
	AcceptTOS         bool     `mapstructure:"accept_tos"`
	ACMEDirectoryURL  string   `mapstructure:"acme_directory_url"`
	HTTPChallengePort int      `mapstructure:"http_challenge_port"`
	CacheDir          string   `mapstructure:"cache_dir"`
	RenewBeforeDays   int      `mapstructure:"renew_before_days"`
	AutoRenew         bool     `mapstructure:"auto_renew"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	// URL is a full connection string; takes precedence over the
	// individual fields. From CLI/env/keyring only.
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`

	MaxConns int `mapstructure:"max_conns"`
	MinConns int `mapstructure:"min_conns"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // openai, anthropic, bedrock

	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"` // From CLI/env/keyring only
	Model    string `mapstructure:"model"`

	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	ContextBudget  int     `mapstructure:"context_budget"`

	Bedrock BedrockConfig `mapstructure:"bedrock"`
}

// BedrockConfig holds AWS Bedrock settings.
type BedrockConfig struct {
	Region          string `mapstructure:"region"`
	Profile         string `mapstructure:"profile"`
	AccessKeyID     string `mapstructure:"access_key_id"`     // From CLI/env/keyring only
	SecretAccessKey string `mapstructure:"secret_access_key"` // From CLI/env/keyring only
	SessionToken    string `mapstructure:"session_token"`     // From CLI/env/keyring only
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// Dir is where the schema index SQLite file lives.
	Dir string `mapstructure:"dir"`

	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"` // From CLI/env/keyring only
	Model    string `mapstructure:"model"`

	// Local switches to the deterministic in-process embedder. No API
	// calls; suitable for air-gapped deployments and tests.
	Local bool `mapstructure:"local"`
	Dim   int  `mapstructure:"dim"`
}

// StoreConfig holds vector store at-rest encryption settings.
type StoreConfig struct {
	Encrypt       bool   `mapstructure:"encrypt"`
	EncryptionKey string `mapstructure:"encryption_key"` // From CLI/env/keyring only
}

// SchemaConfig holds schema extraction and retrieval settings.
type SchemaConfig struct {
	Namespace string `mapstructure:"namespace"`
	TopK      int    `mapstructure:"top_k"`

	// RefreshCron is a cron expression for periodic index rebuilds.
	// Empty disables scheduled refresh.
	RefreshCron string `mapstructure:"refresh_cron"`
}

// SQLConfig holds query execution limits.
type SQLConfig struct {
	MaxRows    int `mapstructure:"max_rows"`
	TimeoutMS  int `mapstructure:"timeout_ms"`
	MaxRetries int `mapstructure:"max_retries"`
}

// RateConfig holds rate limiting configuration.
type RateConfig struct {
	// PerMinute caps pipeline runs per client id.
	PerMinute int `mapstructure:"per_minute"`

	// IPPerMinute is the coarse per-IP guard on the HTTP router.
	IPPerMinute int `mapstructure:"ip_per_minute"`
}

// PromptsConfig holds prompt override settings.
type PromptsConfig struct {
	// Dir is the prompt override directory. Empty uses the builtin prompt.
	Dir string `mapstructure:"dir"`

	// Watch hot-reloads overrides on file change.
	Watch bool `mapstructure:"watch"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// LoadConfig loads configuration from multiple sources with priority:
// CLI flags > config file > environment variables > defaults.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(prismconfig.GetPrismDataDir())
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/prism/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; defaults + env vars + flags apply.
	}

	viper.SetEnvPrefix("PRISM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.DataDir = prismconfig.GetPrismDataDir()

	// Non-fatal: keyring might not be available, secrets can come from
	// CLI/env instead.
	_ = loadSecretsFromKeyring(&config)

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.cors.enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{"*"})
	viper.SetDefault("server.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	viper.SetDefault("server.cors.allowed_headers", []string{"*"})
	viper.SetDefault("server.cors.max_age", 86400)
	viper.SetDefault("server.tls.mode", "none")
	viper.SetDefault("server.tls.http_challenge_port", 80)
	viper.SetDefault("server.tls.renew_before_days", 30)
	viper.SetDefault("server.tls.auto_renew", true)

	// Database defaults. Empty-string defaults register the keys with
	// viper so AutomaticEnv picks them up during Unmarshal.
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.host", "")
	viper.SetDefault("database.name", "")
	viper.SetDefault("database.user", "")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "prefer")
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.min_conns", 2)

	// LLM defaults
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.endpoint", "")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.timeout_seconds", 120)
	viper.SetDefault("llm.context_budget", 8000)
	viper.SetDefault("llm.bedrock.region", "us-west-2")

	// Embedding defaults
	viper.SetDefault("embedding.dir", prismconfig.GetPrismSubDir("index"))
	viper.SetDefault("embedding.endpoint", "https://api.openai.com/v1")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.api_key", "")
	viper.SetDefault("embedding.local", false)
	viper.SetDefault("embedding.dim", 256)

	// Store defaults
	viper.SetDefault("store.encrypt", false)
	viper.SetDefault("store.encryption_key", "")

	// Schema defaults
	viper.SetDefault("schema.namespace", "public")
	viper.SetDefault("schema.top_k", 5)
	viper.SetDefault("schema.refresh_cron", "")

	// SQL defaults
	viper.SetDefault("sql.max_rows", 1000)
	viper.SetDefault("sql.timeout_ms", 30000)
	viper.SetDefault("sql.max_retries", 3)

	// Rate defaults
	viper.SetDefault("rate.per_minute", 30)
	viper.SetDefault("rate.ip_per_minute", 60)

	// Prompts defaults
	viper.SetDefault("prompts.dir", "")
	viper.SetDefault("prompts.watch", true)

	// Logging defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// SecretMapping defines how to load a secret from the keyring into the
// config. The key is the keyring key name.
type SecretMapping struct {
	KeyringKey string
	Setter     func(*Config, string)
	IsSet      func(*Config) bool // true when already set from CLI/env/config
}

// GetSecretMappings returns all secret mappings for the application.
func GetSecretMappings() []SecretMapping {
	return []SecretMapping{
		{
			KeyringKey: "llm_api_key",
			Setter:     func(c *Config, val string) { c.LLM.APIKey = val },
			IsSet:      func(c *Config) bool { return c.LLM.APIKey != "" },
		},
		{
			KeyringKey: "embedding_api_key",
			Setter:     func(c *Config, val string) { c.Embedding.APIKey = val },
			IsSet:      func(c *Config) bool { return c.Embedding.APIKey != "" },
		},
		{
			KeyringKey: "database_url",
			Setter:     func(c *Config, val string) { c.Database.URL = val },
			IsSet:      func(c *Config) bool { return c.Database.URL != "" },
		},
		{
			KeyringKey: "database_password",
			Setter:     func(c *Config, val string) { c.Database.Password = val },
			IsSet:      func(c *Config) bool { return c.Database.Password != "" },
		},
		{
			KeyringKey: "store_encryption_key",
			Setter:     func(c *Config, val string) { c.Store.EncryptionKey = val },
			IsSet:      func(c *Config) bool { return c.Store.EncryptionKey != "" },
		},
		{
			KeyringKey: "bedrock_access_key_id",
			Setter:     func(c *Config, val string) { c.LLM.Bedrock.AccessKeyID = val },
			IsSet:      func(c *Config) bool { return c.LLM.Bedrock.AccessKeyID != "" },
		},
		{
			KeyringKey: "bedrock_secret_access_key",
			Setter:     func(c *Config, val string) { c.LLM.Bedrock.SecretAccessKey = val },
			IsSet:      func(c *Config) bool { return c.LLM.Bedrock.SecretAccessKey != "" },
		},
		{
			KeyringKey: "bedrock_session_token",
			Setter:     func(c *Config, val string) { c.LLM.Bedrock.SessionToken = val },
			IsSet:      func(c *Config) bool { return c.LLM.Bedrock.SessionToken != "" },
		},
	}
}

// loadSecretsFromKeyring fills unset secrets from the system keyring.
func loadSecretsFromKeyring(config *Config) error {
	for _, mapping := range GetSecretMappings() {
		if mapping.IsSet(config) {
			continue
		}
		value, err := keyring.Get(ServiceName, mapping.KeyringKey)
		if err == nil && value != "" {
			mapping.Setter(config, value)
		}
	}
	return nil
}

// ListAvailableSecretKeys returns all known secret keys for the keyring.
func ListAvailableSecretKeys() []string {
	mappings := GetSecretMappings()
	keys := make([]string, len(mappings))
	for i, mapping := range mappings {
		keys[i] = mapping.KeyringKey
	}
	return keys
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return fmt.Errorf("database connection is required (set database.url via PRISM_DATABASE_URL or keyring with 'prism config set-key database_url', or database.host + database.name)")
	}

	switch c.LLM.Provider {
	case "openai", "":
		if c.LLM.APIKey == "" && c.LLM.Endpoint == "" {
			return fmt.Errorf("llm API key is required (set PRISM_LLM_API_KEY or save to keyring with 'prism config set-key llm_api_key'); a keyless llm.endpoint also works for local OpenAI-compatible servers")
		}
	case "anthropic":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("anthropic API key is required (set PRISM_LLM_API_KEY or save to keyring with 'prism config set-key llm_api_key')")
		}
	case "bedrock":
		if c.LLM.Bedrock.Region == "" {
			return fmt.Errorf("bedrock region is required (set llm.bedrock.region in config or PRISM_LLM_BEDROCK_REGION)")
		}
		// Explicit credentials are optional: AWS profile, IAM role, or the
		// default credentials chain all work.
	default:
		return fmt.Errorf("unsupported LLM provider: %s (must be openai, anthropic, or bedrock)", c.LLM.Provider)
	}

	if !c.Embedding.Local && c.Embedding.APIKey == "" && c.Embedding.Endpoint == "" {
		return fmt.Errorf("embedding configuration is required (set PRISM_EMBEDDING_API_KEY, save to keyring with 'prism config set-key embedding_api_key', or set embedding.local: true)")
	}

	if c.Store.Encrypt && c.Store.EncryptionKey == "" {
		return fmt.Errorf("store.encryption_key is required when store.encrypt is enabled (save to keyring with 'prism config set-key store_encryption_key')")
	}

	switch c.Server.TLS.Mode {
	case "", "none":
	case "static":
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("server.tls.cert_file and server.tls.key_file are required for static TLS")
		}
	case "letsencrypt":
		if len(c.Server.TLS.Domains) == 0 {
			return fmt.Errorf("server.tls.domains is required for letsencrypt TLS")
		}
	default:
		return fmt.Errorf("unsupported TLS mode: %s (must be none, static, or letsencrypt)", c.Server.TLS.Mode)
	}

	if c.SQL.MaxRows < 1 {
		return fmt.Errorf("sql.max_rows must be positive")
	}
	if c.SQL.TimeoutMS < 1 {
		return fmt.Errorf("sql.timeout_ms must be positive")
	}

	return nil
}

// GenerateExampleConfig generates an example configuration file.
func GenerateExampleConfig() string {
	return `# Prism Configuration
# Priority: CLI flags > config file > environment variables > defaults
# Environment variables use the PRISM prefix with dots replaced by
# underscores: sql.max_rows -> PRISM_SQL_MAX_ROWS

server:
  host: 0.0.0.0
  port: 8000

  cors:
    enabled: true
    allowed_origins: ["*"]  # List explicit origins in production

  tls:
    mode: none  # none, static, letsencrypt
    # Static certificates:
    # cert_file: /etc/prism/tls/cert.pem
    # key_file: /etc/prism/tls/key.pem
    # Let's Encrypt:
    # domains: [prism.example.com]
    # email: ops@example.com
    # accept_tos: true

database:
  # url: set via keyring (prism config set-key database_url)
  #      or PRISM_DATABASE_URL
  host: localhost
  port: 5432
  name: prism
  user: prism
  # password: set via keyring (prism config set-key database_password)
  ssl_mode: prefer
  max_conns: 10
  min_conns: 2

llm:
  # Provider options: openai, anthropic, bedrock
  provider: openai
  model: gpt-4o-mini
  # api_key: set via keyring (prism config set-key llm_api_key)
  # endpoint: http://localhost:11434/v1  # any OpenAI-compatible server
  max_tokens: 4096
  temperature: 0.0
  timeout_seconds: 120
  context_budget: 8000

  # AWS Bedrock
  bedrock:
    region: us-west-2
    # profile: default  # AWS profile instead of explicit credentials
    # access_key_id: set via keyring (prism config set-key bedrock_access_key_id)
    # secret_access_key: set via keyring (prism config set-key bedrock_secret_access_key)

embedding:
  # dir defaults to ~/.prism/index
  model: text-embedding-3-small
  # api_key: set via keyring (prism config set-key embedding_api_key)
  # local: true  # deterministic in-process embedder, no API calls

store:
  encrypt: false
  # encryption_key: set via keyring (prism config set-key store_encryption_key)

schema:
  namespace: public
  top_k: 5
  # refresh_cron: "0 3 * * *"  # rebuild the index daily at 03:00

sql:
  max_rows: 1000
  timeout_ms: 30000
  max_retries: 3

rate:
  per_minute: 30     # pipeline runs per client id
  ip_per_minute: 60  # HTTP requests per IP

prompts:
  # dir: ./prompts  # directory with system.yaml override
  watch: true

log:
  level: info  # debug, info, warn, error
  format: text # text, json

# Secrets should NEVER be committed to config files.
# Use the keyring for secure storage:
#   prism config set-key llm_api_key
#   prism config set-key embedding_api_key
#   prism config set-key database_url
`
}
