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

// Package factory constructs the configured llm.Provider.
package factory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teradata-labs/prism/pkg/llm"
	"github.com/teradata-labs/prism/pkg/llm/anthropic"
	"github.com/teradata-labs/prism/pkg/llm/bedrock"
	"github.com/teradata-labs/prism/pkg/llm/openai"
)

// Config selects and configures a provider.
type Config struct {
	// Provider is one of "openai", "anthropic", "bedrock". Defaults to
	// openai, which also serves any OpenAI-compatible endpoint.
	Provider string

	// Shared settings.
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration

	// Bedrock-specific settings.
	BedrockRegion          string
	BedrockProfile         string
	BedrockAccessKeyID     string
	BedrockSecretAccessKey string
	BedrockSessionToken    string
}

// New creates the provider named by cfg.Provider.
func New(ctx context.Context, cfg Config) (llm.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openai":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Endpoint:    cfg.Endpoint,
			Timeout:     cfg.Timeout,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}), nil

	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		}), nil

	case "bedrock":
		return bedrock.NewClient(ctx, bedrock.Config{
			ModelID:         cfg.Model,
			Region:          cfg.BedrockRegion,
			Profile:         cfg.BedrockProfile,
			AccessKeyID:     cfg.BedrockAccessKeyID,
			SecretAccessKey: cfg.BedrockSecretAccessKey,
			SessionToken:    cfg.BedrockSessionToken,
			MaxTokens:       cfg.MaxTokens,
			Temperature:     cfg.Temperature,
		})

	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: openai, anthropic, bedrock)", cfg.Provider)
	}
}
