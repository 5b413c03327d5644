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

// Package anthropic implements the llm.Provider interface using the official
// Anthropic SDK over the Messages streaming API.
package anthropic

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/teradata-labs/prism/pkg/llm"
)

// Default configuration values.
const (
	DefaultModel       = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.1
)

// Config holds configuration for the Anthropic client.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Client implements llm.Provider using the Anthropic SDK.
type Client struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewClient creates an Anthropic client. The API key falls back to
// ANTHROPIC_API_KEY, which the SDK also honors.
func NewClient(config Config) *Client {
	if config.Model == "" {
		if envModel := os.Getenv("PRISM_LLM_MODEL"); envModel != "" {
			config.Model = envModel
		} else {
			config.Model = DefaultModel
		}
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Temperature == 0 {
		config.Temperature = DefaultTemperature
	}

	var opts []option.RequestOption
	if config.APIKey != "" {
		opts = append(opts, option.WithAPIKey(config.APIKey))
	}

	return &Client{
		client:      anthropic.NewClient(opts...),
		model:       config.Model,
		maxTokens:   int64(config.MaxTokens),
		temperature: config.Temperature,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "anthropic"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.model
}

// ChatStream streams a Messages API call, forwarding each text delta to
// onToken as it arrives.
func (c *Client) ChatStream(ctx context.Context, messages []llm.Message, onToken llm.StreamCallback) (*llm.Completion, error) {
	systemPrompt, sdkMessages := convertMessages(messages)
	if len(sdkMessages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		Messages:    sdkMessages,
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(c.temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	var contentBuffer strings.Builder
	var stopReason string
	usage := llm.Usage{}

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			usage.InputTokens = int(event.Message.Usage.InputTokens)

		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				contentBuffer.WriteString(event.Delta.Text)
				if onToken != nil {
					onToken(event.Delta.Text)
				}
			}

		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = string(event.Delta.StopReason)
			}
			if event.Usage.OutputTokens > 0 {
				usage.OutputTokens = int(event.Usage.OutputTokens)
			}
		}
	}
	if err := stream.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("stream error: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	usage.TotalTokens = usage.InputTokens + usage.OutputTokens
	return &llm.Completion{
		Content:    contentBuffer.String(),
		StopReason: stopReason,
		Usage:      usage,
	}, nil
}

// convertMessages splits out the system prompt and converts the rest to SDK
// message params.
func convertMessages(messages []llm.Message) (string, []anthropic.MessageParam) {
	var systemPrompts []string
	var sdkMessages []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			if msg.Content != "" {
				systemPrompts = append(systemPrompts, msg.Content)
			}
		case llm.RoleUser:
			if msg.Content != "" {
				sdkMessages = append(sdkMessages, anthropic.NewUserMessage(
					anthropic.NewTextBlock(msg.Content),
				))
			}
		case llm.RoleAssistant:
			if msg.Content != "" {
				sdkMessages = append(sdkMessages, anthropic.NewAssistantMessage(
					anthropic.NewTextBlock(msg.Content),
				))
			}
		}
	}

	return strings.Join(systemPrompts, "\n\n"), sdkMessages
}

// Ensure Client implements the Provider interface.
var _ llm.Provider = (*Client)(nil)
