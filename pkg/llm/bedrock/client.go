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

// Package bedrock implements the llm.Provider interface over the AWS Bedrock
// Converse API. The ConverseStream path is text-only, which is all the
// pipeline sends; tool configuration is deliberately absent.
package bedrock

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/teradata-labs/prism/pkg/llm"
)

// Default configuration values.
const (
	DefaultModelID     = "anthropic.claude-sonnet-4-5-20250929-v1:0"
	DefaultRegion      = "us-east-1"
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.1
)

// Config holds configuration for the Bedrock client.
type Config struct {
	// ModelID is the Bedrock model identifier.
	ModelID string

	// Region is the AWS region hosting the model.
	Region string

	// Profile selects a named shared-config profile. Ignored when explicit
	// credentials are set.
	Profile string

	// Explicit static credentials. When empty the default AWS credential
	// chain applies (env vars, shared config, IAM role).
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	MaxTokens   int
	Temperature float64
}

// Client implements llm.Provider against Bedrock's Converse API.
type Client struct {
	client      *bedrockruntime.Client
	modelID     string
	region      string
	maxTokens   int32
	temperature float32
}

// NewClient creates a Bedrock client using the configured credential source.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ModelID == "" {
		if envModel := os.Getenv("AWS_BEDROCK_MODEL_ID"); envModel != "" {
			cfg.ModelID = envModel
		} else {
			cfg.ModelID = DefaultModelID
		}
	}
	if cfg.Region == "" {
		if envRegion := os.Getenv("AWS_DEFAULT_REGION"); envRegion != "" {
			cfg.Region = envRegion
		} else {
			cfg.Region = DefaultRegion
		}
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}

	var awsCfg aws.Config
	var err error
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				cfg.SessionToken,
			)),
		)
	case cfg.Profile != "":
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithSharedConfigProfile(cfg.Profile),
		)
	default:
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		client:      bedrockruntime.NewFromConfig(awsCfg),
		modelID:     cfg.ModelID,
		region:      cfg.Region,
		maxTokens:   int32(cfg.MaxTokens),
		temperature: float32(cfg.Temperature),
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "bedrock"
}

// Model returns the model identifier.
func (c *Client) Model() string {
	return c.modelID
}

// ChatStream streams a ConverseStream call, forwarding each text delta to
// onToken as it arrives.
func (c *Client) ChatStream(ctx context.Context, messages []llm.Message, onToken llm.StreamCallback) (*llm.Completion, error) {
	systemBlocks, converseMessages := convertMessages(messages)
	if len(converseMessages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(c.modelID),
		Messages: converseMessages,
		System:   systemBlocks,
		InferenceConfig: &bedrocktypes.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTokens),
			Temperature: aws.Float32(c.temperature),
		},
	}

	output, err := c.client.ConverseStream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("bedrock invocation failed: %w", err)
	}

	var contentBuffer strings.Builder
	var stopReason string
	usage := llm.Usage{}

	stream := output.GetStream()
	defer stream.Close()

	for event := range stream.Events() {
		switch e := event.(type) {
		case *bedrocktypes.ConverseStreamOutputMemberContentBlockDelta:
			if text, ok := e.Value.Delta.(*bedrocktypes.ContentBlockDeltaMemberText); ok && text.Value != "" {
				contentBuffer.WriteString(text.Value)
				if onToken != nil {
					onToken(text.Value)
				}
			}

		case *bedrocktypes.ConverseStreamOutputMemberMessageStop:
			stopReason = string(e.Value.StopReason)

		case *bedrocktypes.ConverseStreamOutputMemberMetadata:
			if e.Value.Usage != nil {
				usage.InputTokens = int(aws.ToInt32(e.Value.Usage.InputTokens))
				usage.OutputTokens = int(aws.ToInt32(e.Value.Usage.OutputTokens))
				usage.TotalTokens = int(aws.ToInt32(e.Value.Usage.TotalTokens))
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("stream error: %w", err)
	}

	return &llm.Completion{
		Content:    contentBuffer.String(),
		StopReason: stopReason,
		Usage:      usage,
	}, nil
}

// convertMessages converts chat messages to Converse blocks, splitting out
// system content.
func convertMessages(messages []llm.Message) ([]bedrocktypes.SystemContentBlock, []bedrocktypes.Message) {
	var systemBlocks []bedrocktypes.SystemContentBlock
	var converseMessages []bedrocktypes.Message

	for _, msg := range messages {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case llm.RoleSystem:
			systemBlocks = append(systemBlocks, &bedrocktypes.SystemContentBlockMemberText{
				Value: msg.Content,
			})
		case llm.RoleUser:
			converseMessages = append(converseMessages, bedrocktypes.Message{
				Role:    bedrocktypes.ConversationRoleUser,
				Content: []bedrocktypes.ContentBlock{&bedrocktypes.ContentBlockMemberText{Value: msg.Content}},
			})
		case llm.RoleAssistant:
			converseMessages = append(converseMessages, bedrocktypes.Message{
				Role:    bedrocktypes.ConversationRoleAssistant,
				Content: []bedrocktypes.ContentBlock{&bedrocktypes.ContentBlockMemberText{Value: msg.Content}},
			})
		}
	}

	return systemBlocks, converseMessages
}

// Ensure Client implements the Provider interface.
var _ llm.Provider = (*Client)(nil)
