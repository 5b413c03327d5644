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

package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsToOpenAI(t *testing.T) {
	p, err := New(context.Background(), Config{})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNew_SelectsByName(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"openai", "openai"},
		{"OpenAI", "openai"},
		{"anthropic", "anthropic"},
		{" anthropic ", "anthropic"},
	}

	for _, tt := range tests {
		p, err := New(context.Background(), Config{Provider: tt.provider})
		require.NoError(t, err, "provider %q", tt.provider)
		assert.Equal(t, tt.want, p.Name())
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "cohere"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cohere")
}

func TestNew_ModelPassthrough(t *testing.T) {
	p, err := New(context.Background(), Config{Provider: "anthropic", Model: "claude-test"})
	require.NoError(t, err)
	assert.Equal(t, "claude-test", p.Model())
}
