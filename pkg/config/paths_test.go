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
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPrismDataDir(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("PRISM_DATA_DIR", dir)
		assert.Equal(t, dir, GetPrismDataDir())
	})

	t.Run("tilde expansion", func(t *testing.T) {
		t.Setenv("PRISM_DATA_DIR", "~/prism-data")
		home, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "prism-data"), GetPrismDataDir())
	})

	t.Run("relative path resolved", func(t *testing.T) {
		t.Setenv("PRISM_DATA_DIR", "relative/prism")
		assert.True(t, filepath.IsAbs(GetPrismDataDir()))
	})

	t.Run("default under home", func(t *testing.T) {
		t.Setenv("PRISM_DATA_DIR", "")
		home, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".prism"), GetPrismDataDir())
	})
}

func TestGetPrismSubDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PRISM_DATA_DIR", dir)
	assert.Equal(t, filepath.Join(dir, "index"), GetPrismSubDir("index"))
}
