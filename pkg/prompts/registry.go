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
package prompts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/prism/internal/log"
)

// Registry serves the system prompt. Without an override directory it
// renders the built-in template; with one it loads system.yaml (or
// system.yml) and can hot-reload it on file changes.
//
// Override file format:
//
//	---
//	key: query.system
//	version: 1.0.0
//	description: customized analyst prompt
//	---
//	You are a data analyst... {{.schema_context}} ...
type Registry struct {
	dir string

	mu     sync.RWMutex
	system string
}

// promptMetadata is the YAML frontmatter of an override file.
type promptMetadata struct {
	Key         string `yaml:"key"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// NewRegistry creates a registry. dir may be empty, in which case only the
// built-in prompt is used. A broken or missing override file falls back to
// the built-in prompt rather than failing startup.
func NewRegistry(dir string) *Registry {
	r := &Registry{dir: dir, system: builtinSystem}
	if err := r.Reload(); err != nil {
		log.Warn("prompt override not loaded, using built-in prompt",
			zap.String("dir", dir), zap.Error(err))
	}
	return r
}

// System renders the system prompt for one query. An empty schemaContext
// renders the fallback notice instead of an empty section.
func (r *Registry) System(schemaContext string) string {
	if strings.TrimSpace(schemaContext) == "" {
		schemaContext = noSchemaFallback
	}

	r.mu.RLock()
	tmpl := r.system
	r.mu.RUnlock()

	return Interpolate(tmpl, map[string]string{"schema_context": schemaContext})
}

// Reload re-reads the override file. With no directory configured it
// restores the built-in prompt.
func (r *Registry) Reload() error {
	content, err := r.loadOverride()
	if err != nil {
		return err
	}
	if content == "" {
		content = builtinSystem
	}

	r.mu.Lock()
	r.system = content
	r.mu.Unlock()
	return nil
}

// loadOverride returns the override content, or "" when no override file
// exists.
func (r *Registry) loadOverride() (string, error) {
	if r.dir == "" {
		return "", nil
	}

	var path string
	for _, name := range []string{"system.yaml", "system.yml"} {
		candidate := filepath.Join(r.dir, name)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
	}
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	// Frontmatter is delimited by "---" lines, like every prompt file.
	parts := strings.SplitN(string(data), "---", 3)
	if len(parts) < 3 {
		return "", fmt.Errorf("%s: expected YAML frontmatter with --- separator", path)
	}

	var meta promptMetadata
	if err := yaml.Unmarshal([]byte(parts[1]), &meta); err != nil {
		return "", fmt.Errorf("%s: parse frontmatter: %w", path, err)
	}
	if meta.Key != SystemKey {
		return "", fmt.Errorf("%s: key %q, want %q", path, meta.Key, SystemKey)
	}

	content := strings.TrimSpace(parts[2])
	if content == "" {
		return "", fmt.Errorf("%s: empty prompt body", path)
	}
	if !strings.Contains(content, "{{.schema_context}}") {
		log.Warn("prompt override has no {{.schema_context}} placeholder, schema will not reach the model",
			zap.String("path", path))
	}

	log.Info("loaded prompt override",
		zap.String("path", path), zap.String("version", meta.Version))
	return content, nil
}

// Watch reloads the override whenever a YAML file in the override directory
// changes. It returns immediately; the watch goroutine stops when ctx is
// cancelled. Calling Watch with no override directory is a no-op.
func (r *Registry) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
					continue
				}
				if err := r.Reload(); err != nil {
					log.Error("prompt reload failed", zap.String("file", event.Name), zap.Error(err))
					continue
				}
				log.Info("prompt reloaded", zap.String("file", event.Name), zap.String("op", event.Op.String()))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error("prompt watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
