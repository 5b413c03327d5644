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

// Package limiter enforces the two per-run resource controls: a per-client
// sliding-window rate cap and a per-query execution deadline.
//
// The window is process-local (a single mutex over one timestamp map) by
// design; distributing rate state is out of scope.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Error codes. Part of the external event contract.
const (
	CodeRateLimit    = "RATE_LIMIT"
	CodeQueryTimeout = "QUERY_TIMEOUT"
)

const (
	// DefaultPerMinute is the per-client admission cap.
	DefaultPerMinute = 30

	// DefaultTimeout bounds one query execution.
	DefaultTimeout = 30 * time.Second

	// window is the sliding interval rate slots live in.
	window = time.Minute
)

// Error is a typed limiter rejection.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Config configures the limiter.
type Config struct {
	PerMinute int
	Timeout   time.Duration
}

// Limiter tracks request timestamps per client id. The mutex covers trim,
// check, and append together, so admission is atomic under concurrency.
type Limiter struct {
	mu         sync.Mutex
	perMinute  int
	timeout    time.Duration
	timestamps map[string][]time.Time
	now        func() time.Time
}

// New creates a limiter, using defaults for unset fields.
func New(cfg Config) *Limiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = DefaultPerMinute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Limiter{
		perMinute:  cfg.PerMinute,
		timeout:    cfg.Timeout,
		timestamps: make(map[string][]time.Time),
		now:        time.Now,
	}
}

// Timeout returns the per-query deadline.
func (l *Limiter) Timeout() time.Duration {
	return l.timeout
}

// CheckRate admits or rejects one request for the client. Expired entries
// are trimmed on every check; a slot is consumed at admission and is never
// returned, regardless of how the request ends.
func (l *Limiter) CheckRate(clientID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)

	kept := l.timestamps[clientID][:0]
	for _, ts := range l.timestamps[clientID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps[clientID] = kept

	if len(kept) >= l.perMinute {
		return &Error{
			Code:    CodeRateLimit,
			Message: fmt.Sprintf("rate limit exceeded: at most %d queries per minute, try again later", l.perMinute),
		}
	}

	l.timestamps[clientID] = append(kept, now)
	return nil
}

// ExecuteWithTimeout runs fn under the configured deadline. The derived
// context is cancelled on return, so drivers interrupt in-flight work rather
// than abandoning it. A fired deadline maps to a QUERY_TIMEOUT error; a
// cancelled parent context passes through untranslated so callers can treat
// caller disconnects as silence, not failure.
func (l *Limiter) ExecuteWithTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	execCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	err := fn(execCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
		return &Error{
			Code:    CodeQueryTimeout,
			Message: fmt.Sprintf("query timed out after %s, simplify the query or raise sql.timeout_ms", l.timeout),
		}
	}
	return err
}
