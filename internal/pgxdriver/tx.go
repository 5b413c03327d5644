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
package pgxdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SetStatementTimeout sets a statement timeout for the current transaction.
// Must be called within a transaction; uses set_config with is_local=true so
// the setting is automatically cleared when the transaction ends.
func SetStatementTimeout(ctx context.Context, tx pgx.Tx, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	ms := fmt.Sprintf("%d", timeout.Milliseconds())
	_, err := tx.Exec(ctx, "SELECT set_config('statement_timeout', $1, true)", ms)
	if err != nil {
		return fmt.Errorf("failed to set statement timeout: %w", err)
	}
	return nil
}

// WithReadOnlyTx begins a read-only transaction with an optional statement
// timeout, executes fn, and commits. If fn returns an error, the transaction
// is rolled back.
func WithReadOnlyTx(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is no-op

	if err := SetStatementTimeout(ctx, tx, timeout); err != nil {
		return err
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
