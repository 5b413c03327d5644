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

// Package executor runs firewall-validated SQL inside a read-only
// transaction and marshals rows into JSON-safe tabular results.
package executor

import (
	"context"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
	"github.com/teradata-labs/prism/internal/pgxdriver"
)

// Executor executes queries on a pool whose sessions are read-only.
// It never retries; driver errors surface to the caller unchanged.
type Executor struct {
	pool *pgxpool.Pool

	// statementTimeout is applied server-side per transaction, mirroring
	// the client-side context deadline.
	statementTimeout time.Duration
}

// New creates an executor. statementTimeout <= 0 disables the server-side
// statement_timeout (the caller's context deadline still applies).
func New(pool *pgxpool.Pool, statementTimeout time.Duration) *Executor {
	return &Executor{pool: pool, statementTimeout: statementTimeout}
}

// Execute runs the SQL in a read-only transaction. Wall-clock time is
// measured from just before execute to just after the last row is fetched.
func (e *Executor) Execute(ctx context.Context, sql string) (*QueryResult, error) {
	var result *QueryResult

	err := pgxdriver.WithReadOnlyTx(ctx, e.pool, e.statementTimeout, func(ctx context.Context, tx pgx.Tx) error {
		start := time.Now()

		rows, err := tx.Query(ctx, sql)
		if err != nil {
			return err
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		columns := make([]string, len(fields))
		for i, fd := range fields {
			columns[i] = fd.Name
		}

		out := make([][]any, 0, 64)
		for rows.Next() {
			values, err := rows.Values()
			if err != nil {
				return err
			}
			cells := make([]any, len(values))
			for i, v := range values {
				cells[i] = coerceCell(v)
			}
			out = append(out, cells)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		elapsed := time.Since(start)
		result = &QueryResult{
			Columns:         columns,
			Rows:            out,
			RowCount:        len(out),
			ExecutionTimeMS: roundMS(elapsed),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("SQL executed",
		zap.Int("rows", result.RowCount),
		zap.Float64("elapsed_ms", result.ExecutionTimeMS))
	return result, nil
}

func roundMS(d time.Duration) float64 {
	ms := float64(d.Microseconds()) / 1000.0
	return math.Round(ms*100) / 100
}
