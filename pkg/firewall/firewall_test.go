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
package firewall

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var fwErr *Error
	require.True(t, errors.As(err, &fwErr), "expected *firewall.Error, got %T: %v", err, err)
	assert.Equal(t, code, fwErr.Code)
	assert.NotEmpty(t, fwErr.Message)
}

func TestValidate_AppendsLimit(t *testing.T) {
	f := New(100)
	safe, err := f.Validate("SELECT * FROM orders")
	require.NoError(t, err)
	assert.Contains(t, safe, "LIMIT 100")
}

func TestValidate_PreservesSmallLimit(t *testing.T) {
	f := New(100)
	safe, err := f.Validate("SELECT * FROM orders LIMIT 50")
	require.NoError(t, err)
	assert.Contains(t, safe, "LIMIT 50")
	assert.NotContains(t, safe, "LIMIT 100")
}

func TestValidate_ReplacesOversizedLimit(t *testing.T) {
	f := New(100)
	safe, err := f.Validate("SELECT * FROM orders LIMIT 9999")
	require.NoError(t, err)
	assert.Contains(t, safe, "LIMIT 100")
	assert.NotContains(t, safe, "9999")
}

func TestValidate_LimitAtCapPreserved(t *testing.T) {
	f := New(100)
	safe, err := f.Validate("SELECT * FROM orders LIMIT 100")
	require.NoError(t, err)
	assert.Contains(t, safe, "LIMIT 100")
}

func TestValidate_NonLiteralLimitUnchanged(t *testing.T) {
	f := New(100)
	safe, err := f.Validate("SELECT * FROM orders LIMIT 10 + 20")
	require.NoError(t, err)
	assert.NotContains(t, safe, "LIMIT 100")

	// LIMIT ALL is a null constant, also left alone.
	safe, err = f.Validate("SELECT * FROM orders LIMIT ALL")
	require.NoError(t, err)
	assert.NotContains(t, safe, "LIMIT 100")
}

func TestValidate_EmptyInput(t *testing.T) {
	f := New(100)
	for _, input := range []string{"", "   ", "\n\t", ";"} {
		_, err := f.Validate(input)
		requireCode(t, err, CodeEmptySQL)
	}
}

func TestValidate_TrailingSemicolonStripped(t *testing.T) {
	f := New(100)
	safe, err := f.Validate("SELECT * FROM orders;")
	require.NoError(t, err)
	assert.Contains(t, safe, "LIMIT 100")
}

func TestValidate_BlockedStatements(t *testing.T) {
	f := New(100)
	cases := []string{
		"INSERT INTO orders (user_id) VALUES (1)",
		"UPDATE orders SET status = 'paid'",
		"DELETE FROM orders WHERE id = 1",
		"DROP TABLE orders",
		"CREATE TABLE t (id int)",
		"ALTER TABLE orders ADD COLUMN note text",
		"TRUNCATE orders",
		"GRANT SELECT ON orders TO public",
		"REVOKE SELECT ON orders FROM public",
		"SET search_path TO hidden",
		"CALL refresh_stats()",
		"DO $$ BEGIN PERFORM 1; END $$",
		"CREATE INDEX idx ON orders (id)",
		"CREATE VIEW v AS SELECT 1",
		"BEGIN",
		"SELECT * INTO backup_orders FROM orders",
		"COPY orders TO '/tmp/out.csv'",
	}
	for _, sql := range cases {
		_, err := f.Validate(sql)
		requireCode(t, err, CodeBlockedStatement)
	}
}

func TestValidate_NonSelect(t *testing.T) {
	f := New(100)
	for _, sql := range []string{
		"EXPLAIN SELECT * FROM orders",
		"SHOW search_path",
	} {
		_, err := f.Validate(sql)
		requireCode(t, err, CodeNonSelect)
	}
}

func TestValidate_BlockedFunctions(t *testing.T) {
	f := New(100)
	cases := []string{
		"SELECT pg_sleep(10)",
		"SELECT PG_SLEEP(10)",
		"SELECT pg_catalog.pg_sleep(10)",
		"SELECT pg_terminate_backend(123)",
		"SELECT pg_cancel_backend(123)",
		"SELECT lo_import('/etc/passwd')",
		"SELECT * FROM dblink('host=evil', 'SELECT 1') AS t(x int)",
		"SELECT name FROM users WHERE id = pg_sleep(1)::int",
	}
	for _, sql := range cases {
		_, err := f.Validate(sql)
		requireCode(t, err, CodeBlockedFunction)
	}
}

func TestValidate_SafeFunctionsPass(t *testing.T) {
	f := New(100)
	safe, err := f.Validate("SELECT COUNT(*), MAX(total_amount), NOW() FROM orders")
	require.NoError(t, err)
	assert.Contains(t, safe, "count")
}

func TestValidate_DataModifyingCTE(t *testing.T) {
	f := New(100)
	cases := []string{
		"WITH d AS (DELETE FROM x RETURNING id) SELECT * FROM d",
		"WITH u AS (UPDATE orders SET status = 'x' RETURNING id) SELECT * FROM u",
		"WITH i AS (INSERT INTO audit (msg) VALUES ('x') RETURNING id) SELECT * FROM i",
	}
	for _, sql := range cases {
		_, err := f.Validate(sql)
		requireCode(t, err, CodeBlockedSubquery)
	}
}

func TestValidate_DMLInExpressionPosition(t *testing.T) {
	// The strict PostgreSQL grammar refuses DML where an expression is
	// expected, so this hostile input fails at parse time. The universal
	// invariant holds: typed error, never a mutating pass-through.
	f := New(100)
	_, err := f.Validate("SELECT * FROM users WHERE id IN (DELETE FROM x RETURNING id)")
	requireCode(t, err, CodeParseError)
}

func TestValidate_ParseError(t *testing.T) {
	f := New(100)
	_, err := f.Validate("SELEKT * FORM orders")
	requireCode(t, err, CodeParseError)
}

func TestValidate_ReadOnlySubqueriesPass(t *testing.T) {
	f := New(100)
	safe, err := f.Validate("SELECT * FROM users WHERE id IN (SELECT user_id FROM orders)")
	require.NoError(t, err)
	assert.Contains(t, safe, "LIMIT 100")

	safe, err = f.Validate("WITH top AS (SELECT user_id FROM orders GROUP BY user_id) SELECT * FROM top")
	require.NoError(t, err)
	assert.NotEmpty(t, safe)
}

func TestValidate_MultiStatementSelects(t *testing.T) {
	f := New(100)
	safe, err := f.Validate("SELECT 1; SELECT * FROM orders LIMIT 5")
	require.NoError(t, err)
	parts := splitStatements(safe)
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0], "LIMIT 100")
	assert.Contains(t, parts[1], "LIMIT 5")
}

func TestValidate_MultiStatementWithMutationRejected(t *testing.T) {
	f := New(100)
	_, err := f.Validate("SELECT 1; DELETE FROM orders")
	requireCode(t, err, CodeBlockedStatement)
}

func TestValidate_UnionGetsLimit(t *testing.T) {
	f := New(100)
	safe, err := f.Validate("SELECT city FROM users UNION SELECT city FROM suppliers")
	require.NoError(t, err)
	assert.Contains(t, safe, "LIMIT 100")
}

func TestValidate_RoundTripIdempotent(t *testing.T) {
	f := New(100)
	inputs := []string{
		"SELECT * FROM orders",
		"SELECT city, COUNT(*) AS c FROM users GROUP BY city ORDER BY c DESC",
		"SELECT * FROM orders LIMIT 50",
		"SELECT 1; SELECT 2",
		"WITH top AS (SELECT user_id FROM orders) SELECT * FROM top",
	}
	for _, sql := range inputs {
		once, err := f.Validate(sql)
		require.NoError(t, err, sql)
		twice, err := f.Validate(once)
		require.NoError(t, err, once)
		assert.Equal(t, once, twice, "re-validating firewall output must be a fixed point")
	}
}

func TestNew_DefaultMaxRows(t *testing.T) {
	assert.Equal(t, DefaultMaxRows, New(0).MaxRows())
	assert.Equal(t, 42, New(42).MaxRows())
}

func TestErrorString(t *testing.T) {
	err := &Error{Code: CodeEmptySQL, Message: "SQL statement is empty"}
	assert.Equal(t, "EMPTY_SQL: SQL statement is empty", err.Error())
}

// splitStatements splits on the "; " join. Test inputs carry no semicolons
// inside string literals.
func splitStatements(sql string) []string {
	return strings.Split(sql, "; ")
}
