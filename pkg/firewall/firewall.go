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

// Package firewall validates untrusted SQL at the AST level using the real
// PostgreSQL parser. It admits only SELECT statements, rejects dangerous
// constructs with typed errors, and rewrites the tree to enforce a row cap
// before deparsing back to SQL.
//
// The firewall is purely syntactic and rejects anything it cannot classify
// as a read. The database session's read-only enforcement remains the
// authoritative barrier behind it.
package firewall

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"go.uber.org/zap"

	"github.com/teradata-labs/prism/internal/log"
)

// Error codes. These are part of the external event contract.
const (
	CodeEmptySQL         = "EMPTY_SQL"
	CodeParseError       = "PARSE_ERROR"
	CodeBlockedStatement = "BLOCKED_STATEMENT"
	CodeBlockedSubquery  = "BLOCKED_SUBQUERY"
	CodeBlockedFunction  = "BLOCKED_FUNCTION"
	CodeNonSelect        = "NON_SELECT"
	CodeValidationFailed = "VALIDATION_FAILED"
)

// DefaultMaxRows caps result sets when the query has no LIMIT of its own.
const DefaultMaxRows = 1000

const parseErrorLimit = 200

// Error is a typed validation failure.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// blockedFunctions are rejected wherever they appear, case-insensitively and
// with schema qualifiers stripped. Not exhaustive against a determined
// adversary; additions extend, never replace, the database-side controls.
var blockedFunctions = map[string]struct{}{
	"pg_sleep":             {},
	"pg_terminate_backend": {},
	"pg_cancel_backend":    {},
	"lo_import":            {},
	"lo_export":            {},
	"dblink":               {},
	"dblink_exec":          {},
	"copy":                 {},
}

// Firewall validates and rewrites SQL against a fixed row cap.
type Firewall struct {
	maxRows int
}

// New creates a firewall. maxRows <= 0 uses DefaultMaxRows.
func New(maxRows int) *Firewall {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Firewall{maxRows: maxRows}
}

// MaxRows returns the configured row cap.
func (f *Firewall) MaxRows() int {
	return f.maxRows
}

// Validate checks the SQL and returns the safe, row-capped form. A single
// statement or a semicolon-separated list is accepted as long as every
// element is a SELECT; multiple statements are re-joined with "; ".
func (f *Firewall) Validate(sql string) (string, error) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return "", &Error{Code: CodeEmptySQL, Message: "SQL statement is empty"}
	}
	sql = strings.TrimSpace(strings.TrimSuffix(sql, ";"))
	if sql == "" {
		return "", &Error{Code: CodeEmptySQL, Message: "SQL statement is empty"}
	}

	result, err := pg_query.Parse(sql)
	if err != nil {
		return "", &Error{Code: CodeParseError, Message: "SQL parse failed: " + truncate(err.Error(), parseErrorLimit)}
	}
	if len(result.Stmts) == 0 {
		return "", &Error{Code: CodeParseError, Message: "SQL contains no parseable statement"}
	}

	for _, raw := range result.Stmts {
		if raw.Stmt == nil {
			continue
		}
		if err := classifyTopLevel(raw.Stmt); err != nil {
			return "", err
		}
	}

	if err := walk(result); err != nil {
		return "", err
	}

	for _, raw := range result.Stmts {
		if sel := raw.Stmt.GetSelectStmt(); sel != nil {
			f.ensureLimit(sel)
		}
	}

	safe, err := deparse(result)
	if err != nil {
		return "", &Error{Code: CodeParseError, Message: "failed to serialize validated SQL: " + truncate(err.Error(), parseErrorLimit)}
	}

	log.Debug("SQL passed firewall", zap.String("sql", truncate(safe, 100)))
	return safe, nil
}

// classifyTopLevel rejects anything that is not a plain SELECT. Mutating
// statements and command forms get BLOCKED_STATEMENT; everything else
// non-SELECT (EXPLAIN, SHOW, ...) gets NON_SELECT.
func classifyTopLevel(node *pg_query.Node) error {
	blocked := func(keyword string) error {
		return &Error{
			Code:    CodeBlockedStatement,
			Message: fmt.Sprintf("%s statements are not allowed, only SELECT queries are permitted", keyword),
		}
	}

	switch node.Node.(type) {
	case *pg_query.Node_SelectStmt:
		if node.GetSelectStmt().GetIntoClause() != nil {
			return blocked("SELECT INTO")
		}
		return nil

	case *pg_query.Node_InsertStmt:
		return blocked("INSERT")
	case *pg_query.Node_UpdateStmt:
		return blocked("UPDATE")
	case *pg_query.Node_DeleteStmt:
		return blocked("DELETE")
	case *pg_query.Node_MergeStmt:
		return blocked("MERGE")

	case *pg_query.Node_DropStmt, *pg_query.Node_DropdbStmt, *pg_query.Node_DropRoleStmt,
		*pg_query.Node_DropOwnedStmt:
		return blocked("DROP")

	case *pg_query.Node_CreateStmt, *pg_query.Node_CreateTableAsStmt, *pg_query.Node_ViewStmt,
		*pg_query.Node_IndexStmt, *pg_query.Node_CreateSchemaStmt, *pg_query.Node_CreateSeqStmt,
		*pg_query.Node_CreatedbStmt, *pg_query.Node_CreateRoleStmt, *pg_query.Node_CreateFunctionStmt,
		*pg_query.Node_CreateExtensionStmt, *pg_query.Node_CreateTrigStmt, *pg_query.Node_DefineStmt,
		*pg_query.Node_RuleStmt, *pg_query.Node_CompositeTypeStmt, *pg_query.Node_CreateDomainStmt,
		*pg_query.Node_CreateEnumStmt:
		return blocked("CREATE")

	case *pg_query.Node_AlterTableStmt, *pg_query.Node_AlterDomainStmt, *pg_query.Node_RenameStmt,
		*pg_query.Node_AlterOwnerStmt, *pg_query.Node_AlterObjectSchemaStmt, *pg_query.Node_AlterSeqStmt,
		*pg_query.Node_AlterRoleStmt, *pg_query.Node_AlterDatabaseStmt, *pg_query.Node_AlterDatabaseSetStmt,
		*pg_query.Node_AlterFunctionStmt, *pg_query.Node_AlterSystemStmt:
		return blocked("ALTER")

	case *pg_query.Node_TruncateStmt:
		return blocked("TRUNCATE")
	case *pg_query.Node_GrantStmt, *pg_query.Node_GrantRoleStmt:
		return blocked("GRANT/REVOKE")
	case *pg_query.Node_CopyStmt:
		return blocked("COPY")
	case *pg_query.Node_CallStmt:
		return blocked("CALL")
	case *pg_query.Node_DoStmt:
		return blocked("DO")
	case *pg_query.Node_VariableSetStmt:
		return blocked("SET")
	case *pg_query.Node_LockStmt:
		return blocked("LOCK")
	case *pg_query.Node_VacuumStmt:
		return blocked("VACUUM")
	case *pg_query.Node_ClusterStmt:
		return blocked("CLUSTER")
	case *pg_query.Node_ReindexStmt:
		return blocked("REINDEX")
	case *pg_query.Node_RefreshMatViewStmt:
		return blocked("REFRESH MATERIALIZED VIEW")
	case *pg_query.Node_TransactionStmt:
		return blocked("TRANSACTION CONTROL")
	case *pg_query.Node_PrepareStmt, *pg_query.Node_ExecuteStmt, *pg_query.Node_DeallocateStmt:
		return blocked("PREPARE/EXECUTE")
	case *pg_query.Node_DeclareCursorStmt, *pg_query.Node_FetchStmt, *pg_query.Node_ClosePortalStmt:
		return blocked("CURSOR")
	case *pg_query.Node_NotifyStmt, *pg_query.Node_ListenStmt, *pg_query.Node_UnlistenStmt:
		return blocked("LISTEN/NOTIFY")
	case *pg_query.Node_CommentStmt, *pg_query.Node_SecLabelStmt:
		return blocked("COMMENT")
	case *pg_query.Node_LoadStmt:
		return blocked("LOAD")
	case *pg_query.Node_DiscardStmt:
		return blocked("DISCARD")
	case *pg_query.Node_CheckPointStmt:
		return blocked("CHECKPOINT")
	case *pg_query.Node_ImportForeignSchemaStmt:
		return blocked("IMPORT FOREIGN SCHEMA")

	default:
		return &Error{
			Code:    CodeNonSelect,
			Message: fmt.Sprintf("unsupported statement type %s, only SELECT queries are permitted", nodeTypeName(node)),
		}
	}
}

// ensureLimit appends LIMIT maxRows when the SELECT has none and lowers an
// integer-literal LIMIT above the cap. Non-literal limit expressions and
// LIMIT ALL are left alone; the execution timeout is the backstop there.
func (f *Firewall) ensureLimit(sel *pg_query.SelectStmt) {
	if sel.LimitCount == nil {
		sel.LimitCount = intConst(f.maxRows)
		sel.LimitOption = pg_query.LimitOption_LIMIT_OPTION_COUNT
		return
	}

	ac := sel.LimitCount.GetAConst()
	if ac == nil || ac.Isnull || ac.GetIval() == nil {
		return
	}
	if int(ac.GetIval().Ival) > f.maxRows {
		sel.LimitCount = intConst(f.maxRows)
	}
}

func intConst(v int) *pg_query.Node {
	return &pg_query.Node{Node: &pg_query.Node_AConst{AConst: &pg_query.A_Const{
		Val:      &pg_query.A_Const_Ival{Ival: &pg_query.Integer{Ival: int32(v)}},
		Location: -1,
	}}}
}

// deparse serializes each statement separately and joins with "; " so the
// multi-statement form is stable regardless of parser internals.
func deparse(result *pg_query.ParseResult) (string, error) {
	parts := make([]string, 0, len(result.Stmts))
	for _, raw := range result.Stmts {
		if raw.Stmt == nil {
			continue
		}
		single := &pg_query.ParseResult{
			Version: result.Version,
			Stmts:   []*pg_query.RawStmt{{Stmt: raw.Stmt}},
		}
		out, err := pg_query.Deparse(single)
		if err != nil {
			return "", err
		}
		parts = append(parts, out)
	}
	return strings.Join(parts, "; "), nil
}

func nodeTypeName(node *pg_query.Node) string {
	name := fmt.Sprintf("%T", node.Node)
	name = strings.TrimPrefix(name, "*pg_query.Node_")
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
