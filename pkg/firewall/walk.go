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
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/reflect/protopath"
	"google.golang.org/protobuf/reflect/protorange"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// walk scans the full parse tree for constructs the top-level classification
// cannot see: data-modifying statements nested inside the query (CTEs and
// similar) and calls to blocklisted functions. Top-level statements have
// already been verified to be SELECTs, so any mutating node found here is
// nested by construction.
func walk(result *pg_query.ParseResult) error {
	return protorange.Range(result.ProtoReflect(), func(p protopath.Values) error {
		m, ok := p.Index(-1).Value.Interface().(protoreflect.Message)
		if !ok {
			return nil
		}

		switch node := m.Interface().(type) {
		case *pg_query.InsertStmt, *pg_query.UpdateStmt, *pg_query.DeleteStmt, *pg_query.MergeStmt:
			return &Error{
				Code:    CodeBlockedSubquery,
				Message: "nested data-modifying statement is not allowed",
			}

		case *pg_query.FuncCall:
			if name := funcName(node); isBlockedFunction(name) {
				return &Error{
					Code:    CodeBlockedFunction,
					Message: fmt.Sprintf("call to blocked function %q is not allowed", name),
				}
			}
		}
		return nil
	})
}

// funcName extracts the unqualified, lowercased function name. Qualified
// names parse as a list of String nodes; the last element is the function.
func funcName(fc *pg_query.FuncCall) string {
	if len(fc.Funcname) == 0 {
		return ""
	}
	last := fc.Funcname[len(fc.Funcname)-1]
	s := last.GetString_()
	if s == nil {
		return ""
	}
	return strings.ToLower(s.Sval)
}

func isBlockedFunction(name string) bool {
	_, blocked := blockedFunctions[name]
	return blocked
}
