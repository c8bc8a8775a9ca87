/*
Copyright 2026 The Lodestone Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package driver

import (
	"fmt"

	"lodestone.io/lodestone/go/ld/engine"
	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
)

// PreparedStatement is a query statement compiled at the service. The
// opaque statement bytes go back to the service with every batch; for
// advanced queries the statement also carries the deserialized
// driver-side plan and the external-variable table.
//
// A PreparedStatement may be shared across query requests; each
// request clones the plan tree before executing it, so accumulator
// state never leaks between executions.
type PreparedStatement struct {
	// statement is the serialized form created at the service. The
	// driver treats it as opaque.
	statement []byte

	tableName string
	namespace string
	queryPlan string
	// querySchema is the string form of the result schema, if the
	// service returned one.
	querySchema string
	operation   int

	plan     *engine.Plan
	topology *engine.Topology

	bindVariables map[string]*types.Value
}

// IsSimple reports whether the query executes entirely at the service.
// Simple queries have no driver-side plan; their results come straight
// off the wire.
func (ps *PreparedStatement) IsSimple() bool {
	return ps == nil || ps.plan == nil || ps.plan.Root == nil
}

func (ps *PreparedStatement) isEmpty() bool { return ps == nil || len(ps.statement) == 0 }

// TableName is the table the query targets, as reported by the
// service.
func (ps *PreparedStatement) TableName() string { return ps.tableName }

// QueryPlan is the string form of the full query plan, when the
// service returned one.
func (ps *PreparedStatement) QueryPlan() string { return ps.queryPlan }

// SetVariable binds an external variable by name for the next
// execution.
func (ps *PreparedStatement) SetVariable(name string, v *types.Value) error {
	if ps.isEmpty() {
		return lderrors.New(lderrors.IllegalArgument, "cannot set bind variables: statement is not prepared")
	}
	if ps.bindVariables == nil {
		ps.bindVariables = make(map[string]*types.Value)
	}
	ps.bindVariables[name] = v
	return nil
}

// SetVariableByID binds a positional external variable. Positional
// variables are named "#n" in the compiled plan.
func (ps *PreparedStatement) SetVariableByID(id int, v *types.Value) error {
	return ps.SetVariable(fmt.Sprintf("#%d", id), v)
}

// ClearVariables drops all bindings.
func (ps *PreparedStatement) ClearVariables() { ps.bindVariables = nil }

// ExternalVar resolves a variable id to its bound value, or nil when
// the variable has not been bound. It implements engine.VarResolver.
func (ps *PreparedStatement) ExternalVar(id int) *types.Value {
	if ps.plan != nil {
		for name, varID := range ps.plan.VariableToIDs {
			if varID == id {
				if v, ok := ps.bindVariables[name]; ok {
					return v
				}
				break
			}
		}
	}
	// positional bindings are keyed by id directly
	return ps.bindVariables[fmt.Sprintf("#%d", id)]
}

// copyForInternal strips the statement down to what an internal
// sub-request needs: the opaque statement bytes and the current
// bindings. The plan tree stays with the outer request.
func (ps *PreparedStatement) copyForInternal() *PreparedStatement {
	vars := make(map[string]*types.Value, len(ps.bindVariables))
	for k, v := range ps.bindVariables {
		vars[k] = v
	}
	return &PreparedStatement{
		statement:     ps.statement,
		bindVariables: vars,
	}
}

var _ engine.VarResolver = (*PreparedStatement)(nil)
