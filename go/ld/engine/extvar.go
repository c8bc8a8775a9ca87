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

package engine

import (
	"context"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// extVarIter is a reference to an external variable, one the
// application binds on the request before execution. The id indexes
// the request's bound-variable table.
type extVarIter struct {
	planIterBase
	name string
	id   int
}

func newExtVarIter(r *wire.Reader) (PlanIter, error) {
	it := &extVarIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	it.name = name
	if it.id, err = r.ReadIntMin(0); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *extVarIter) Kind() Kind { return KindExtVar }

func (it *extVarIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	return nil
}

func (it *extVarIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}
	v := rt.ExternalVar(it.id)
	if v == nil {
		return false, lderrors.Errorf(lderrors.IllegalArgument,
			"variable %s (id %d) has not been bound", it.name, it.id)
	}
	it.setResult(rt, v.Clone())
	it.state = StateDone
	return true, nil
}

func (it *extVarIter) Reset() error {
	it.state = StateOpen
	return nil
}

func (it *extVarIter) Clone() PlanIter {
	return &extVarIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		name:         it.name,
		id:           it.id,
	}
}

func (it *extVarIter) Result(rt *Runtime) *types.Value {
	return rt.Reg(it.resultReg).Clone()
}
