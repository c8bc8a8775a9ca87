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

	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// varRefIter is a reference to a non-external variable. It returns the
// value the variable is currently bound to; the variable's producer
// writes that value directly into this iterator's result register.
//
// At the driver an implicit variable represents the rows arriving from
// the service, and every driver-side expression references it.
type varRefIter struct {
	planIterBase
	name string
}

func newVarRefIter(r *wire.Reader) (PlanIter, error) {
	it := &varRefIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	name, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	it.name = name
	return it, nil
}

func (it *varRefIter) Kind() Kind { return KindVarRef }

func (it *varRefIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	return nil
}

func (it *varRefIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}
	it.state = StateDone
	return true, nil
}

func (it *varRefIter) Reset() error {
	it.state = StateOpen
	return nil
}

func (it *varRefIter) Clone() PlanIter {
	return &varRefIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		name:         it.name,
	}
}

// Result clones: several expressions may reference the same variable,
// and the binding must survive each read.
func (it *varRefIter) Result(rt *Runtime) *types.Value {
	return rt.Reg(it.resultReg).Clone()
}
