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

// constIter is a reference to a constant in the query text. Constants
// are evaluated at the driver when they appear in clauses the driver
// executes, such as OFFSET or LIMIT.
type constIter struct {
	planIterBase
	value *types.Value
}

func newConstIter(r *wire.Reader) (PlanIter, error) {
	it := &constIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	v, err := r.ReadFieldValue()
	if err != nil {
		return nil, err
	}
	it.value = v
	return it, nil
}

func (it *constIter) Kind() Kind { return KindConst }

func (it *constIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	it.setResult(rt, it.value.Clone())
	return nil
}

func (it *constIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}
	it.state = StateDone
	return true, nil
}

func (it *constIter) Reset() error {
	it.state = StateOpen
	return nil
}

func (it *constIter) Clone() PlanIter {
	return &constIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		value:        it.value.Clone(),
	}
}

func (it *constIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}
