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

// fieldStepIter selects one field out of each map produced by its
// input. Atomic inputs and maps without the field are skipped; a Null
// input propagates as Null.
type fieldStepIter struct {
	planIterBase
	input PlanIter
	field string
}

func newFieldStepIter(r *wire.Reader) (PlanIter, error) {
	it := &fieldStepIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	input, err := deserializeIter(r)
	if err != nil {
		return nil, err
	}
	it.input = input
	if it.field, err = r.ReadString(); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *fieldStepIter) Kind() Kind { return KindFieldStep }

func (it *fieldStepIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	return it.input.Open(ctx, rt)
}

func (it *fieldStepIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}
	for {
		more, err := it.input.Next(ctx, rt)
		if err != nil {
			return false, err
		}
		if !more {
			it.state = StateDone
			return false, nil
		}
		v := it.input.Result(rt)
		if v == nil {
			it.state = StateDone
			return false, nil
		}
		if v.IsNull() {
			it.setResult(rt, v)
			return true, nil
		}
		if v.IsAtomic() {
			continue
		}
		if v.Type() != types.Map {
			return false, lderrors.Errorf(lderrors.IllegalArgument,
				"input to a field step has wrong type: expected a map, got %s at %v",
				v.Type(), it.loc)
		}
		res, ok := v.Map().Get(it.field)
		if !ok {
			continue
		}
		it.setResult(rt, res.Clone())
		return true, nil
	}
}

func (it *fieldStepIter) Reset() error {
	it.state = StateOpen
	return it.input.Reset()
}

func (it *fieldStepIter) Clone() PlanIter {
	return &fieldStepIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		input:        it.input.Clone(),
		field:        it.field,
	}
}

func (it *fieldStepIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}
