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

// sizeIter implements the size() function over arrays and maps.
type sizeIter struct {
	planIterBase
	input PlanIter
}

func newSizeIter(r *wire.Reader) (PlanIter, error) {
	it := &sizeIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	input, err := deserializeIter(r)
	if err != nil {
		return nil, err
	}
	it.input = input
	return it, nil
}

func (it *sizeIter) Kind() Kind { return KindSize }

func (it *sizeIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	return it.input.Open(ctx, rt)
}

func (it *sizeIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}
	more, err := it.input.Next(ctx, rt)
	if err != nil {
		return false, err
	}
	if !more {
		it.state = StateDone
		return false, nil
	}
	v := it.input.Result(rt)
	if v.IsNull() {
		it.setResult(rt, types.NullValue())
		it.state = StateDone
		return true, nil
	}
	if v.IsAtomic() {
		return false, lderrors.Errorf(lderrors.IllegalArgument,
			"input to the size() function has wrong type: expected a complex type, got %s at %v",
			v.Type(), it.loc)
	}
	it.setResult(rt, types.NewLong(int64(v.Len())))
	return true, nil
}

func (it *sizeIter) Reset() error {
	it.state = StateOpen
	return it.input.Reset()
}

func (it *sizeIter) Clone() PlanIter {
	return &sizeIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		input:        it.input.Clone(),
	}
}

func (it *sizeIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}
