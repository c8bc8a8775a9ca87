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
	"sort"

	"github.com/google/btree"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// collectIter implements the array_collect and array_collect_distinct
// aggregates. Each input is a partial array computed at the service;
// the iterator concatenates them, deduplicating when distinct.
type collectIter struct {
	planIterBase
	isDistinct bool
	input      PlanIter

	array []*types.Value
	set   *btree.BTreeG[*types.Value]
}

func newCollectIter(r *wire.Reader) (PlanIter, error) {
	it := &collectIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	var err error
	if it.isDistinct, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if it.input, err = deserializeIter(r); err != nil {
		return nil, err
	}
	if it.isDistinct {
		it.set = newValueSet()
	}
	return it, nil
}

func newValueSet() *btree.BTreeG[*types.Value] {
	return btree.NewG(8, func(a, b *types.Value) bool {
		return types.Compare(a, b) < 0
	})
}

func (it *collectIter) Kind() Kind { return KindCollect }

func (it *collectIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	return it.input.Open(ctx, rt)
}

func (it *collectIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}
	for {
		more, err := it.input.Next(ctx, rt)
		if err != nil {
			return false, err
		}
		if !more {
			return true, nil
		}
		v := it.input.Result(rt)
		if err := it.aggregate(v); err != nil {
			return false, err
		}
	}
}

func (it *collectIter) aggregate(v *types.Value) error {
	if v == nil || v.IsNull() {
		return nil
	}
	if v.Type() != types.Array {
		return lderrors.Errorf(lderrors.IllegalState,
			"input to an array_collect aggregate has wrong type: expected an array, got %s at %v",
			v.Type(), it.loc)
	}
	for _, elem := range v.Values() {
		if it.isDistinct {
			it.set.ReplaceOrInsert(elem)
		} else {
			it.array = append(it.array, elem)
		}
	}
	return nil
}

// Reset resets the input only; the collected values are handed out and
// cleared by AggrValue when a group completes.
func (it *collectIter) Reset() error {
	return it.input.Reset()
}

func (it *collectIter) Clone() PlanIter {
	c := &collectIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		isDistinct:   it.isDistinct,
		input:        it.input.Clone(),
	}
	if c.isDistinct {
		c.set = newValueSet()
	}
	return c
}

func (it *collectIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}

func (it *collectIter) AggrValue(rt *Runtime, reset bool) (*types.Value, error) {
	vals := it.array
	if it.isDistinct {
		it.set.Ascend(func(v *types.Value) bool {
			vals = append(vals, v)
			return true
		})
		it.set.Clear(false)
	}
	sort.SliceStable(vals, func(i, j int) bool {
		return types.Compare(vals[i], vals[j]) > 0
	})
	it.array = nil
	return types.NewArray(vals), nil
}
