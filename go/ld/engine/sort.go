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

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// sortIter sorts rows by a set of top-level fields. It buffers its
// whole input, so it only starts emitting once the input is exhausted;
// if the batch limit was reached mid-input it suspends and resumes
// buffering in the next batch.
type sortIter struct {
	planIterBase
	input       PlanIter
	sortFields  []string
	sortSpecs   []types.SortSpec
	countMemory bool

	rows    []*types.MapValue
	current int
}

func newSortIter(r *wire.Reader, kind Kind) (PlanIter, error) {
	it := &sortIter{countMemory: true}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	var err error
	if it.input, err = deserializeIter(r); err != nil {
		return nil, err
	}
	if it.sortFields, err = r.ReadStringArray(); err != nil {
		return nil, err
	}
	if it.sortSpecs, err = readSortSpecs(r); err != nil {
		return nil, err
	}
	if kind == KindSorting2 {
		if it.countMemory, err = r.ReadBool(); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func (it *sortIter) Kind() Kind { return KindSorting }

func (it *sortIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	return it.input.Open(ctx, rt)
}

func (it *sortIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}

	if it.state == StateOpen {
		for {
			more, err := it.input.Next(ctx, rt)
			if err != nil {
				return false, err
			}
			if !more {
				break
			}
			v := it.input.Result(rt)
			if v == nil || v.Type() != types.Map {
				return false, lderrors.Errorf(lderrors.IllegalState, "input to a sort step is not a map at %v", it.loc)
			}
			mv := v.Map()
			for _, f := range it.sortFields {
				if fv, ok := mv.Get(f); ok && !fv.IsAtomic() {
					return false, lderrors.Errorf(lderrors.IllegalArgument,
						"sort expression at %v does not return a single atomic value", it.loc)
				}
			}
			it.rows = append(it.rows, mv)
		}

		if rt.ReachedLimit() {
			// suspend; the rest of the input arrives in the next batch
			return false, nil
		}

		sort.SliceStable(it.rows, func(i, j int) bool {
			return types.CompareRows(it.rows[i], it.rows[j], it.sortFields, it.sortSpecs) < 0
		})
		it.state = StateRunning
	}

	if it.current < len(it.rows) {
		mv := it.rows[it.current]
		it.rows[it.current] = nil
		it.current++
		mv.ConvertEmptyToNull()
		it.setResult(rt, types.NewMap(mv))
		return true, nil
	}

	it.state = StateDone
	return false, nil
}

func (it *sortIter) Reset() error {
	it.state = StateUninitialized
	it.rows = nil
	it.current = 0
	return it.input.Reset()
}

func (it *sortIter) Clone() PlanIter {
	return &sortIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		input:        it.input.Clone(),
		sortFields:   it.sortFields,
		sortSpecs:    it.sortSpecs,
		countMemory:  it.countMemory,
	}
}

func (it *sortIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}
