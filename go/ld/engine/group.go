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

	"github.com/cockroachdb/apd/v3"
	"github.com/google/btree"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// groupIter regroups and re-aggregates the partial groups computed at
// the service. Each shard or partition groups only the rows it owns,
// so the same grouping key can arrive more than once; this iterator
// merges them. It also implements SELECT DISTINCT, which is grouping
// with no aggregate columns.
//
// The first numGBColumns of columnNames are the grouping columns; the
// rest are aggregates, one function code each.
type groupIter struct {
	planIterBase
	input                PlanIter
	numGBColumns         int
	columnNames          []string
	aggrFuncs            []int
	isDistinct           bool
	removeProducedResult bool
	countMemory          bool

	groups       *btree.BTreeG[*groupEntry]
	resultsValid bool
}

type groupEntry struct {
	key   []*types.Value
	aggrs []*aggrValue
}

func compareTuples(a, b []*types.Value) int {
	for i := range a {
		if i >= len(b) {
			return 1
		}
		if c := types.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	if len(a) < len(b) {
		return -1
	}
	return 0
}

func newGroupIter(r *wire.Reader) (PlanIter, error) {
	it := &groupIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	var err error
	if it.input, err = deserializeIter(r); err != nil {
		return nil, err
	}
	if it.numGBColumns, err = r.ReadIntMin(0); err != nil {
		return nil, err
	}
	if it.columnNames, err = r.ReadStringArray(); err != nil {
		return nil, err
	}
	numAggrs := len(it.columnNames) - it.numGBColumns
	if numAggrs < 0 {
		return nil, lderrors.New(lderrors.BadProtocolMessage, "grouping columns exceed column count")
	}
	it.aggrFuncs = make([]int, numAggrs)
	for i := 0; i < numAggrs; i++ {
		code, err := r.ReadInt16()
		if err != nil {
			return nil, err
		}
		it.aggrFuncs[i] = int(code)
	}
	if it.isDistinct, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if it.removeProducedResult, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if it.countMemory, err = r.ReadBool(); err != nil {
		return nil, err
	}
	it.groups = newGroupTree()
	return it, nil
}

func newGroupTree() *btree.BTreeG[*groupEntry] {
	return btree.NewG(8, func(a, b *groupEntry) bool {
		return compareTuples(a.key, b.key) < 0
	})
}

func (it *groupIter) Kind() Kind { return KindGroup }

func (it *groupIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	return it.input.Open(ctx, rt)
}

func (it *groupIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}

	for {
		if it.resultsValid {
			entry, ok := it.groups.DeleteMin()
			if !ok {
				it.done()
				return false, nil
			}
			mv := types.NewMapValue()
			for i := 0; i < it.numGBColumns; i++ {
				mv.Put(it.columnNames[i], entry.key[i])
			}
			for i := it.numGBColumns; i < len(it.columnNames); i++ {
				mv.Put(it.columnNames[i], entry.aggrs[i-it.numGBColumns].finalValue())
			}
			it.setResult(rt, types.NewMap(mv))
			return true, nil
		}

		more, err := it.input.Next(ctx, rt)
		if err != nil {
			return false, err
		}
		if !more {
			if rt.ReachedLimit() {
				// suspend keeping the partial groups
				return false, nil
			}
			if it.numGBColumns == len(it.columnNames) {
				it.done()
				return false, nil
			}
			it.resultsValid = true
			continue
		}

		v := it.input.Result(rt)
		if v == nil || v.Type() != types.Map {
			return false, lderrors.Errorf(lderrors.IllegalState, "input to a grouping step is not a map at %v", it.loc)
		}
		row := v.Map()

		key := make([]*types.Value, 0, it.numGBColumns)
		skip := false
		for i := 0; i < it.numGBColumns; i++ {
			col, ok := row.Get(it.columnNames[i])
			if !ok {
				if !it.isDistinct {
					skip = true
					break
				}
				col = types.NullValue()
			}
			key = append(key, col.Clone())
		}
		if skip {
			continue
		}

		if entry, ok := it.groups.Get(&groupEntry{key: key}); ok {
			for i := it.numGBColumns; i < len(it.columnNames); i++ {
				col, _ := row.Get(it.columnNames[i])
				if err := it.aggregate(entry.aggrs[i-it.numGBColumns], col); err != nil {
					return false, err
				}
			}
			continue
		}

		entry := &groupEntry{key: key, aggrs: make([]*aggrValue, len(it.aggrFuncs))}
		for i, fn := range it.aggrFuncs {
			entry.aggrs[i] = newAggrValue(fn)
		}
		for i := it.numGBColumns; i < len(it.columnNames); i++ {
			col, _ := row.Get(it.columnNames[i])
			if err := it.aggregate(entry.aggrs[i-it.numGBColumns], col); err != nil {
				return false, err
			}
		}
		it.groups.ReplaceOrInsert(entry)

		// a pure DISTINCT emits each new key as soon as it is seen
		if it.numGBColumns == len(it.columnNames) {
			mv := types.NewMapValue()
			for i := 0; i < it.numGBColumns; i++ {
				mv.Put(it.columnNames[i], key[i].Clone())
			}
			it.setResult(rt, types.NewMap(mv))
			return true, nil
		}
	}
}

func (it *groupIter) done() {
	it.state = StateDone
	it.groups.Clear(false)
	it.resultsValid = false
}

func (it *groupIter) Reset() error {
	it.state = StateUninitialized
	it.groups.Clear(false)
	it.resultsValid = false
	return it.input.Reset()
}

func (it *groupIter) Clone() PlanIter {
	return &groupIter{
		planIterBase:         planIterBase{resultReg: it.resultReg, loc: it.loc},
		input:                it.input.Clone(),
		numGBColumns:         it.numGBColumns,
		columnNames:          it.columnNames,
		aggrFuncs:            it.aggrFuncs,
		isDistinct:           it.isDistinct,
		removeProducedResult: it.removeProducedResult,
		countMemory:          it.countMemory,
		groups:               newGroupTree(),
	}
}

func (it *groupIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}

func (it *groupIter) aggregate(av *aggrValue, val *types.Value) error {
	if val == nil {
		val = types.NullValue()
	}
	switch av.fn {
	case fnCount:
		if val.IsNull() {
			return nil
		}
		return av.increment()
	case fnCountNumbers:
		if val.IsNull() || !val.IsNumeric() {
			return nil
		}
		return av.increment()
	case fnCountStar:
		return av.increment()
	case fnSum:
		if val.IsNull() || !val.IsNumeric() {
			return nil
		}
		var err error
		if av.value, err = addNumeric(av.value, val); err != nil {
			return err
		}
		av.gotNumericInput = true
		return nil
	case fnMin, fnMax:
		switch val.Type() {
		case types.Binary, types.Array, types.Map, types.Empty, types.Null, types.JSONNull:
			return nil
		}
		if av.value == nil {
			av.value = val
			return nil
		}
		cmp := types.CompareAtomics(av.value, val)
		if av.fn == fnMin && cmp > 0 || av.fn == fnMax && cmp < 0 {
			av.value = val
		}
		return nil
	case fnArrayCollect, fnArrayCollectDistinct:
		return av.collect(val)
	}
	return lderrors.Errorf(lderrors.IllegalState, "aggregation not implemented for function code %d", av.fn)
}

// aggrValue is the running state of one aggregate column within one
// group.
type aggrValue struct {
	fn              int
	value           *types.Value
	arr             []*types.Value
	set             *btree.BTreeG[*types.Value]
	gotNumericInput bool
}

func newAggrValue(fn int) *aggrValue {
	av := &aggrValue{fn: fn}
	switch fn {
	case fnCountStar, fnCount, fnCountNumbers, fnSum:
		av.value = types.NewLong(0)
	case fnArrayCollectDistinct:
		av.set = newValueSet()
	}
	return av
}

func (av *aggrValue) increment() error {
	return av.addLong(1)
}

func (av *aggrValue) addLong(n int64) error {
	var err error
	av.value, err = addNumeric(av.value, types.NewLong(n))
	return err
}

func (av *aggrValue) collect(val *types.Value) error {
	if val.IsNull() {
		return nil
	}
	if val.Type() != types.Array {
		return lderrors.Errorf(lderrors.IllegalState,
			"input to an array_collect aggregate has wrong type: expected an array, got %s", val.Type())
	}
	for _, elem := range val.Values() {
		if av.set != nil {
			av.set.ReplaceOrInsert(elem)
		} else {
			av.arr = append(av.arr, elem)
		}
	}
	return nil
}

// finalValue converts the running state into the emitted column value.
func (av *aggrValue) finalValue() *types.Value {
	switch av.fn {
	case fnSum:
		if !av.gotNumericInput {
			return types.NullValue()
		}
		return av.value
	case fnMin, fnMax:
		if av.value == nil {
			return types.NullValue()
		}
		return av.value
	case fnArrayCollect:
		return types.NewArray(av.arr)
	case fnArrayCollectDistinct:
		vals := make([]*types.Value, 0, av.set.Len())
		av.set.Ascend(func(v *types.Value) bool {
			vals = append(vals, v)
			return true
		})
		return types.NewArray(vals)
	}
	if av.value == nil {
		return types.NullValue()
	}
	return av.value
}

// addNumeric folds v into acc under the numeric promotion rules,
// returning the (possibly retyped) accumulator.
func addNumeric(acc, v *types.Value) (*types.Value, error) {
	if acc == nil {
		return v.Clone(), nil
	}
	promote := func(t types.Type) types.Type {
		switch {
		case acc.Type() == types.Number || t == types.Number:
			return types.Number
		case acc.Type() == types.Double || t == types.Double:
			return types.Double
		case acc.Type() == types.Long || t == types.Long:
			return types.Long
		}
		return types.Integer
	}
	switch promote(v.Type()) {
	case types.Integer:
		a, _ := acc.AsInt64()
		b, _ := v.AsInt64()
		return types.NewInteger(int32(a + b)), nil
	case types.Long:
		a, err := acc.AsInt64()
		if err != nil {
			return nil, err
		}
		b, err := v.AsInt64()
		if err != nil {
			return nil, err
		}
		return types.NewLong(a + b), nil
	case types.Double:
		a, err := acc.AsFloat64()
		if err != nil {
			return nil, err
		}
		b, err := v.AsFloat64()
		if err != nil {
			return nil, err
		}
		return types.NewDouble(a + b), nil
	default:
		a, err := acc.AsDecimal()
		if err != nil {
			return nil, err
		}
		b, err := v.AsDecimal()
		if err != nil {
			return nil, err
		}
		res := new(apd.Decimal)
		if _, err := types.NumberContext.Add(res, a, b); err != nil {
			return nil, lderrors.Wrap(err, "summing value")
		}
		return types.NewNumber(res), nil
	}
}
