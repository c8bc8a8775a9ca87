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
	"math"

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// sfwIter ("select-from-where") is the driver-side projection
// operator. It projects out columns that were fetched only for
// sorting or duplicate elimination, regroups and re-aggregates partial
// groups for grouping queries, and applies OFFSET and LIMIT.
//
// numGBColumns is -1 when the SFW does no local grouping; otherwise
// the first numGBColumns column iterators produce the grouping columns
// and the rest produce aggregates.
type sfwIter struct {
	planIterBase
	fromIter     PlanIter
	fromVarName  string
	columnIters  []PlanIter
	columnNames  []string
	isSelectStar bool
	numGBColumns int
	offsetIter   PlanIter
	limitIter    PlanIter

	offset     int64
	limit      int64
	origOffset int64
	origLimit  int64
	numResults int64
	gbTuple    []*types.Value
	// set when the row in the result register came from the
	// final-group flush; such rows are never consumed by OFFSET
	flushedLastGroup bool
}

func newSFWIter(r *wire.Reader) (PlanIter, error) {
	it := &sfwIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	var err error
	if it.columnNames, err = r.ReadStringArray(); err != nil {
		return nil, err
	}
	if it.numGBColumns, err = r.ReadIntMin(-1); err != nil {
		return nil, err
	}
	if it.fromVarName, err = r.ReadString(); err != nil {
		return nil, err
	}
	if it.isSelectStar, err = r.ReadBool(); err != nil {
		return nil, err
	}
	if it.columnIters, err = deserializeIters(r); err != nil {
		return nil, err
	}
	if it.fromIter, err = deserializeIter(r); err != nil {
		return nil, err
	}
	if it.offsetIter, err = deserializeIter(r); err != nil {
		return nil, err
	}
	if it.limitIter, err = deserializeIter(r); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *sfwIter) Kind() Kind { return KindSFW }

func (it *sfwIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	if err := it.fromIter.Open(ctx, rt); err != nil {
		return err
	}
	for _, c := range it.columnIters {
		if err := c.Open(ctx, rt); err != nil {
			return err
		}
	}
	return it.computeOffsetLimit(ctx, rt)
}

func (it *sfwIter) computeOffsetLimit(ctx context.Context, rt *Runtime) error {
	it.offset = 0
	it.limit = math.MaxInt32
	off, err := it.evalConstExpr(ctx, rt, it.offsetIter, "OFFSET")
	if err != nil {
		return err
	}
	if it.offsetIter != nil {
		it.offset = off
	}
	lim, err := it.evalConstExpr(ctx, rt, it.limitIter, "LIMIT")
	if err != nil {
		return err
	}
	if it.limitIter != nil {
		it.limit = lim
	}
	it.origOffset = it.offset
	it.origLimit = it.limit
	return nil
}

func (it *sfwIter) evalConstExpr(ctx context.Context, rt *Runtime, iter PlanIter, clause string) (int64, error) {
	if iter == nil {
		return 0, nil
	}
	if iter.Kind() != KindConst {
		return 0, lderrors.Errorf(lderrors.IllegalArgument, "expected a constant expression in the %s clause", clause)
	}
	if err := iter.Open(ctx, rt); err != nil {
		return 0, err
	}
	v := rt.Reg(iter.ResultReg())
	if v == nil || v.Type() != types.Integer && v.Type() != types.Long {
		return 0, lderrors.Errorf(lderrors.IllegalArgument, "unexpected value type in the %s clause", clause)
	}
	n, err := v.AsInt64()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, lderrors.Errorf(lderrors.IllegalArgument, "%s can not be a negative number", clause)
	}
	if n > math.MaxInt32 {
		return 0, lderrors.Errorf(lderrors.IllegalArgument, "%s can not exceed %d", clause, math.MaxInt32)
	}
	return n, nil
}

func (it *sfwIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
	if it.state == StateDone {
		return false, nil
	}
	if it.numResults >= it.limit {
		it.state = StateDone
		return false, nil
	}
	// skip rows until the offset is exhausted
	for {
		it.flushedLastGroup = false
		more, err := it.computeNextResult(ctx, rt)
		if err != nil {
			return false, err
		}
		if !more {
			return false, nil
		}
		// A row from the final-group flush is the only row that will
		// ever represent its group, so it is never eaten by OFFSET.
		if it.flushedLastGroup || it.offset == 0 {
			it.numResults++
			return true, nil
		}
		it.offset--
	}
}

func (it *sfwIter) computeNextResult(ctx context.Context, rt *Runtime) (bool, error) {
	for {
		more, err := it.fromIter.Next(ctx, rt)
		if err != nil {
			return false, err
		}
		if !more {
			if !rt.ReachedLimit() {
				it.state = StateDone
			}
			if it.numGBColumns >= 0 {
				return it.produceLastGroup(rt)
			}
			return false, nil
		}

		// Evaluate the SELECT list, or just the group-by columns for
		// a grouping SFW. A non-grouping SFW with a pending offset
		// skips the evaluation: the row is discarded anyway.
		if it.numGBColumns < 0 && it.offset > 0 {
			return true, nil
		}
		numCols := len(it.columnIters)
		if it.numGBColumns >= 0 {
			numCols = it.numGBColumns
		}

		i := 0
		for i < numCols {
			col := it.columnIters[i]
			more, err := col.Next(ctx, rt)
			if err != nil {
				return false, err
			}
			if !more {
				if it.numGBColumns > 0 {
					// a grouping column had no value; skip the row
					if err := col.Reset(); err != nil {
						return false, err
					}
					break
				}
				rt.SetReg(col.ResultReg(), types.NullValue())
			}
			if err := col.Reset(); err != nil {
				return false, err
			}
			i++
		}
		if i < numCols {
			continue
		}

		if it.numGBColumns < 0 {
			if it.isSelectStar {
				return true, nil
			}
			mv := types.NewMapValue()
			for j, col := range it.columnIters {
				mv.Put(it.columnNames[j], col.Result(rt))
			}
			it.setResult(rt, types.NewMap(mv))
			return true, nil
		}

		produced, err := it.groupInputTuple(ctx, rt)
		if err != nil {
			return false, err
		}
		if produced {
			return true, nil
		}
	}
}

// groupInputTuple decides whether the current input tuple starts the
// first group, belongs to the current group, or starts a new group.
// Only the last case produces an output tuple, from the group just
// completed.
func (it *sfwIter) groupInputTuple(ctx context.Context, rt *Runtime) (bool, error) {
	numCols := len(it.columnIters)
	gbCols := it.numGBColumns

	// very first input tuple: start the first group
	if it.gbTuple == nil {
		it.gbTuple = make([]*types.Value, numCols)
		for i := 0; i < gbCols; i++ {
			it.gbTuple[i] = it.columnIters[i].Result(rt)
		}
		if err := it.advanceAggrColumns(ctx, rt); err != nil {
			return false, err
		}
		return false, nil
	}

	same := true
	for i := 0; i < gbCols; i++ {
		if !types.Equal(rt.Reg(it.columnIters[i].ResultReg()), it.gbTuple[i]) {
			same = false
			break
		}
	}
	if same {
		// tuple is in the current group: fold it into the aggregates
		if err := it.advanceAggrColumns(ctx, rt); err != nil {
			return false, err
		}
		return false, nil
	}

	// The tuple starts a new group. Finish the current group, produce
	// its output tuple, and init the new group.
	for i := gbCols; i < numCols; i++ {
		v, err := it.aggrValue(rt, i, true)
		if err != nil {
			return false, err
		}
		it.gbTuple[i] = v
	}
	mv := types.NewMapValue()
	for i := 0; i < numCols; i++ {
		mv.Put(it.columnNames[i], it.gbTuple[i])
		it.gbTuple[i] = nil
	}
	it.setResult(rt, types.NewMap(mv))

	for i := 0; i < gbCols; i++ {
		it.gbTuple[i] = it.columnIters[i].Result(rt)
	}
	if err := it.advanceAggrColumns(ctx, rt); err != nil {
		return false, err
	}
	return true, nil
}

func (it *sfwIter) advanceAggrColumns(ctx context.Context, rt *Runtime) error {
	for i := it.numGBColumns; i < len(it.columnIters); i++ {
		if _, err := it.columnIters[i].Next(ctx, rt); err != nil {
			return err
		}
		if err := it.columnIters[i].Reset(); err != nil {
			return err
		}
	}
	return nil
}

func (it *sfwIter) aggrValue(rt *Runtime, col int, reset bool) (*types.Value, error) {
	ai, ok := it.columnIters[col].(aggrIter)
	if !ok {
		return nil, lderrors.Errorf(lderrors.IllegalState, "column %d does not compute an aggregate value", col)
	}
	return ai.AggrValue(rt, reset)
}

// produceLastGroup flushes the group in progress when the input is
// exhausted.
func (it *sfwIter) produceLastGroup(rt *Runtime) (bool, error) {
	if rt.ReachedLimit() {
		return false, nil
	}
	if it.gbTuple == nil {
		return false, nil
	}
	mv := types.NewMapValue()
	for i := 0; i < it.numGBColumns; i++ {
		mv.Put(it.columnNames[i], it.gbTuple[i])
		it.gbTuple[i] = nil
	}
	for i := it.numGBColumns; i < len(it.columnIters); i++ {
		v, err := it.aggrValue(rt, i, true)
		if err != nil {
			return false, err
		}
		mv.Put(it.columnNames[i], v)
	}
	it.setResult(rt, types.NewMap(mv))
	it.flushedLastGroup = true
	return true, nil
}

func (it *sfwIter) Reset() error {
	if err := it.fromIter.Reset(); err != nil {
		return err
	}
	for _, c := range it.columnIters {
		if err := c.Reset(); err != nil {
			return err
		}
	}
	if it.offsetIter != nil {
		if err := it.offsetIter.Reset(); err != nil {
			return err
		}
	}
	if it.limitIter != nil {
		if err := it.limitIter.Reset(); err != nil {
			return err
		}
	}
	it.state = StateUninitialized
	it.numResults = 0
	it.gbTuple = nil
	it.flushedLastGroup = false
	it.offset = it.origOffset
	it.limit = it.origLimit
	return nil
}

func (it *sfwIter) Clone() PlanIter {
	return &sfwIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		fromIter:     it.fromIter.Clone(),
		fromVarName:  it.fromVarName,
		columnIters:  cloneIters(it.columnIters),
		columnNames:  it.columnNames,
		isSelectStar: it.isSelectStar,
		numGBColumns: it.numGBColumns,
		offsetIter:   cloneIter(it.offsetIter),
		limitIter:    cloneIter(it.limitIter),
	}
}

func (it *sfwIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}
