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

	"lodestone.io/lodestone/go/ld/lderrors"
	"lodestone.io/lodestone/go/types"
	"lodestone.io/lodestone/go/wire"
)

// sumIter implements the SUM aggregate. The driver needs it to re-sum
// partial sums and counts received from the service.
//
// Next does not publish a value; it folds each numeric input into the
// running sum. Reset resets the input only, so the running sum
// survives batch boundaries; AggrValue returns the sum and, when asked,
// clears it for the next group.
type sumIter struct {
	planIterBase
	input PlanIter

	sumType       types.Type
	longSum       int64
	doubleSum     float64
	numberSum     *apd.Decimal
	count         int64
	nullInputOnly bool
}

func newSumIter(r *wire.Reader) (PlanIter, error) {
	it := &sumIter{}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	input, err := deserializeIter(r)
	if err != nil {
		return nil, err
	}
	it.input = input
	it.clearSum()
	return it, nil
}

func (it *sumIter) clearSum() {
	it.sumType = types.Long
	it.longSum = 0
	it.doubleSum = 0
	it.numberSum = apd.New(0, 0)
	it.count = 0
	it.nullInputOnly = true
}

func (it *sumIter) Kind() Kind { return KindSumFunc }

func (it *sumIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	return it.input.Open(ctx, rt)
}

func (it *sumIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
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
		if v == nil || v.IsNull() {
			continue
		}
		it.nullInputOnly = false
		if err := it.sumNewValue(v); err != nil {
			return false, err
		}
	}
}

func (it *sumIter) sumNewValue(v *types.Value) error {
	if !v.IsNumeric() {
		// non-numeric inputs are skipped
		return nil
	}
	it.count++
	ctx := types.NumberContext

	switch v.Type() {
	case types.Integer, types.Long:
		n := v.Long()
		if v.Type() == types.Integer {
			n = int64(v.Int())
		}
		switch it.sumType {
		case types.Long:
			it.longSum += n
		case types.Double:
			it.doubleSum += float64(n)
		case types.Number:
			var d apd.Decimal
			d.SetInt64(n)
			if _, err := ctx.Add(it.numberSum, it.numberSum, &d); err != nil {
				return lderrors.Wrap(err, "summing value")
			}
		}

	case types.Double:
		switch it.sumType {
		case types.Long:
			it.doubleSum = float64(it.longSum) + v.Float()
			it.sumType = types.Double
		case types.Double:
			it.doubleSum += v.Float()
		case types.Number:
			var d apd.Decimal
			if _, err := d.SetFloat64(v.Float()); err != nil {
				return lderrors.Wrap(err, "summing value")
			}
			if _, err := ctx.Add(it.numberSum, it.numberSum, &d); err != nil {
				return lderrors.Wrap(err, "summing value")
			}
		}

	case types.Number:
		switch it.sumType {
		case types.Long:
			it.numberSum.SetInt64(it.longSum)
			it.sumType = types.Number
		case types.Double:
			if _, err := it.numberSum.SetFloat64(it.doubleSum); err != nil {
				return lderrors.Wrap(err, "summing value")
			}
			it.sumType = types.Number
		}
		if _, err := ctx.Add(it.numberSum, it.numberSum, v.Decimal()); err != nil {
			return lderrors.Wrap(err, "summing value")
		}
	}
	return nil
}

// Reset resets the input only; the running sum is cleared by AggrValue
// when a group completes.
func (it *sumIter) Reset() error {
	return it.input.Reset()
}

func (it *sumIter) Clone() PlanIter {
	c := &sumIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		input:        it.input.Clone(),
	}
	c.clearSum()
	return c
}

func (it *sumIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}

// AggrValue is called twice when a group completes and a new one
// starts: once with reset to emit the finished group's sum and clear
// the state, and once without to read the initial sum computed from
// the new group's first row.
func (it *sumIter) AggrValue(rt *Runtime, reset bool) (*types.Value, error) {
	if it.nullInputOnly {
		return types.NullValue(), nil
	}
	var v *types.Value
	switch it.sumType {
	case types.Long:
		v = types.NewLong(it.longSum)
	case types.Double:
		v = types.NewDouble(it.doubleSum)
	case types.Number:
		d := new(apd.Decimal).Set(it.numberSum)
		v = types.NewNumber(d)
	default:
		return nil, lderrors.Errorf(lderrors.IllegalState, "invalid result type for SUM: %s", it.sumType)
	}
	if reset {
		it.clearSum()
	}
	return v, nil
}

// minMaxIter implements the MIN and MAX aggregates, computing the
// total min/max from the partial results received from the service.
type minMaxIter struct {
	planIterBase
	funcCode int
	input    PlanIter

	minMax *types.Value
}

func newMinMaxIter(r *wire.Reader) (PlanIter, error) {
	it := &minMaxIter{minMax: types.NullValue()}
	if err := it.readBase(r); err != nil {
		return nil, err
	}
	code, err := r.ReadInt16()
	if err != nil {
		return nil, err
	}
	it.funcCode = int(code)
	if it.funcCode != fnMin && it.funcCode != fnMax {
		return nil, lderrors.Errorf(lderrors.IllegalArgument, "invalid min/max function code %d", code)
	}
	if it.input, err = deserializeIter(r); err != nil {
		return nil, err
	}
	return it, nil
}

func (it *minMaxIter) Kind() Kind { return KindMinMaxFunc }

func (it *minMaxIter) Open(ctx context.Context, rt *Runtime) error {
	it.state = StateOpen
	return it.input.Open(ctx, rt)
}

func (it *minMaxIter) Next(ctx context.Context, rt *Runtime) (bool, error) {
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
		if v == nil {
			continue
		}
		it.minMaxNewValue(v)
	}
}

func (it *minMaxIter) minMaxNewValue(v *types.Value) {
	switch v.Type() {
	case types.Binary, types.Array, types.Map, types.Null, types.Empty, types.JSONNull:
		// binaries and complex values have no order for MIN/MAX, and
		// the special values are skipped
		return
	}
	if it.minMax.IsNull() {
		it.minMax = v
		return
	}
	cmp := types.CompareAtomics(it.minMax, v)
	if it.funcCode == fnMin {
		if cmp <= 0 {
			return
		}
	} else {
		if cmp >= 0 {
			return
		}
	}
	it.minMax = v
}

// Reset resets the input only; the running min/max is cleared by
// AggrValue when a group completes.
func (it *minMaxIter) Reset() error {
	return it.input.Reset()
}

func (it *minMaxIter) Clone() PlanIter {
	return &minMaxIter{
		planIterBase: planIterBase{resultReg: it.resultReg, loc: it.loc},
		funcCode:     it.funcCode,
		input:        it.input.Clone(),
		minMax:       types.NullValue(),
	}
}

func (it *minMaxIter) Result(rt *Runtime) *types.Value {
	return it.takeResult(rt)
}

func (it *minMaxIter) AggrValue(rt *Runtime, reset bool) (*types.Value, error) {
	if reset {
		if err := it.input.Reset(); err != nil {
			return nil, err
		}
		it.state = StateUninitialized
		v := it.minMax
		it.minMax = types.NullValue()
		return v, nil
	}
	return it.minMax.Clone(), nil
}
